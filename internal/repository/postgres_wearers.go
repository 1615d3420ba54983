package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostgresWearersRepo 佩戴者Repository实现
// 注册与级联删除均为单事务：移除了客户端补偿删除模式及其孤儿记录故障模式
type PostgresWearersRepo struct {
	db     *sql.DB
	feed   realtime.Publisher
	logger *zap.Logger
}

// NewPostgresWearersRepo 创建佩戴者Repository
func NewPostgresWearersRepo(db *sql.DB, feed realtime.Publisher, logger *zap.Logger) *PostgresWearersRepo {
	return &PostgresWearersRepo{db: db, feed: feed, logger: logger}
}

// 确保实现了接口
var _ WearersRepository = (*PostgresWearersRepo)(nil)

// wearerSelect 佩戴者 + 绑定设备联查
const wearerSelect = `
	SELECT
		w.wearer_id::text,
		w.account_id::text,
		w.name,
		w.date_of_birth,
		w.medical_notes,
		w.emergency_contact_name,
		w.emergency_contact_phone,
		w.created_at,
		w.updated_at,
		CASE WHEN d.device_id IS NULL THEN NULL ELSE d.device_id::text END,
		d.device_code,
		d.serial_number,
		CASE WHEN d.wearer_id IS NULL THEN NULL ELSE d.wearer_id::text END,
		d.is_verified,
		d.last_seen_at,
		d.created_at
	FROM wearers w
	LEFT JOIN devices d ON d.wearer_id = w.wearer_id`

func scanWearerWithDevice(row interface{ Scan(...any) error }) (*domain.Wearer, error) {
	var w domain.Wearer
	var deviceID, deviceCode, serialNumber, deviceWearerID sql.NullString
	var isVerified sql.NullBool
	var lastSeenAt, deviceCreatedAt sql.NullTime

	err := row.Scan(
		&w.WearerID, &w.AccountID, &w.Name, &w.DateOfBirth,
		&w.MedicalNotes, &w.EmergencyContactName, &w.EmergencyContactPhone,
		&w.CreatedAt, &w.UpdatedAt,
		&deviceID, &deviceCode, &serialNumber, &deviceWearerID,
		&isVerified, &lastSeenAt, &deviceCreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deviceID.Valid {
		w.Device = &domain.Device{
			DeviceID:     deviceID.String,
			DeviceCode:   deviceCode.String,
			SerialNumber: serialNumber.String,
			WearerID:     deviceWearerID,
			IsVerified:   isVerified.Bool,
			LastSeenAt:   lastSeenAt,
		}
		if deviceCreatedAt.Valid {
			w.Device.CreatedAt = deviceCreatedAt.Time
		}
	}
	return &w, nil
}

func (r *PostgresWearersRepo) GetWearer(ctx context.Context, accountID, wearerID string) (*domain.Wearer, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	w, err := scanWearerWithDevice(r.db.QueryRowContext(ctx,
		wearerSelect+`
	WHERE w.account_id = $1 AND w.wearer_id = $2`,
		accountID, wearerID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("wearer %s: %w", wearerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PostgresWearersRepo) ListWearers(ctx context.Context, accountID string) ([]*domain.Wearer, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	rows, err := r.db.QueryContext(ctx,
		wearerSelect+`
	WHERE w.account_id = $1
	ORDER BY w.name`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wearers := []*domain.Wearer{}
	for rows.Next() {
		w, err := scanWearerWithDevice(rows)
		if err != nil {
			return nil, err
		}
		wearers = append(wearers, w)
	}
	return wearers, rows.Err()
}

// RegisterWearer 注册新佩戴者并绑定设备（单事务）
// 流程：
// 1. FOR UPDATE 锁定设备码（阻止并发注册同一短码）
// 2. 短码已绑定其他 wearer → domain.ErrCodeAlreadyRegistered（零写入）
// 3. 创建 wearer 行
// 4. 绑定已存在的未绑定设备行，否则创建新设备行（占位 serial，is_verified=false）
// 5. 写入默认 wearer_settings
func (r *PostgresWearersRepo) RegisterWearer(ctx context.Context, wearer *domain.Wearer, deviceCode string) (*domain.Wearer, error) {
	if wearer == nil || wearer.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	if wearer.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !domain.ValidDeviceCode(deviceCode) {
		return nil, fmt.Errorf("device code must be exactly 7 digits")
	}

	now := time.Now().UTC()
	if wearer.WearerID == "" {
		wearer.WearerID = uuid.NewString()
	}
	wearer.CreatedAt = now
	wearer.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var existingDeviceID string
	var existingWearerID sql.NullString
	deviceFound := true
	err = tx.QueryRowContext(ctx,
		`SELECT device_id::text,
		        CASE WHEN wearer_id IS NULL THEN NULL ELSE wearer_id::text END
		 FROM devices
		 WHERE device_code = $1
		 FOR UPDATE`,
		deviceCode,
	).Scan(&existingDeviceID, &existingWearerID)
	if err == sql.ErrNoRows {
		deviceFound = false
	} else if err != nil {
		return nil, err
	}

	if deviceFound && existingWearerID.Valid {
		return nil, domain.ErrCodeAlreadyRegistered
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wearers (wearer_id, account_id, name, date_of_birth, medical_notes,
		                      emergency_contact_name, emergency_contact_phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		wearer.WearerID, wearer.AccountID, wearer.Name, wearer.DateOfBirth,
		wearer.MedicalNotes, wearer.EmergencyContactName, wearer.EmergencyContactPhone,
		wearer.CreatedAt, wearer.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wearer: %w", err)
	}

	if deviceFound {
		_, err = tx.ExecContext(ctx,
			`UPDATE devices SET wearer_id = $1 WHERE device_id = $2`,
			wearer.WearerID, existingDeviceID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to bind device: %w", err)
		}
	} else {
		// 物理设备尚未上线：创建占位设备行，serial 在设备确认短码时写入
		_, err = tx.ExecContext(ctx,
			`INSERT INTO devices (device_id, device_code, serial_number, wearer_id, is_verified, created_at)
			 VALUES ($1, $2, $3, $4, FALSE, $5)`,
			uuid.NewString(), deviceCode, "pending-"+uuid.NewString(), wearer.WearerID, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wearer_settings (wearer_id, checkin_reminder_enabled, fall_sensitivity, updated_at)
		 VALUES ($1, TRUE, 'medium', $2)`,
		wearer.WearerID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wearer settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	hydrated, err := r.GetWearer(ctx, wearer.AccountID, wearer.WearerID)
	if err != nil {
		return nil, err
	}

	r.feed.Publish(ctx, realtime.ChangeEvent{
		Table:     realtime.TableWearers,
		AccountID: hydrated.AccountID,
		Kind:      realtime.EventInsert,
		After:     snapshotJSON(hydrated.ToJSON()),
	})
	if hydrated.Device != nil {
		r.feed.Publish(ctx, realtime.ChangeEvent{
			Table:     realtime.TableDevices,
			AccountID: hydrated.AccountID,
			Kind:      realtime.EventUpdate,
			After:     snapshotJSON(hydrated.Device.ToJSON()),
		})
	}
	return hydrated, nil
}

func (r *PostgresWearersRepo) UpdateWearer(ctx context.Context, accountID, wearerID string, upd WearerUpdate) error {
	if accountID == "" {
		return fmt.Errorf("account_id is required")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE wearers
		 SET name                    = COALESCE($1, name),
		     date_of_birth           = COALESCE($2, date_of_birth),
		     medical_notes           = COALESCE($3, medical_notes),
		     emergency_contact_name  = COALESCE($4, emergency_contact_name),
		     emergency_contact_phone = COALESCE($5, emergency_contact_phone),
		     updated_at              = $6
		 WHERE account_id = $7 AND wearer_id = $8`,
		upd.Name, upd.DateOfBirth, upd.MedicalNotes,
		upd.EmergencyContactName, upd.EmergencyContactPhone,
		time.Now().UTC(), accountID, wearerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("wearer %s: %w", wearerID, domain.ErrNotFound)
	}

	if fresh, err := r.GetWearer(ctx, accountID, wearerID); err == nil {
		r.feed.Publish(ctx, realtime.ChangeEvent{
			Table:     realtime.TableWearers,
			AccountID: accountID,
			Kind:      realtime.EventUpdate,
			After:     snapshotJSON(fresh.ToJSON()),
		})
	}
	return nil
}

// DeleteWearer 级联删除（单事务，调用方视角 all-or-nothing）
// 设备仅解绑（行保留）；分配、帮助请求、设置随 wearer 一并删除
func (r *PostgresWearersRepo) DeleteWearer(ctx context.Context, accountID, wearerID string) error {
	if accountID == "" {
		return fmt.Errorf("account_id is required")
	}

	before, err := r.GetWearer(ctx, accountID, wearerID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	steps := []struct {
		desc  string
		query string
	}{
		{"unbind device", `UPDATE devices SET wearer_id = NULL WHERE wearer_id = $1`},
		{"delete assignments", `DELETE FROM caregiver_assignments WHERE wearer_id = $1`},
		{"delete help requests", `DELETE FROM help_requests WHERE wearer_id = $1`},
		{"delete settings", `DELETE FROM wearer_settings WHERE wearer_id = $1`},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, wearerID); err != nil {
			return fmt.Errorf("failed to %s: %w", step.desc, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM wearers WHERE account_id = $1 AND wearer_id = $2`,
		accountID, wearerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete wearer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("wearer %s: %w", wearerID, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.feed.Publish(ctx, realtime.ChangeEvent{
		Table:     realtime.TableWearers,
		AccountID: accountID,
		Kind:      realtime.EventDelete,
		Before:    snapshotJSON(before.ToJSON()),
	})
	if before.Device != nil {
		r.feed.Publish(ctx, realtime.ChangeEvent{
			Table:     realtime.TableDevices,
			AccountID: accountID,
			Kind:      realtime.EventUpdate,
			Before:    snapshotJSON(before.Device.ToJSON()),
		})
	}
	return nil
}

func (r *PostgresWearersRepo) GetSettings(ctx context.Context, accountID, wearerID string) (*domain.WearerSettings, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	var s domain.WearerSettings
	err := r.db.QueryRowContext(ctx,
		`SELECT s.wearer_id::text, s.checkin_reminder_enabled, s.fall_sensitivity, s.updated_at
		 FROM wearer_settings s
		 JOIN wearers w ON w.wearer_id = s.wearer_id
		 WHERE w.account_id = $1 AND s.wearer_id = $2`,
		accountID, wearerID,
	).Scan(&s.WearerID, &s.CheckinReminderEnabled, &s.FallSensitivity, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settings for wearer %s: %w", wearerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresWearersRepo) UpdateSettings(ctx context.Context, accountID, wearerID string, settings *domain.WearerSettings) error {
	if accountID == "" {
		return fmt.Errorf("account_id is required")
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE wearer_settings s
		 SET checkin_reminder_enabled = $1,
		     fall_sensitivity = $2,
		     updated_at = $3
		 FROM wearers w
		 WHERE w.wearer_id = s.wearer_id
		   AND w.account_id = $4
		   AND s.wearer_id = $5`,
		settings.CheckinReminderEnabled, settings.FallSensitivity,
		time.Now().UTC(), accountID, wearerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("settings for wearer %s: %w", wearerID, domain.ErrNotFound)
	}
	return nil
}
