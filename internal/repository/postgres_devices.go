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

// PostgresDevicesRepo 设备Repository实现
type PostgresDevicesRepo struct {
	db     *sql.DB
	feed   realtime.Publisher
	logger *zap.Logger
}

// NewPostgresDevicesRepo 创建设备Repository
func NewPostgresDevicesRepo(db *sql.DB, feed realtime.Publisher, logger *zap.Logger) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db, feed: feed, logger: logger}
}

// 确保实现了接口
var _ DevicesRepository = (*PostgresDevicesRepo)(nil)

const deviceColumns = `device_id::text, device_code, serial_number,
	CASE WHEN wearer_id IS NULL THEN NULL ELSE wearer_id::text END,
	is_verified, last_seen_at, created_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.DeviceID, &d.DeviceCode, &d.SerialNumber,
		&d.WearerID, &d.IsVerified, &d.LastSeenAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresDevicesRepo) GetDeviceByCode(ctx context.Context, deviceCode string) (*domain.Device, error) {
	if !domain.ValidDeviceCode(deviceCode) {
		return nil, fmt.Errorf("device code must be exactly 7 digits")
	}
	d, err := scanDevice(r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_code = $1`,
		deviceCode,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device %s: %w", deviceCode, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ConfirmDevice 物理设备确认短码
// 设备行存在 → 写入真实 serial、置位 is_verified、刷新 last_seen_at
// 设备行不存在（设备先于注册上线）→ 创建未绑定行，已验证
func (r *PostgresDevicesRepo) ConfirmDevice(ctx context.Context, deviceCode, serialNumber string, seenAt time.Time) (*domain.Device, error) {
	if !domain.ValidDeviceCode(deviceCode) {
		return nil, fmt.Errorf("device code must be exactly 7 digits")
	}
	if serialNumber == "" {
		return nil, fmt.Errorf("serial_number is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var deviceID string
	found := true
	err = tx.QueryRowContext(ctx,
		`SELECT device_id::text FROM devices WHERE device_code = $1 FOR UPDATE`,
		deviceCode,
	).Scan(&deviceID)
	if err == sql.ErrNoRows {
		found = false
	} else if err != nil {
		return nil, err
	}

	if found {
		_, err = tx.ExecContext(ctx,
			`UPDATE devices
			 SET serial_number = $1, is_verified = TRUE, last_seen_at = $2
			 WHERE device_id = $3`,
			serialNumber, seenAt, deviceID,
		)
	} else {
		deviceID = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO devices (device_id, device_code, serial_number, wearer_id, is_verified, last_seen_at, created_at)
			 VALUES ($1, $2, $3, NULL, TRUE, $4, $5)`,
			deviceID, deviceCode, serialNumber, seenAt, seenAt,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to confirm device %s: %w", deviceCode, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	d, err := r.GetDeviceByCode(ctx, deviceCode)
	if err != nil {
		return nil, err
	}

	// 变更事件按 account 定向：未绑定设备没有 account 归属，不发布
	if accountID := r.accountForDevice(ctx, d); accountID != "" {
		r.feed.Publish(ctx, realtime.ChangeEvent{
			Table:     realtime.TableDevices,
			AccountID: accountID,
			Kind:      realtime.EventUpdate,
			After:     snapshotJSON(d.ToJSON()),
		})
	}
	return d, nil
}

// TouchLastSeen 心跳：仅刷新 last_seen_at（不发布变更事件，避免每次心跳都触发客户端重拉）
func (r *PostgresDevicesRepo) TouchLastSeen(ctx context.Context, deviceCode string, seenAt time.Time) error {
	if !domain.ValidDeviceCode(deviceCode) {
		return fmt.Errorf("device code must be exactly 7 digits")
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen_at = $1 WHERE device_code = $2`,
		seenAt, deviceCode,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("device %s: %w", deviceCode, domain.ErrNotFound)
	}
	return nil
}

// ResolveBinding 短码 → 绑定 wearer 及其 account（告警路由用）
func (r *PostgresDevicesRepo) ResolveBinding(ctx context.Context, deviceCode string) (*DeviceBinding, error) {
	if !domain.ValidDeviceCode(deviceCode) {
		return nil, fmt.Errorf("device code must be exactly 7 digits")
	}
	var b DeviceBinding
	err := r.db.QueryRowContext(ctx,
		`SELECT d.device_id::text, w.wearer_id::text, w.account_id::text
		 FROM devices d
		 JOIN wearers w ON w.wearer_id = d.wearer_id
		 WHERE d.device_code = $1`,
		deviceCode,
	).Scan(&b.DeviceID, &b.WearerID, &b.AccountID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device %s is not bound: %w", deviceCode, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// accountForDevice 设备的 account 归属经由绑定的 wearer 间接确定
func (r *PostgresDevicesRepo) accountForDevice(ctx context.Context, d *domain.Device) string {
	if !d.IsBound() {
		return ""
	}
	var accountID string
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id::text FROM wearers WHERE wearer_id = $1`,
		d.WearerID.String,
	).Scan(&accountID)
	if err != nil {
		if r.logger != nil && err != sql.ErrNoRows {
			r.logger.Warn("Failed to resolve device account scope", zap.Error(err))
		}
		return ""
	}
	return accountID
}
