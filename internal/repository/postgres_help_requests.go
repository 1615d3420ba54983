package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/realtime"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresHelpRequestsRepo 帮助请求Repository实现
type PostgresHelpRequestsRepo struct {
	db     *sql.DB
	feed   realtime.Publisher
	logger *zap.Logger
}

// NewPostgresHelpRequestsRepo 创建帮助请求Repository
func NewPostgresHelpRequestsRepo(db *sql.DB, feed realtime.Publisher, logger *zap.Logger) *PostgresHelpRequestsRepo {
	return &PostgresHelpRequestsRepo{db: db, feed: feed, logger: logger}
}

// 确保实现了接口
var _ HelpRequestsRepository = (*PostgresHelpRequestsRepo)(nil)

const helpRequestColumns = `
	h.request_id::text,
	h.account_id::text,
	h.wearer_id::text,
	CASE WHEN h.device_id IS NULL THEN NULL ELSE h.device_id::text END,
	h.request_type,
	h.status,
	h.latitude,
	h.longitude,
	h.notes,
	CASE WHEN h.responder_id IS NULL THEN NULL ELSE h.responder_id::text END,
	h.created_at,
	h.responded_at,
	h.resolved_at,
	h.updated_at`

func scanHelpRequest(row interface{ Scan(...any) error }, withWearerName bool) (*domain.HelpRequest, error) {
	var h domain.HelpRequest
	dest := []any{
		&h.RequestID, &h.AccountID, &h.WearerID, &h.DeviceID,
		&h.RequestType, &h.Status, &h.Latitude, &h.Longitude,
		&h.Notes, &h.ResponderID,
		&h.CreatedAt, &h.RespondedAt, &h.ResolvedAt, &h.UpdatedAt,
	}
	if withWearerName {
		dest = append(dest, &h.WearerName)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *PostgresHelpRequestsRepo) GetHelpRequest(ctx context.Context, accountID, requestID string) (*domain.HelpRequest, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	h, err := scanHelpRequest(r.db.QueryRowContext(ctx,
		`SELECT `+helpRequestColumns+`
		 FROM help_requests h
		 WHERE h.account_id = $1 AND h.request_id = $2`,
		accountID, requestID,
	), false)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("help request %s: %w", requestID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// GetHelpRequestDetails 详情查询：联查 Wearer 的医疗/紧急联系人字段
// not-found 与其他后端错误区分（domain.ErrNotFound）
func (r *PostgresHelpRequestsRepo) GetHelpRequestDetails(ctx context.Context, accountID, requestID string) (*domain.HelpRequest, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	var h domain.HelpRequest
	var w domain.Wearer
	err := r.db.QueryRowContext(ctx,
		`SELECT `+helpRequestColumns+`,
			w.wearer_id::text,
			w.account_id::text,
			w.name,
			w.date_of_birth,
			w.medical_notes,
			w.emergency_contact_name,
			w.emergency_contact_phone,
			w.created_at,
			w.updated_at
		 FROM help_requests h
		 JOIN wearers w ON w.wearer_id = h.wearer_id
		 WHERE h.account_id = $1 AND h.request_id = $2`,
		accountID, requestID,
	).Scan(
		&h.RequestID, &h.AccountID, &h.WearerID, &h.DeviceID,
		&h.RequestType, &h.Status, &h.Latitude, &h.Longitude,
		&h.Notes, &h.ResponderID,
		&h.CreatedAt, &h.RespondedAt, &h.ResolvedAt, &h.UpdatedAt,
		&w.WearerID, &w.AccountID, &w.Name, &w.DateOfBirth,
		&w.MedicalNotes, &w.EmergencyContactName, &w.EmergencyContactPhone,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("help request %s: %w", requestID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	h.Wearer = &w
	h.WearerName = w.Name
	return &h, nil
}

// ListActive 全部 active 请求，联查 wearer 名称，最新在前
func (r *PostgresHelpRequestsRepo) ListActive(ctx context.Context, accountID string) ([]*domain.HelpRequest, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+helpRequestColumns+`, w.name
		 FROM help_requests h
		 JOIN wearers w ON w.wearer_id = h.wearer_id
		 WHERE h.account_id = $1 AND h.status = 'active'
		 ORDER BY h.created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHelpRequests(rows)
}

// ListResolved 历史请求（resolved + false_alarm），按解决时间倒序，limit 截断
func (r *PostgresHelpRequestsRepo) ListResolved(ctx context.Context, accountID string, limit int) ([]*domain.HelpRequest, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+helpRequestColumns+`, w.name
		 FROM help_requests h
		 JOIN wearers w ON w.wearer_id = h.wearer_id
		 WHERE h.account_id = $1 AND h.status IN ('resolved', 'false_alarm')
		 ORDER BY h.resolved_at DESC
		 LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHelpRequests(rows)
}

func collectHelpRequests(rows *sql.Rows) ([]*domain.HelpRequest, error) {
	requests := []*domain.HelpRequest{}
	for rows.Next() {
		h, err := scanHelpRequest(rows, true)
		if err != nil {
			return nil, err
		}
		requests = append(requests, h)
	}
	return requests, rows.Err()
}

// CreateHelpRequest 创建帮助请求（仅供外部报警产生方：MQTT ingest / 手表服务端）
// 状态恒为 active
func (r *PostgresHelpRequestsRepo) CreateHelpRequest(ctx context.Context, req *domain.HelpRequest) (string, error) {
	if req.AccountID == "" {
		return "", fmt.Errorf("account_id is required")
	}
	if req.WearerID == "" {
		return "", fmt.Errorf("wearer_id is required")
	}
	if req.RequestType != domain.RequestTypeFallDetected && req.RequestType != domain.RequestTypeManual {
		return "", fmt.Errorf("invalid request_type: %s", req.RequestType)
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	req.Status = domain.HelpRequestActive
	if req.CreatedAt.IsZero() {
		req.CreatedAt = nowUTC()
	}
	req.UpdatedAt = req.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO help_requests
			(request_id, account_id, wearer_id, device_id, request_type, status,
			 latitude, longitude, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.RequestID, req.AccountID, req.WearerID, req.DeviceID,
		req.RequestType, req.Status,
		req.Latitude, req.Longitude, req.Notes,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create help request: %w", err)
	}

	r.feed.Publish(ctx, realtime.ChangeEvent{
		Table:     realtime.TableHelpRequests,
		AccountID: req.AccountID,
		Kind:      realtime.EventInsert,
		After:     snapshotJSON(req.ToJSON()),
	})
	return req.RequestID, nil
}

// Transition 状态迁移（带前置状态守卫）
// WHERE status = ANY(allowed) 保证终态不可变：守卫失败且行存在 → ErrInvalidTransition
// notes 为 COALESCE 整体覆盖（last-write-wins）
func (r *PostgresHelpRequestsRepo) Transition(ctx context.Context, accountID, requestID string, t HelpRequestTransition) error {
	if accountID == "" {
		return fmt.Errorf("account_id is required")
	}

	var allowed []string
	switch t.ToStatus {
	case domain.HelpRequestRespondedTo:
		if t.ResponderID == "" {
			return fmt.Errorf("responder_id is required")
		}
		allowed = []string{domain.HelpRequestActive}
	case domain.HelpRequestResolved, domain.HelpRequestFalseAlarm:
		allowed = []string{domain.HelpRequestActive, domain.HelpRequestRespondedTo}
	default:
		return fmt.Errorf("invalid target status %s: %w", t.ToStatus, domain.ErrInvalidTransition)
	}

	if t.At.IsZero() {
		t.At = nowUTC()
	}

	var res sql.Result
	var err error
	if t.ToStatus == domain.HelpRequestRespondedTo {
		res, err = r.db.ExecContext(ctx,
			`UPDATE help_requests
			 SET status = $1,
			     responder_id = $2,
			     responded_at = $3,
			     notes = COALESCE($4, notes),
			     updated_at = $3
			 WHERE account_id = $5 AND request_id = $6 AND status = ANY($7)`,
			t.ToStatus, t.ResponderID, t.At, t.Notes,
			accountID, requestID, pq.Array(allowed),
		)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE help_requests
			 SET status = $1,
			     resolved_at = $2,
			     notes = COALESCE($3, notes),
			     responder_id = COALESCE(responder_id, $4),
			     updated_at = $2
			 WHERE account_id = $5 AND request_id = $6 AND status = ANY($7)`,
			t.ToStatus, t.At, t.Notes, nullIfEmpty(t.ResponderID),
			accountID, requestID, pq.Array(allowed),
		)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// 守卫未命中：区分"不存在"与"非法迁移"
		if _, err := r.GetHelpRequest(ctx, accountID, requestID); err != nil {
			return err
		}
		return fmt.Errorf("help request %s cannot move to %s: %w", requestID, t.ToStatus, domain.ErrInvalidTransition)
	}

	if fresh, err := r.GetHelpRequest(ctx, accountID, requestID); err == nil {
		r.feed.Publish(ctx, realtime.ChangeEvent{
			Table:     realtime.TableHelpRequests,
			AccountID: accountID,
			Kind:      realtime.EventUpdate,
			After:     snapshotJSON(fresh.ToJSON()),
		})
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
