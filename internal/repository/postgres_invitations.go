package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"

	"github.com/google/uuid"
)

// PostgresInvitationsRepo 邀请Repository实现
type PostgresInvitationsRepo struct {
	db *sql.DB
}

// NewPostgresInvitationsRepo 创建邀请Repository
func NewPostgresInvitationsRepo(db *sql.DB) *PostgresInvitationsRepo {
	return &PostgresInvitationsRepo{db: db}
}

// 确保实现了接口
var _ InvitationsRepository = (*PostgresInvitationsRepo)(nil)

const invitationColumns = `invitation_id::text, account_id::text, email, invited_by::text, status, created_at, expires_at`

func scanInvitation(row interface{ Scan(...any) error }) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(
		&inv.InvitationID, &inv.AccountID, &inv.Email,
		&inv.InvitedBy, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetPendingByEmail 按邮箱查询可消费的邀请
// 过期判定在查询时比较 expires_at：status 仍为 pending 的过期行在此处直接视同不存在
func (r *PostgresInvitationsRepo) GetPendingByEmail(ctx context.Context, email string) (*domain.Invitation, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	inv, err := scanInvitation(r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+`
		 FROM invitations
		 WHERE lower(email) = lower($1)
		   AND status = 'pending'
		   AND expires_at > $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		email, time.Now().UTC(),
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invitation for %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *PostgresInvitationsRepo) ListInvitations(ctx context.Context, accountID string) ([]*domain.Invitation, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invitationColumns+`
		 FROM invitations
		 WHERE account_id = $1
		 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invitations := []*domain.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (r *PostgresInvitationsRepo) CreateInvitation(ctx context.Context, inv *domain.Invitation) (string, error) {
	if inv.AccountID == "" {
		return "", fmt.Errorf("account_id is required")
	}
	if inv.Email == "" {
		return "", fmt.Errorf("email is required")
	}

	if inv.InvitationID == "" {
		inv.InvitationID = uuid.NewString()
	}
	now := time.Now().UTC()
	inv.Status = domain.InvitationPending
	inv.CreatedAt = now
	inv.ExpiresAt = now.Add(domain.InvitationTTL)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (invitation_id, account_id, email, invited_by, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.InvitationID, inv.AccountID, inv.Email, inv.InvitedBy,
		inv.Status, inv.CreatedAt, inv.ExpiresAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create invitation: %w", err)
	}
	return inv.InvitationID, nil
}

// AcceptInvitation 消费邀请并创建 caregiver 档案（单事务，恰好消费一次）
// FOR UPDATE 锁定邀请行：同一邀请并发接受时只有一个事务能看到 pending 状态
func (r *PostgresInvitationsRepo) AcceptInvitation(ctx context.Context, invitationID string, profile *domain.UserProfile) (*domain.UserProfile, error) {
	if invitationID == "" {
		return nil, fmt.Errorf("invitation_id is required")
	}
	if profile == nil || profile.IdentityID == "" || profile.Email == "" {
		return nil, fmt.Errorf("profile identity_id and email are required")
	}

	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var accountID, status string
	var expiresAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT account_id::text, status, expires_at
		 FROM invitations
		 WHERE invitation_id = $1
		 FOR UPDATE`,
		invitationID,
	).Scan(&accountID, &status, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invitation %s: %w", invitationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if status != domain.InvitationPending {
		return nil, fmt.Errorf("invitation %s already %s: %w", invitationID, status, domain.ErrNotFound)
	}
	if !now.Before(expiresAt) {
		return nil, domain.ErrInvitationExpired
	}

	if profile.UserID == "" {
		profile.UserID = uuid.NewString()
	}
	profile.AccountID = accountID
	profile.Role = domain.RoleCaregiver
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, account_id, identity_id, email, display_name, phone, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		profile.UserID, profile.AccountID, profile.IdentityID, profile.Email,
		profile.DisplayName, profile.Phone, profile.Role, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create caregiver profile: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE invitations SET status = 'accepted' WHERE invitation_id = $1`,
		invitationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return profile, nil
}
