package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
)

// PostgresUsersRepo 用户档案Repository实现
type PostgresUsersRepo struct {
	db *sql.DB
}

// NewPostgresUsersRepo 创建用户档案Repository
func NewPostgresUsersRepo(db *sql.DB) *PostgresUsersRepo {
	return &PostgresUsersRepo{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepo)(nil)

const profileColumns = `user_id::text, account_id::text, identity_id, email, display_name, phone, role, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := row.Scan(
		&p.UserID, &p.AccountID, &p.IdentityID, &p.Email,
		&p.DisplayName, &p.Phone, &p.Role, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresUsersRepo) GetProfile(ctx context.Context, accountID, userID string) (*domain.UserProfile, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+`
		 FROM user_profiles
		 WHERE account_id = $1 AND user_id = $2`,
		accountID, userID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfileByIdentity 按外部身份查询档案（无 account 范围：身份先于账户存在）
func (r *PostgresUsersRepo) GetProfileByIdentity(ctx context.Context, identityID string) (*domain.UserProfile, error) {
	if identityID == "" {
		return nil, fmt.Errorf("identity_id is required")
	}
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+`
		 FROM user_profiles
		 WHERE identity_id = $1`,
		identityID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("identity %s: %w", identityID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresUsersRepo) ListProfiles(ctx context.Context, accountID string) ([]*domain.UserProfile, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+`
		 FROM user_profiles
		 WHERE account_id = $1
		 ORDER BY display_name, email`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []*domain.UserProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *PostgresUsersRepo) UpdateProfile(ctx context.Context, accountID, userID string, displayName string, phone *string) error {
	if accountID == "" {
		return fmt.Errorf("account_id is required")
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles
		 SET display_name = $1,
		     phone = COALESCE($2, phone),
		     updated_at = $3
		 WHERE account_id = $4 AND user_id = $5`,
		displayName, phone, time.Now().UTC(), accountID, userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}
