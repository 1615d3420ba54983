package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"

	"github.com/google/uuid"
)

// PostgresAccountsRepo 账户Repository实现
type PostgresAccountsRepo struct {
	db *sql.DB
}

// NewPostgresAccountsRepo 创建账户Repository
func NewPostgresAccountsRepo(db *sql.DB) *PostgresAccountsRepo {
	return &PostgresAccountsRepo{db: db}
}

// 确保实现了接口
var _ AccountsRepository = (*PostgresAccountsRepo)(nil)

func (r *PostgresAccountsRepo) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}

	var a domain.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id::text, account_name, created_at
		 FROM accounts
		 WHERE account_id = $1`,
		accountID,
	).Scan(&a.AccountID, &a.AccountName, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccountWithAdmin 创建账户并写入首个 admin 档案（单事务）
// 对应前端"新 admin 完成引导"流程：账户是完成引导的副作用
func (r *PostgresAccountsRepo) CreateAccountWithAdmin(ctx context.Context, accountName string, admin *domain.UserProfile) (*domain.Account, error) {
	if accountName == "" {
		return nil, fmt.Errorf("account_name is required")
	}
	if admin == nil || admin.IdentityID == "" || admin.Email == "" {
		return nil, fmt.Errorf("admin identity_id and email are required")
	}

	now := time.Now().UTC()
	account := &domain.Account{
		AccountID:   uuid.NewString(),
		AccountName: accountName,
		CreatedAt:   now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (account_id, account_name, created_at)
		 VALUES ($1, $2, $3)`,
		account.AccountID, account.AccountName, account.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if admin.UserID == "" {
		admin.UserID = uuid.NewString()
	}
	admin.AccountID = account.AccountID
	admin.Role = domain.RoleCaregiverAdmin
	admin.CreatedAt = now
	admin.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, account_id, identity_id, email, display_name, phone, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		admin.UserID, admin.AccountID, admin.IdentityID, admin.Email,
		admin.DisplayName, admin.Phone, admin.Role, admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return account, nil
}
