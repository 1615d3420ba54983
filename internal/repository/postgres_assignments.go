package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"

	"github.com/google/uuid"
)

// PostgresAssignmentsRepo 护理分配Repository实现
type PostgresAssignmentsRepo struct {
	db *sql.DB
}

// NewPostgresAssignmentsRepo 创建护理分配Repository
func NewPostgresAssignmentsRepo(db *sql.DB) *PostgresAssignmentsRepo {
	return &PostgresAssignmentsRepo{db: db}
}

// 确保实现了接口
var _ AssignmentsRepository = (*PostgresAssignmentsRepo)(nil)

// ListAssigned 查询 wearer 的全部分配，LEFT JOIN 档案
// 引用的档案缺失时档案字段为空字符串（COALESCE），不报完整性错误
func (r *PostgresAssignmentsRepo) ListAssigned(ctx context.Context, accountID, wearerID string) ([]*domain.Assignment, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT
			a.assignment_id::text,
			a.account_id::text,
			a.wearer_id::text,
			a.user_id::text,
			a.relationship,
			a.is_primary,
			a.is_emergency_contact,
			a.created_at,
			COALESCE(p.email, ''),
			COALESCE(p.display_name, ''),
			COALESCE(p.role, '')
		 FROM caregiver_assignments a
		 LEFT JOIN user_profiles p ON p.user_id = a.user_id
		 WHERE a.account_id = $1 AND a.wearer_id = $2
		 ORDER BY a.created_at`,
		accountID, wearerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []*domain.Assignment{}
	for rows.Next() {
		var a domain.Assignment
		err := rows.Scan(
			&a.AssignmentID, &a.AccountID, &a.WearerID, &a.UserID,
			&a.Relationship, &a.IsPrimary, &a.IsEmergencyContact, &a.CreatedAt,
			&a.CaregiverEmail, &a.CaregiverDisplayName, &a.CaregiverRole,
		)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

// ListAvailable 账户内全部档案减去已分配的档案（集合差）
// 不变量：ListAvailable ∩ ListAssigned = ∅；二者按 user_id 的并集 = 账户内全部档案
func (r *PostgresAssignmentsRepo) ListAvailable(ctx context.Context, accountID, wearerID string) ([]*domain.UserProfile, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+`
		 FROM user_profiles
		 WHERE account_id = $1
		   AND user_id NOT IN (
			SELECT user_id FROM caregiver_assignments WHERE wearer_id = $2
		   )
		 ORDER BY display_name, email`,
		accountID, wearerID,
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

// CreateAssignment 创建分配（幂等）
// UNIQUE(wearer_id, user_id) + ON CONFLICT DO NOTHING：重复分配返回已存在的 assignment_id
func (r *PostgresAssignmentsRepo) CreateAssignment(ctx context.Context, a *domain.Assignment) (string, error) {
	if a.AccountID == "" {
		return "", fmt.Errorf("account_id is required")
	}
	if a.WearerID == "" || a.UserID == "" {
		return "", fmt.Errorf("wearer_id and user_id are required")
	}

	if a.AssignmentID == "" {
		a.AssignmentID = uuid.NewString()
	}
	if a.Relationship == "" {
		a.Relationship = "family"
	}
	a.CreatedAt = time.Now().UTC()

	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO caregiver_assignments
			(assignment_id, account_id, wearer_id, user_id, relationship, is_primary, is_emergency_contact, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (wearer_id, user_id) DO NOTHING
		 RETURNING assignment_id::text`,
		a.AssignmentID, a.AccountID, a.WearerID, a.UserID,
		a.Relationship, a.IsPrimary, a.IsEmergencyContact, a.CreatedAt,
	).Scan(&id)
	if err == sql.ErrNoRows {
		// 冲突：分配已存在，返回既有行的 id
		err = r.db.QueryRowContext(ctx,
			`SELECT assignment_id::text FROM caregiver_assignments
			 WHERE wearer_id = $1 AND user_id = $2`,
			a.WearerID, a.UserID,
		).Scan(&id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create assignment: %w", err)
	}
	return id, nil
}

func (r *PostgresAssignmentsRepo) DeleteAssignment(ctx context.Context, accountID, assignmentID string) error {
	if accountID == "" {
		return fmt.Errorf("account_id is required")
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM caregiver_assignments
		 WHERE account_id = $1 AND assignment_id = $2`,
		accountID, assignmentID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("assignment %s: %w", assignmentID, domain.ErrNotFound)
	}
	return nil
}
