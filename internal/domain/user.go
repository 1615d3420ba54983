package domain

import (
	"database/sql"
	"time"
)

// 用户角色
// 每个用户恰好一个角色；caregiver_admin 才能邀请/分配/移除 caregiver
const (
	RoleCaregiver      = "caregiver"
	RoleCaregiverAdmin = "caregiver_admin"
)

// UserProfile 用户档案领域模型（对应 user_profiles 表）
// 首次成功登录时创建：新 admin（同时创建新 Account）或接受邀请的 caregiver（加入已有 Account）
type UserProfile struct {
	// 主键和租户
	UserID    string `db:"user_id"`    // UUID, PRIMARY KEY
	AccountID string `db:"account_id"` // UUID, NOT NULL

	// 外部身份（联合登录提供方的 subject id）
	IdentityID string `db:"identity_id"` // VARCHAR(255), NOT NULL, UNIQUE

	// 基本信息
	Email       string         `db:"email"`        // VARCHAR(255), NOT NULL
	DisplayName string         `db:"display_name"` // VARCHAR(200), NOT NULL, DEFAULT ''
	Phone       sql.NullString `db:"phone"`        // nullable

	// 角色
	Role string `db:"role"` // VARCHAR(50), NOT NULL, CHECK IN ('caregiver', 'caregiver_admin')

	// 时间戳
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
	UpdatedAt time.Time `db:"updated_at"` // TIMESTAMPTZ, NOT NULL
}

// IsAdmin 是否为账户管理员
func (u *UserProfile) IsAdmin() bool {
	return u.Role == RoleCaregiverAdmin
}

// OnboardingComplete display_name 非空视为已完成引导
func (u *UserProfile) OnboardingComplete() bool {
	return u.DisplayName != ""
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (u *UserProfile) ToJSON() map[string]any {
	m := map[string]any{
		"user_id":      u.UserID,
		"account_id":   u.AccountID,
		"identity_id":  u.IdentityID,
		"email":        u.Email,
		"display_name": u.DisplayName,
		"role":         u.Role,
		"created_at":   u.CreatedAt,
	}
	if u.Phone.Valid {
		m["phone"] = u.Phone.String
	}
	return m
}
