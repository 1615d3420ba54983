package domain

import "time"

// Assignment 护理分配领域模型（对应 caregiver_assignments 表）
// UserProfile 与 Wearer 的多对多关联，带关系类型与 primary/emergency-contact 标志
// 唯一性：UNIQUE(wearer_id, user_id)，重复分配幂等（ON CONFLICT DO NOTHING）
type Assignment struct {
	// 主键和租户
	AssignmentID string `db:"assignment_id"` // UUID, PRIMARY KEY
	AccountID    string `db:"account_id"`    // UUID, NOT NULL
	WearerID     string `db:"wearer_id"`     // UUID, NOT NULL
	UserID       string `db:"user_id"`       // UUID, NOT NULL

	// 关系属性
	Relationship       string `db:"relationship"`         // VARCHAR(50), NOT NULL, DEFAULT 'family'
	IsPrimary          bool   `db:"is_primary"`           // BOOLEAN, NOT NULL, DEFAULT FALSE
	IsEmergencyContact bool   `db:"is_emergency_contact"` // BOOLEAN, NOT NULL, DEFAULT FALSE

	// 时间戳
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL

	// 关联档案（非表字段，由 Repository 联查填充；档案缺失时为空字段，不报完整性错误）
	CaregiverEmail       string `db:"-"`
	CaregiverDisplayName string `db:"-"`
	CaregiverRole        string `db:"-"`
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (a *Assignment) ToJSON() map[string]any {
	return map[string]any{
		"assignment_id":        a.AssignmentID,
		"account_id":           a.AccountID,
		"wearer_id":            a.WearerID,
		"user_id":              a.UserID,
		"relationship":         a.Relationship,
		"is_primary":           a.IsPrimary,
		"is_emergency_contact": a.IsEmergencyContact,
		"caregiver": map[string]any{
			"email":        a.CaregiverEmail,
			"display_name": a.CaregiverDisplayName,
			"role":         a.CaregiverRole,
		},
	}
}
