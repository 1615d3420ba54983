package domain

import (
	"database/sql"
	"time"
)

// Wearer 佩戴者领域模型（对应 wearers 表）
// 被监护人，属于一个 Account；人口学信息和紧急联系人字段均可选
type Wearer struct {
	// 主键和租户
	WearerID  string `db:"wearer_id"`  // UUID, PRIMARY KEY
	AccountID string `db:"account_id"` // UUID, NOT NULL

	// 基本信息
	Name        string       `db:"name"`          // VARCHAR(200), NOT NULL
	DateOfBirth sql.NullTime `db:"date_of_birth"` // DATE, nullable

	// 医疗/紧急联系人信息（HelpRequest 详情页联查使用）
	MedicalNotes          sql.NullString `db:"medical_notes"`           // TEXT, nullable
	EmergencyContactName  sql.NullString `db:"emergency_contact_name"`  // VARCHAR(200), nullable
	EmergencyContactPhone sql.NullString `db:"emergency_contact_phone"` // VARCHAR(50), nullable

	// 时间戳
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
	UpdatedAt time.Time `db:"updated_at"` // TIMESTAMPTZ, NOT NULL

	// 关联设备（非表字段，由 Repository 联查填充）
	Device *Device `db:"-"`
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (w *Wearer) ToJSON() map[string]any {
	m := map[string]any{
		"wearer_id":  w.WearerID,
		"account_id": w.AccountID,
		"name":       w.Name,
		"created_at": w.CreatedAt,
	}
	if w.DateOfBirth.Valid {
		m["date_of_birth"] = w.DateOfBirth.Time.Format("2006-01-02")
	}
	if w.MedicalNotes.Valid {
		m["medical_notes"] = w.MedicalNotes.String
	}
	if w.EmergencyContactName.Valid {
		m["emergency_contact_name"] = w.EmergencyContactName.String
	}
	if w.EmergencyContactPhone.Valid {
		m["emergency_contact_phone"] = w.EmergencyContactPhone.String
	}
	if w.Device != nil {
		m["device"] = w.Device.ToJSON()
	}
	return m
}

// WearerSettings 佩戴者设置领域模型（对应 wearer_settings 表）
// 注册时写入默认值，随 Wearer 级联删除
type WearerSettings struct {
	WearerID string `db:"wearer_id"` // UUID, PRIMARY KEY, REFERENCES wearers(wearer_id)

	// 提醒与灵敏度
	CheckinReminderEnabled bool   `db:"checkin_reminder_enabled"` // BOOLEAN, NOT NULL, DEFAULT TRUE
	FallSensitivity        string `db:"fall_sensitivity"`         // VARCHAR(20), NOT NULL, DEFAULT 'medium' (low/medium/high)

	UpdatedAt time.Time `db:"updated_at"` // TIMESTAMPTZ, NOT NULL
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (s *WearerSettings) ToJSON() map[string]any {
	return map[string]any{
		"wearer_id":                s.WearerID,
		"checkin_reminder_enabled": s.CheckinReminderEnabled,
		"fall_sensitivity":         s.FallSensitivity,
	}
}
