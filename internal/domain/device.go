package domain

import (
	"database/sql"
	"regexp"
	"time"
)

// deviceCodePattern 设备短码：恰好 7 位 ASCII 数字
var deviceCodePattern = regexp.MustCompile(`^\d{7}$`)

// ValidDeviceCode 校验设备短码格式（提交前校验，不发起任何查询）
func ValidDeviceCode(code string) bool {
	return deviceCodePattern.MatchString(code)
}

// Device 设备领域模型（对应 devices 表）
// 由 7 位人工录入短码 + 内部唯一标识（serial_number）标识；可选绑定到一个 Wearer
// 不变量：已绑定设备的短码不可被另一个 Wearer 复用（注册时报冲突错误，绝不静默覆盖）
type Device struct {
	// 主键
	DeviceID string `db:"device_id"` // UUID, PRIMARY KEY

	// 标识
	DeviceCode   string `db:"device_code"`   // CHAR(7), NOT NULL, UNIQUE（绑定设备间全局唯一）
	SerialNumber string `db:"serial_number"` // VARCHAR(100), NOT NULL（设备未上报前为占位 UUID）

	// 绑定关系（可选；Account 范围经由 wearer 间接确定）
	WearerID sql.NullString `db:"wearer_id"` // UUID, nullable, REFERENCES wearers(wearer_id)

	// 验证标志（物理设备首次确认短码后置位）
	IsVerified bool `db:"is_verified"` // BOOLEAN, NOT NULL, DEFAULT FALSE

	// 最近上报时间
	LastSeenAt sql.NullTime `db:"last_seen_at"` // TIMESTAMPTZ, nullable

	// 时间戳
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
}

// IsBound 是否已绑定到某个 Wearer
func (d *Device) IsBound() bool {
	return d.WearerID.Valid && d.WearerID.String != ""
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (d *Device) ToJSON() map[string]any {
	m := map[string]any{
		"device_id":     d.DeviceID,
		"device_code":   d.DeviceCode,
		"serial_number": d.SerialNumber,
		"is_verified":   d.IsVerified,
	}
	if d.WearerID.Valid {
		m["wearer_id"] = d.WearerID.String
	} else {
		m["wearer_id"] = nil
	}
	if d.LastSeenAt.Valid {
		m["last_seen_at"] = d.LastSeenAt.Time
	}
	return m
}
