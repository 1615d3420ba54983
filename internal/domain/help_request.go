package domain

import (
	"database/sql"
	"time"
)

// 帮助请求状态机
// active → responded_to → resolved / false_alarm
// resolved 与 false_alarm 为终态（无任何回到 active 的路径）
const (
	HelpRequestActive      = "active"
	HelpRequestRespondedTo = "responded_to"
	HelpRequestResolved    = "resolved"
	HelpRequestFalseAlarm  = "false_alarm"
)

// 帮助请求类型（由外部报警产生方设置）
const (
	RequestTypeFallDetected = "fall_detected"
	RequestTypeManual       = "manual"
)

// CanTransition 判断状态迁移是否合法
// responded_to 仅可由 active 进入；两个终态可由 active 或 responded_to 进入
func CanTransition(from, to string) bool {
	switch to {
	case HelpRequestRespondedTo:
		return from == HelpRequestActive
	case HelpRequestResolved, HelpRequestFalseAlarm:
		return from == HelpRequestActive || from == HelpRequestRespondedTo
	default:
		return false
	}
}

// IsTerminal 是否为终态
func IsTerminal(status string) bool {
	return status == HelpRequestResolved || status == HelpRequestFalseAlarm
}

// HelpRequest 帮助请求领域模型（对应 help_requests 表）
// 由外部（手表跌倒检测或手动求助）创建，本服务的 app 侧只做状态迁移
// 备注为整体覆盖语义（last-write-wins），无追加/合并
type HelpRequest struct {
	// 主键和租户
	RequestID string `db:"request_id"` // UUID, PRIMARY KEY
	AccountID string `db:"account_id"` // UUID, NOT NULL
	WearerID  string `db:"wearer_id"`  // UUID, NOT NULL

	// 可选设备引用
	DeviceID sql.NullString `db:"device_id"` // UUID, nullable

	// 类型和状态
	RequestType string `db:"request_type"` // VARCHAR(30), NOT NULL, CHECK IN ('fall_detected', 'manual')
	Status      string `db:"status"`       // VARCHAR(20), NOT NULL, DEFAULT 'active'

	// 可选地理位置
	Latitude  sql.NullFloat64 `db:"latitude"`  // DOUBLE PRECISION, nullable
	Longitude sql.NullFloat64 `db:"longitude"` // DOUBLE PRECISION, nullable

	// 备注（原样存储）
	Notes sql.NullString `db:"notes"` // TEXT, nullable

	// 处理信息
	ResponderID sql.NullString `db:"responder_id"` // UUID, nullable, REFERENCES user_profiles(user_id)

	// 时间信息
	CreatedAt   time.Time    `db:"created_at"`   // TIMESTAMPTZ, NOT NULL
	RespondedAt sql.NullTime `db:"responded_at"` // TIMESTAMPTZ, nullable
	ResolvedAt  sql.NullTime `db:"resolved_at"`  // TIMESTAMPTZ, nullable
	UpdatedAt   time.Time    `db:"updated_at"`   // TIMESTAMPTZ, NOT NULL

	// 关联 Wearer（非表字段，由 Repository 联查填充）
	WearerName string  `db:"-"`
	Wearer     *Wearer `db:"-"` // 详情页带医疗/联系人字段
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (h *HelpRequest) ToJSON() map[string]any {
	m := map[string]any{
		"request_id":   h.RequestID,
		"account_id":   h.AccountID,
		"wearer_id":    h.WearerID,
		"request_type": h.RequestType,
		"status":       h.Status,
		"created_at":   h.CreatedAt,
	}
	if h.DeviceID.Valid {
		m["device_id"] = h.DeviceID.String
	}
	if h.Latitude.Valid && h.Longitude.Valid {
		m["location"] = map[string]any{
			"latitude":  h.Latitude.Float64,
			"longitude": h.Longitude.Float64,
		}
	}
	if h.Notes.Valid {
		m["notes"] = h.Notes.String
	}
	if h.ResponderID.Valid {
		m["responder_id"] = h.ResponderID.String
	}
	if h.RespondedAt.Valid {
		m["responded_at"] = h.RespondedAt.Time
	}
	if h.ResolvedAt.Valid {
		m["resolved_at"] = h.ResolvedAt.Time
	}
	if h.WearerName != "" {
		m["wearer_name"] = h.WearerName
	}
	if h.Wearer != nil {
		m["wearer"] = h.Wearer.ToJSON()
	}
	return m
}
