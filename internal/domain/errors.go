package domain

import "errors"

// 领域层哨兵错误
// Repository/Service 层统一使用这些错误，Handler 层据此映射 HTTP 状态码
var (
	// ErrNotFound 记录不存在（对应 sql.ErrNoRows，仅在契约需要区分时映射）
	ErrNotFound = errors.New("not found")

	// ErrCodeAlreadyRegistered 设备码已被其他 wearer 绑定（冲突错误，需向用户展示明确提示）
	ErrCodeAlreadyRegistered = errors.New("this device code is already registered to another wearer")

	// ErrForbidden 权限不足（如非 caregiver_admin 执行管理操作）
	ErrForbidden = errors.New("caregiver_admin role required")

	// ErrInvalidTransition 非法的帮助请求状态迁移（终态不可回退）
	ErrInvalidTransition = errors.New("invalid help request state transition")

	// ErrInvitationExpired 邀请已过期（仅在读取时比较 expires_at，无后台清理）
	ErrInvitationExpired = errors.New("invitation expired")

	// ErrSessionExpired 会话过期或无效
	ErrSessionExpired = errors.New("session expired")
)
