package domain

import "time"

// 邀请状态
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
)

// InvitationTTL 邀请有效期（7 天）
const InvitationTTL = 7 * 24 * time.Hour

// Invitation 邀请领域模型（对应 invitations 表）
// 某邮箱加入 Account 的待处理请求；由档案创建恰好消费一次
// 注意：过期邀请仅在读取时通过 expires_at 比较判定失效，不做后台清理（status 可能长期保持 pending）
type Invitation struct {
	// 主键和租户
	InvitationID string `db:"invitation_id"` // UUID, PRIMARY KEY
	AccountID    string `db:"account_id"`    // UUID, NOT NULL

	// 被邀请邮箱（登录时按此匹配，忽略大小写）
	Email string `db:"email"` // VARCHAR(255), NOT NULL

	// 邀请人
	InvitedBy string `db:"invited_by"` // UUID, NOT NULL, REFERENCES user_profiles(user_id)

	// 状态
	Status string `db:"status"` // VARCHAR(20), NOT NULL, DEFAULT 'pending', CHECK IN ('pending', 'accepted', 'expired')

	// 时间
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
	ExpiresAt time.Time `db:"expires_at"` // TIMESTAMPTZ, NOT NULL（created_at + 7 天）
}

// IsUsable 是否可被消费（pending 且未过期）
func (i *Invitation) IsUsable(now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt)
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (i *Invitation) ToJSON() map[string]any {
	return map[string]any{
		"invitation_id": i.InvitationID,
		"account_id":    i.AccountID,
		"email":         i.Email,
		"invited_by":    i.InvitedBy,
		"status":        i.Status,
		"created_at":    i.CreatedAt,
		"expires_at":    i.ExpiresAt,
	}
}
