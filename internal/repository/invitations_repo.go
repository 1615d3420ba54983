package repository

import (
	"context"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
)

// InvitationsRepository 邀请Repository接口
// 过期判定只在读取时比较 expires_at，存储中的 pending 行可能长期超过其过期时间
type InvitationsRepository interface {
	// 查询
	GetPendingByEmail(ctx context.Context, email string) (*domain.Invitation, error)
	ListInvitations(ctx context.Context, accountID string) ([]*domain.Invitation, error)

	// 创建（expires_at = now + 7 天）
	CreateInvitation(ctx context.Context, inv *domain.Invitation) (string, error)

	// 消费：邀请接受时创建 caregiver 档案并标记 accepted（单事务，恰好消费一次）
	AcceptInvitation(ctx context.Context, invitationID string, profile *domain.UserProfile) (*domain.UserProfile, error)
}
