package repository

import (
	"context"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
)

// UsersRepository 用户档案Repository接口
type UsersRepository interface {
	// 查询
	GetProfile(ctx context.Context, accountID, userID string) (*domain.UserProfile, error)
	GetProfileByIdentity(ctx context.Context, identityID string) (*domain.UserProfile, error)
	ListProfiles(ctx context.Context, accountID string) ([]*domain.UserProfile, error)

	// 更新（display_name / phone）
	UpdateProfile(ctx context.Context, accountID, userID string, displayName string, phone *string) error
}
