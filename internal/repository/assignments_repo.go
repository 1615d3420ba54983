package repository

import (
	"context"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
)

// AssignmentsRepository 护理分配Repository接口
type AssignmentsRepository interface {
	// 查询已分配（LEFT JOIN user_profiles；档案缺失时档案字段为空，不报错）
	ListAssigned(ctx context.Context, accountID, wearerID string) ([]*domain.Assignment, error)

	// 查询可分配（账户内全部档案减去已分配的集合差）
	ListAvailable(ctx context.Context, accountID, wearerID string) ([]*domain.UserProfile, error)

	// 分配（幂等：UNIQUE(wearer_id, user_id) + ON CONFLICT DO NOTHING）
	CreateAssignment(ctx context.Context, a *domain.Assignment) (string, error)

	// 取消分配
	DeleteAssignment(ctx context.Context, accountID, assignmentID string) error
}
