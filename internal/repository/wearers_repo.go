package repository

import (
	"context"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
)

// WearersRepository 佩戴者Repository接口
type WearersRepository interface {
	// 查询（均联查绑定设备）
	GetWearer(ctx context.Context, accountID, wearerID string) (*domain.Wearer, error)
	ListWearers(ctx context.Context, accountID string) ([]*domain.Wearer, error)

	// 注册：设备码冲突检查 + 创建 wearer + 绑定/创建设备 + 写入默认设置（单事务）
	// 设备码已绑定其他 wearer 时返回 domain.ErrCodeAlreadyRegistered，不产生任何写入
	RegisterWearer(ctx context.Context, wearer *domain.Wearer, deviceCode string) (*domain.Wearer, error)

	// 更新（人口学/紧急联系人字段）
	UpdateWearer(ctx context.Context, accountID, wearerID string, upd WearerUpdate) error

	// 级联删除（单事务）：设备解绑（设备行保留）、删除分配、删除帮助请求、删除设置、删除 wearer
	DeleteWearer(ctx context.Context, accountID, wearerID string) error

	// 设置
	GetSettings(ctx context.Context, accountID, wearerID string) (*domain.WearerSettings, error)
	UpdateSettings(ctx context.Context, accountID, wearerID string, settings *domain.WearerSettings) error
}

// WearerUpdate 佩戴者字段更新（nil 表示不修改）
type WearerUpdate struct {
	Name                  *string
	DateOfBirth           *time.Time
	MedicalNotes          *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
}
