package repository

import (
	"context"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
)

// HelpRequestsRepository 帮助请求Repository接口
// 本服务的 app 侧只做状态迁移；创建仅来自外部报警产生方（MQTT ingest / 手表服务端）
type HelpRequestsRepository interface {
	// 查询
	GetHelpRequest(ctx context.Context, accountID, requestID string) (*domain.HelpRequest, error)
	GetHelpRequestDetails(ctx context.Context, accountID, requestID string) (*domain.HelpRequest, error)
	ListActive(ctx context.Context, accountID string) ([]*domain.HelpRequest, error)
	ListResolved(ctx context.Context, accountID string, limit int) ([]*domain.HelpRequest, error)

	// 创建（外部产生方：状态恒为 active）
	CreateHelpRequest(ctx context.Context, req *domain.HelpRequest) (string, error)

	// 状态迁移（带前置状态守卫，终态不可变；notes 整体覆盖）
	Transition(ctx context.Context, accountID, requestID string, t HelpRequestTransition) error
}

// HelpRequestTransition 状态迁移参数
type HelpRequestTransition struct {
	ToStatus    string    // responded_to | resolved | false_alarm
	ResponderID string    // 操作人（responded_to 必填）
	Notes       *string   // nil 表示不修改备注；非 nil 整体覆盖
	At          time.Time // 迁移时间
}
