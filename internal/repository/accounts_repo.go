package repository

import (
	"context"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
)

// AccountsRepository 账户Repository接口
// 使用强类型领域模型，不使用map[string]any
type AccountsRepository interface {
	// 查询
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// 创建账户并写入首个 admin 档案（单事务，对应后端"账户创建+初始管理员"RPC）
	CreateAccountWithAdmin(ctx context.Context, accountName string, admin *domain.UserProfile) (*domain.Account, error)
}
