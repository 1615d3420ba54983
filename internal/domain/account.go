package domain

import "time"

// Account 账户领域模型（对应 accounts 表）
// 租户边界：每个 Wearer、UserProfile、Invitation（以及间接的 Device、HelpRequest）恰好属于一个 Account
// 不变量：禁止任何跨 Account 引用
type Account struct {
	// 主键
	AccountID string `db:"account_id"` // UUID, PRIMARY KEY

	// 账户名称（由首个 admin 创建时生成，如 "Alderman Family"）
	AccountName string `db:"account_name"` // VARCHAR(200), NOT NULL

	// 时间戳
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
}
