package store

import "context"

// PushTokenStore 推送令牌注册表（user_id → 设备 push token 集合）
// 一个用户可能在多台手机登录，故为集合语义
type PushTokenStore struct {
	kv KV
}

// NewPushTokenStore 创建推送令牌存储
func NewPushTokenStore(kv KV) *PushTokenStore {
	return &PushTokenStore{kv: kv}
}

func pushTokenKey(userID string) string {
	return "push_tokens:" + userID
}

// Register 注册设备 push token
func (s *PushTokenStore) Register(ctx context.Context, userID, token string) error {
	return s.kv.SAdd(ctx, pushTokenKey(userID), token)
}

// Unregister 注销设备 push token
func (s *PushTokenStore) Unregister(ctx context.Context, userID, token string) error {
	return s.kv.SRem(ctx, pushTokenKey(userID), token)
}

// Tokens 查询用户的全部 push token
func (s *PushTokenStore) Tokens(ctx context.Context, userID string) ([]string, error) {
	return s.kv.SMembers(ctx, pushTokenKey(userID))
}
