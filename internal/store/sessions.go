package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"

	"github.com/google/uuid"
)

// Session 登录会话
// 登录成功即建立会话，档案可能尚未创建（引导流程中），故只保存外部身份
type Session struct {
	Token      string    `json:"token"`
	Provider   string    `json:"provider"`
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionStore 会话存储（Redis KV，带 TTL 的不透明 token）
type SessionStore struct {
	kv  KV
	ttl time.Duration
}

// NewSessionStore 创建会话存储
func NewSessionStore(kv KV, ttl time.Duration) *SessionStore {
	return &SessionStore{kv: kv, ttl: ttl}
}

func sessionKey(token string) string {
	return "session:" + token
}

// Create 建立会话，返回不透明 token
func (s *SessionStore) Create(ctx context.Context, provider, identityID, email string) (*Session, error) {
	sess := &Session{
		Token:      uuid.NewString(),
		Provider:   provider,
		IdentityID: identityID,
		Email:      email,
		CreatedAt:  time.Now().UTC(),
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, sessionKey(sess.Token), string(raw), s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Get 查找会话；token 不存在或过期返回 domain.ErrSessionExpired
func (s *SessionStore) Get(ctx context.Context, token string) (*Session, error) {
	raw, err := s.kv.Get(ctx, sessionKey(token))
	if err != nil {
		if err == ErrMiss {
			return nil, domain.ErrSessionExpired
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete 注销会话（登出）
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.kv.Del(ctx, sessionKey(token))
}
