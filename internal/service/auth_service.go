package service

import (
	"context"
	"fmt"

	"github.com/ericalderman-safeloop/safeloop-care/internal/store"

	"go.uber.org/zap"
)

// AuthService 认证服务接口
// 联合登录（两个外部提供方）→ 不透明会话 token（Redis KV，带 TTL）
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) (*store.Session, error)
}

// authService 实现
type authService struct {
	verifier IdentityVerifier
	sessions *store.SessionStore
	logger   *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(verifier IdentityVerifier, sessions *store.SessionStore, logger *zap.Logger) AuthService {
	return &authService{
		verifier: verifier,
		sessions: sessions,
		logger:   logger,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Provider string `json:"provider"` // 'google' | 'apple'
	IDToken  string `json:"id_token"` // 提供方签发的 ID token
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token      string `json:"token"`
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
}

// Login 校验提供方 token 并建立会话
func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if req.Provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	identity, err := s.verifier.Verify(req.Provider, req.IDToken)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, identity.Provider, identity.Subject, identity.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User signed in",
		zap.String("provider", identity.Provider),
		zap.String("identity_id", identity.Subject),
	)

	return &LoginResponse{
		Token:      sess.Token,
		IdentityID: sess.IdentityID,
		Email:      sess.Email,
	}, nil
}

// Logout 注销会话
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}
	return s.sessions.Delete(ctx, token)
}

// GetSession 查找会话（中间件使用）
func (s *authService) GetSession(ctx context.Context, token string) (*store.Session, error) {
	return s.sessions.Get(ctx, token)
}
