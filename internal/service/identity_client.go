package service

import (
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// 支持的联合登录提供方
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// Identity 外部身份（提供方校验通过后的 subject + email）
type Identity struct {
	Provider string
	Subject  string
	Email    string
}

// IdentityVerifier 外部身份校验接口
type IdentityVerifier interface {
	Verify(provider, idToken string) (*Identity, error)
}

// tokenInfoResponse 提供方 tokeninfo 端点响应（两家字段一致的子集）
type tokenInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Error         string `json:"error"`
}

// IdentityClient 联合身份校验客户端
// 将 ID token 提交给提供方的 tokeninfo 端点做服务端校验
type IdentityClient struct {
	httpClient *resty.Client
	cfg        config.AuthConfig
	logger     *zap.Logger
}

// NewIdentityClient 创建身份校验客户端
func NewIdentityClient(cfg config.AuthConfig, logger *zap.Logger) *IdentityClient {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &IdentityClient{
		httpClient: client,
		cfg:        cfg,
		logger:     logger,
	}
}

var _ IdentityVerifier = (*IdentityClient)(nil)

// Verify 校验 ID token，返回身份（subject + email）
func (c *IdentityClient) Verify(provider, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, fmt.Errorf("id_token is required")
	}

	var endpoint string
	switch provider {
	case ProviderGoogle:
		endpoint = c.cfg.GoogleTokenInfoURL
	case ProviderApple:
		endpoint = c.cfg.AppleTokenInfoURL
	default:
		return nil, fmt.Errorf("unsupported identity provider: %s", provider)
	}

	var info tokenInfoResponse
	resp, err := c.httpClient.R().
		SetQueryParam("id_token", idToken).
		SetResult(&info).
		Get(endpoint)
	if err != nil {
		c.logger.Error("Identity provider call failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		return nil, fmt.Errorf("identity provider unavailable: %w", err)
	}
	if resp.StatusCode() != 200 || info.Error != "" || info.Sub == "" {
		c.logger.Warn("Identity token rejected",
			zap.String("provider", provider),
			zap.Int("status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("invalid %s id_token", provider)
	}

	return &Identity{
		Provider: provider,
		Subject:  provider + ":" + info.Sub,
		Email:    info.Email,
	}, nil
}
