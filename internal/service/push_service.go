package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/config"
	"github.com/ericalderman-safeloop/safeloop-care/internal/realtime"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"
	"github.com/ericalderman-safeloop/safeloop-care/internal/store"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PushPayload 推送消息体（发给推送网关）
type PushPayload struct {
	Type          string `json:"type"` // 恒为 "help_request"
	HelpRequestID string `json:"help_request_id"`
	WearerName    string `json:"wearer_name"`
}

// PushSender 推送发送接口
type PushSender interface {
	Send(ctx context.Context, tokens []string, payload PushPayload) error
}

// ============================================
// 推送网关客户端（HTTP）
// ============================================

// GatewayPushSender 经由推送网关发送（APNs/FCM 由网关代理）
type GatewayPushSender struct {
	client *resty.Client
	url    string
}

// NewGatewayPushSender 创建推送网关客户端
func NewGatewayPushSender(cfg config.PushConfig) *GatewayPushSender {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)
	return &GatewayPushSender{client: client, url: cfg.GatewayURL}
}

var _ PushSender = (*GatewayPushSender)(nil)

// Send 发送推送
func (g *GatewayPushSender) Send(ctx context.Context, tokens []string, payload PushPayload) error {
	if len(tokens) == 0 {
		return nil
	}
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"tokens":  tokens,
			"payload": payload,
		}).
		Post(g.url)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("push gateway returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// NopPushSender 禁用推送时的空实现
type NopPushSender struct{}

func (NopPushSender) Send(ctx context.Context, tokens []string, payload PushPayload) error {
	return nil
}

// ============================================
// 推送分发器
// ============================================

// PushDispatcher 帮助请求推送分发器
// 订阅 help_requests 全账户变更流，新建的 active 请求触发推送
// 通知账户内全部档案（活跃请求列表为账户级可见，不按分配过滤）
type PushDispatcher struct {
	feed             *realtime.Feed
	helpRequestsRepo repository.HelpRequestsRepository
	usersRepo        repository.UsersRepository
	tokens           *store.PushTokenStore
	sender           PushSender
	logger           *zap.Logger
}

// NewPushDispatcher 创建推送分发器
func NewPushDispatcher(
	feed *realtime.Feed,
	helpRequestsRepo repository.HelpRequestsRepository,
	usersRepo repository.UsersRepository,
	tokens *store.PushTokenStore,
	sender PushSender,
	logger *zap.Logger,
) *PushDispatcher {
	return &PushDispatcher{
		feed:             feed,
		helpRequestsRepo: helpRequestsRepo,
		usersRepo:        usersRepo,
		tokens:           tokens,
		sender:           sender,
		logger:           logger,
	}
}

// Run 消费变更流直到 ctx 取消
// 事件 payload 只用于取 request_id/status，详情一律回查当前状态
func (d *PushDispatcher) Run(ctx context.Context) {
	ch := d.feed.SubscribeAll(ctx, realtime.TableHelpRequests)
	d.logger.Info("Push dispatcher started")
	for event := range ch {
		if event.Kind != realtime.EventInsert {
			continue
		}
		var snapshot struct {
			RequestID string `json:"request_id"`
			Status    string `json:"status"`
		}
		if err := json.Unmarshal(event.After, &snapshot); err != nil {
			d.logger.Warn("Failed to decode help request event", zap.Error(err))
			continue
		}
		if snapshot.Status != "active" {
			continue
		}
		d.notify(ctx, event.AccountID, snapshot.RequestID)
	}
	d.logger.Info("Push dispatcher stopped")
}

// notify 对单个新建请求做推送
func (d *PushDispatcher) notify(ctx context.Context, accountID, requestID string) {
	request, err := d.helpRequestsRepo.GetHelpRequestDetails(ctx, accountID, requestID)
	if err != nil {
		d.logger.Warn("Failed to load help request for push",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return
	}

	profiles, err := d.usersRepo.ListProfiles(ctx, accountID)
	if err != nil {
		d.logger.Warn("Failed to list profiles for push",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return
	}

	wearerName := request.WearerName
	if wearerName == "" && request.Wearer != nil {
		wearerName = request.Wearer.Name
	}
	payload := PushPayload{
		Type:          "help_request",
		HelpRequestID: requestID,
		WearerName:    wearerName,
	}

	sent := 0
	for _, profile := range profiles {
		tokens, err := d.tokens.Tokens(ctx, profile.UserID)
		if err != nil || len(tokens) == 0 {
			continue
		}
		if err := d.sender.Send(ctx, tokens, payload); err != nil {
			d.logger.Warn("Push delivery failed",
				zap.String("user_id", profile.UserID),
				zap.Error(err),
			)
			continue
		}
		sent += len(tokens)
	}

	d.logger.Info("Help request push dispatched",
		zap.String("request_id", requestID),
		zap.String("account_id", accountID),
		zap.Int("tokens", sent),
	)
}
