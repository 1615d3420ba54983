package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 变更事件类型
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// 可订阅的表
const (
	TableWearers      = "wearers"
	TableDevices      = "devices"
	TableHelpRequests = "help_requests"
)

// ChangeEvent 行级变更事件
// Before/After 为行快照（advisory payload）；消费方应重新拉取当前状态，而不是直接应用 payload
type ChangeEvent struct {
	Table     string          `json:"table"`
	AccountID string          `json:"account_id"`
	Kind      string          `json:"kind"` // insert | update | delete
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	At        time.Time       `json:"at"`
}

// channelFor 变更频道命名：changes:{table}:{account_id}
func channelFor(table, accountID string) string {
	return "changes:" + table + ":" + accountID
}

// Publisher 变更事件发布接口（Repository 层在每次成功写入后调用）
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent)
}

// Feed 基于 Redis Pub/Sub 的变更订阅
// 每个订阅独立；取消订阅由 ctx 控制（屏幕关闭即 cancel，避免泄漏）
type Feed struct {
	client *redis.Client
	logger *zap.Logger
}

// NewFeed 创建变更订阅/发布器
func NewFeed(client *redis.Client, logger *zap.Logger) *Feed {
	return &Feed{client: client, logger: logger}
}

var _ Publisher = (*Feed)(nil)

// Publish 发布变更事件（按 table+account 定向频道）
// 发布失败只记录日志：变更通知是尽力而为，消费方总会在下次拉取时收敛
func (f *Feed) Publish(ctx context.Context, event ChangeEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	raw, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("Failed to marshal change event", zap.Error(err))
		return
	}
	if err := f.client.Publish(ctx, channelFor(event.Table, event.AccountID), raw).Err(); err != nil {
		f.logger.Warn("Failed to publish change event",
			zap.String("table", event.Table),
			zap.String("account_id", event.AccountID),
			zap.Error(err),
		)
	}
}

// Subscribe 订阅某表在某 Account 范围内的变更
// 返回事件通道；ctx 取消后通道关闭并释放底层订阅
func (f *Feed) Subscribe(ctx context.Context, table, accountID string) <-chan ChangeEvent {
	sub := f.client.Subscribe(ctx, channelFor(table, accountID))
	out := make(chan ChangeEvent, 16)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.logger.Warn("Dropping malformed change event", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				default:
					// 消费方落后时丢弃事件：重新拉取总是读取当前状态，不依赖逐条投递
					f.logger.Debug("Change event dropped, subscriber is slow",
						zap.String("table", table),
						zap.String("account_id", accountID),
					)
				}
			}
		}
	}()

	return out
}

// SubscribeAll 订阅某表在全部 Account 范围内的变更（服务端消费方使用，如推送分发）
// 基于 PSubscribe 模式匹配 changes:{table}:*
func (f *Feed) SubscribeAll(ctx context.Context, table string) <-chan ChangeEvent {
	sub := f.client.PSubscribe(ctx, "changes:"+table+":*")
	out := make(chan ChangeEvent, 64)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.logger.Warn("Dropping malformed change event", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// NopPublisher 空实现（Redis 不可用或测试时使用）
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event ChangeEvent) {}
