package repository

import (
	"context"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
)

// DevicesRepository 设备Repository接口
type DevicesRepository interface {
	// 查询
	GetDeviceByCode(ctx context.Context, deviceCode string) (*domain.Device, error)

	// 设备首次上报：确认短码（置位 is_verified、写入真实 serial、刷新 last_seen_at）
	// 短码未知时自动创建未绑定设备行（设备先于注册上线的情况）
	ConfirmDevice(ctx context.Context, deviceCode, serialNumber string, seenAt time.Time) (*domain.Device, error)

	// 心跳：仅刷新 last_seen_at
	TouchLastSeen(ctx context.Context, deviceCode string, seenAt time.Time) error

	// 告警路由：短码 → 绑定的 wearer 及其 account（设备未知或未绑定均返回 domain.ErrNotFound）
	ResolveBinding(ctx context.Context, deviceCode string) (*DeviceBinding, error)
}

// DeviceBinding 设备绑定解析结果
type DeviceBinding struct {
	DeviceID  string
	WearerID  string
	AccountID string
}
