package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/common/mqtt"
	"github.com/ericalderman-safeloop/safeloop-care/internal/config"
	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"

	"go.uber.org/zap"
)

// statusMessage 设备状态上报
// serial_number 非空视为短码确认（首次上线或重新配网），否则视为心跳
type statusMessage struct {
	SerialNumber string `json:"serial_number,omitempty"`
	Battery      *int   `json:"battery,omitempty"`
}

// alertMessage 设备告警上报
type alertMessage struct {
	Type      string   `json:"type"` // fall_detected | manual
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// DeviceIngest 设备上报消费器
// 订阅 safeloop/device/{code}/status 与 safeloop/device/{code}/alert 两类主题
// 告警转换为帮助请求（恒为 active），由变更流和推送分发器继续向 app 侧扩散
type DeviceIngest struct {
	client           *mqtt.Client
	cfg              config.MQTTConfig
	devicesRepo      repository.DevicesRepository
	helpRequestsRepo repository.HelpRequestsRepository
	logger           *zap.Logger
}

// NewDeviceIngest 创建设备上报消费器
func NewDeviceIngest(
	client *mqtt.Client,
	cfg config.MQTTConfig,
	devicesRepo repository.DevicesRepository,
	helpRequestsRepo repository.HelpRequestsRepository,
	logger *zap.Logger,
) *DeviceIngest {
	return &DeviceIngest{
		client:           client,
		cfg:              cfg,
		devicesRepo:      devicesRepo,
		helpRequestsRepo: helpRequestsRepo,
		logger:           logger,
	}
}

// Start 订阅两类主题（QoS 1：告警不能丢）
func (d *DeviceIngest) Start() error {
	if err := d.client.Subscribe(d.cfg.StatusTopic, 1, d.handleStatus); err != nil {
		return err
	}
	if err := d.client.Subscribe(d.cfg.AlertTopic, 1, d.handleAlert); err != nil {
		return err
	}
	d.logger.Info("Device ingest started",
		zap.String("status_topic", d.cfg.StatusTopic),
		zap.String("alert_topic", d.cfg.AlertTopic),
	)
	return nil
}

// Stop 取消订阅
func (d *DeviceIngest) Stop() {
	if err := d.client.Unsubscribe(d.cfg.StatusTopic, d.cfg.AlertTopic); err != nil {
		d.logger.Warn("Failed to unsubscribe device topics", zap.Error(err))
	}
}

// deviceCodeFromTopic 从主题中提取设备短码：safeloop/device/{code}/status
func deviceCodeFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return "", fmt.Errorf("unexpected device topic: %s", topic)
	}
	code := parts[2]
	if !domain.ValidDeviceCode(code) {
		return "", fmt.Errorf("invalid device code in topic %s", topic)
	}
	return code, nil
}

// handleStatus 状态上报：短码确认或心跳
func (d *DeviceIngest) handleStatus(topic string, payload []byte) error {
	code, err := deviceCodeFromTopic(topic)
	if err != nil {
		return err
	}
	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode status message from %s: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if msg.SerialNumber != "" {
		if _, err := d.devicesRepo.ConfirmDevice(ctx, code, msg.SerialNumber, now); err != nil {
			return fmt.Errorf("failed to confirm device %s: %w", code, err)
		}
		d.logger.Info("Device confirmed",
			zap.String("device_code", code),
			zap.String("serial_number", msg.SerialNumber),
		)
		return nil
	}

	err = d.devicesRepo.TouchLastSeen(ctx, code, now)
	if errors.Is(err, domain.ErrNotFound) {
		// 未登记设备的心跳：记录后忽略，等确认消息补建设备行
		d.logger.Debug("Heartbeat from unknown device", zap.String("device_code", code))
		return nil
	}
	return err
}

// handleAlert 告警上报：转换为帮助请求
// 设备未绑定 wearer 时无法归属 account，记录告警后丢弃
func (d *DeviceIngest) handleAlert(topic string, payload []byte) error {
	code, err := deviceCodeFromTopic(topic)
	if err != nil {
		return err
	}
	var msg alertMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode alert message from %s: %w", topic, err)
	}
	if msg.Type != domain.RequestTypeFallDetected && msg.Type != domain.RequestTypeManual {
		return fmt.Errorf("unknown alert type %q from %s", msg.Type, topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	binding, err := d.devicesRepo.ResolveBinding(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			d.logger.Warn("Alert from unbound device, dropping",
				zap.String("device_code", code),
				zap.String("alert_type", msg.Type),
			)
			return nil
		}
		return err
	}

	req := &domain.HelpRequest{
		AccountID:   binding.AccountID,
		WearerID:    binding.WearerID,
		DeviceID:    sql.NullString{String: binding.DeviceID, Valid: true},
		RequestType: msg.Type,
	}
	if msg.Latitude != nil && msg.Longitude != nil {
		req.Latitude = sql.NullFloat64{Float64: *msg.Latitude, Valid: true}
		req.Longitude = sql.NullFloat64{Float64: *msg.Longitude, Valid: true}
	}

	requestID, err := d.helpRequestsRepo.CreateHelpRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create help request for device %s: %w", code, err)
	}

	d.logger.Info("Help request created from device alert",
		zap.String("request_id", requestID),
		zap.String("device_code", code),
		zap.String("alert_type", msg.Type),
		zap.String("account_id", binding.AccountID),
	)

	if err := d.devicesRepo.TouchLastSeen(ctx, code, time.Now().UTC()); err != nil {
		d.logger.Debug("Failed to touch device after alert", zap.Error(err))
	}
	return nil
}
