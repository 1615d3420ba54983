package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/config"
	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ============================================
// Fake repositories
// ============================================

type fakeDevicesRepo struct {
	bindings      map[string]*repository.DeviceBinding
	knownCodes    map[string]bool
	confirmedCode string
	confirmedSN   string
	touchedCodes  []string
}

func (f *fakeDevicesRepo) GetDeviceByCode(ctx context.Context, deviceCode string) (*domain.Device, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeDevicesRepo) ConfirmDevice(ctx context.Context, deviceCode, serialNumber string, seenAt time.Time) (*domain.Device, error) {
	f.confirmedCode = deviceCode
	f.confirmedSN = serialNumber
	return &domain.Device{DeviceCode: deviceCode, SerialNumber: serialNumber, IsVerified: true}, nil
}

func (f *fakeDevicesRepo) TouchLastSeen(ctx context.Context, deviceCode string, seenAt time.Time) error {
	if !f.knownCodes[deviceCode] {
		return domain.ErrNotFound
	}
	f.touchedCodes = append(f.touchedCodes, deviceCode)
	return nil
}

func (f *fakeDevicesRepo) ResolveBinding(ctx context.Context, deviceCode string) (*repository.DeviceBinding, error) {
	if b, ok := f.bindings[deviceCode]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

type fakeHelpRequestsRepo struct {
	created []*domain.HelpRequest
}

func (f *fakeHelpRequestsRepo) GetHelpRequest(ctx context.Context, accountID, requestID string) (*domain.HelpRequest, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeHelpRequestsRepo) GetHelpRequestDetails(ctx context.Context, accountID, requestID string) (*domain.HelpRequest, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeHelpRequestsRepo) ListActive(ctx context.Context, accountID string) ([]*domain.HelpRequest, error) {
	return nil, nil
}

func (f *fakeHelpRequestsRepo) ListResolved(ctx context.Context, accountID string, limit int) ([]*domain.HelpRequest, error) {
	return nil, nil
}

func (f *fakeHelpRequestsRepo) CreateHelpRequest(ctx context.Context, req *domain.HelpRequest) (string, error) {
	req.RequestID = "hr-new"
	f.created = append(f.created, req)
	return req.RequestID, nil
}

func (f *fakeHelpRequestsRepo) Transition(ctx context.Context, accountID, requestID string, t repository.HelpRequestTransition) error {
	return nil
}

func setupIngest(t *testing.T) (*fakeDevicesRepo, *fakeHelpRequestsRepo, *DeviceIngest) {
	devices := &fakeDevicesRepo{
		bindings:   map[string]*repository.DeviceBinding{},
		knownCodes: map[string]bool{},
	}
	helpRequests := &fakeHelpRequestsRepo{}
	ing := NewDeviceIngest(nil, config.MQTTConfig{
		StatusTopic: "safeloop/device/+/status",
		AlertTopic:  "safeloop/device/+/alert",
	}, devices, helpRequests, zap.NewNop())
	return devices, helpRequests, ing
}

// ============================================
// Topic parsing
// ============================================

func TestDeviceCodeFromTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		want    string
		wantErr bool
	}{
		{"status topic", "safeloop/device/1234567/status", "1234567", false},
		{"alert topic", "safeloop/device/7654321/alert", "7654321", false},
		{"too few segments", "safeloop/device/status", "", true},
		{"code too short", "safeloop/device/123456/status", "", true},
		{"code not digits", "safeloop/device/abcdefg/status", "", true},
		{"empty code", "safeloop/device//status", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := deviceCodeFromTopic(tt.topic)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

// ============================================
// Status: 短码确认 vs 心跳
// ============================================

func TestHandleStatus_SerialConfirmsDevice(t *testing.T) {
	devices, _, ing := setupIngest(t)

	err := ing.handleStatus("safeloop/device/1234567/status", []byte(`{"serial_number":"SN-001","battery":87}`))
	require.NoError(t, err)
	assert.Equal(t, "1234567", devices.confirmedCode)
	assert.Equal(t, "SN-001", devices.confirmedSN)
	assert.Empty(t, devices.touchedCodes, "confirmation must not also count as heartbeat")
}

func TestHandleStatus_NoSerialIsHeartbeat(t *testing.T) {
	devices, _, ing := setupIngest(t)
	devices.knownCodes["1234567"] = true

	err := ing.handleStatus("safeloop/device/1234567/status", []byte(`{"battery":42}`))
	require.NoError(t, err)
	assert.Empty(t, devices.confirmedCode)
	assert.Equal(t, []string{"1234567"}, devices.touchedCodes)
}

func TestHandleStatus_HeartbeatFromUnknownDeviceIgnored(t *testing.T) {
	_, _, ing := setupIngest(t)

	err := ing.handleStatus("safeloop/device/9999999/status", []byte(`{}`))
	assert.NoError(t, err)
}

func TestHandleStatus_MalformedPayload(t *testing.T) {
	_, _, ing := setupIngest(t)

	err := ing.handleStatus("safeloop/device/1234567/status", []byte(`not json`))
	assert.Error(t, err)
}

// ============================================
// Alert: 绑定解析与帮助请求创建
// ============================================

func TestHandleAlert_CreatesHelpRequest(t *testing.T) {
	devices, helpRequests, ing := setupIngest(t)
	devices.knownCodes["1234567"] = true
	devices.bindings["1234567"] = &repository.DeviceBinding{
		DeviceID:  "device-1",
		WearerID:  "wearer-1",
		AccountID: "account-1",
	}

	err := ing.handleAlert("safeloop/device/1234567/alert",
		[]byte(`{"type":"fall_detected","latitude":51.5,"longitude":-0.12}`))
	require.NoError(t, err)

	require.Len(t, helpRequests.created, 1)
	created := helpRequests.created[0]
	assert.Equal(t, "account-1", created.AccountID)
	assert.Equal(t, "wearer-1", created.WearerID)
	assert.Equal(t, "device-1", created.DeviceID.String)
	assert.Equal(t, domain.RequestTypeFallDetected, created.RequestType)
	require.True(t, created.Latitude.Valid)
	assert.InDelta(t, 51.5, created.Latitude.Float64, 0.001)
	require.True(t, created.Longitude.Valid)
	assert.InDelta(t, -0.12, created.Longitude.Float64, 0.001)
}

func TestHandleAlert_ManualWithoutLocation(t *testing.T) {
	devices, helpRequests, ing := setupIngest(t)
	devices.knownCodes["1234567"] = true
	devices.bindings["1234567"] = &repository.DeviceBinding{
		DeviceID:  "device-1",
		WearerID:  "wearer-1",
		AccountID: "account-1",
	}

	err := ing.handleAlert("safeloop/device/1234567/alert", []byte(`{"type":"manual"}`))
	require.NoError(t, err)

	require.Len(t, helpRequests.created, 1)
	assert.Equal(t, domain.RequestTypeManual, helpRequests.created[0].RequestType)
	assert.False(t, helpRequests.created[0].Latitude.Valid)
	assert.False(t, helpRequests.created[0].Longitude.Valid)
}

func TestHandleAlert_UnboundDeviceDropped(t *testing.T) {
	_, helpRequests, ing := setupIngest(t)

	// 未绑定设备无法归属 account：记录后丢弃，不报错（避免 broker 重投）
	err := ing.handleAlert("safeloop/device/1234567/alert", []byte(`{"type":"manual"}`))
	assert.NoError(t, err)
	assert.Empty(t, helpRequests.created)
}

func TestHandleAlert_UnknownTypeRejected(t *testing.T) {
	_, helpRequests, ing := setupIngest(t)

	err := ing.handleAlert("safeloop/device/1234567/alert", []byte(`{"type":"low_battery"}`))
	assert.Error(t, err)
	assert.Empty(t, helpRequests.created)
}
