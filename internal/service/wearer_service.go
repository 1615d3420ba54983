package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"

	"go.uber.org/zap"
)

// WearerService 佩戴者管理服务接口
// 注册（含设备绑定）、查询、更新、删除、设置
type WearerService interface {
	RegisterWearer(ctx context.Context, req RegisterWearerRequest) (*RegisterWearerResponse, error)
	GetWearer(ctx context.Context, req GetWearerRequest) (*GetWearerResponse, error)
	ListWearers(ctx context.Context, req ListWearersRequest) (*ListWearersResponse, error)
	UpdateWearer(ctx context.Context, req UpdateWearerRequest) (*UpdateWearerResponse, error)
	DeleteWearer(ctx context.Context, req DeleteWearerRequest) (*DeleteWearerResponse, error)
	GetSettings(ctx context.Context, req GetSettingsRequest) (*GetSettingsResponse, error)
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*UpdateSettingsResponse, error)
}

// wearerService 实现
type wearerService struct {
	wearersRepo repository.WearersRepository
	usersRepo   repository.UsersRepository
	logger      *zap.Logger
}

// NewWearerService 创建 WearerService 实例
func NewWearerService(
	wearersRepo repository.WearersRepository,
	usersRepo repository.UsersRepository,
	logger *zap.Logger,
) WearerService {
	return &wearerService{
		wearersRepo: wearersRepo,
		usersRepo:   usersRepo,
		logger:      logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// RegisterWearerRequest 注册佩戴者请求
type RegisterWearerRequest struct {
	AccountID string
	ActorID   string

	Name                  string // 必填
	DeviceCode            string // 必填，7 位数字短码
	DateOfBirth           *time.Time
	MedicalNotes          *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
}

// RegisterWearerResponse 注册佩戴者响应
type RegisterWearerResponse struct {
	Wearer *domain.Wearer
}

// GetWearerRequest 查询单个佩戴者请求
type GetWearerRequest struct {
	AccountID string
	WearerID  string
}

// GetWearerResponse 查询单个佩戴者响应
type GetWearerResponse struct {
	Wearer *domain.Wearer
}

// ListWearersRequest 佩戴者列表请求
type ListWearersRequest struct {
	AccountID string
}

// ListWearersResponse 佩戴者列表响应
type ListWearersResponse struct {
	Wearers []*domain.Wearer
	Total   int
}

// UpdateWearerRequest 更新佩戴者请求（nil 字段不修改）
type UpdateWearerRequest struct {
	AccountID string
	WearerID  string

	Name                  *string
	DateOfBirth           *time.Time
	MedicalNotes          *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
}

// UpdateWearerResponse 更新佩戴者响应
type UpdateWearerResponse struct {
	Success bool `json:"success"`
}

// DeleteWearerRequest 删除佩戴者请求
type DeleteWearerRequest struct {
	AccountID string
	ActorID   string // 必须是 caregiver_admin
	WearerID  string
}

// DeleteWearerResponse 删除佩戴者响应
type DeleteWearerResponse struct {
	Success bool `json:"success"`
}

// GetSettingsRequest 查询佩戴者设置请求
type GetSettingsRequest struct {
	AccountID string
	WearerID  string
}

// GetSettingsResponse 查询佩戴者设置响应
type GetSettingsResponse struct {
	Settings *domain.WearerSettings
}

// UpdateSettingsRequest 更新佩戴者设置请求
type UpdateSettingsRequest struct {
	AccountID string
	WearerID  string

	CheckinReminderEnabled bool
	FallSensitivity        string // low | medium | high
}

// UpdateSettingsResponse 更新佩戴者设置响应
type UpdateSettingsResponse struct {
	Success bool `json:"success"`
}

// ============================================
// Service 方法实现
// ============================================

// RegisterWearer 注册佩戴者并绑定设备
// 校验短码格式后交给 Repository 单事务执行；短码已被占用时
// 返回 domain.ErrCodeAlreadyRegistered，调用方据此提示换码
func (s *wearerService) RegisterWearer(ctx context.Context, req RegisterWearerRequest) (*RegisterWearerResponse, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !domain.ValidDeviceCode(req.DeviceCode) {
		return nil, fmt.Errorf("device_code must be exactly 7 digits")
	}

	wearer := &domain.Wearer{
		AccountID: req.AccountID,
		Name:      req.Name,
	}
	if req.DateOfBirth != nil {
		wearer.DateOfBirth = sql.NullTime{Time: *req.DateOfBirth, Valid: true}
	}
	if req.MedicalNotes != nil {
		wearer.MedicalNotes = sql.NullString{String: *req.MedicalNotes, Valid: true}
	}
	if req.EmergencyContactName != nil {
		wearer.EmergencyContactName = sql.NullString{String: *req.EmergencyContactName, Valid: true}
	}
	if req.EmergencyContactPhone != nil {
		wearer.EmergencyContactPhone = sql.NullString{String: *req.EmergencyContactPhone, Valid: true}
	}

	created, err := s.wearersRepo.RegisterWearer(ctx, wearer, req.DeviceCode)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Wearer registered",
		zap.String("wearer_id", created.WearerID),
		zap.String("account_id", req.AccountID),
		zap.String("device_code", req.DeviceCode),
	)
	return &RegisterWearerResponse{Wearer: created}, nil
}

// GetWearer 查询单个佩戴者（含绑定设备）
func (s *wearerService) GetWearer(ctx context.Context, req GetWearerRequest) (*GetWearerResponse, error) {
	if req.AccountID == "" || req.WearerID == "" {
		return nil, fmt.Errorf("account_id and wearer_id are required")
	}
	wearer, err := s.wearersRepo.GetWearer(ctx, req.AccountID, req.WearerID)
	if err != nil {
		return nil, err
	}
	return &GetWearerResponse{Wearer: wearer}, nil
}

// ListWearers 查询本账户全部佩戴者
func (s *wearerService) ListWearers(ctx context.Context, req ListWearersRequest) (*ListWearersResponse, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	wearers, err := s.wearersRepo.ListWearers(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	return &ListWearersResponse{Wearers: wearers, Total: len(wearers)}, nil
}

// UpdateWearer 更新佩戴者信息
func (s *wearerService) UpdateWearer(ctx context.Context, req UpdateWearerRequest) (*UpdateWearerResponse, error) {
	if req.AccountID == "" || req.WearerID == "" {
		return nil, fmt.Errorf("account_id and wearer_id are required")
	}
	if req.Name != nil && *req.Name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	upd := repository.WearerUpdate{
		Name:                  req.Name,
		DateOfBirth:           req.DateOfBirth,
		MedicalNotes:          req.MedicalNotes,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
	}
	if err := s.wearersRepo.UpdateWearer(ctx, req.AccountID, req.WearerID, upd); err != nil {
		return nil, err
	}
	return &UpdateWearerResponse{Success: true}, nil
}

// DeleteWearer 删除佩戴者（admin 专属，级联删除分配/请求/设置，设备行保留并解绑）
func (s *wearerService) DeleteWearer(ctx context.Context, req DeleteWearerRequest) (*DeleteWearerResponse, error) {
	if req.AccountID == "" || req.WearerID == "" {
		return nil, fmt.Errorf("account_id and wearer_id are required")
	}
	actor, err := s.usersRepo.GetProfile(ctx, req.AccountID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("delete wearer: %w", domain.ErrForbidden)
	}
	if err := s.wearersRepo.DeleteWearer(ctx, req.AccountID, req.WearerID); err != nil {
		return nil, err
	}
	s.logger.Info("Wearer deleted",
		zap.String("wearer_id", req.WearerID),
		zap.String("account_id", req.AccountID),
		zap.String("deleted_by", req.ActorID),
	)
	return &DeleteWearerResponse{Success: true}, nil
}

// GetSettings 查询佩戴者设置
func (s *wearerService) GetSettings(ctx context.Context, req GetSettingsRequest) (*GetSettingsResponse, error) {
	if req.AccountID == "" || req.WearerID == "" {
		return nil, fmt.Errorf("account_id and wearer_id are required")
	}
	settings, err := s.wearersRepo.GetSettings(ctx, req.AccountID, req.WearerID)
	if err != nil {
		return nil, err
	}
	return &GetSettingsResponse{Settings: settings}, nil
}

// UpdateSettings 更新佩戴者设置
func (s *wearerService) UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*UpdateSettingsResponse, error) {
	if req.AccountID == "" || req.WearerID == "" {
		return nil, fmt.Errorf("account_id and wearer_id are required")
	}
	switch req.FallSensitivity {
	case "low", "medium", "high":
	default:
		return nil, fmt.Errorf("fall_sensitivity must be one of: low, medium, high")
	}
	settings := &domain.WearerSettings{
		WearerID:               req.WearerID,
		CheckinReminderEnabled: req.CheckinReminderEnabled,
		FallSensitivity:        req.FallSensitivity,
	}
	if err := s.wearersRepo.UpdateSettings(ctx, req.AccountID, req.WearerID, settings); err != nil {
		return nil, err
	}
	return &UpdateSettingsResponse{Success: true}, nil
}
