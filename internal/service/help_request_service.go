package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"

	"go.uber.org/zap"
)

// HelpRequestService 帮助请求服务接口
// app 侧只做查询与状态迁移；请求创建来自设备接入侧（见 ingest 包）
type HelpRequestService interface {
	ListActive(ctx context.Context, req ListActiveRequest) (*ListActiveResponse, error)
	ListResolved(ctx context.Context, req ListResolvedRequest) (*ListResolvedResponse, error)
	GetDetails(ctx context.Context, req GetDetailsRequest) (*GetDetailsResponse, error)
	Respond(ctx context.Context, req RespondRequest) (*TransitionResponse, error)
	Resolve(ctx context.Context, req ResolveHelpRequestRequest) (*TransitionResponse, error)
	MarkFalseAlarm(ctx context.Context, req MarkFalseAlarmRequest) (*TransitionResponse, error)
}

// helpRequestService 实现
type helpRequestService struct {
	helpRequestsRepo repository.HelpRequestsRepository
	logger           *zap.Logger
}

// NewHelpRequestService 创建 HelpRequestService 实例
func NewHelpRequestService(helpRequestsRepo repository.HelpRequestsRepository, logger *zap.Logger) HelpRequestService {
	return &helpRequestService{
		helpRequestsRepo: helpRequestsRepo,
		logger:           logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// ListActiveRequest 活跃请求列表请求（账户内全部，不按分配过滤）
type ListActiveRequest struct {
	AccountID string
}

// ListActiveResponse 活跃请求列表响应
type ListActiveResponse struct {
	Requests []*domain.HelpRequest
	Total    int
}

// ListResolvedRequest 历史请求列表请求
type ListResolvedRequest struct {
	AccountID string
	Limit     int // <=0 时使用默认值
}

// ListResolvedResponse 历史请求列表响应
type ListResolvedResponse struct {
	Requests []*domain.HelpRequest
	Total    int
}

// GetDetailsRequest 请求详情（联查佩戴者医疗/联系人信息）
type GetDetailsRequest struct {
	AccountID string
	RequestID string
}

// GetDetailsResponse 请求详情响应
type GetDetailsResponse struct {
	Request *domain.HelpRequest
}

// RespondRequest 响应请求（active → responded_to）
type RespondRequest struct {
	AccountID string
	ActorID   string
	RequestID string
	Notes     *string // nil 不修改；非 nil 整体覆盖
}

// ResolveHelpRequestRequest 解决请求（active/responded_to → resolved）
type ResolveHelpRequestRequest struct {
	AccountID string
	ActorID   string
	RequestID string
	Notes     *string // nil 不修改；非 nil 整体覆盖
}

// MarkFalseAlarmRequest 标记误报（active/responded_to → false_alarm）
type MarkFalseAlarmRequest struct {
	AccountID string
	ActorID   string
	RequestID string
	Notes     *string
}

// TransitionResponse 状态迁移响应
type TransitionResponse struct {
	Success bool `json:"success"`
}

// ============================================
// Service 方法实现
// ============================================

// ListActive 查询账户内全部活跃请求（最新在前）
func (s *helpRequestService) ListActive(ctx context.Context, req ListActiveRequest) (*ListActiveResponse, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	requests, err := s.helpRequestsRepo.ListActive(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	return &ListActiveResponse{Requests: requests, Total: len(requests)}, nil
}

// ListResolved 查询账户内已关闭请求（resolved + false_alarm，按关闭时间倒序）
func (s *helpRequestService) ListResolved(ctx context.Context, req ListResolvedRequest) (*ListResolvedResponse, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	requests, err := s.helpRequestsRepo.ListResolved(ctx, req.AccountID, req.Limit)
	if err != nil {
		return nil, err
	}
	return &ListResolvedResponse{Requests: requests, Total: len(requests)}, nil
}

// GetDetails 查询请求详情
func (s *helpRequestService) GetDetails(ctx context.Context, req GetDetailsRequest) (*GetDetailsResponse, error) {
	if req.AccountID == "" || req.RequestID == "" {
		return nil, fmt.Errorf("account_id and request_id are required")
	}
	request, err := s.helpRequestsRepo.GetHelpRequestDetails(ctx, req.AccountID, req.RequestID)
	if err != nil {
		return nil, err
	}
	return &GetDetailsResponse{Request: request}, nil
}

// Respond 认领请求
// 迁移守卫在 Repository 的 UPDATE 里原子执行；并发认领只有一人成功，
// 后到者收到 domain.ErrInvalidTransition
func (s *helpRequestService) Respond(ctx context.Context, req RespondRequest) (*TransitionResponse, error) {
	if req.AccountID == "" || req.RequestID == "" || req.ActorID == "" {
		return nil, fmt.Errorf("account_id, request_id and actor_id are required")
	}
	err := s.helpRequestsRepo.Transition(ctx, req.AccountID, req.RequestID, repository.HelpRequestTransition{
		ToStatus:    domain.HelpRequestRespondedTo,
		ResponderID: req.ActorID,
		Notes:       req.Notes,
		At:          time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Help request responded",
		zap.String("request_id", req.RequestID),
		zap.String("responder_id", req.ActorID),
	)
	return &TransitionResponse{Success: true}, nil
}

// Resolve 关闭请求为 resolved
func (s *helpRequestService) Resolve(ctx context.Context, req ResolveHelpRequestRequest) (*TransitionResponse, error) {
	return s.close(ctx, req.AccountID, req.RequestID, req.ActorID, domain.HelpRequestResolved, req.Notes)
}

// MarkFalseAlarm 关闭请求为 false_alarm
func (s *helpRequestService) MarkFalseAlarm(ctx context.Context, req MarkFalseAlarmRequest) (*TransitionResponse, error) {
	return s.close(ctx, req.AccountID, req.RequestID, req.ActorID, domain.HelpRequestFalseAlarm, req.Notes)
}

// close 终态迁移的公共路径
func (s *helpRequestService) close(ctx context.Context, accountID, requestID, actorID, toStatus string, notes *string) (*TransitionResponse, error) {
	if accountID == "" || requestID == "" || actorID == "" {
		return nil, fmt.Errorf("account_id, request_id and actor_id are required")
	}
	err := s.helpRequestsRepo.Transition(ctx, accountID, requestID, repository.HelpRequestTransition{
		ToStatus:    toStatus,
		ResponderID: actorID,
		Notes:       notes,
		At:          time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Help request closed",
		zap.String("request_id", requestID),
		zap.String("status", toStatus),
		zap.String("closed_by", actorID),
	)
	return &TransitionResponse{Success: true}, nil
}
