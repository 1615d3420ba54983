package service

import (
	"context"
	"fmt"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"

	"go.uber.org/zap"
)

// AssignmentService 护理分配服务接口
// 查询对全账户开放；新增/取消分配仅 caregiver_admin 可操作
type AssignmentService interface {
	ListAssigned(ctx context.Context, req ListAssignedRequest) (*ListAssignedResponse, error)
	ListAvailable(ctx context.Context, req ListAvailableRequest) (*ListAvailableResponse, error)
	AssignCaregiver(ctx context.Context, req AssignCaregiverRequest) (*AssignCaregiverResponse, error)
	RemoveAssignment(ctx context.Context, req RemoveAssignmentRequest) (*RemoveAssignmentResponse, error)
}

// assignmentService 实现
type assignmentService struct {
	assignmentsRepo repository.AssignmentsRepository
	usersRepo       repository.UsersRepository
	logger          *zap.Logger
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(
	assignmentsRepo repository.AssignmentsRepository,
	usersRepo repository.UsersRepository,
	logger *zap.Logger,
) AssignmentService {
	return &assignmentService{
		assignmentsRepo: assignmentsRepo,
		usersRepo:       usersRepo,
		logger:          logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// ListAssignedRequest 查询已分配 caregiver 请求
type ListAssignedRequest struct {
	AccountID string
	WearerID  string
}

// ListAssignedResponse 查询已分配 caregiver 响应
type ListAssignedResponse struct {
	Assignments []*domain.Assignment
	Total       int
}

// ListAvailableRequest 查询可分配 caregiver 请求
type ListAvailableRequest struct {
	AccountID string
	WearerID  string
}

// ListAvailableResponse 查询可分配 caregiver 响应
type ListAvailableResponse struct {
	Caregivers []*domain.UserProfile
	Total      int
}

// AssignCaregiverRequest 分配 caregiver 请求
type AssignCaregiverRequest struct {
	AccountID string
	ActorID   string // 必须是 caregiver_admin
	WearerID  string
	UserID    string

	Relationship       string // 为空时默认 family
	IsPrimary          bool
	IsEmergencyContact bool
}

// AssignCaregiverResponse 分配 caregiver 响应
type AssignCaregiverResponse struct {
	AssignmentID string `json:"assignment_id"`
}

// RemoveAssignmentRequest 取消分配请求
type RemoveAssignmentRequest struct {
	AccountID    string
	ActorID      string // 必须是 caregiver_admin
	AssignmentID string
}

// RemoveAssignmentResponse 取消分配响应
type RemoveAssignmentResponse struct {
	Success bool `json:"success"`
}

// ============================================
// Service 方法实现
// ============================================

// ListAssigned 查询某佩戴者的已分配 caregiver
func (s *assignmentService) ListAssigned(ctx context.Context, req ListAssignedRequest) (*ListAssignedResponse, error) {
	if req.AccountID == "" || req.WearerID == "" {
		return nil, fmt.Errorf("account_id and wearer_id are required")
	}
	assignments, err := s.assignmentsRepo.ListAssigned(ctx, req.AccountID, req.WearerID)
	if err != nil {
		return nil, err
	}
	return &ListAssignedResponse{Assignments: assignments, Total: len(assignments)}, nil
}

// ListAvailable 查询某佩戴者的可分配 caregiver（账户内档案减去已分配）
func (s *assignmentService) ListAvailable(ctx context.Context, req ListAvailableRequest) (*ListAvailableResponse, error) {
	if req.AccountID == "" || req.WearerID == "" {
		return nil, fmt.Errorf("account_id and wearer_id are required")
	}
	caregivers, err := s.assignmentsRepo.ListAvailable(ctx, req.AccountID, req.WearerID)
	if err != nil {
		return nil, err
	}
	return &ListAvailableResponse{Caregivers: caregivers, Total: len(caregivers)}, nil
}

// AssignCaregiver 分配 caregiver（admin 专属；重复分配幂等返回已有 assignment_id）
func (s *assignmentService) AssignCaregiver(ctx context.Context, req AssignCaregiverRequest) (*AssignCaregiverResponse, error) {
	if req.AccountID == "" || req.WearerID == "" || req.UserID == "" {
		return nil, fmt.Errorf("account_id, wearer_id and user_id are required")
	}
	actor, err := s.usersRepo.GetProfile(ctx, req.AccountID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("assign caregiver: %w", domain.ErrForbidden)
	}

	// 被分配人必须在同一账户内
	if _, err := s.usersRepo.GetProfile(ctx, req.AccountID, req.UserID); err != nil {
		return nil, err
	}

	relationship := req.Relationship
	if relationship == "" {
		relationship = "family"
	}
	a := &domain.Assignment{
		AccountID:          req.AccountID,
		WearerID:           req.WearerID,
		UserID:             req.UserID,
		Relationship:       relationship,
		IsPrimary:          req.IsPrimary,
		IsEmergencyContact: req.IsEmergencyContact,
	}
	id, err := s.assignmentsRepo.CreateAssignment(ctx, a)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Caregiver assigned",
		zap.String("assignment_id", id),
		zap.String("wearer_id", req.WearerID),
		zap.String("user_id", req.UserID),
		zap.String("assigned_by", req.ActorID),
	)
	return &AssignCaregiverResponse{AssignmentID: id}, nil
}

// RemoveAssignment 取消分配（admin 专属）
func (s *assignmentService) RemoveAssignment(ctx context.Context, req RemoveAssignmentRequest) (*RemoveAssignmentResponse, error) {
	if req.AccountID == "" || req.AssignmentID == "" {
		return nil, fmt.Errorf("account_id and assignment_id are required")
	}
	actor, err := s.usersRepo.GetProfile(ctx, req.AccountID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("remove assignment: %w", domain.ErrForbidden)
	}
	if err := s.assignmentsRepo.DeleteAssignment(ctx, req.AccountID, req.AssignmentID); err != nil {
		return nil, err
	}
	s.logger.Info("Assignment removed",
		zap.String("assignment_id", req.AssignmentID),
		zap.String("removed_by", req.ActorID),
	)
	return &RemoveAssignmentResponse{Success: true}, nil
}
