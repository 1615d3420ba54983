package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"

	"go.uber.org/zap"
)

// InvitationService 邀请管理服务接口
// 仅 caregiver_admin 可发出邀请；邀请 7 天后过期
type InvitationService interface {
	InviteCaregiver(ctx context.Context, req InviteCaregiverRequest) (*InviteCaregiverResponse, error)
	ListInvitations(ctx context.Context, req ListInvitationsRequest) (*ListInvitationsResponse, error)
}

// invitationService 实现
type invitationService struct {
	invitationsRepo repository.InvitationsRepository
	usersRepo       repository.UsersRepository
	logger          *zap.Logger
}

// NewInvitationService 创建 InvitationService 实例
func NewInvitationService(
	invitationsRepo repository.InvitationsRepository,
	usersRepo repository.UsersRepository,
	logger *zap.Logger,
) InvitationService {
	return &invitationService{
		invitationsRepo: invitationsRepo,
		usersRepo:       usersRepo,
		logger:          logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// InviteCaregiverRequest 邀请 caregiver 请求
type InviteCaregiverRequest struct {
	AccountID string // 当前用户所属账户
	ActorID   string // 发起人 user_id（必须是 caregiver_admin）
	Email     string // 被邀请邮箱
}

// InviteCaregiverResponse 邀请 caregiver 响应
type InviteCaregiverResponse struct {
	InvitationID string `json:"invitation_id"`
}

// ListInvitationsRequest 邀请列表请求
type ListInvitationsRequest struct {
	AccountID string
}

// ListInvitationsResponse 邀请列表响应
type ListInvitationsResponse struct {
	Invitations []*domain.Invitation
	Total       int
}

// ============================================
// Service 方法实现
// ============================================

// InviteCaregiver 发出邀请
// 同邮箱已有 pending 邀请时直接复用，不重复创建
func (s *invitationService) InviteCaregiver(ctx context.Context, req InviteCaregiverRequest) (*InviteCaregiverResponse, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email: %s", email)
	}

	actor, err := s.usersRepo.GetProfile(ctx, req.AccountID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("invite caregiver: %w", domain.ErrForbidden)
	}

	if existing, err := s.invitationsRepo.GetPendingByEmail(ctx, email); err == nil && existing.AccountID == req.AccountID {
		return &InviteCaregiverResponse{InvitationID: existing.InvitationID}, nil
	}

	inv := &domain.Invitation{
		AccountID: req.AccountID,
		Email:     email,
		InvitedBy: req.ActorID,
		Status:    domain.InvitationPending,
	}
	id, err := s.invitationsRepo.CreateInvitation(ctx, inv)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Caregiver invited",
		zap.String("invitation_id", id),
		zap.String("account_id", req.AccountID),
		zap.String("invited_by", req.ActorID),
	)
	return &InviteCaregiverResponse{InvitationID: id}, nil
}

// ListInvitations 查询本账户的邀请
func (s *invitationService) ListInvitations(ctx context.Context, req ListInvitationsRequest) (*ListInvitationsResponse, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	invitations, err := s.invitationsRepo.ListInvitations(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	return &ListInvitationsResponse{Invitations: invitations, Total: len(invitations)}, nil
}
