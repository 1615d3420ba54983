package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"

	"go.uber.org/zap"
)

// 身份解析结果
const (
	OutcomeProfileFound     = "profile_found"     // 档案已存在
	OutcomeOnboardCaregiver = "onboard_caregiver" // 有未过期邀请，按 caregiver 引导
	OutcomeOnboardAdmin     = "onboard_admin"     // 无档案无邀请，按新 admin 引导（完成时创建新账户）
)

// DirectoryService 身份目录/档案解析服务接口
// 将已认证身份（id + email）映射到应用级档案或待处理邀请，并决定是否需要引导
type DirectoryService interface {
	Resolve(ctx context.Context, req ResolveRequest) (*ResolveResponse, error)
	CompleteSetup(ctx context.Context, req CompleteSetupRequest) (*CompleteSetupResponse, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*UpdateProfileResponse, error)
}

// directoryService 实现
type directoryService struct {
	usersRepo       repository.UsersRepository
	invitationsRepo repository.InvitationsRepository
	accountsRepo    repository.AccountsRepository
	logger          *zap.Logger
}

// NewDirectoryService 创建 DirectoryService 实例
func NewDirectoryService(
	usersRepo repository.UsersRepository,
	invitationsRepo repository.InvitationsRepository,
	accountsRepo repository.AccountsRepository,
	logger *zap.Logger,
) DirectoryService {
	return &directoryService{
		usersRepo:       usersRepo,
		invitationsRepo: invitationsRepo,
		accountsRepo:    accountsRepo,
		logger:          logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// ResolveRequest 身份解析请求
type ResolveRequest struct {
	IdentityID string // 外部身份 subject（必填）
	Email      string // 登录邮箱（必填）
}

// ResolveResponse 身份解析响应
type ResolveResponse struct {
	Outcome            string              // profile_found | onboard_caregiver | onboard_admin
	NeedsOnboarding    bool                // display_name 为空或档案不存在时为 true
	Profile            *domain.UserProfile // Outcome = profile_found 时非空
	PendingInvitation  *domain.Invitation  // Outcome = onboard_caregiver 时非空
}

// CompleteSetupRequest 完成引导请求
// 有未过期邀请 → 消费邀请，作为 caregiver 加入邀请人账户
// 否则 → 创建新账户并成为 caregiver_admin
type CompleteSetupRequest struct {
	IdentityID  string // 必填
	Email       string // 必填
	DisplayName string // 必填
	Phone       *string
	AccountName string // 新 admin 路径使用；为空时取 DisplayName
}

// CompleteSetupResponse 完成引导响应
type CompleteSetupResponse struct {
	Profile *domain.UserProfile
}

// UpdateProfileRequest 档案更新请求
type UpdateProfileRequest struct {
	AccountID   string
	UserID      string
	DisplayName string
	Phone       *string
}

// UpdateProfileResponse 档案更新响应
type UpdateProfileResponse struct {
	Success bool `json:"success"`
}

// ============================================
// Service 方法实现
// ============================================

// Resolve 解析已认证身份
// 后端查询失败时向引导路径开放（fail-open）：避免把用户锁在门外
// 代价是档案查询错误对用户不可见，只留日志
func (s *directoryService) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResponse, error) {
	if req.IdentityID == "" {
		return nil, fmt.Errorf("identity_id is required")
	}
	if req.Email == "" {
		return nil, fmt.Errorf("email is required")
	}

	profile, err := s.usersRepo.GetProfileByIdentity(ctx, req.IdentityID)
	if err == nil {
		return &ResolveResponse{
			Outcome:         OutcomeProfileFound,
			NeedsOnboarding: !profile.OnboardingComplete(),
			Profile:         profile,
		}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("Profile lookup failed, falling back to onboarding",
			zap.String("identity_id", req.IdentityID),
			zap.Error(err),
		)
	}

	inv, err := s.invitationsRepo.GetPendingByEmail(ctx, req.Email)
	if err == nil {
		return &ResolveResponse{
			Outcome:           OutcomeOnboardCaregiver,
			NeedsOnboarding:   true,
			PendingInvitation: inv,
		}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("Invitation lookup failed, falling back to admin onboarding",
			zap.String("email", req.Email),
			zap.Error(err),
		)
	}

	return &ResolveResponse{
		Outcome:         OutcomeOnboardAdmin,
		NeedsOnboarding: true,
	}, nil
}

// CompleteSetup 完成引导，创建档案
// 邀请在提交时重新查询：过期邀请在此处视同不存在，落入新 admin 路径
func (s *directoryService) CompleteSetup(ctx context.Context, req CompleteSetupRequest) (*CompleteSetupResponse, error) {
	if req.IdentityID == "" {
		return nil, fmt.Errorf("identity_id is required")
	}
	if req.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display_name is required")
	}

	// 幂等保护：档案已存在时直接返回
	if existing, err := s.usersRepo.GetProfileByIdentity(ctx, req.IdentityID); err == nil {
		return &CompleteSetupResponse{Profile: existing}, nil
	}

	profile := &domain.UserProfile{
		IdentityID:  req.IdentityID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	}
	if req.Phone != nil {
		profile.Phone = sql.NullString{String: *req.Phone, Valid: true}
	}

	inv, err := s.invitationsRepo.GetPendingByEmail(ctx, req.Email)
	if err == nil {
		created, err := s.invitationsRepo.AcceptInvitation(ctx, inv.InvitationID, profile)
		if err != nil && !errors.Is(err, domain.ErrInvitationExpired) && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			s.logger.Info("Caregiver joined account via invitation",
				zap.String("user_id", created.UserID),
				zap.String("account_id", created.AccountID),
			)
			return &CompleteSetupResponse{Profile: created}, nil
		}
		// 查询与消费之间邀请失效：落入新 admin 路径
	}

	accountName := req.AccountName
	if accountName == "" {
		accountName = req.DisplayName
	}
	account, err := s.accountsRepo.CreateAccountWithAdmin(ctx, accountName, profile)
	if err != nil {
		return nil, err
	}
	s.logger.Info("New account provisioned",
		zap.String("account_id", account.AccountID),
		zap.String("user_id", profile.UserID),
	)
	return &CompleteSetupResponse{Profile: profile}, nil
}

// UpdateProfile 更新档案
func (s *directoryService) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*UpdateProfileResponse, error) {
	if req.AccountID == "" || req.UserID == "" {
		return nil, fmt.Errorf("account_id and user_id are required")
	}
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display_name is required")
	}
	if err := s.usersRepo.UpdateProfile(ctx, req.AccountID, req.UserID, req.DisplayName, req.Phone); err != nil {
		return nil, err
	}
	return &UpdateProfileResponse{Success: true}, nil
}
