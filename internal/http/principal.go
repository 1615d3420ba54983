package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"
	"github.com/ericalderman-safeloop/safeloop-care/internal/service"
	"github.com/ericalderman-safeloop/safeloop-care/internal/store"

	"go.uber.org/zap"
)

// Principal 当前请求的调用方
// Profile 在引导完成前为 nil（会话有效但档案尚未创建）
type Principal struct {
	Session *store.Session
	Profile *domain.UserProfile
}

// SessionResolver 从请求中解析会话与档案
type SessionResolver struct {
	auth      service.AuthService
	usersRepo repository.UsersRepository
	logger    *zap.Logger
}

// NewSessionResolver 创建会话解析器
func NewSessionResolver(auth service.AuthService, usersRepo repository.UsersRepository, logger *zap.Logger) *SessionResolver {
	return &SessionResolver{auth: auth, usersRepo: usersRepo, logger: logger}
}

// bearerToken 从 Authorization 头提取 token
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// principalFromReq 解析会话；失败时已写出响应，调用方直接 return
// 会话过期用 code=60401 + HTTP 401，app 端据此跳转登录
func (s *SessionResolver) principalFromReq(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing token"))
		return nil, false
	}

	sess, err := s.auth.GetSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			writeJSON(w, http.StatusUnauthorized, Result[any]{
				Code:    ResultSessionExpired,
				Type:    "error",
				Message: "session expired",
			})
			return nil, false
		}
		s.logger.Error("Session lookup failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("session lookup failed"))
		return nil, false
	}

	p := &Principal{Session: sess}
	profile, err := s.usersRepo.GetProfileByIdentity(r.Context(), sess.IdentityID)
	if err == nil {
		p.Profile = profile
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("Profile lookup failed for session",
			zap.String("identity_id", sess.IdentityID),
			zap.Error(err),
		)
	}
	return p, true
}

// requireProfile 解析会话并要求档案已存在（引导完成后的全部端点使用）
func (s *SessionResolver) requireProfile(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	p, ok := s.principalFromReq(w, r)
	if !ok {
		return nil, false
	}
	if p.Profile == nil {
		writeJSON(w, http.StatusOK, Fail("profile setup required"))
		return nil, false
	}
	return p, true
}
