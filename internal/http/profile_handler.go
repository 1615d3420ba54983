package httpapi

import (
	"net/http"

	"github.com/ericalderman-safeloop/safeloop-care/internal/service"

	"go.uber.org/zap"
)

// ProfileHandler 档案/引导 Handler
type ProfileHandler struct {
	directoryService service.DirectoryService
	resolver         *SessionResolver
	logger           *zap.Logger
}

// NewProfileHandler 创建档案 Handler
func NewProfileHandler(directoryService service.DirectoryService, resolver *SessionResolver, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		directoryService: directoryService,
		resolver:         resolver,
		logger:           logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	// Resolve（冷启动：app 持有效 token 再次打开时重新判定引导状态）
	case path == "/app/api/v1/profile/resolve" && r.Method == http.MethodGet:
		h.Resolve(w, r)
	// CompleteSetup
	case path == "/app/api/v1/profile/setup" && r.Method == http.MethodPost:
		h.CompleteSetup(w, r)
	// GetProfile
	case path == "/app/api/v1/profile" && r.Method == http.MethodGet:
		h.GetProfile(w, r)
	// UpdateProfile
	case path == "/app/api/v1/profile" && r.Method == http.MethodPut:
		h.UpdateProfile(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Resolve 身份解析
func (h *ProfileHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.principalFromReq(w, r)
	if !ok {
		return
	}

	resp, err := h.directoryService.Resolve(r.Context(), service.ResolveRequest{
		IdentityID: p.Session.IdentityID,
		Email:      p.Session.Email,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	result := map[string]any{
		"outcome":          resp.Outcome,
		"needs_onboarding": resp.NeedsOnboarding,
	}
	if resp.Profile != nil {
		result["profile"] = resp.Profile.ToJSON()
	}
	if resp.PendingInvitation != nil {
		result["invitation"] = resp.PendingInvitation.ToJSON()
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// CompleteSetup 完成引导
func (h *ProfileHandler) CompleteSetup(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.principalFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		DisplayName string  `json:"display_name"`
		Phone       *string `json:"phone"`
		AccountName string  `json:"account_name"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.directoryService.CompleteSetup(r.Context(), service.CompleteSetupRequest{
		IdentityID:  p.Session.IdentityID,
		Email:       p.Session.Email,
		DisplayName: body.DisplayName,
		Phone:       body.Phone,
		AccountName: body.AccountName,
	})
	if err != nil {
		h.logger.Error("CompleteSetup failed",
			zap.String("identity_id", p.Session.IdentityID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp.Profile.ToJSON()))
}

// GetProfile 当前用户档案
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Ok(p.Profile.ToJSON()))
}

// UpdateProfile 更新档案
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		DisplayName string  `json:"display_name"`
		Phone       *string `json:"phone"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.directoryService.UpdateProfile(r.Context(), service.UpdateProfileRequest{
		AccountID:   p.Profile.AccountID,
		UserID:      p.Profile.UserID,
		DisplayName: body.DisplayName,
		Phone:       body.Phone,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
