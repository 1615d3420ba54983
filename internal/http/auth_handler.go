package httpapi

import (
	"net/http"

	"github.com/ericalderman-safeloop/safeloop-care/internal/service"

	"go.uber.org/zap"
)

// AuthHandler 登录/登出 Handler
type AuthHandler struct {
	authService      service.AuthService
	directoryService service.DirectoryService
	logger           *zap.Logger
}

// NewAuthHandler 创建登录/登出 Handler
func NewAuthHandler(authService service.AuthService, directoryService service.DirectoryService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:      authService,
		directoryService: directoryService,
		logger:           logger,
	}
}

// Login 联合登录
// POST /auth/api/v1/login  body: {provider, id_token}
// 登录成功后立即做一次身份解析，app 据 outcome 决定进入主界面还是引导
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req service.LoginRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		h.logger.Warn("Login failed",
			zap.String("provider", req.Provider),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	resolve, err := h.directoryService.Resolve(r.Context(), service.ResolveRequest{
		IdentityID: resp.IdentityID,
		Email:      resp.Email,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	result := map[string]any{
		"token":            resp.Token,
		"identity_id":      resp.IdentityID,
		"email":            resp.Email,
		"outcome":          resolve.Outcome,
		"needs_onboarding": resolve.NeedsOnboarding,
	}
	if resolve.Profile != nil {
		result["profile"] = resolve.Profile.ToJSON()
	}
	if resolve.PendingInvitation != nil {
		result["invitation"] = resolve.PendingInvitation.ToJSON()
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Logout 登出
// POST /auth/api/v1/logout  (Authorization: Bearer <token>)
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing token"))
		return
	}
	if err := h.authService.Logout(r.Context(), token); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}
