package httpapi

import (
	"net/http"

	"github.com/ericalderman-safeloop/safeloop-care/internal/store"

	"go.uber.org/zap"
)

// PushTokenHandler 推送令牌注册 Handler
// app 每次启动上报当前设备 token；登出或换机时注销
type PushTokenHandler struct {
	tokens   *store.PushTokenStore
	resolver *SessionResolver
	logger   *zap.Logger
}

// NewPushTokenHandler 创建推送令牌 Handler
func NewPushTokenHandler(tokens *store.PushTokenStore, resolver *SessionResolver, logger *zap.Logger) *PushTokenHandler {
	return &PushTokenHandler{
		tokens:   tokens,
		resolver: resolver,
		logger:   logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *PushTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/app/api/v1/push-tokens" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil || body.Token == "" {
		writeJSON(w, http.StatusOK, Fail("token is required"))
		return
	}

	var err error
	switch r.Method {
	case http.MethodPost:
		err = h.tokens.Register(r.Context(), p.Profile.UserID, body.Token)
	case http.MethodDelete:
		err = h.tokens.Unregister(r.Context(), p.Profile.UserID, body.Token)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		h.logger.Error("Push token update failed",
			zap.String("user_id", p.Profile.UserID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}
