package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAuthRoutes 登录/登出
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.Handle("/auth/api/v1/login", h.Login)
	r.Handle("/auth/api/v1/logout", h.Logout)
}

// RegisterAppRoutes 注册 app 侧全部路由
func (r *Router) RegisterAppRoutes(
	profile *ProfileHandler,
	wearers *WearerHandler,
	assignments *AssignmentHandler,
	helpRequests *HelpRequestHandler,
	invitations *InvitationHandler,
	pushTokens *PushTokenHandler,
	stream *StreamHandler,
) {
	// 档案/引导
	r.HandleHandler("/app/api/v1/profile", profile)
	r.HandleHandler("/app/api/v1/profile/", profile)

	// 佩戴者（含 settings 与 caregivers 子路径）
	r.HandleHandler("/app/api/v1/wearers", wearers)
	r.HandleHandler("/app/api/v1/wearers/", wearers)

	// 分配（按 id 删除）
	r.HandleHandler("/app/api/v1/assignments/", assignments)

	// 帮助请求
	r.HandleHandler("/app/api/v1/help-requests/", helpRequests)

	// 邀请
	r.HandleHandler("/app/api/v1/invitations", invitations)

	// 推送令牌
	r.HandleHandler("/app/api/v1/push-tokens", pushTokens)

	// 变更流（SSE）
	r.HandleHandler("/app/api/v1/changes", stream)
}

// RegisterHealthRoute 健康检查
func (r *Router) RegisterHealthRoute() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}
