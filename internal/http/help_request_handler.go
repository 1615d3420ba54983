package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/service"

	"go.uber.org/zap"
)

// HelpRequestHandler 帮助请求 Handler
type HelpRequestHandler struct {
	helpRequestService service.HelpRequestService
	resolver           *SessionResolver
	logger             *zap.Logger
}

// NewHelpRequestHandler 创建帮助请求 Handler
func NewHelpRequestHandler(helpRequestService service.HelpRequestService, resolver *SessionResolver, logger *zap.Logger) *HelpRequestHandler {
	return &HelpRequestHandler{
		helpRequestService: helpRequestService,
		resolver:           resolver,
		logger:             logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *HelpRequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	// ListActive
	case path == "/app/api/v1/help-requests/active" && r.Method == http.MethodGet:
		h.ListActive(w, r)
	// ListResolved
	case path == "/app/api/v1/help-requests/history" && r.Method == http.MethodGet:
		h.ListResolved(w, r)
	// ExportHistory
	case path == "/app/api/v1/help-requests/history/export" && r.Method == http.MethodGet:
		h.ExportHistory(w, r)
	// Respond
	case strings.HasSuffix(path, "/respond") && r.Method == http.MethodPost:
		requestID := strings.TrimSuffix(path, "/respond")
		requestID = strings.TrimPrefix(requestID, "/app/api/v1/help-requests/")
		if requestID == "" || strings.Contains(requestID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Respond(w, r, requestID)
	// Resolve
	case strings.HasSuffix(path, "/resolve") && r.Method == http.MethodPost:
		requestID := strings.TrimSuffix(path, "/resolve")
		requestID = strings.TrimPrefix(requestID, "/app/api/v1/help-requests/")
		if requestID == "" || strings.Contains(requestID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Resolve(w, r, requestID)
	// MarkFalseAlarm
	case strings.HasSuffix(path, "/false-alarm") && r.Method == http.MethodPost:
		requestID := strings.TrimSuffix(path, "/false-alarm")
		requestID = strings.TrimPrefix(requestID, "/app/api/v1/help-requests/")
		if requestID == "" || strings.Contains(requestID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.MarkFalseAlarm(w, r, requestID)
	// GetDetails
	case strings.HasPrefix(path, "/app/api/v1/help-requests/") && r.Method == http.MethodGet:
		requestID := strings.TrimPrefix(path, "/app/api/v1/help-requests/")
		if requestID == "" || strings.Contains(requestID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetDetails(w, r, requestID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ============================================
// ListActive 活跃请求列表（账户内全部，最新在前）
// ============================================

func (h *HelpRequestHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.helpRequestService.ListActive(r.Context(), service.ListActiveRequest{
		AccountID: p.Profile.AccountID,
	})
	if err != nil {
		h.logger.Error("ListActive failed",
			zap.String("account_id", p.Profile.AccountID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]any, 0, len(resp.Requests))
	for _, req := range resp.Requests {
		items = append(items, req.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": resp.Total,
	}))
}

// ============================================
// ListResolved 历史请求列表
// ============================================

func (h *HelpRequestHandler) ListResolved(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)
	resp, err := h.helpRequestService.ListResolved(r.Context(), service.ListResolvedRequest{
		AccountID: p.Profile.AccountID,
		Limit:     limit,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]any, 0, len(resp.Requests))
	for _, req := range resp.Requests {
		items = append(items, req.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": resp.Total,
	}))
}

// ============================================
// ExportHistory 历史请求导出（xlsx）
// ============================================

func (h *HelpRequestHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 500)
	resp, err := h.helpRequestService.ListResolved(r.Context(), service.ListResolvedRequest{
		AccountID: p.Profile.AccountID,
		Limit:     limit,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	data, err := GenerateHelpRequestHistoryExport(resp.Requests)
	if err != nil {
		h.logger.Error("ExportHistory failed",
			zap.String("account_id", p.Profile.AccountID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	filename := fmt.Sprintf("help-requests-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}

// ============================================
// GetDetails 请求详情（含佩戴者医疗/联系人信息）
// ============================================

func (h *HelpRequestHandler) GetDetails(w http.ResponseWriter, r *http.Request, requestID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.helpRequestService.GetDetails(r.Context(), service.GetDetailsRequest{
		AccountID: p.Profile.AccountID,
		RequestID: requestID,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp.Request.ToJSON()))
}

// ============================================
// 状态迁移
// ============================================

func (h *HelpRequestHandler) Respond(w http.ResponseWriter, r *http.Request, requestID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		Notes *string `json:"notes"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.helpRequestService.Respond(r.Context(), service.RespondRequest{
		AccountID: p.Profile.AccountID,
		ActorID:   p.Profile.UserID,
		RequestID: requestID,
		Notes:     body.Notes,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *HelpRequestHandler) Resolve(w http.ResponseWriter, r *http.Request, requestID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		Notes *string `json:"notes"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.helpRequestService.Resolve(r.Context(), service.ResolveHelpRequestRequest{
		AccountID: p.Profile.AccountID,
		ActorID:   p.Profile.UserID,
		RequestID: requestID,
		Notes:     body.Notes,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *HelpRequestHandler) MarkFalseAlarm(w http.ResponseWriter, r *http.Request, requestID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		Notes *string `json:"notes"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.helpRequestService.MarkFalseAlarm(r.Context(), service.MarkFalseAlarmRequest{
		AccountID: p.Profile.AccountID,
		ActorID:   p.Profile.UserID,
		RequestID: requestID,
		Notes:     body.Notes,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
