package httpapi

import (
	"net/http"
	"strings"

	"github.com/ericalderman-safeloop/safeloop-care/internal/service"

	"go.uber.org/zap"
)

// AssignmentHandler 护理分配 Handler
// 佩戴者维度的子路径（/wearers/{id}/caregivers...）由 WearerHandler 委托进来
type AssignmentHandler struct {
	assignmentService service.AssignmentService
	resolver          *SessionResolver
	logger            *zap.Logger
}

// NewAssignmentHandler 创建护理分配 Handler
func NewAssignmentHandler(assignmentService service.AssignmentService, resolver *SessionResolver, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
		resolver:          resolver,
		logger:            logger,
	}
}

// ServeHTTP 实现 http.Handler 接口（/app/api/v1/assignments/{id}）
func (h *AssignmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/app/api/v1/assignments/") && r.Method == http.MethodDelete:
		assignmentID := strings.TrimPrefix(path, "/app/api/v1/assignments/")
		if assignmentID == "" || strings.Contains(assignmentID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Remove(w, r, assignmentID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListAssigned 某佩戴者的已分配 caregiver
func (h *AssignmentHandler) ListAssigned(w http.ResponseWriter, r *http.Request, wearerID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.assignmentService.ListAssigned(r.Context(), service.ListAssignedRequest{
		AccountID: p.Profile.AccountID,
		WearerID:  wearerID,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]any, 0, len(resp.Assignments))
	for _, a := range resp.Assignments {
		items = append(items, a.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": resp.Total,
	}))
}

// ListAvailable 某佩戴者的可分配 caregiver
func (h *AssignmentHandler) ListAvailable(w http.ResponseWriter, r *http.Request, wearerID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.assignmentService.ListAvailable(r.Context(), service.ListAvailableRequest{
		AccountID: p.Profile.AccountID,
		WearerID:  wearerID,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]any, 0, len(resp.Caregivers))
	for _, c := range resp.Caregivers {
		items = append(items, c.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": resp.Total,
	}))
}

// Assign 分配 caregiver（admin 专属）
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request, wearerID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		UserID             string `json:"user_id"`
		Relationship       string `json:"relationship"`
		IsPrimary          bool   `json:"is_primary"`
		IsEmergencyContact bool   `json:"is_emergency_contact"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.assignmentService.AssignCaregiver(r.Context(), service.AssignCaregiverRequest{
		AccountID:          p.Profile.AccountID,
		ActorID:            p.Profile.UserID,
		WearerID:           wearerID,
		UserID:             body.UserID,
		Relationship:       body.Relationship,
		IsPrimary:          body.IsPrimary,
		IsEmergencyContact: body.IsEmergencyContact,
	})
	if err != nil {
		h.logger.Warn("AssignCaregiver failed",
			zap.String("wearer_id", wearerID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Remove 取消分配（admin 专属）
func (h *AssignmentHandler) Remove(w http.ResponseWriter, r *http.Request, assignmentID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.assignmentService.RemoveAssignment(r.Context(), service.RemoveAssignmentRequest{
		AccountID:    p.Profile.AccountID,
		ActorID:      p.Profile.UserID,
		AssignmentID: assignmentID,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
