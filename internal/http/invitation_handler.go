package httpapi

import (
	"net/http"

	"github.com/ericalderman-safeloop/safeloop-care/internal/service"

	"go.uber.org/zap"
)

// InvitationHandler 邀请管理 Handler
type InvitationHandler struct {
	invitationService service.InvitationService
	resolver          *SessionResolver
	logger            *zap.Logger
}

// NewInvitationHandler 创建邀请管理 Handler
func NewInvitationHandler(invitationService service.InvitationService, resolver *SessionResolver, logger *zap.Logger) *InvitationHandler {
	return &InvitationHandler{
		invitationService: invitationService,
		resolver:          resolver,
		logger:            logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *InvitationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/app/api/v1/invitations" && r.Method == http.MethodGet:
		h.List(w, r)
	case r.URL.Path == "/app/api/v1/invitations" && r.Method == http.MethodPost:
		h.Invite(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// List 本账户邀请列表
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.invitationService.ListInvitations(r.Context(), service.ListInvitationsRequest{
		AccountID: p.Profile.AccountID,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]any, 0, len(resp.Invitations))
	for _, inv := range resp.Invitations {
		items = append(items, inv.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": resp.Total,
	}))
}

// Invite 邀请 caregiver（admin 专属）
func (h *InvitationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.invitationService.InviteCaregiver(r.Context(), service.InviteCaregiverRequest{
		AccountID: p.Profile.AccountID,
		ActorID:   p.Profile.UserID,
		Email:     body.Email,
	})
	if err != nil {
		h.logger.Warn("InviteCaregiver failed",
			zap.String("account_id", p.Profile.AccountID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
