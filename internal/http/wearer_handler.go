package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/service"

	"go.uber.org/zap"
)

// WearerHandler 佩戴者管理 Handler
// caregivers 子路径委托给 AssignmentHandler
type WearerHandler struct {
	wearerService service.WearerService
	assignments   *AssignmentHandler
	resolver      *SessionResolver
	logger        *zap.Logger
}

// NewWearerHandler 创建佩戴者管理 Handler
func NewWearerHandler(wearerService service.WearerService, assignments *AssignmentHandler, resolver *SessionResolver, logger *zap.Logger) *WearerHandler {
	return &WearerHandler{
		wearerService: wearerService,
		assignments:   assignments,
		resolver:      resolver,
		logger:        logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *WearerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	// ListWearers
	case path == "/app/api/v1/wearers" && r.Method == http.MethodGet:
		h.ListWearers(w, r)
	// RegisterWearer
	case path == "/app/api/v1/wearers" && r.Method == http.MethodPost:
		h.RegisterWearer(w, r)
	// Settings (必须在 GetWearer 之前，因为路径更具体)
	case strings.HasSuffix(path, "/settings"):
		wearerID := strings.TrimSuffix(path, "/settings")
		wearerID = strings.TrimPrefix(wearerID, "/app/api/v1/wearers/")
		if wearerID == "" || strings.Contains(wearerID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.GetSettings(w, r, wearerID)
		case http.MethodPut:
			h.UpdateSettings(w, r, wearerID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	// 已分配 caregiver 列表
	case strings.HasSuffix(path, "/caregivers/available") && r.Method == http.MethodGet:
		wearerID := strings.TrimSuffix(path, "/caregivers/available")
		wearerID = strings.TrimPrefix(wearerID, "/app/api/v1/wearers/")
		if wearerID == "" || strings.Contains(wearerID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.assignments.ListAvailable(w, r, wearerID)
	case strings.HasSuffix(path, "/caregivers"):
		wearerID := strings.TrimSuffix(path, "/caregivers")
		wearerID = strings.TrimPrefix(wearerID, "/app/api/v1/wearers/")
		if wearerID == "" || strings.Contains(wearerID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.assignments.ListAssigned(w, r, wearerID)
		case http.MethodPost:
			h.assignments.Assign(w, r, wearerID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	// GetWearer / UpdateWearer / DeleteWearer
	case strings.HasPrefix(path, "/app/api/v1/wearers/"):
		wearerID := strings.TrimPrefix(path, "/app/api/v1/wearers/")
		if wearerID == "" || strings.Contains(wearerID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.GetWearer(w, r, wearerID)
		case http.MethodPut:
			h.UpdateWearer(w, r, wearerID)
		case http.MethodDelete:
			h.DeleteWearer(w, r, wearerID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// wearerBody 注册/更新共用的请求体
type wearerBody struct {
	Name                  string  `json:"name"`
	DeviceCode            string  `json:"device_code"`
	DateOfBirth           *string `json:"date_of_birth"` // "2006-01-02"
	MedicalNotes          *string `json:"medical_notes"`
	EmergencyContactName  *string `json:"emergency_contact_name"`
	EmergencyContactPhone *string `json:"emergency_contact_phone"`
}

func parseDateOfBirth(s *string) (*time.Time, bool) {
	if s == nil {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// ============================================
// ListWearers 查询佩戴者列表
// ============================================

func (h *WearerHandler) ListWearers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.wearerService.ListWearers(r.Context(), service.ListWearersRequest{
		AccountID: p.Profile.AccountID,
	})
	if err != nil {
		h.logger.Error("ListWearers failed",
			zap.String("account_id", p.Profile.AccountID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]any, 0, len(resp.Wearers))
	for _, wr := range resp.Wearers {
		items = append(items, wr.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": resp.Total,
	}))
}

// ============================================
// RegisterWearer 注册佩戴者（含设备绑定）
// ============================================

func (h *WearerHandler) RegisterWearer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body wearerBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	dob, ok := parseDateOfBirth(body.DateOfBirth)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("date_of_birth must be YYYY-MM-DD"))
		return
	}

	resp, err := h.wearerService.RegisterWearer(r.Context(), service.RegisterWearerRequest{
		AccountID:             p.Profile.AccountID,
		ActorID:               p.Profile.UserID,
		Name:                  body.Name,
		DeviceCode:            body.DeviceCode,
		DateOfBirth:           dob,
		MedicalNotes:          body.MedicalNotes,
		EmergencyContactName:  body.EmergencyContactName,
		EmergencyContactPhone: body.EmergencyContactPhone,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp.Wearer.ToJSON()))
}

// ============================================
// GetWearer 佩戴者详情
// ============================================

func (h *WearerHandler) GetWearer(w http.ResponseWriter, r *http.Request, wearerID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.wearerService.GetWearer(r.Context(), service.GetWearerRequest{
		AccountID: p.Profile.AccountID,
		WearerID:  wearerID,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp.Wearer.ToJSON()))
}

// ============================================
// UpdateWearer 更新佩戴者
// ============================================

func (h *WearerHandler) UpdateWearer(w http.ResponseWriter, r *http.Request, wearerID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		Name                  *string `json:"name"`
		DateOfBirth           *string `json:"date_of_birth"`
		MedicalNotes          *string `json:"medical_notes"`
		EmergencyContactName  *string `json:"emergency_contact_name"`
		EmergencyContactPhone *string `json:"emergency_contact_phone"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	dob, ok := parseDateOfBirth(body.DateOfBirth)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("date_of_birth must be YYYY-MM-DD"))
		return
	}

	resp, err := h.wearerService.UpdateWearer(r.Context(), service.UpdateWearerRequest{
		AccountID:             p.Profile.AccountID,
		WearerID:              wearerID,
		Name:                  body.Name,
		DateOfBirth:           dob,
		MedicalNotes:          body.MedicalNotes,
		EmergencyContactName:  body.EmergencyContactName,
		EmergencyContactPhone: body.EmergencyContactPhone,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// ============================================
// DeleteWearer 删除佩戴者（admin 专属）
// ============================================

func (h *WearerHandler) DeleteWearer(w http.ResponseWriter, r *http.Request, wearerID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.wearerService.DeleteWearer(r.Context(), service.DeleteWearerRequest{
		AccountID: p.Profile.AccountID,
		ActorID:   p.Profile.UserID,
		WearerID:  wearerID,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// ============================================
// Settings 佩戴者设置
// ============================================

func (h *WearerHandler) GetSettings(w http.ResponseWriter, r *http.Request, wearerID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	resp, err := h.wearerService.GetSettings(r.Context(), service.GetSettingsRequest{
		AccountID: p.Profile.AccountID,
		WearerID:  wearerID,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp.Settings.ToJSON()))
}

func (h *WearerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request, wearerID string) {
	p, ok := h.resolver.requireProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		CheckinReminderEnabled bool   `json:"checkin_reminder_enabled"`
		FallSensitivity        string `json:"fall_sensitivity"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	resp, err := h.wearerService.UpdateSettings(r.Context(), service.UpdateSettingsRequest{
		AccountID:              p.Profile.AccountID,
		WearerID:               wearerID,
		CheckinReminderEnabled: body.CheckinReminderEnabled,
		FallSensitivity:        body.FallSensitivity,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
