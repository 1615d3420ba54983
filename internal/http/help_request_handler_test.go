package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/service"
	"github.com/ericalderman-safeloop/safeloop-care/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ============================================
// Fakes
// ============================================

type fakeAuthService struct {
	sessions map[string]*store.Session
}

func (f *fakeAuthService) Login(ctx context.Context, req service.LoginRequest) (*service.LoginResponse, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeAuthService) Logout(ctx context.Context, token string) error { return nil }

func (f *fakeAuthService) GetSession(ctx context.Context, token string) (*store.Session, error) {
	if sess, ok := f.sessions[token]; ok {
		return sess, nil
	}
	return nil, domain.ErrSessionExpired
}

type fakeUsersRepo struct {
	byIdentity map[string]*domain.UserProfile
}

func (f *fakeUsersRepo) GetProfile(ctx context.Context, accountID, userID string) (*domain.UserProfile, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeUsersRepo) GetProfileByIdentity(ctx context.Context, identityID string) (*domain.UserProfile, error) {
	if p, ok := f.byIdentity[identityID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsersRepo) ListProfiles(ctx context.Context, accountID string) ([]*domain.UserProfile, error) {
	return nil, nil
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, accountID, userID, displayName string, phone *string) error {
	return nil
}

type fakeHelpRequestService struct {
	active      []*domain.HelpRequest
	lastRespond service.RespondRequest
	lastResolve service.ResolveHelpRequestRequest
}

func (f *fakeHelpRequestService) ListActive(ctx context.Context, req service.ListActiveRequest) (*service.ListActiveResponse, error) {
	return &service.ListActiveResponse{Requests: f.active, Total: len(f.active)}, nil
}

func (f *fakeHelpRequestService) ListResolved(ctx context.Context, req service.ListResolvedRequest) (*service.ListResolvedResponse, error) {
	return &service.ListResolvedResponse{Requests: nil, Total: 0}, nil
}

func (f *fakeHelpRequestService) GetDetails(ctx context.Context, req service.GetDetailsRequest) (*service.GetDetailsResponse, error) {
	for _, hr := range f.active {
		if hr.RequestID == req.RequestID {
			return &service.GetDetailsResponse{Request: hr}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeHelpRequestService) Respond(ctx context.Context, req service.RespondRequest) (*service.TransitionResponse, error) {
	f.lastRespond = req
	return &service.TransitionResponse{Success: true}, nil
}

func (f *fakeHelpRequestService) Resolve(ctx context.Context, req service.ResolveHelpRequestRequest) (*service.TransitionResponse, error) {
	f.lastResolve = req
	return &service.TransitionResponse{Success: true}, nil
}

func (f *fakeHelpRequestService) MarkFalseAlarm(ctx context.Context, req service.MarkFalseAlarmRequest) (*service.TransitionResponse, error) {
	return &service.TransitionResponse{Success: true}, nil
}

func setupHelpRequestHandler(t *testing.T) (*fakeHelpRequestService, *HelpRequestHandler) {
	auth := &fakeAuthService{sessions: map[string]*store.Session{
		"good-token": {Token: "good-token", Provider: "google", IdentityID: "google:sub-1", Email: "alex@example.com"},
		"new-user":   {Token: "new-user", Provider: "google", IdentityID: "google:sub-9", Email: "new@example.com"},
	}}
	users := &fakeUsersRepo{byIdentity: map[string]*domain.UserProfile{
		"google:sub-1": {
			UserID:      "user-1",
			AccountID:   "account-1",
			IdentityID:  "google:sub-1",
			DisplayName: "Alex",
			Role:        domain.RoleCaregiver,
		},
	}}
	resolver := NewSessionResolver(auth, users, zap.NewNop())
	svc := &fakeHelpRequestService{}
	return svc, NewHelpRequestHandler(svc, resolver, zap.NewNop())
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var result Result[json.RawMessage]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	return result
}

// ============================================
// Tests
// ============================================

func TestHelpRequestHandler_ListActive(t *testing.T) {
	svc, handler := setupHelpRequestHandler(t)
	svc.active = []*domain.HelpRequest{
		{
			RequestID:   "hr-1",
			AccountID:   "account-1",
			WearerID:    "wearer-1",
			RequestType: domain.RequestTypeFallDetected,
			Status:      domain.HelpRequestActive,
			CreatedAt:   time.Now().UTC(),
			WearerName:  "Grandma",
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/app/api/v1/help-requests/active", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)

	var payload struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(result.Result, &payload))
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "hr-1", payload.Items[0]["request_id"])
	assert.Equal(t, "active", payload.Items[0]["status"])
	assert.Equal(t, 1, payload.Total)
}

func TestHelpRequestHandler_MissingToken(t *testing.T) {
	_, handler := setupHelpRequestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/app/api/v1/help-requests/active", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHelpRequestHandler_ExpiredSession(t *testing.T) {
	_, handler := setupHelpRequestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/app/api/v1/help-requests/active", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSessionExpired, result.Code)
}

func TestHelpRequestHandler_ProfileSetupRequired(t *testing.T) {
	_, handler := setupHelpRequestHandler(t)

	// 会话有效，但档案尚未创建（引导未完成）
	req := httptest.NewRequest(http.MethodGet, "/app/api/v1/help-requests/active", nil)
	req.Header.Set("Authorization", "Bearer new-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultError, result.Code)
	assert.Equal(t, "profile setup required", result.Message)
}

func TestHelpRequestHandler_Respond(t *testing.T) {
	svc, handler := setupHelpRequestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/app/api/v1/help-requests/hr-1/respond", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	// 调用方的账户与身份来自会话，不来自请求体
	assert.Equal(t, "account-1", svc.lastRespond.AccountID)
	assert.Equal(t, "user-1", svc.lastRespond.ActorID)
	assert.Equal(t, "hr-1", svc.lastRespond.RequestID)
	// 无请求体时不触碰备注
	assert.Nil(t, svc.lastRespond.Notes)
}

func TestHelpRequestHandler_RespondWithNotes(t *testing.T) {
	svc, handler := setupHelpRequestHandler(t)

	body := `{"notes":"checked on her by phone, heading over"}`
	req := httptest.NewRequest(http.MethodPost, "/app/api/v1/help-requests/hr-1/respond", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	require.NotNil(t, svc.lastRespond.Notes)
	assert.Equal(t, "checked on her by phone, heading over", *svc.lastRespond.Notes)
}

func TestHelpRequestHandler_ResolveWithNotes(t *testing.T) {
	svc, handler := setupHelpRequestHandler(t)

	body := `{"notes":"all clear, she was gardening"}`
	req := httptest.NewRequest(http.MethodPost, "/app/api/v1/help-requests/hr-1/resolve", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	require.NotNil(t, svc.lastResolve.Notes)
	assert.Equal(t, "all clear, she was gardening", *svc.lastResolve.Notes)
}

func TestHelpRequestHandler_UnknownRouteIs404(t *testing.T) {
	_, handler := setupHelpRequestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/app/api/v1/help-requests/a/b/respond", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
