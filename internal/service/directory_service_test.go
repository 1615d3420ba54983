package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ============================================
// Fake repositories
// ============================================

type fakeUsersRepo struct {
	byIdentity map[string]*domain.UserProfile
	lookupErr  error
}

func (f *fakeUsersRepo) GetProfile(ctx context.Context, accountID, userID string) (*domain.UserProfile, error) {
	for _, p := range f.byIdentity {
		if p.AccountID == accountID && p.UserID == userID {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsersRepo) GetProfileByIdentity(ctx context.Context, identityID string) (*domain.UserProfile, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
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

type fakeInvitationsRepo struct {
	pendingByEmail map[string]*domain.Invitation
	acceptErr      error
	accepted       []string
}

func (f *fakeInvitationsRepo) GetPendingByEmail(ctx context.Context, email string) (*domain.Invitation, error) {
	if inv, ok := f.pendingByEmail[email]; ok {
		return inv, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeInvitationsRepo) ListInvitations(ctx context.Context, accountID string) ([]*domain.Invitation, error) {
	return nil, nil
}

func (f *fakeInvitationsRepo) CreateInvitation(ctx context.Context, inv *domain.Invitation) (string, error) {
	return "inv-new", nil
}

func (f *fakeInvitationsRepo) AcceptInvitation(ctx context.Context, invitationID string, profile *domain.UserProfile) (*domain.UserProfile, error) {
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	f.accepted = append(f.accepted, invitationID)
	inv := f.pendingByEmail[profile.Email]
	profile.UserID = "user-new"
	profile.AccountID = inv.AccountID
	profile.Role = domain.RoleCaregiver
	return profile, nil
}

type fakeAccountsRepo struct {
	created []string
}

func (f *fakeAccountsRepo) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeAccountsRepo) CreateAccountWithAdmin(ctx context.Context, accountName string, admin *domain.UserProfile) (*domain.Account, error) {
	f.created = append(f.created, accountName)
	admin.UserID = "user-new"
	admin.AccountID = "account-new"
	admin.Role = domain.RoleCaregiverAdmin
	return &domain.Account{AccountID: "account-new", AccountName: accountName}, nil
}

func newDirectoryFixture() (*fakeUsersRepo, *fakeInvitationsRepo, *fakeAccountsRepo, DirectoryService) {
	users := &fakeUsersRepo{byIdentity: map[string]*domain.UserProfile{}}
	invitations := &fakeInvitationsRepo{pendingByEmail: map[string]*domain.Invitation{}}
	accounts := &fakeAccountsRepo{}
	svc := NewDirectoryService(users, invitations, accounts, zap.NewNop())
	return users, invitations, accounts, svc
}

// ============================================
// Resolve
// ============================================

func TestResolve_ProfileFound(t *testing.T) {
	users, _, _, svc := newDirectoryFixture()
	users.byIdentity["google:sub-1"] = &domain.UserProfile{
		UserID:      "user-1",
		AccountID:   "account-1",
		IdentityID:  "google:sub-1",
		DisplayName: "Alex",
		Role:        domain.RoleCaregiverAdmin,
	}

	resp, err := svc.Resolve(context.Background(), ResolveRequest{
		IdentityID: "google:sub-1",
		Email:      "alex@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProfileFound, resp.Outcome)
	assert.False(t, resp.NeedsOnboarding)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "user-1", resp.Profile.UserID)
}

func TestResolve_ProfileWithoutDisplayNameNeedsOnboarding(t *testing.T) {
	users, _, _, svc := newDirectoryFixture()
	users.byIdentity["google:sub-1"] = &domain.UserProfile{
		UserID:     "user-1",
		AccountID:  "account-1",
		IdentityID: "google:sub-1",
	}

	resp, err := svc.Resolve(context.Background(), ResolveRequest{
		IdentityID: "google:sub-1",
		Email:      "alex@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProfileFound, resp.Outcome)
	assert.True(t, resp.NeedsOnboarding)
}

func TestResolve_PendingInvitation(t *testing.T) {
	_, invitations, _, svc := newDirectoryFixture()
	invitations.pendingByEmail["carer@example.com"] = &domain.Invitation{
		InvitationID: "inv-1",
		AccountID:    "account-1",
		Email:        "carer@example.com",
		Status:       domain.InvitationPending,
		ExpiresAt:    time.Now().UTC().Add(24 * time.Hour),
	}

	resp, err := svc.Resolve(context.Background(), ResolveRequest{
		IdentityID: "google:sub-2",
		Email:      "carer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOnboardCaregiver, resp.Outcome)
	assert.True(t, resp.NeedsOnboarding)
	require.NotNil(t, resp.PendingInvitation)
	assert.Equal(t, "inv-1", resp.PendingInvitation.InvitationID)
}

func TestResolve_UnknownIdentityIsNewAdmin(t *testing.T) {
	_, _, _, svc := newDirectoryFixture()

	resp, err := svc.Resolve(context.Background(), ResolveRequest{
		IdentityID: "apple:sub-9",
		Email:      "new@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOnboardAdmin, resp.Outcome)
	assert.True(t, resp.NeedsOnboarding)
	assert.Nil(t, resp.Profile)
}

func TestResolve_LookupFailureFallsOpenToOnboarding(t *testing.T) {
	users, _, _, svc := newDirectoryFixture()
	users.lookupErr = errors.New("connection refused")

	resp, err := svc.Resolve(context.Background(), ResolveRequest{
		IdentityID: "google:sub-1",
		Email:      "alex@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOnboardAdmin, resp.Outcome)
}

func TestResolve_Validation(t *testing.T) {
	_, _, _, svc := newDirectoryFixture()

	_, err := svc.Resolve(context.Background(), ResolveRequest{Email: "a@b.com"})
	assert.EqualError(t, err, "identity_id is required")

	_, err = svc.Resolve(context.Background(), ResolveRequest{IdentityID: "google:sub-1"})
	assert.EqualError(t, err, "email is required")
}

// ============================================
// CompleteSetup
// ============================================

func TestCompleteSetup_ConsumesInvitation(t *testing.T) {
	_, invitations, accounts, svc := newDirectoryFixture()
	invitations.pendingByEmail["carer@example.com"] = &domain.Invitation{
		InvitationID: "inv-1",
		AccountID:    "account-1",
		Email:        "carer@example.com",
		Status:       domain.InvitationPending,
		ExpiresAt:    time.Now().UTC().Add(24 * time.Hour),
	}

	resp, err := svc.CompleteSetup(context.Background(), CompleteSetupRequest{
		IdentityID:  "google:sub-2",
		Email:       "carer@example.com",
		DisplayName: "Pat",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-1"}, invitations.accepted)
	assert.Equal(t, "account-1", resp.Profile.AccountID)
	assert.Equal(t, domain.RoleCaregiver, resp.Profile.Role)
	assert.Empty(t, accounts.created, "no new account when joining via invitation")
}

func TestCompleteSetup_NewAdminAccount(t *testing.T) {
	_, _, accounts, svc := newDirectoryFixture()

	resp, err := svc.CompleteSetup(context.Background(), CompleteSetupRequest{
		IdentityID:  "google:sub-3",
		Email:       "new@example.com",
		DisplayName: "Sam",
	})
	require.NoError(t, err)
	// 账户名缺省取 display_name
	assert.Equal(t, []string{"Sam"}, accounts.created)
	assert.Equal(t, "account-new", resp.Profile.AccountID)
	assert.Equal(t, domain.RoleCaregiverAdmin, resp.Profile.Role)
}

func TestCompleteSetup_InvitationExpiredBetweenResolveAndSubmit(t *testing.T) {
	_, invitations, accounts, svc := newDirectoryFixture()
	invitations.pendingByEmail["carer@example.com"] = &domain.Invitation{
		InvitationID: "inv-1",
		AccountID:    "account-1",
		Email:        "carer@example.com",
	}
	invitations.acceptErr = domain.ErrInvitationExpired

	resp, err := svc.CompleteSetup(context.Background(), CompleteSetupRequest{
		IdentityID:  "google:sub-2",
		Email:       "carer@example.com",
		DisplayName: "Pat",
	})
	require.NoError(t, err)
	// 邀请失效后落入新 admin 路径
	assert.Equal(t, []string{"Pat"}, accounts.created)
	assert.Equal(t, domain.RoleCaregiverAdmin, resp.Profile.Role)
}

func TestCompleteSetup_Idempotent(t *testing.T) {
	users, _, accounts, svc := newDirectoryFixture()
	users.byIdentity["google:sub-1"] = &domain.UserProfile{
		UserID:      "user-1",
		AccountID:   "account-1",
		IdentityID:  "google:sub-1",
		DisplayName: "Alex",
	}

	resp, err := svc.CompleteSetup(context.Background(), CompleteSetupRequest{
		IdentityID:  "google:sub-1",
		Email:       "alex@example.com",
		DisplayName: "Alex Again",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.Profile.UserID)
	assert.Empty(t, accounts.created)
}
