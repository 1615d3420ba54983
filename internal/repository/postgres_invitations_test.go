package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupInvitationsMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresInvitationsRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresInvitationsRepo(db)
}

func TestGetPendingByEmail_NotFound(t *testing.T) {
	db, mock, repo := setupInvitationsMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM invitations`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPendingByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateInvitation_SetsExpiry(t *testing.T) {
	db, mock, repo := setupInvitationsMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO invitations`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inv := &domain.Invitation{
		AccountID: "account-1",
		Email:     "carer@example.com",
		InvitedBy: "admin-1",
	}
	before := time.Now().UTC()
	id, err := repo.CreateInvitation(context.Background(), inv)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, domain.InvitationPending, inv.Status)
	// expires_at = created_at + 7 天
	assert.WithinDuration(t, before.Add(domain.InvitationTTL), inv.ExpiresAt, time.Minute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptInvitation_Success(t *testing.T) {
	db, mock, repo := setupInvitationsMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT account_id::text, status, expires_at`).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "status", "expires_at"}).
			AddRow("account-1", domain.InvitationPending, time.Now().UTC().Add(24*time.Hour)))
	mock.ExpectExec(`INSERT INTO user_profiles`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE invitations SET status = 'accepted'`).
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	profile := &domain.UserProfile{
		IdentityID:  "google:sub-1",
		Email:       "carer@example.com",
		DisplayName: "Pat",
	}
	created, err := repo.AcceptInvitation(context.Background(), "inv-1", profile)
	require.NoError(t, err)
	// 档案加入邀请人的账户，角色为普通 caregiver
	assert.Equal(t, "account-1", created.AccountID)
	assert.Equal(t, domain.RoleCaregiver, created.Role)
	assert.NotEmpty(t, created.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptInvitation_Expired(t *testing.T) {
	db, mock, repo := setupInvitationsMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT account_id::text, status, expires_at`).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "status", "expires_at"}).
			AddRow("account-1", domain.InvitationPending, time.Now().UTC().Add(-time.Hour)))
	mock.ExpectRollback()

	profile := &domain.UserProfile{IdentityID: "google:sub-1", Email: "carer@example.com"}
	_, err := repo.AcceptInvitation(context.Background(), "inv-1", profile)
	require.ErrorIs(t, err, domain.ErrInvitationExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptInvitation_AlreadyAccepted(t *testing.T) {
	db, mock, repo := setupInvitationsMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT account_id::text, status, expires_at`).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "status", "expires_at"}).
			AddRow("account-1", domain.InvitationAccepted, time.Now().UTC().Add(24*time.Hour)))
	mock.ExpectRollback()

	profile := &domain.UserProfile{IdentityID: "google:sub-2", Email: "carer@example.com"}
	_, err := repo.AcceptInvitation(context.Background(), "inv-1", profile)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
