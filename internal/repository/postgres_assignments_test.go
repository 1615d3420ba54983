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

func setupAssignmentsMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresAssignmentsRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresAssignmentsRepo(db)
}

func TestCreateAssignment_New(t *testing.T) {
	db, mock, repo := setupAssignmentsMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO caregiver_assignments`).
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id"}).AddRow("assignment-1"))

	id, err := repo.CreateAssignment(context.Background(), &domain.Assignment{
		AccountID: "account-1",
		WearerID:  "wearer-1",
		UserID:    "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "assignment-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignment_DuplicateIsIdempotent(t *testing.T) {
	db, mock, repo := setupAssignmentsMock(t)
	defer db.Close()

	// ON CONFLICT DO NOTHING：RETURNING 无行，回查既有分配
	mock.ExpectQuery(`INSERT INTO caregiver_assignments`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT assignment_id::text FROM caregiver_assignments`).
		WithArgs("wearer-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id"}).AddRow("existing-1"))

	id, err := repo.CreateAssignment(context.Background(), &domain.Assignment{
		AccountID: "account-1",
		WearerID:  "wearer-1",
		UserID:    "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAssigned_MissingProfileIsBlank(t *testing.T) {
	db, mock, repo := setupAssignmentsMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"assignment_id", "account_id", "wearer_id", "user_id",
		"relationship", "is_primary", "is_emergency_contact", "created_at",
		"email", "display_name", "role",
	}).
		AddRow("a-1", "account-1", "wearer-1", "user-1", "family", true, false, now,
			"carer@example.com", "Pat", "caregiver").
		// 档案已被移除：COALESCE 产生空字段而不是报错
		AddRow("a-2", "account-1", "wearer-1", "user-gone", "nurse", false, true, now,
			"", "", "")

	mock.ExpectQuery(`FROM caregiver_assignments a`).
		WithArgs("account-1", "wearer-1").
		WillReturnRows(rows)

	assignments, err := repo.ListAssigned(context.Background(), "account-1", "wearer-1")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "Pat", assignments[0].CaregiverDisplayName)
	assert.Empty(t, assignments[1].CaregiverDisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAssignment_NotFound(t *testing.T) {
	db, mock, repo := setupAssignmentsMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM caregiver_assignments`).
		WithArgs("account-1", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteAssignment(context.Background(), "account-1", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
