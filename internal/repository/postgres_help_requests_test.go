package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/realtime"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupHelpRequestsMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresHelpRequestsRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresHelpRequestsRepo(db, realtime.NopPublisher{}, zap.NewNop())
	return db, mock, repo
}

var helpRequestCols = []string{
	"request_id", "account_id", "wearer_id", "device_id",
	"request_type", "status", "latitude", "longitude",
	"notes", "responder_id",
	"created_at", "responded_at", "resolved_at", "updated_at",
}

func helpRequestRow(requestID, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(helpRequestCols).
		AddRow(requestID, "account-1", "wearer-1", nil,
			domain.RequestTypeFallDetected, status, nil, nil,
			nil, nil, now, nil, nil, now)
}

func TestTransition_RespondSuccess(t *testing.T) {
	db, mock, repo := setupHelpRequestsMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE help_requests`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// 迁移成功后的回查（变更事件 payload）
	mock.ExpectQuery(`FROM help_requests h`).
		WithArgs("account-1", "req-1").
		WillReturnRows(helpRequestRow("req-1", domain.HelpRequestRespondedTo))

	err := repo.Transition(context.Background(), "account-1", "req-1", HelpRequestTransition{
		ToStatus:    domain.HelpRequestRespondedTo,
		ResponderID: "user-1",
		At:          time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition_RespondRequiresResponder(t *testing.T) {
	db, _, repo := setupHelpRequestsMock(t)
	defer db.Close()

	err := repo.Transition(context.Background(), "account-1", "req-1", HelpRequestTransition{
		ToStatus: domain.HelpRequestRespondedTo,
	})
	require.Error(t, err)
}

func TestTransition_TerminalIsImmutable(t *testing.T) {
	db, mock, repo := setupHelpRequestsMock(t)
	defer db.Close()

	// 守卫未命中：行存在但已是终态
	mock.ExpectExec(`UPDATE help_requests`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM help_requests h`).
		WithArgs("account-1", "req-1").
		WillReturnRows(helpRequestRow("req-1", domain.HelpRequestResolved))

	err := repo.Transition(context.Background(), "account-1", "req-1", HelpRequestTransition{
		ToStatus:    domain.HelpRequestRespondedTo,
		ResponderID: "user-2",
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition_NotFound(t *testing.T) {
	db, mock, repo := setupHelpRequestsMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE help_requests`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM help_requests h`).
		WithArgs("account-1", "missing").
		WillReturnError(sql.ErrNoRows)

	err := repo.Transition(context.Background(), "account-1", "missing", HelpRequestTransition{
		ToStatus: domain.HelpRequestResolved,
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransition_InvalidTargetStatus(t *testing.T) {
	db, _, repo := setupHelpRequestsMock(t)
	defer db.Close()

	// active 不是合法迁移目标（没有回到 active 的路径）
	err := repo.Transition(context.Background(), "account-1", "req-1", HelpRequestTransition{
		ToStatus: domain.HelpRequestActive,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestListActive(t *testing.T) {
	db, mock, repo := setupHelpRequestsMock(t)
	defer db.Close()

	now := time.Now().UTC()
	cols := append(append([]string{}, helpRequestCols...), "wearer_name")
	rows := sqlmock.NewRows(cols).
		AddRow("req-2", "account-1", "wearer-1", nil, domain.RequestTypeManual,
			domain.HelpRequestActive, nil, nil, nil, nil, now, nil, nil, now, "Grandma").
		AddRow("req-1", "account-1", "wearer-2", "device-1", domain.RequestTypeFallDetected,
			domain.HelpRequestActive, 51.5, -0.12, nil, nil, now.Add(-time.Hour), nil, nil, now, "Grandpa")

	mock.ExpectQuery(`JOIN wearers w`).
		WithArgs("account-1").
		WillReturnRows(rows)

	requests, err := repo.ListActive(context.Background(), "account-1")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "Grandma", requests[0].WearerName)
	assert.Equal(t, "Grandpa", requests[1].WearerName)
	assert.True(t, requests[1].Latitude.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHelpRequest_ForcesActive(t *testing.T) {
	db, mock, repo := setupHelpRequestsMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO help_requests`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &domain.HelpRequest{
		AccountID:   "account-1",
		WearerID:    "wearer-1",
		RequestType: domain.RequestTypeManual,
		Status:      domain.HelpRequestResolved, // 外部传入的状态被忽略
	}
	id, err := repo.CreateHelpRequest(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, domain.HelpRequestActive, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
