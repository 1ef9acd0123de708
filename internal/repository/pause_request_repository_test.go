package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coach-enroll-api/internal/models"
)

func TestPauseRequestRepositoryCountApproved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPauseRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pause_requests")).
		WithArgs("enr-1", models.PauseRequestStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountApproved(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPauseRequestRepositoryCreateWithTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	occRepo := NewSessionOccurrenceRepository(db)
	repo := NewPauseRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pause_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := occRepo.BeginTx(context.Background())
	require.NoError(t, err)

	request := &models.PauseRequest{
		EnrollmentID:        "enr-1",
		SessionOccurrenceID: "occ-1",
		RequestedAt:         time.Now(),
		SessionDate:         time.Now().Add(24 * time.Hour),
		Status:              models.PauseRequestStatusApproved,
		PausesUsed:          1,
	}
	require.NoError(t, repo.CreateWithTx(context.Background(), tx, request))
	require.NoError(t, tx.Commit())
	require.NotEmpty(t, request.ID)
	require.False(t, request.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPauseRequestRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPauseRequestRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "session_occurrence_id", "requested_at", "session_date", "reason", "status", "pauses_used", "rescheduled_to_date", "created_at"}).
		AddRow("pr-2", "enr-1", "occ-5", time.Now(), time.Now(), nil, models.PauseRequestStatusApproved, 2, time.Now(), time.Now()).
		AddRow("pr-1", "enr-1", "occ-2", time.Now().Add(-48*time.Hour), time.Now(), nil, models.PauseRequestStatusApproved, 1, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM pause_requests WHERE enrollment_id = $1 ORDER BY requested_at DESC")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	requests, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.Equal(t, 2, requests[0].PausesUsed)
	require.Nil(t, requests[1].RescheduledToDate)
	require.NoError(t, mock.ExpectationsWereMet())
}
