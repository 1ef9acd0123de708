package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
)

// --- Stubs ---

type batchReaderStub struct {
	batch *models.Batch
	slots []models.BatchSlot
}

func (s batchReaderStub) FindByID(_ context.Context, id string) (*models.Batch, error) {
	if s.batch == nil || s.batch.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.batch, nil
}

func (s batchReaderStub) SlotsByBatch(_ context.Context, _ string) ([]models.BatchSlot, error) {
	return s.slots, nil
}

type enrollmentReaderStub struct {
	enrollment *models.Enrollment
}

func (s enrollmentReaderStub) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	if s.enrollment == nil || s.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.enrollment, nil
}

type templateCacheStub struct {
	sets        int
	invalidated []string
}

func (s *templateCacheStub) GetBatchSlots(_ context.Context, _ string) ([]models.BatchSlot, error) {
	return nil, appErrors.ErrCacheMiss
}

func (s *templateCacheStub) SetBatchSlots(_ context.Context, _ string, _ []models.BatchSlot, _ time.Duration) {
	s.sets++
}

func (s *templateCacheStub) InvalidateBatch(_ context.Context, batchID string) error {
	s.invalidated = append(s.invalidated, batchID)
	return nil
}

// occurrenceRepoStub keeps occurrences in memory. Transactions come from
// a sqlmock database; the stub's mutators ignore the tx handle so tests
// only declare Begin/Commit expectations.
type occurrenceRepoStub struct {
	db       *sqlx.DB
	items    []*models.SessionOccurrence
	purged   bool
	nextID   int
	allTaken bool
}

func (s *occurrenceRepoStub) assignID(occ *models.SessionOccurrence) {
	if occ.ID == "" {
		s.nextID++
		occ.ID = fmt.Sprintf("occ-%d", s.nextID)
	}
}

func (s *occurrenceRepoStub) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, nil)
}

func (s *occurrenceRepoStub) BulkCreateWithTx(_ context.Context, _ *sqlx.Tx, occurrences []*models.SessionOccurrence) error {
	for _, occ := range occurrences {
		s.assignID(occ)
		s.items = append(s.items, occ)
	}
	return nil
}

func (s *occurrenceRepoStub) CreateWithTx(_ context.Context, _ *sqlx.Tx, occ *models.SessionOccurrence) error {
	s.assignID(occ)
	s.items = append(s.items, occ)
	return nil
}

func (s *occurrenceRepoStub) ListByEnrollment(_ context.Context, enrollmentID string) ([]models.SessionOccurrence, error) {
	var out []models.SessionOccurrence
	for _, occ := range s.items {
		if occ.EnrollmentID == enrollmentID {
			out = append(out, *occ)
		}
	}
	return out, nil
}

func (s *occurrenceRepoStub) FindByID(_ context.Context, id string) (*models.SessionOccurrence, error) {
	for _, occ := range s.items {
		if occ.ID == id {
			copied := *occ
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *occurrenceRepoStub) LatestScheduled(_ context.Context, enrollmentID, excludeID string) (*models.SessionOccurrence, error) {
	var latest *models.SessionOccurrence
	for _, occ := range s.items {
		if occ.EnrollmentID != enrollmentID || occ.ID == excludeID || occ.Status != models.SessionStatusScheduled {
			continue
		}
		if latest == nil || occ.ScheduledDate.After(latest.ScheduledDate) {
			latest = occ
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *occurrenceRepoStub) MaxSessionNumber(_ context.Context, enrollmentID string) (int, error) {
	max := 0
	for _, occ := range s.items {
		if occ.EnrollmentID == enrollmentID && occ.SessionNumber > max {
			max = occ.SessionNumber
		}
	}
	return max, nil
}

func (s *occurrenceRepoStub) ExistsScheduledAt(_ context.Context, enrollmentID string, date time.Time, _ string) (bool, error) {
	if s.allTaken {
		return true, nil
	}
	for _, occ := range s.items {
		if occ.EnrollmentID == enrollmentID && occ.Status == models.SessionStatusScheduled && occ.ScheduledDate.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (s *occurrenceRepoStub) MarkPausedWithTx(_ context.Context, _ *sqlx.Tx, id string, reason *string) error {
	for _, occ := range s.items {
		if occ.ID == id {
			occ.Status = models.SessionStatusPaused
			occ.IsPaused = true
			occ.CanPause = false
			occ.PauseReason = reason
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *occurrenceRepoStub) UpdateStatus(_ context.Context, id string, status models.SessionStatus) error {
	for _, occ := range s.items {
		if occ.ID == id {
			occ.Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *occurrenceRepoStub) DeleteByEnrollmentWithTx(_ context.Context, _ *sqlx.Tx, enrollmentID string) error {
	var kept []*models.SessionOccurrence
	for _, occ := range s.items {
		if occ.EnrollmentID != enrollmentID {
			kept = append(kept, occ)
		}
	}
	s.items = kept
	s.purged = true
	return nil
}

type pauseRepoStub struct {
	approved int
	requests []*models.PauseRequest
	nextID   int
}

func (s *pauseRepoStub) CountApproved(_ context.Context, _ string) (int, error) {
	return s.approved, nil
}

func (s *pauseRepoStub) CreateWithTx(_ context.Context, _ *sqlx.Tx, request *models.PauseRequest) error {
	s.nextID++
	request.ID = fmt.Sprintf("pr-%d", s.nextID)
	s.requests = append(s.requests, request)
	return nil
}

func (s *pauseRepoStub) SetRescheduledToWithTx(_ context.Context, _ *sqlx.Tx, id string, date time.Time) error {
	for _, req := range s.requests {
		if req.ID == id {
			req.RescheduledToDate = &date
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *pauseRepoStub) ListByEnrollment(_ context.Context, _ string) ([]models.PauseRequest, error) {
	var out []models.PauseRequest
	for _, req := range s.requests {
		out = append(out, *req)
	}
	return out, nil
}

type notifierStub struct {
	events []Notification
}

func (s *notifierStub) Dispatch(n Notification) {
	s.events = append(s.events, n)
}

// --- Fixture ---

var weekdaySlots = []models.BatchSlot{
	{ID: "slot-1", BatchID: "batch-1", Day: "Monday", StartTime: "18:00", EndTime: "19:30", Position: 1},
	{ID: "slot-2", BatchID: "batch-1", Day: "Wednesday", StartTime: "18:00", EndTime: "19:30", Position: 2},
	{ID: "slot-3", BatchID: "batch-1", Day: "Friday", StartTime: "18:00", EndTime: "19:30", Position: 3},
}

type scheduleFixture struct {
	svc   *ScheduleService
	occ   *occurrenceRepoStub
	cache *templateCacheStub
	mock  sqlmock.Sqlmock
}

func newScheduleFixture(t *testing.T, slots []models.BatchSlot, enrollment *models.Enrollment, now time.Time) *scheduleFixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	occ := &occurrenceRepoStub{db: sqlx.NewDb(db, "sqlmock")}
	cache := &templateCacheStub{}
	batches := batchReaderStub{batch: &models.Batch{ID: "batch-1", Name: "U14 Football Evening", Active: true}, slots: slots}
	svc := NewScheduleService(batches, enrollmentReaderStub{enrollment: enrollment}, occ, cache, nil, SchedulerSettings{}, nil, nil)
	svc.nowFn = func() time.Time { return now }

	return &scheduleFixture{svc: svc, occ: occ, cache: cache, mock: mock}
}

// mustDate builds a local wall-clock instant for assertions.
func mustDate(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.Local)
}
