package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
)

func TestGenerateScheduleTwelveSessionsOverFourWeeks(t *testing.T) {
	// 2026-03-02 is a Monday.
	now := mustDate(2026, time.March, 1, 12, 0)
	fix := newScheduleFixture(t, weekdaySlots, nil, now)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	occurrences, err := fix.svc.GenerateSchedule(context.Background(), GenerateScheduleRequest{
		EnrollmentID:  "enr-1",
		BatchID:       "batch-1",
		SessionsTotal: 12,
		StartDate:     mustDate(2026, time.March, 2, 0, 0),
	})
	require.NoError(t, err)
	require.Len(t, occurrences, 12)

	for i, occ := range occurrences {
		assert.Equal(t, i+1, occ.SessionNumber)
		assert.Equal(t, "18:00", occ.StartTime)
		assert.Equal(t, "19:30", occ.EndTime)
		assert.Equal(t, models.SessionStatusScheduled, occ.Status)
		assert.True(t, occ.CanPause)
	}
	assert.Equal(t, mustDate(2026, time.March, 2, 18, 0), occurrences[0].ScheduledDate)
	assert.Equal(t, mustDate(2026, time.March, 4, 18, 0), occurrences[1].ScheduledDate)
	assert.Equal(t, mustDate(2026, time.March, 6, 18, 0), occurrences[2].ScheduledDate)
	assert.Equal(t, mustDate(2026, time.March, 27, 18, 0), occurrences[11].ScheduledDate)
	assert.Equal(t, 1, fix.cache.sets)
	assert.NoError(t, fix.mock.ExpectationsWereMet())
}

func TestGenerateScheduleBumpsPassedStartDaySlot(t *testing.T) {
	// Enrollment lands on Monday evening after the 18:00 session began;
	// the Monday slot moves a week out while Wednesday and Friday stay.
	now := mustDate(2026, time.March, 2, 19, 0)
	fix := newScheduleFixture(t, weekdaySlots, nil, now)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	occurrences, err := fix.svc.GenerateSchedule(context.Background(), GenerateScheduleRequest{
		EnrollmentID:  "enr-1",
		BatchID:       "batch-1",
		SessionsTotal: 3,
		StartDate:     mustDate(2026, time.March, 2, 0, 0),
	})
	require.NoError(t, err)
	require.Len(t, occurrences, 3)
	assert.Equal(t, mustDate(2026, time.March, 9, 18, 0), occurrences[0].ScheduledDate)
	assert.Equal(t, mustDate(2026, time.March, 4, 18, 0), occurrences[1].ScheduledDate)
	assert.Equal(t, mustDate(2026, time.March, 6, 18, 0), occurrences[2].ScheduledDate)
}

func TestGenerateScheduleEmptyTemplateFailsWithoutPersisting(t *testing.T) {
	now := mustDate(2026, time.March, 1, 12, 0)
	fix := newScheduleFixture(t, []models.BatchSlot{
		{ID: "slot-1", BatchID: "batch-1", Day: "Funday", StartTime: "18:00", EndTime: "19:30"},
	}, nil, now)

	_, err := fix.svc.GenerateSchedule(context.Background(), GenerateScheduleRequest{
		EnrollmentID:  "enr-1",
		BatchID:       "batch-1",
		SessionsTotal: 4,
		StartDate:     mustDate(2026, time.March, 2, 0, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptyTemplate.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fix.occ.items)
}

func TestGenerateScheduleSkipsUnknownWeekday(t *testing.T) {
	now := mustDate(2026, time.March, 1, 12, 0)
	slots := []models.BatchSlot{
		{ID: "slot-1", BatchID: "batch-1", Day: "Smonday", StartTime: "18:00", EndTime: "19:30", Position: 1},
		{ID: "slot-2", BatchID: "batch-1", Day: "wednesday", StartTime: "17:30", EndTime: "19:00", Position: 2},
	}
	fix := newScheduleFixture(t, slots, nil, now)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	occurrences, err := fix.svc.GenerateSchedule(context.Background(), GenerateScheduleRequest{
		EnrollmentID:  "enr-1",
		BatchID:       "batch-1",
		SessionsTotal: 2,
		StartDate:     mustDate(2026, time.March, 2, 0, 0),
	})
	require.NoError(t, err)
	require.Len(t, occurrences, 2)
	assert.Equal(t, mustDate(2026, time.March, 4, 17, 30), occurrences[0].ScheduledDate)
	assert.Equal(t, mustDate(2026, time.March, 11, 17, 30), occurrences[1].ScheduledDate)
}

func TestGenerateScheduleZeroSessionsReturnsEmpty(t *testing.T) {
	fix := newScheduleFixture(t, weekdaySlots, nil, mustDate(2026, time.March, 1, 12, 0))

	occurrences, err := fix.svc.GenerateSchedule(context.Background(), GenerateScheduleRequest{
		EnrollmentID:  "enr-1",
		BatchID:       "batch-1",
		SessionsTotal: 0,
		StartDate:     mustDate(2026, time.March, 2, 0, 0),
	})
	require.NoError(t, err)
	assert.Empty(t, occurrences)
	assert.Empty(t, fix.occ.items)
}

func TestGenerateScheduleUnknownBatch(t *testing.T) {
	fix := newScheduleFixture(t, weekdaySlots, nil, mustDate(2026, time.March, 1, 12, 0))

	_, err := fix.svc.GenerateSchedule(context.Background(), GenerateScheduleRequest{
		EnrollmentID:  "enr-1",
		BatchID:       "batch-9",
		SessionsTotal: 4,
		StartDate:     mustDate(2026, time.March, 2, 0, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExtendScheduleContinuesNumberingAndDates(t *testing.T) {
	now := mustDate(2026, time.March, 1, 12, 0)
	enrollment := &models.Enrollment{ID: "enr-1", BatchID: "batch-1", SessionsTotal: 3, StartDate: mustDate(2026, time.March, 2, 0, 0)}
	fix := newScheduleFixture(t, weekdaySlots, enrollment, now)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	seed := []*models.SessionOccurrence{
		{ID: "occ-a", EnrollmentID: "enr-1", BatchID: "batch-1", SessionNumber: 1, ScheduledDate: mustDate(2026, time.March, 2, 18, 0), Status: models.SessionStatusCompleted},
		{ID: "occ-b", EnrollmentID: "enr-1", BatchID: "batch-1", SessionNumber: 2, ScheduledDate: mustDate(2026, time.March, 4, 18, 0), Status: models.SessionStatusScheduled},
		{ID: "occ-c", EnrollmentID: "enr-1", BatchID: "batch-1", SessionNumber: 3, ScheduledDate: mustDate(2026, time.March, 6, 18, 0), Status: models.SessionStatusScheduled},
	}
	fix.occ.items = seed

	occurrences, err := fix.svc.ExtendSchedule(context.Background(), ExtendScheduleRequest{
		EnrollmentID:       "enr-1",
		AdditionalSessions: 2,
	})
	require.NoError(t, err)
	require.Len(t, occurrences, 2)
	assert.Equal(t, 4, occurrences[0].SessionNumber)
	assert.Equal(t, 5, occurrences[1].SessionNumber)
	assert.Equal(t, mustDate(2026, time.March, 9, 18, 0), occurrences[0].ScheduledDate)
	assert.Equal(t, mustDate(2026, time.March, 11, 18, 0), occurrences[1].ScheduledDate)
	assert.Len(t, fix.occ.items, 5)
}

func TestExtendScheduleWithoutOccurrencesUsesAnchor(t *testing.T) {
	now := mustDate(2026, time.March, 1, 12, 0)
	enrollment := &models.Enrollment{ID: "enr-1", BatchID: "batch-1", SessionsTotal: 0, StartDate: mustDate(2026, time.March, 2, 0, 0)}
	fix := newScheduleFixture(t, weekdaySlots, enrollment, now)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	occurrences, err := fix.svc.ExtendSchedule(context.Background(), ExtendScheduleRequest{
		EnrollmentID:       "enr-1",
		AdditionalSessions: 1,
		AnchorDate:         mustDate(2026, time.March, 16, 0, 0),
	})
	require.NoError(t, err)
	require.Len(t, occurrences, 1)
	assert.Equal(t, 1, occurrences[0].SessionNumber)
	assert.Equal(t, mustDate(2026, time.March, 16, 18, 0), occurrences[0].ScheduledDate)
}

func TestRegenerateReplacesAllOccurrences(t *testing.T) {
	now := mustDate(2026, time.March, 1, 12, 0)
	enrollment := &models.Enrollment{ID: "enr-1", BatchID: "batch-1", SessionsTotal: 6, StartDate: mustDate(2026, time.March, 2, 0, 0)}
	fix := newScheduleFixture(t, weekdaySlots, enrollment, now)

	fix.occ.items = []*models.SessionOccurrence{
		{ID: "occ-old", EnrollmentID: "enr-1", BatchID: "batch-1", SessionNumber: 1, ScheduledDate: mustDate(2026, time.February, 2, 18, 0), Status: models.SessionStatusScheduled},
	}

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	occurrences, err := fix.svc.Regenerate(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, occurrences, 6)
	assert.True(t, fix.occ.purged)
	assert.Len(t, fix.occ.items, 6)
	assert.Equal(t, 1, occurrences[0].SessionNumber)
	assert.Equal(t, mustDate(2026, time.March, 2, 18, 0), occurrences[0].ScheduledDate)
	assert.Equal(t, []string{"batch-1"}, fix.cache.invalidated)
}

func TestListOccurrencesComputesLiveEligibility(t *testing.T) {
	now := mustDate(2026, time.March, 4, 17, 0)
	fix := newScheduleFixture(t, weekdaySlots, nil, now)

	fix.occ.items = []*models.SessionOccurrence{
		// Stored snapshot says pausable, but start is under two hours away.
		{ID: "occ-1", EnrollmentID: "enr-1", SessionNumber: 1, ScheduledDate: mustDate(2026, time.March, 4, 18, 0), Status: models.SessionStatusScheduled, CanPause: true},
		// Stored snapshot is stale the other way.
		{ID: "occ-2", EnrollmentID: "enr-1", SessionNumber: 2, ScheduledDate: mustDate(2026, time.March, 6, 18, 0), Status: models.SessionStatusScheduled, CanPause: false},
		{ID: "occ-3", EnrollmentID: "enr-1", SessionNumber: 3, ScheduledDate: mustDate(2026, time.March, 9, 18, 0), Status: models.SessionStatusPaused, CanPause: false},
	}

	views, err := fix.svc.ListOccurrences(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.False(t, views[0].Pausable)
	assert.True(t, views[1].Pausable)
	assert.False(t, views[2].Pausable, "paused occurrences are never pausable again")
}
