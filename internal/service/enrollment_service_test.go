package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
)

type enrollmentStoreStub struct {
	created *models.Enrollment
	deleted []string
	details map[string]*models.EnrollmentDetail
}

func (s *enrollmentStoreStub) List(_ context.Context, _ models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, d := range s.details {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (s *enrollmentStoreStub) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	if s.created != nil && s.created.ID == id {
		return s.created, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentStoreStub) FindDetailByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	d, ok := s.details[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

func (s *enrollmentStoreStub) Create(_ context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-new"
	s.created = enrollment
	return nil
}

func (s *enrollmentStoreStub) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *enrollmentStoreStub) UpdateStatus(_ context.Context, _ string, status models.EnrollmentStatus) error {
	if s.created != nil {
		s.created.Status = status
	}
	return nil
}

type scheduleGeneratorStub struct {
	generated []models.SessionOccurrence
	extendErr error
	genErr    error
	lastGen   GenerateScheduleRequest
}

func (s *scheduleGeneratorStub) GenerateSchedule(_ context.Context, req GenerateScheduleRequest) ([]models.SessionOccurrence, error) {
	s.lastGen = req
	if s.genErr != nil {
		return nil, s.genErr
	}
	return s.generated, nil
}

func (s *scheduleGeneratorStub) ExtendSchedule(_ context.Context, req ExtendScheduleRequest) ([]models.SessionOccurrence, error) {
	if s.extendErr != nil {
		return nil, s.extendErr
	}
	out := make([]models.SessionOccurrence, req.AdditionalSessions)
	return out, nil
}

func TestEnrollmentCreateGeneratesSchedule(t *testing.T) {
	repo := &enrollmentStoreStub{}
	generator := &scheduleGeneratorStub{generated: make([]models.SessionOccurrence, 12)}
	notifier := &notifierStub{}
	svc := NewEnrollmentService(repo, generator, notifier, nil, nil)

	enrollment, occurrences, err := svc.Create(context.Background(), CreateEnrollmentRequest{
		StudentID:     "stu-1",
		BatchID:       "batch-1",
		SessionsTotal: 12,
		StartDate:     mustDate(2026, time.March, 2, 0, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "enr-new", enrollment.ID)
	assert.Len(t, occurrences, 12)
	assert.Equal(t, "enr-new", generator.lastGen.EnrollmentID)
	assert.Equal(t, 12, generator.lastGen.SessionsTotal)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, NotifyScheduleGenerated, notifier.events[0].Type)
}

func TestEnrollmentCreateRollsBackOnGenerationFailure(t *testing.T) {
	repo := &enrollmentStoreStub{}
	generator := &scheduleGeneratorStub{genErr: appErrors.Clone(appErrors.ErrEmptyTemplate, "batch template has no usable slots")}
	svc := NewEnrollmentService(repo, generator, nil, nil, nil)

	_, _, err := svc.Create(context.Background(), CreateEnrollmentRequest{
		StudentID:     "stu-1",
		BatchID:       "batch-1",
		SessionsTotal: 12,
		StartDate:     mustDate(2026, time.March, 2, 0, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptyTemplate.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{"enr-new"}, repo.deleted)
}

func TestEnrollmentCreateValidatesPayload(t *testing.T) {
	svc := NewEnrollmentService(&enrollmentStoreStub{}, &scheduleGeneratorStub{}, nil, nil, nil)

	_, _, err := svc.Create(context.Background(), CreateEnrollmentRequest{
		StudentID: "stu-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentTopUpDispatchesNotification(t *testing.T) {
	notifier := &notifierStub{}
	svc := NewEnrollmentService(&enrollmentStoreStub{}, &scheduleGeneratorStub{}, notifier, nil, nil)

	occurrences, err := svc.TopUp(context.Background(), "enr-1", TopUpEnrollmentRequest{AdditionalSessions: 4})
	require.NoError(t, err)
	assert.Len(t, occurrences, 4)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, NotifyScheduleExtended, notifier.events[0].Type)
}

func TestEnrollmentGetNotFound(t *testing.T) {
	svc := NewEnrollmentService(&enrollmentStoreStub{}, &scheduleGeneratorStub{}, nil, nil, nil)

	_, err := svc.Get(context.Background(), "enr-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
