package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
)

type pauseRepository interface {
	CountApproved(ctx context.Context, enrollmentID string) (int, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, request *models.PauseRequest) error
	SetRescheduledToWithTx(ctx context.Context, tx *sqlx.Tx, id string, date time.Time) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PauseRequest, error)
}

// PauseSessionRequest describes a student pause request.
type PauseSessionRequest struct {
	EnrollmentID        string  `json:"enrollment_id" validate:"required"`
	SessionOccurrenceID string  `json:"session_occurrence_id" validate:"required"`
	Reason              *string `json:"reason,omitempty"`
}

// PauseService validates pause requests against the cutoff and quota,
// marks the paused occurrence and relocates it to the next free slot.
type PauseService struct {
	schedules   *ScheduleService
	occurrences occurrenceRepository
	pauses      pauseRepository
	metrics     *MetricsService
	notifier    notificationDispatcher
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPauseService constructs PauseService.
func NewPauseService(schedules *ScheduleService, occurrences occurrenceRepository, pauses pauseRepository, metrics *MetricsService, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger) *PauseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PauseService{
		schedules:   schedules,
		occurrences: occurrences,
		pauses:      pauses,
		metrics:     metrics,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
	}
}

// RequestPause pauses one occurrence. Preconditions are checked in
// order: the occurrence must exist and still be scheduled, the live
// cutoff must not have passed, and the enrollment must have quota left.
// On success the pause record, the occurrence flip and the reschedule
// all commit as one transaction.
func (s *PauseService) RequestPause(ctx context.Context, req PauseSessionRequest) (*models.PauseRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pause request")
	}

	unlock := s.schedules.locks.Lock(req.EnrollmentID)
	defer unlock()

	occ, err := s.occurrences.FindByID(ctx, req.SessionOccurrenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session occurrence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
	if occ.EnrollmentID != req.EnrollmentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session occurrence not found")
	}
	if occ.Status != models.SessionStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only scheduled sessions can be paused")
	}

	if !s.schedules.isPausable(occ.ScheduledDate) {
		return nil, appErrors.Clone(appErrors.ErrPauseTooLate, "too late to pause this session")
	}

	used, err := s.pauses.CountApproved(ctx, req.EnrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pauses")
	}
	if used >= s.schedules.settings.PauseQuota {
		return nil, appErrors.Clone(appErrors.ErrPauseQuotaExceeded, "pause quota exhausted for this enrollment")
	}

	template, err := s.schedules.loadTemplate(ctx, occ.BatchID)
	if err != nil {
		return nil, err
	}

	replacementDate, replacement, err := s.findReplacementSlot(ctx, occ, template)
	if err != nil {
		return nil, err
	}

	now := s.schedules.nowFn()
	request := &models.PauseRequest{
		EnrollmentID:        req.EnrollmentID,
		SessionOccurrenceID: occ.ID,
		RequestedAt:         now,
		SessionDate:         occ.ScheduledDate,
		Reason:              req.Reason,
		Status:              models.PauseRequestStatusApproved,
		PausesUsed:          used + 1,
	}

	tx, err := s.occurrences.BeginTx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.pauses.CreateWithTx(ctx, tx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record pause")
	}
	if err := s.occurrences.MarkPausedWithTx(ctx, tx, occ.ID, req.Reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pause occurrence")
	}
	if replacement != nil {
		if err := s.occurrences.CreateWithTx(ctx, tx, replacement); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create replacement occurrence")
		}
		if err := s.pauses.SetRescheduledToWithTx(ctx, tx, request.ID, replacementDate); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record reschedule date")
		}
		request.RescheduledToDate = &replacementDate
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit pause")
	}

	s.metrics.RecordPauseApproved()
	if s.notifier != nil {
		data := map[string]interface{}{
			"session_number": occ.SessionNumber,
			"session_date":   occ.ScheduledDate,
		}
		if replacement != nil {
			data["rescheduled_to"] = replacementDate
		}
		s.notifier.Dispatch(Notification{
			Type:         NotifyPauseApproved,
			EnrollmentID: req.EnrollmentID,
			Data:         data,
		})
	}
	if replacement == nil {
		s.metrics.RecordRescheduleExhausted()
		s.logger.Warn("pause approved without replacement slot",
			zap.String("enrollment_id", req.EnrollmentID),
			zap.String("occurrence_id", occ.ID),
			zap.Int("horizon_days", s.schedules.settings.RescheduleHorizonDays))
	} else {
		s.logger.Info("pause approved",
			zap.String("enrollment_id", req.EnrollmentID),
			zap.String("occurrence_id", occ.ID),
			zap.Time("rescheduled_to", replacementDate))
	}
	return request, nil
}

// findReplacementSlot scans forward day by day for the next template
// slot with no scheduled occurrence at its instant. The scan starts one
// day after the enrollment's latest still-scheduled occurrence, not
// after the paused one, so in-flight pauses keep appending rather than
// filling earlier gaps. Returns a nil occurrence when the horizon is
// exhausted.
func (s *PauseService) findReplacementSlot(ctx context.Context, paused *models.SessionOccurrence, template []templateSlot) (time.Time, *models.SessionOccurrence, error) {
	latest, err := s.occurrences.LatestScheduled(ctx, paused.EnrollmentID, paused.ID)
	if err != nil {
		return time.Time{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read latest occurrence")
	}

	base := paused.ScheduledDate
	if latest != nil {
		base = latest.ScheduledDate
	}
	start := dateOnly(base).AddDate(0, 0, 1)
	if today := dateOnly(s.schedules.nowFn()); start.Before(today) {
		start = today
	}

	for d := 0; d < s.schedules.settings.RescheduleHorizonDays; d++ {
		candidate := start.AddDate(0, 0, d)
		weekday := int(candidate.Weekday())
		for _, entry := range template {
			if entry.day != weekday {
				continue
			}
			instant := combineDateTime(candidate, entry.hour, entry.minute)
			taken, err := s.occurrences.ExistsScheduledAt(ctx, paused.EnrollmentID, instant, entry.slot.StartTime)
			if err != nil {
				return time.Time{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot collision")
			}
			if taken {
				continue
			}
			originalDate := paused.ScheduledDate
			replacement := &models.SessionOccurrence{
				EnrollmentID:    paused.EnrollmentID,
				BatchID:         paused.BatchID,
				SessionNumber:   paused.SessionNumber,
				ScheduledDate:   instant,
				StartTime:       entry.slot.StartTime,
				EndTime:         entry.slot.EndTime,
				Status:          models.SessionStatusScheduled,
				CanPause:        s.schedules.isPausable(instant),
				RescheduledFrom: &originalDate,
			}
			return instant, replacement, nil
		}
	}
	return time.Time{}, nil, nil
}

// History returns the pause requests of an enrollment, newest first.
func (s *PauseService) History(ctx context.Context, enrollmentID string) ([]models.PauseRequest, error) {
	requests, err := s.pauses.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pause requests")
	}
	return requests, nil
}
