package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
)

type enrollmentProgressRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdateProgress(ctx context.Context, id string, attended int, status models.EnrollmentStatus) error
}

type notificationDispatcher interface {
	Dispatch(n Notification)
}

// MarkAttendanceRequest records the outcome of one session.
type MarkAttendanceRequest struct {
	SessionOccurrenceID string               `json:"session_occurrence_id" validate:"required"`
	Status              models.SessionStatus `json:"status" validate:"required"`
}

// AttendanceService moves occurrences through their terminal states and
// keeps the enrollment's attended counter and lifecycle in step.
type AttendanceService struct {
	occurrences occurrenceRepository
	enrollments enrollmentProgressRepository
	notifier    notificationDispatcher
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(occurrences occurrenceRepository, enrollments enrollmentProgressRepository, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		occurrences: occurrences,
		enrollments: enrollments,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
	}
}

// Mark transitions a scheduled occurrence to completed, missed or
// cancelled. Completing a session bumps the enrollment's attended count
// and finishes the enrollment once the count reaches the package total.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.SessionOccurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance status must be COMPLETED, MISSED or CANCELLED")
	}

	occ, err := s.occurrences.FindByID(ctx, req.SessionOccurrenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session occurrence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
	if occ.Status != models.SessionStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only scheduled sessions can be marked")
	}

	if err := s.occurrences.UpdateStatus(ctx, occ.ID, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update occurrence")
	}
	occ.Status = req.Status

	if req.Status == models.SessionStatusCompleted {
		if err := s.bumpAttendance(ctx, occ.EnrollmentID, 1); err != nil {
			return nil, err
		}
	}
	return occ, nil
}

// Unmark reverts a terminal occurrence back to scheduled, undoing the
// attendance side effects of Mark.
func (s *AttendanceService) Unmark(ctx context.Context, occurrenceID string) (*models.SessionOccurrence, error) {
	occ, err := s.occurrences.FindByID(ctx, occurrenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session occurrence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
	if !occ.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "occurrence is not in a terminal state")
	}

	wasCompleted := occ.Status == models.SessionStatusCompleted
	if err := s.occurrences.UpdateStatus(ctx, occ.ID, models.SessionStatusScheduled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update occurrence")
	}
	occ.Status = models.SessionStatusScheduled

	if wasCompleted {
		if err := s.bumpAttendance(ctx, occ.EnrollmentID, -1); err != nil {
			return nil, err
		}
	}
	return occ, nil
}

// bumpAttendance adjusts the enrollment's attended counter and derives
// its lifecycle status from the new count.
func (s *AttendanceService) bumpAttendance(ctx context.Context, enrollmentID string, delta int) error {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	attended := enrollment.SessionsAttended + delta
	if attended < 0 {
		attended = 0
	}
	if attended > enrollment.SessionsTotal {
		attended = enrollment.SessionsTotal
	}

	status := enrollment.Status
	completed := false
	switch {
	case attended >= enrollment.SessionsTotal && enrollment.Status == models.EnrollmentStatusActive:
		status = models.EnrollmentStatusCompleted
		completed = true
	case attended < enrollment.SessionsTotal && enrollment.Status == models.EnrollmentStatusCompleted:
		status = models.EnrollmentStatusActive
	}

	if err := s.enrollments.UpdateProgress(ctx, enrollmentID, attended, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment progress")
	}

	if completed && s.notifier != nil {
		s.notifier.Dispatch(Notification{
			Type:         NotifyEnrollmentCompleted,
			EnrollmentID: enrollmentID,
			Data:         map[string]interface{}{"sessions_attended": attended},
		})
	}
	return nil
}
