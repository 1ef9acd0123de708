package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type scheduleGenerator interface {
	GenerateSchedule(ctx context.Context, req GenerateScheduleRequest) ([]models.SessionOccurrence, error)
	ExtendSchedule(ctx context.Context, req ExtendScheduleRequest) ([]models.SessionOccurrence, error)
}

// CreateEnrollmentRequest describes a paid package purchase.
type CreateEnrollmentRequest struct {
	StudentID     string    `json:"student_id" validate:"required"`
	BatchID       string    `json:"batch_id" validate:"required"`
	SessionsTotal int       `json:"sessions_total" validate:"gt=0"`
	StartDate     time.Time `json:"start_date" validate:"required"`
}

// TopUpEnrollmentRequest describes a package upgrade.
type TopUpEnrollmentRequest struct {
	AdditionalSessions int       `json:"additional_sessions" validate:"gt=0"`
	AnchorDate         time.Time `json:"anchor_date"`
}

// EnrollmentService orchestrates enrollment lifecycle around the
// scheduler: creation triggers initial generation, top-ups trigger
// supplemental generation.
type EnrollmentService struct {
	repo      enrollmentStore
	schedules scheduleGenerator
	notifier  notificationDispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentStore, schedules scheduleGenerator, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, schedules: schedules, notifier: notifier, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one enrollment with student and batch context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Create registers a paid enrollment and generates its full schedule.
// The enrollment row is removed again if generation fails so a
// configuration error never leaves a scheduleless enrollment behind.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, []models.SessionOccurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment := &models.Enrollment{
		StudentID:     req.StudentID,
		BatchID:       req.BatchID,
		SessionsTotal: req.SessionsTotal,
		StartDate:     dateOnly(req.StartDate),
		Status:        models.EnrollmentStatusActive,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	occurrences, err := s.schedules.GenerateSchedule(ctx, GenerateScheduleRequest{
		EnrollmentID:  enrollment.ID,
		BatchID:       enrollment.BatchID,
		SessionsTotal: enrollment.SessionsTotal,
		StartDate:     enrollment.StartDate,
	})
	if err != nil {
		if delErr := s.repo.Delete(ctx, enrollment.ID); delErr != nil {
			s.logger.Error("failed to roll back enrollment after generation failure",
				zap.String("enrollment_id", enrollment.ID), zap.Error(delErr))
		}
		return nil, nil, err
	}

	if s.notifier != nil {
		s.notifier.Dispatch(Notification{
			Type:         NotifyScheduleGenerated,
			EnrollmentID: enrollment.ID,
			Data:         map[string]interface{}{"occurrences": len(occurrences)},
		})
	}
	return enrollment, occurrences, nil
}

// TopUp extends an enrollment with additional sessions.
func (s *EnrollmentService) TopUp(ctx context.Context, enrollmentID string, req TopUpEnrollmentRequest) ([]models.SessionOccurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid top-up payload")
	}

	occurrences, err := s.schedules.ExtendSchedule(ctx, ExtendScheduleRequest{
		EnrollmentID:       enrollmentID,
		AdditionalSessions: req.AdditionalSessions,
		AnchorDate:         req.AnchorDate,
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Dispatch(Notification{
			Type:         NotifyScheduleExtended,
			EnrollmentID: enrollmentID,
			Data:         map[string]interface{}{"added": len(occurrences)},
		})
	}
	return occurrences, nil
}

// Cancel marks an enrollment cancelled. Its occurrences are kept for
// audit.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) error {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment already cancelled")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	return nil
}
