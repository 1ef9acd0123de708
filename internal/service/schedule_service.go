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

type batchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	SlotsByBatch(ctx context.Context, batchID string) ([]models.BatchSlot, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type occurrenceRepository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, occurrences []*models.SessionOccurrence) error
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, occ *models.SessionOccurrence) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SessionOccurrence, error)
	FindByID(ctx context.Context, id string) (*models.SessionOccurrence, error)
	LatestScheduled(ctx context.Context, enrollmentID, excludeID string) (*models.SessionOccurrence, error)
	MaxSessionNumber(ctx context.Context, enrollmentID string) (int, error)
	ExistsScheduledAt(ctx context.Context, enrollmentID string, date time.Time, startTime string) (bool, error)
	MarkPausedWithTx(ctx context.Context, tx *sqlx.Tx, id string, reason *string) error
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	DeleteByEnrollmentWithTx(ctx context.Context, tx *sqlx.Tx, enrollmentID string) error
}

type templateCache interface {
	GetBatchSlots(ctx context.Context, batchID string) ([]models.BatchSlot, error)
	SetBatchSlots(ctx context.Context, batchID string, slots []models.BatchSlot, ttl time.Duration)
	InvalidateBatch(ctx context.Context, batchID string) error
}

// GenerateScheduleRequest describes initial schedule generation.
type GenerateScheduleRequest struct {
	EnrollmentID  string    `json:"enrollment_id" validate:"required"`
	BatchID       string    `json:"batch_id" validate:"required"`
	SessionsTotal int       `json:"sessions_total" validate:"gte=0"`
	StartDate     time.Time `json:"start_date" validate:"required"`
}

// ExtendScheduleRequest describes a package top-up.
type ExtendScheduleRequest struct {
	EnrollmentID       string    `json:"enrollment_id" validate:"required"`
	AdditionalSessions int       `json:"additional_sessions" validate:"gt=0"`
	AnchorDate         time.Time `json:"anchor_date"`
}

// templateSlot is a batch slot with its weekday already resolved.
type templateSlot struct {
	day    int
	hour   int
	minute int
	slot   models.BatchSlot
}

// SchedulerSettings carries the tunables of the scheduling engine.
type SchedulerSettings struct {
	PauseCutoff           time.Duration
	PauseQuota            int
	RescheduleHorizonDays int
	TemplateCacheTTL      time.Duration
}

// ScheduleService expands enrollments into dated session occurrences
// and answers per-occurrence eligibility questions.
type ScheduleService struct {
	batches     batchReader
	enrollments enrollmentReader
	occurrences occurrenceRepository
	cache       templateCache
	metrics     *MetricsService
	locks       *enrollmentLocks
	settings    SchedulerSettings
	validator   *validator.Validate
	logger      *zap.Logger
	nowFn       func() time.Time
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(batches batchReader, enrollments enrollmentReader, occurrences occurrenceRepository, cache templateCache, metrics *MetricsService, settings SchedulerSettings, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.PauseCutoff <= 0 {
		settings.PauseCutoff = 2 * time.Hour
	}
	if settings.PauseQuota <= 0 {
		settings.PauseQuota = 10
	}
	if settings.RescheduleHorizonDays <= 0 {
		settings.RescheduleHorizonDays = 14
	}
	if settings.TemplateCacheTTL <= 0 {
		settings.TemplateCacheTTL = 10 * time.Minute
	}
	return &ScheduleService{
		batches:     batches,
		enrollments: enrollments,
		occurrences: occurrences,
		cache:       cache,
		metrics:     metrics,
		locks:       newEnrollmentLocks(),
		settings:    settings,
		validator:   validate,
		logger:      logger,
		nowFn:       time.Now,
	}
}

// isPausable reports live pause eligibility: the current instant must be
// more than the cutoff before the occurrence's start. The stored
// can_pause flag is only a creation-time snapshot and is never consulted
// for decisions.
func (s *ScheduleService) isPausable(start time.Time) bool {
	return s.nowFn().Before(start.Add(-s.settings.PauseCutoff))
}

// loadTemplate returns the usable slots of a batch, read through the
// cache. Unresolvable slots are dropped with a warning; a template with
// nothing usable left is a configuration error.
func (s *ScheduleService) loadTemplate(ctx context.Context, batchID string) ([]templateSlot, error) {
	if _, err := s.batches.FindByID(ctx, batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	slots, err := s.cache.GetBatchSlots(ctx, batchID)
	if err != nil {
		s.metrics.RecordCacheLookup(false)
		slots, err = s.batches.SlotsByBatch(ctx, batchID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch template")
		}
		s.cache.SetBatchSlots(ctx, batchID, slots, s.settings.TemplateCacheTTL)
	} else {
		s.metrics.RecordCacheLookup(true)
	}

	usable := make([]templateSlot, 0, len(slots))
	for _, slot := range slots {
		day := dayIndex(slot.Day)
		if day < 0 {
			s.logger.Warn("skipping template slot with unknown weekday",
				zap.String("batch_id", batchID), zap.String("day", slot.Day))
			s.metrics.RecordTemplateEntrySkipped()
			continue
		}
		hour, minute, err := parseClock(slot.StartTime)
		if err != nil {
			s.logger.Warn("skipping template slot with malformed start time",
				zap.String("batch_id", batchID), zap.String("start_time", slot.StartTime))
			s.metrics.RecordTemplateEntrySkipped()
			continue
		}
		usable = append(usable, templateSlot{day: day, hour: hour, minute: minute, slot: slot})
	}
	if len(usable) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyTemplate, "batch template has no usable slots")
	}
	return usable, nil
}

// buildOccurrences walks week by week from startDate emitting one
// occurrence per template slot, in template order, until total is
// reached. Session numbers start at firstNumber. A slot landing on the
// week's start day whose time already passed is bumped a week forward,
// which only ever fires in the first week.
func (s *ScheduleService) buildOccurrences(enrollmentID, batchID string, template []templateSlot, total, firstNumber int, startDate time.Time) []*models.SessionOccurrence {
	now := s.nowFn()
	weekStart := dateOnly(startDate)
	weekStartDay := int(weekStart.Weekday())
	number := firstNumber

	occurrences := make([]*models.SessionOccurrence, 0, total)
	for len(occurrences) < total {
		for _, entry := range template {
			offset := (entry.day - weekStartDay + 7) % 7
			date := weekStart.AddDate(0, 0, offset)
			start := combineDateTime(date, entry.hour, entry.minute)
			if offset == 0 && !start.After(now) {
				date = date.AddDate(0, 0, 7)
				start = combineDateTime(date, entry.hour, entry.minute)
			}
			occurrences = append(occurrences, &models.SessionOccurrence{
				EnrollmentID:  enrollmentID,
				BatchID:       batchID,
				SessionNumber: number,
				ScheduledDate: start,
				StartTime:     entry.slot.StartTime,
				EndTime:       entry.slot.EndTime,
				Status:        models.SessionStatusScheduled,
				CanPause:      s.isPausable(start),
			})
			number++
			if len(occurrences) == total {
				break
			}
		}
		weekStart = weekStart.AddDate(0, 0, 7)
	}
	return occurrences
}

// GenerateSchedule expands a confirmed enrollment into its full set of
// dated occurrences. Occurrences are written in one transaction; a
// failed generation leaves nothing behind.
func (s *ScheduleService) GenerateSchedule(ctx context.Context, req GenerateScheduleRequest) ([]models.SessionOccurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule request")
	}
	if req.SessionsTotal == 0 {
		return []models.SessionOccurrence{}, nil
	}

	unlock := s.locks.Lock(req.EnrollmentID)
	defer unlock()

	template, err := s.loadTemplate(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}

	occurrences := s.buildOccurrences(req.EnrollmentID, req.BatchID, template, req.SessionsTotal, 1, req.StartDate)
	if err := s.persistOccurrences(ctx, req.EnrollmentID, occurrences, false); err != nil {
		return nil, err
	}

	s.metrics.RecordOccurrencesGenerated(len(occurrences))
	s.logger.Info("generated schedule",
		zap.String("enrollment_id", req.EnrollmentID),
		zap.String("batch_id", req.BatchID),
		zap.Int("occurrences", len(occurrences)))
	return dereference(occurrences), nil
}

// Regenerate purges every occurrence of an enrollment and rebuilds them
// from its stored sessions total and start date. Purge and rebuild share
// one transaction so a failed rebuild keeps the old schedule.
func (s *ScheduleService) Regenerate(ctx context.Context, enrollmentID string) ([]models.SessionOccurrence, error) {
	unlock := s.locks.Lock(enrollmentID)
	defer unlock()

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	// Regeneration follows template edits, so the cached copy is stale.
	if err := s.cache.InvalidateBatch(ctx, enrollment.BatchID); err != nil {
		s.logger.Warn("failed to invalidate batch template cache",
			zap.String("batch_id", enrollment.BatchID), zap.Error(err))
	}

	template, err := s.loadTemplate(ctx, enrollment.BatchID)
	if err != nil {
		return nil, err
	}

	occurrences := s.buildOccurrences(enrollmentID, enrollment.BatchID, template, enrollment.SessionsTotal, 1, enrollment.StartDate)
	if err := s.persistOccurrences(ctx, enrollmentID, occurrences, true); err != nil {
		return nil, err
	}

	s.metrics.RecordOccurrencesGenerated(len(occurrences))
	s.logger.Info("regenerated schedule",
		zap.String("enrollment_id", enrollmentID),
		zap.Int("occurrences", len(occurrences)))
	return dereference(occurrences), nil
}

// ExtendSchedule appends occurrences for a package top-up. Numbering
// continues from the highest existing session number; dates continue
// from the later of one day after the latest scheduled occurrence and
// now. AnchorDate is only used when the enrollment has no occurrences.
func (s *ScheduleService) ExtendSchedule(ctx context.Context, req ExtendScheduleRequest) ([]models.SessionOccurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension request")
	}

	unlock := s.locks.Lock(req.EnrollmentID)
	defer unlock()

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	template, err := s.loadTemplate(ctx, enrollment.BatchID)
	if err != nil {
		return nil, err
	}

	maxNumber, err := s.occurrences.MaxSessionNumber(ctx, req.EnrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read session numbering")
	}
	latest, err := s.occurrences.LatestScheduled(ctx, req.EnrollmentID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read latest occurrence")
	}

	now := s.nowFn()
	var continuation time.Time
	switch {
	case latest != nil:
		continuation = dateOnly(latest.ScheduledDate).AddDate(0, 0, 1)
		if continuation.Before(dateOnly(now)) {
			continuation = dateOnly(now)
		}
	case !req.AnchorDate.IsZero():
		continuation = dateOnly(req.AnchorDate)
	default:
		continuation = dateOnly(now)
	}

	occurrences := s.walkDays(req.EnrollmentID, enrollment.BatchID, template, req.AdditionalSessions, maxNumber+1, continuation)
	if err := s.persistOccurrences(ctx, req.EnrollmentID, occurrences, false); err != nil {
		return nil, err
	}

	s.metrics.RecordOccurrencesGenerated(len(occurrences))
	s.logger.Info("extended schedule",
		zap.String("enrollment_id", req.EnrollmentID),
		zap.Int("added", len(occurrences)))
	return dereference(occurrences), nil
}

// walkDays emits occurrences day by day starting at from, one per
// template slot matching the day's weekday, until count is reached.
func (s *ScheduleService) walkDays(enrollmentID, batchID string, template []templateSlot, count, firstNumber int, from time.Time) []*models.SessionOccurrence {
	number := firstNumber
	occurrences := make([]*models.SessionOccurrence, 0, count)
	for day := from; len(occurrences) < count; day = day.AddDate(0, 0, 1) {
		weekday := int(day.Weekday())
		for _, entry := range template {
			if entry.day != weekday {
				continue
			}
			start := combineDateTime(day, entry.hour, entry.minute)
			occurrences = append(occurrences, &models.SessionOccurrence{
				EnrollmentID:  enrollmentID,
				BatchID:       batchID,
				SessionNumber: number,
				ScheduledDate: start,
				StartTime:     entry.slot.StartTime,
				EndTime:       entry.slot.EndTime,
				Status:        models.SessionStatusScheduled,
				CanPause:      s.isPausable(start),
			})
			number++
			if len(occurrences) == count {
				break
			}
		}
	}
	return occurrences
}

// persistOccurrences writes a generated batch in one transaction,
// optionally purging the enrollment's existing occurrences first.
func (s *ScheduleService) persistOccurrences(ctx context.Context, enrollmentID string, occurrences []*models.SessionOccurrence, purge bool) error {
	tx, err := s.occurrences.BeginTx(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if purge {
		if err := s.occurrences.DeleteByEnrollmentWithTx(ctx, tx, enrollmentID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear occurrences")
		}
	}
	if err := s.occurrences.BulkCreateWithTx(ctx, tx, occurrences); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist occurrences")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit occurrences")
	}
	return nil
}

// ListOccurrences returns an enrollment's occurrences decorated with
// live pause eligibility.
func (s *ScheduleService) ListOccurrences(ctx context.Context, enrollmentID string) ([]models.SessionOccurrenceView, error) {
	occurrences, err := s.occurrences.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list occurrences")
	}
	views := make([]models.SessionOccurrenceView, 0, len(occurrences))
	for _, occ := range occurrences {
		views = append(views, models.SessionOccurrenceView{
			SessionOccurrence: occ,
			Pausable:          occ.Status == models.SessionStatusScheduled && s.isPausable(occ.ScheduledDate),
		})
	}
	return views, nil
}

func dereference(occurrences []*models.SessionOccurrence) []models.SessionOccurrence {
	out := make([]models.SessionOccurrence, 0, len(occurrences))
	for _, occ := range occurrences {
		out = append(out, *occ)
	}
	return out
}
