package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coach-enroll-api/pkg/jobs"
)

// Notification event types emitted by scheduling workflows.
const (
	NotifyScheduleGenerated   = "schedule.generated"
	NotifyScheduleExtended    = "schedule.extended"
	NotifyPauseApproved       = "pause.approved"
	NotifyEnrollmentCompleted = "enrollment.completed"
)

// Notification is one outbound event for students or coaches.
type Notification struct {
	Type         string                 `json:"type"`
	EnrollmentID string                 `json:"enrollment_id"`
	OccurredAt   time.Time              `json:"occurred_at"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// NotificationService fans scheduling events out through a background
// worker queue. Delivery is best effort; enqueue failures are logged
// and never fail the triggering request.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its queue. The
// handler is where channel integrations (email, push) plug in; for now
// events are logged.
func NewNotificationService(cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and shuts down the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues a notification for asynchronous delivery.
func (s *NotificationService) Dispatch(n Notification) {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	if err := s.queue.Enqueue(jobs.Job{Type: n.Type, Payload: n}); err != nil {
		s.logger.Warn("dropping notification",
			zap.String("type", n.Type),
			zap.String("enrollment_id", n.EnrollmentID),
			zap.Error(err))
	}
}

func (s *NotificationService) deliver(_ context.Context, job jobs.Job) error {
	n, ok := job.Payload.(Notification)
	if !ok {
		s.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	s.logger.Info("notification delivered",
		zap.String("type", n.Type),
		zap.String("enrollment_id", n.EnrollmentID))
	return nil
}
