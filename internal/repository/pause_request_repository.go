package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coach-enroll-api/internal/models"
)

// PauseRequestRepository handles persistence of pause requests.
type PauseRequestRepository struct {
	db *sqlx.DB
}

// NewPauseRequestRepository constructs the repository.
func NewPauseRequestRepository(db *sqlx.DB) *PauseRequestRepository {
	return &PauseRequestRepository{db: db}
}

// CountApproved returns the number of approved pauses for an enrollment.
func (r *PauseRequestRepository) CountApproved(ctx context.Context, enrollmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM pause_requests WHERE enrollment_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, enrollmentID, models.PauseRequestStatusApproved); err != nil {
		return 0, fmt.Errorf("count approved pauses: %w", err)
	}
	return count, nil
}

// CreateWithTx inserts a pause request inside tx.
func (r *PauseRequestRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, request *models.PauseRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO pause_requests
        (id, enrollment_id, session_occurrence_id, requested_at, session_date, reason, status, pauses_used, rescheduled_to_date, created_at)
        VALUES (:id, :enrollment_id, :session_occurrence_id, :requested_at, :session_date, :reason, :status, :pauses_used, :rescheduled_to_date, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create pause request: %w", err)
	}
	return nil
}

// SetRescheduledToWithTx records the replacement date for a pause request
// inside tx.
func (r *PauseRequestRepository) SetRescheduledToWithTx(ctx context.Context, tx *sqlx.Tx, id string, date time.Time) error {
	const query = `UPDATE pause_requests SET rescheduled_to_date = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, date); err != nil {
		return fmt.Errorf("set rescheduled date: %w", err)
	}
	return nil
}

// ListByEnrollment returns pause history newest first.
func (r *PauseRequestRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PauseRequest, error) {
	const query = `SELECT id, enrollment_id, session_occurrence_id, requested_at, session_date, reason, status, pauses_used, rescheduled_to_date, created_at
        FROM pause_requests WHERE enrollment_id = $1 ORDER BY requested_at DESC`
	var requests []models.PauseRequest
	if err := r.db.SelectContext(ctx, &requests, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list pause requests: %w", err)
	}
	return requests, nil
}
