package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coach-enroll-api/internal/models"
)

// SessionOccurrenceRepository handles persistence of dated session
// occurrences. Mutations that must stay atomic with pause bookkeeping
// accept an open transaction.
type SessionOccurrenceRepository struct {
	db *sqlx.DB
}

// NewSessionOccurrenceRepository constructs the repository.
func NewSessionOccurrenceRepository(db *sqlx.DB) *SessionOccurrenceRepository {
	return &SessionOccurrenceRepository{db: db}
}

// BeginTx opens a transaction for multi-statement scheduling work.
func (r *SessionOccurrenceRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

const insertOccurrenceQuery = `INSERT INTO session_occurrences
    (id, enrollment_id, batch_id, session_number, scheduled_date, start_time, end_time, status, is_paused, can_pause, pause_reason, rescheduled_from, created_at, updated_at)
    VALUES (:id, :enrollment_id, :batch_id, :session_number, :scheduled_date, :start_time, :end_time, :status, :is_paused, :can_pause, :pause_reason, :rescheduled_from, :created_at, :updated_at)`

// BulkCreateWithTx inserts a batch of occurrences inside tx.
func (r *SessionOccurrenceRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, occurrences []*models.SessionOccurrence) error {
	now := time.Now().UTC()
	for _, occ := range occurrences {
		if occ.ID == "" {
			occ.ID = uuid.NewString()
		}
		occ.CreatedAt = now
		occ.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, insertOccurrenceQuery, occ); err != nil {
			return fmt.Errorf("insert occurrence %d: %w", occ.SessionNumber, err)
		}
	}
	return nil
}

// CreateWithTx inserts a single occurrence inside tx.
func (r *SessionOccurrenceRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, occ *models.SessionOccurrence) error {
	if occ.ID == "" {
		occ.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	occ.CreatedAt = now
	occ.UpdatedAt = now
	if _, err := tx.NamedExecContext(ctx, insertOccurrenceQuery, occ); err != nil {
		return fmt.Errorf("insert occurrence: %w", err)
	}
	return nil
}

const selectOccurrenceColumns = `id, enrollment_id, batch_id, session_number, scheduled_date, start_time, end_time, status, is_paused, can_pause, pause_reason, rescheduled_from, created_at, updated_at`

// ListByEnrollment returns all occurrences for an enrollment ordered by
// session number.
func (r *SessionOccurrenceRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SessionOccurrence, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_occurrences WHERE enrollment_id = $1 ORDER BY session_number ASC, scheduled_date ASC`, selectOccurrenceColumns)
	var occurrences []models.SessionOccurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return occurrences, nil
}

// FindByID returns one occurrence by its ID.
func (r *SessionOccurrenceRepository) FindByID(ctx context.Context, id string) (*models.SessionOccurrence, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_occurrences WHERE id = $1`, selectOccurrenceColumns)
	var occ models.SessionOccurrence
	if err := r.db.GetContext(ctx, &occ, query, id); err != nil {
		return nil, err
	}
	return &occ, nil
}

// LatestScheduled returns the occurrence with the latest scheduled date
// that is still in SCHEDULED state, excluding excludeID when non-empty.
// Returns nil with no error when nothing is scheduled.
func (r *SessionOccurrenceRepository) LatestScheduled(ctx context.Context, enrollmentID, excludeID string) (*models.SessionOccurrence, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_occurrences
        WHERE enrollment_id = $1 AND status = $2 AND id <> $3
        ORDER BY scheduled_date DESC, session_number DESC LIMIT 1`, selectOccurrenceColumns)
	var occ models.SessionOccurrence
	err := r.db.GetContext(ctx, &occ, query, enrollmentID, models.SessionStatusScheduled, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest scheduled occurrence: %w", err)
	}
	return &occ, nil
}

// MaxSessionNumber returns the highest session number recorded for an
// enrollment, zero when there are no occurrences yet.
func (r *SessionOccurrenceRepository) MaxSessionNumber(ctx context.Context, enrollmentID string) (int, error) {
	const query = `SELECT COALESCE(MAX(session_number), 0) FROM session_occurrences WHERE enrollment_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("max session number: %w", err)
	}
	return max, nil
}

// ExistsScheduledAt reports whether the enrollment already has a
// SCHEDULED occurrence at the given instant.
func (r *SessionOccurrenceRepository) ExistsScheduledAt(ctx context.Context, enrollmentID string, date time.Time, startTime string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM session_occurrences
        WHERE enrollment_id = $1 AND scheduled_date = $2 AND start_time = $3 AND status = $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, date, startTime, models.SessionStatusScheduled); err != nil {
		return false, fmt.Errorf("occurrence exists at: %w", err)
	}
	return exists, nil
}

// MarkPausedWithTx flips an occurrence into PAUSED state inside tx.
func (r *SessionOccurrenceRepository) MarkPausedWithTx(ctx context.Context, tx *sqlx.Tx, id string, reason *string) error {
	const query = `UPDATE session_occurrences
        SET status = $2, is_paused = TRUE, can_pause = FALSE, pause_reason = $3, updated_at = $4
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, models.SessionStatusPaused, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark occurrence paused: %w", err)
	}
	return nil
}

// UpdateStatus writes the attendance outcome of an occurrence.
func (r *SessionOccurrenceRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE session_occurrences SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update occurrence status: %w", err)
	}
	return nil
}

// DeleteByEnrollmentWithTx removes every occurrence of an enrollment
// inside tx. Used when a schedule is regenerated from scratch.
func (r *SessionOccurrenceRepository) DeleteByEnrollmentWithTx(ctx context.Context, tx *sqlx.Tx, enrollmentID string) error {
	const query = `DELETE FROM session_occurrences WHERE enrollment_id = $1`
	if _, err := tx.ExecContext(ctx, query, enrollmentID); err != nil {
		return fmt.Errorf("delete occurrences: %w", err)
	}
	return nil
}
