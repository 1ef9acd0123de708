package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coach-enroll-api/internal/models"
)

// BatchRepository reads the batch directory. The scheduler never writes
// batches; templates are owned by the admin surface.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// FindByID returns a batch by its ID.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	const query = `SELECT id, name, sport, coach_name, venue, capacity, active, created_at, updated_at FROM batches WHERE id = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// SlotsByBatch returns the weekly template entries for a batch in entry order.
func (r *BatchRepository) SlotsByBatch(ctx context.Context, batchID string) ([]models.BatchSlot, error) {
	const query = `SELECT id, batch_id, day, start_time, end_time, position FROM batch_slots WHERE batch_id = $1 ORDER BY position ASC`
	var slots []models.BatchSlot
	if err := r.db.SelectContext(ctx, &slots, query, batchID); err != nil {
		return nil, fmt.Errorf("list batch slots: %w", err)
	}
	return slots, nil
}
