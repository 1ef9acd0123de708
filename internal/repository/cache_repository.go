package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
)

// CacheRepository wraps Redis for read-through caching of batch
// templates. A nil client degrades to a cache that always misses so the
// API keeps working without Redis.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

func batchTemplateKey(batchID string) string {
	return fmt.Sprintf("batch:%s:template", batchID)
}

// GetBatchSlots returns the cached slot template for a batch.
func (r *CacheRepository) GetBatchSlots(ctx context.Context, batchID string) ([]models.BatchSlot, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	key := batchTemplateKey(batchID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var slots []models.BatchSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("unmarshal cached template %s: %w", key, err)
	}
	return slots, nil
}

// SetBatchSlots stores the slot template for a batch with the given TTL.
// Cache write failures are logged, never surfaced to callers.
func (r *CacheRepository) SetBatchSlots(ctx context.Context, batchID string, slots []models.BatchSlot, ttl time.Duration) {
	if r.client == nil {
		return
	}

	key := batchTemplateKey(batchID)
	payload, err := json.Marshal(slots)
	if err != nil {
		r.logger.Warn("marshal batch template for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		r.logger.Warn("cache batch template", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateBatch drops cached entries for a batch.
func (r *CacheRepository) InvalidateBatch(ctx context.Context, batchID string) error {
	if r.client == nil {
		return nil
	}

	pattern := fmt.Sprintf("batch:%s:*", batchID)
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
