// Package redislease tracks which processing jobs have a live worker. A
// lease is a TTL key the worker keeps refreshing; if the worker dies, the
// key expires and the reconciler treats the job as orphaned.
package redislease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/romariotrain/frames-service/internal/config"
)

type Store struct {
	client *redis.Client
}

func NewStore(cfg config.RedisConfig) *Store {
	return &Store{client: redis.NewClient(&redis.Options{Addr: cfg.Addr})}
}

func key(jobID int64) string {
	return fmt.Sprintf("job:lease:%d", jobID)
}

// Acquire takes the lease for a job. Returns false if another worker
// already holds it.
func (s *Store) Acquire(ctx context.Context, jobID int64, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key(jobID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lease acquire %d: %w", jobID, err)
	}
	return ok, nil
}

// Refresh extends a held lease.
func (s *Store) Refresh(ctx context.Context, jobID int64, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key(jobID), ttl).Err(); err != nil {
		return fmt.Errorf("lease refresh %d: %w", jobID, err)
	}
	return nil
}

// Release drops the lease once the job reaches a terminal state.
func (s *Store) Release(ctx context.Context, jobID int64) error {
	if err := s.client.Del(ctx, key(jobID)).Err(); err != nil {
		return fmt.Errorf("lease release %d: %w", jobID, err)
	}
	return nil
}

// Alive reports whether some worker currently holds the lease.
func (s *Store) Alive(ctx context.Context, jobID int64) (bool, error) {
	n, err := s.client.Exists(ctx, key(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("lease check %d: %w", jobID, err)
	}
	return n > 0, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
