// Package reconciler implements the staleness sweep: jobs stuck in pending
// (a lost dispatch) or in processing with no live worker heartbeat (a
// crashed worker) are put back on the queue. The worker's claim check makes
// a duplicate dispatch harmless, so the sweep can afford to be eager.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/frames-service/internal/jobs/models"
	"github.com/romariotrain/frames-service/internal/jobs/repository"
)

// Queue is the dispatch side of the work queue.
type Queue interface {
	Enqueue(ctx context.Context, d models.Dispatch) error
}

// LeaseReader answers whether a processing job still has a live worker.
type LeaseReader interface {
	Alive(ctx context.Context, jobID int64) (bool, error)
}

type Config struct {
	Repo         repository.JobRepository
	Queue        Queue
	Leases       LeaseReader
	Interval     time.Duration
	StalledAfter time.Duration
	BatchSize    int
	Logger       zerolog.Logger
}

type Reconciler struct {
	repo         repository.JobRepository
	queue        Queue
	leases       LeaseReader
	interval     time.Duration
	stalledAfter time.Duration
	batchSize    int
	clock        func() time.Time
	logger       zerolog.Logger
}

func New(cfg Config) (*Reconciler, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if cfg.Leases == nil {
		return nil, fmt.Errorf("lease reader is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.StalledAfter <= 0 {
		return nil, fmt.Errorf("stalled-after must be positive, got: %v", cfg.StalledAfter)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Reconciler{
		repo:         cfg.Repo,
		queue:        cfg.Queue,
		leases:       cfg.Leases,
		interval:     cfg.Interval,
		stalledAfter: cfg.StalledAfter,
		batchSize:    cfg.BatchSize,
		clock:        time.Now,
		logger:       cfg.Logger.With().Str("component", "reconciler").Logger(),
	}, nil
}

// Start runs the sweep on a ticker until the context is cancelled.
func (r *Reconciler) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.interval).
		Dur("stalled_after", r.stalledAfter).
		Int("batch_size", r.batchSize).
		Msg("reconciler started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Err(ctx.Err()).Msg("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			stats, err := r.Sweep(ctx)
			if err != nil {
				r.logger.Error().Err(err).Msg("sweep failed")
				continue
			}
			if stats.PendingRequeued+stats.OrphansRecovered+stats.Errors > 0 {
				r.logger.Info().
					Int("pending_requeued", stats.PendingRequeued).
					Int("orphans_recovered", stats.OrphansRecovered).
					Int("errors", stats.Errors).
					Msg("sweep completed")
			}
		}
	}
}

// SweepStats counts what one pass did.
type SweepStats struct {
	PendingRequeued  int
	OrphansRecovered int
	Errors           int
}

// Sweep performs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	cutoff := r.clock().Add(-r.stalledAfter)

	// Pending jobs past the threshold lost their dispatch somewhere between
	// row creation and the broker; send it again.
	pending, err := r.repo.ListStalled(ctx, models.PendingStatus, cutoff, r.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list stalled pending: %w", err)
	}
	for _, j := range pending {
		if err := r.redispatch(ctx, j); err != nil {
			r.logger.Error().Err(err).Int64("job_id", j.ID).Msg("requeue pending")
			stats.Errors++
			continue
		}
		stats.PendingRequeued++
	}

	// Processing jobs whose heartbeat lapsed belong to a dead worker; move
	// them back to pending and dispatch again.
	processing, err := r.repo.ListStalled(ctx, models.ProcessingStatus, cutoff, r.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list stalled processing: %w", err)
	}
	for _, j := range processing {
		alive, err := r.leases.Alive(ctx, j.ID)
		if err != nil {
			// Without a readable lease nothing can be proven; skip rather
			// than requeue a job that may still be running.
			r.logger.Warn().Err(err).Int64("job_id", j.ID).Msg("lease check")
			stats.Errors++
			continue
		}
		if alive {
			continue
		}

		if _, err := r.repo.Requeue(ctx, j.ID); err != nil {
			if errors.Is(err, models.ErrStaleState) || errors.Is(err, models.ErrNotFound) {
				// The worker finished between the listing and now.
				continue
			}
			r.logger.Error().Err(err).Int64("job_id", j.ID).Msg("requeue processing")
			stats.Errors++
			continue
		}
		if err := r.redispatch(ctx, j); err != nil {
			// The job is back in pending; the next pass will redispatch it.
			r.logger.Error().Err(err).Int64("job_id", j.ID).Msg("redispatch recovered job")
			stats.Errors++
			continue
		}
		stats.OrphansRecovered++
	}

	return stats, nil
}

func (r *Reconciler) redispatch(ctx context.Context, j models.Job) error {
	return r.queue.Enqueue(ctx, models.Dispatch{
		InputRef:  j.InputRef,
		OutputRef: models.OutputRefFor(j.ID),
		JobID:     j.ID,
	})
}
