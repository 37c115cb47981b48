package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/frames-service/internal/jobs/models"
)

// TransitionFields carries the columns a terminal transition sets alongside
// the status change. OutputRef must be present exactly when the target
// status is completed.
type TransitionFields struct {
	OutputRef   *string
	CompletedAt *time.Time
}

// JobRepository owns persistence of job records. Every mutation is atomic
// and durable before the call returns; Transition is the only way to change
// a job's status.
type JobRepository interface {
	// Create persists a new pending job and fills in its id.
	Create(ctx context.Context, j *models.Job) error

	GetByID(ctx context.Context, id int64) (*models.Job, error)

	// GetByOwner is GetByID scoped to the owner; a foreign job reads as
	// models.ErrNotFound.
	GetByOwner(ctx context.Context, id int64, ownerID uuid.UUID) (*models.Job, error)

	// ListByOwner returns the owner's jobs in creation order.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Job, error)

	// Transition moves the job from `from` to `to` iff its current status is
	// `from`, atomically. A lost race reads as models.ErrStaleState; an
	// absent job as models.ErrNotFound.
	Transition(ctx context.Context, id int64, from, to models.Status, fields TransitionFields) (*models.Job, error)

	// ListStalled returns up to limit jobs in the given status created
	// before the cutoff, oldest first. Used by the reconciliation sweep.
	ListStalled(ctx context.Context, status models.Status, before time.Time, limit int) ([]models.Job, error)

	// Requeue moves a processing job back to pending. Reserved for the
	// reconciler after a worker heartbeat has lapsed; same optimistic
	// semantics as Transition.
	Requeue(ctx context.Context, id int64) (*models.Job, error)
}
