package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/frames-service/internal/jobs/domain"
	"github.com/romariotrain/frames-service/internal/jobs/models"
)

// MemoryRepository is the in-process JobRepository used in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*models.Job
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, data: make(map[int64]*models.Job)}
}

func (r *MemoryRepository) Create(ctx context.Context, j *models.Job) error {
	if j == nil || j.OwnerID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	j.ID = r.nextID
	r.nextID++

	// Defensive copy so callers cannot mutate the stored record.
	cp := *j
	r.data[j.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *MemoryRepository) GetByOwner(ctx context.Context, id int64, ownerID uuid.UUID) (*models.Job, error) {
	j, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	return j, nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Job
	for _, j := range r.data {
		if j.OwnerID == ownerID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (r *MemoryRepository) Transition(ctx context.Context, id int64, from, to models.Status, fields TransitionFields) (*models.Job, error) {
	if err := domain.ValidateTransition(from, to); err != nil {
		return nil, models.ErrInvalidArgument
	}
	if (to == models.CompletedStatus) != (fields.OutputRef != nil) {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if j.Status != from {
		return nil, models.ErrStaleState
	}

	j.Status = to
	if fields.OutputRef != nil {
		ref := *fields.OutputRef
		j.OutputRef = &ref
	}
	if fields.CompletedAt != nil {
		at := *fields.CompletedAt
		j.CompletedAt = &at
	}

	cp := *j
	return &cp, nil
}

func (r *MemoryRepository) ListStalled(ctx context.Context, status models.Status, before time.Time, limit int) ([]models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Job
	for _, j := range r.data {
		if j.Status == status && j.CreatedAt.Before(before) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Requeue(ctx context.Context, id int64) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if j.Status != models.ProcessingStatus {
		return nil, models.ErrStaleState
	}

	j.Status = models.PendingStatus
	cp := *j
	return &cp, nil
}
