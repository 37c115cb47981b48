package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/frames-service/internal/jobs/domain"
	"github.com/romariotrain/frames-service/internal/jobs/models"
	"github.com/romariotrain/frames-service/internal/jobs/repository"
)

type JobRepo struct {
	db *sqlx.DB
}

func NewJobRepo(db *sqlx.DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, owner_id, filename, input_ref, output_ref, status, created_at, completed_at`

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	const q = `
		INSERT INTO jobs (owner_id, filename, input_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := r.db.GetContext(ctx, &j.ID, q,
		j.OwnerID, j.Filename, j.InputRef, j.Status, j.CreatedAt,
	); err != nil {
		return fmt.Errorf("job create: %w", err)
	}
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	var j models.Job
	if err := r.db.GetContext(ctx, &j, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("job get by id: %w", err)
	}
	return &j, nil
}

func (r *JobRepo) GetByOwner(ctx context.Context, id int64, ownerID uuid.UUID) (*models.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND owner_id = $2`

	var j models.Job
	if err := r.db.GetContext(ctx, &j, q, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("job get by owner: %w", err)
	}
	return &j, nil
}

func (r *JobRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE owner_id = $1 ORDER BY id ASC`

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, q, ownerID); err != nil {
		return nil, fmt.Errorf("job list by owner: %w", err)
	}
	return jobs, nil
}

// Transition is the optimistic status update: the WHERE clause on the
// expected status makes concurrent claimers race on a single row update, so
// exactly one of them sees the row come back.
func (r *JobRepo) Transition(ctx context.Context, id int64, from, to models.Status, fields repository.TransitionFields) (*models.Job, error) {
	if err := domain.ValidateTransition(from, to); err != nil {
		return nil, models.ErrInvalidArgument
	}
	if (to == models.CompletedStatus) != (fields.OutputRef != nil) {
		return nil, models.ErrInvalidArgument
	}

	const q = `
		UPDATE jobs
		SET status = $3,
		    output_ref = COALESCE($4, output_ref),
		    completed_at = COALESCE($5, completed_at)
		WHERE id = $1 AND status = $2
		RETURNING ` + jobColumns + `
	`

	var j models.Job
	err := r.db.GetContext(ctx, &j, q, id, from, to, fields.OutputRef, fields.CompletedAt)
	if err == nil {
		return &j, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job transition: %w", err)
	}

	// No row matched: either the job does not exist or someone else moved it
	// first. A second read tells the two apart.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, models.ErrStaleState
}

func (r *JobRepo) ListStalled(ctx context.Context, status models.Status, before time.Time, limit int) ([]models.Job, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1 AND created_at < $2
		ORDER BY id ASC
		LIMIT $3
	`

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, q, status, before, limit); err != nil {
		return nil, fmt.Errorf("job list stalled: %w", err)
	}
	return jobs, nil
}

func (r *JobRepo) Requeue(ctx context.Context, id int64) (*models.Job, error) {
	const q = `
		UPDATE jobs
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING ` + jobColumns + `
	`

	var j models.Job
	err := r.db.GetContext(ctx, &j, q, id, models.PendingStatus, models.ProcessingStatus)
	if err == nil {
		return &j, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job requeue: %w", err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, models.ErrStaleState
}
