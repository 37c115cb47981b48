package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/frames-service/internal/jobs/models"
)

// OwnerRepo resolves job owners to their notification address. Account
// management writes this table; here it is read-only.
type OwnerRepo struct {
	db *sqlx.DB
}

func NewOwnerRepo(db *sqlx.DB) *OwnerRepo {
	return &OwnerRepo{db: db}
}

func (r *OwnerRepo) Email(ctx context.Context, ownerID uuid.UUID) (string, error) {
	const q = `SELECT email FROM owners WHERE id = $1`

	var email string
	if err := r.db.GetContext(ctx, &email, q, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("owner email: %w", err)
	}
	return email, nil
}
