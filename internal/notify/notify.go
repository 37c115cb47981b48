// Package notify delivers terminal-state messages to job owners. Delivery is
// best-effort: a failed notification is logged by the caller and never feeds
// back into job state.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Sink delivers one message per terminal transition.
type Sink interface {
	NotifySuccess(ctx context.Context, recipient, jobName, downloadLink string) error
	NotifyFailure(ctx context.Context, recipient, jobName, errText string) error
}

// Directory resolves a job owner to a deliverable address. Account
// management lives elsewhere; this is the only part of it the worker needs.
type Directory interface {
	Email(ctx context.Context, ownerID uuid.UUID) (string, error)
}
