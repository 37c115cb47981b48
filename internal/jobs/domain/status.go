package domain

import (
	"fmt"

	"github.com/romariotrain/frames-service/internal/jobs/models"
)

// CanTransition encodes the job lattice: pending -> processing ->
// {completed, failed}. Terminal states never move again; nothing moves
// backwards except through the reconciler's explicit requeue.
func CanTransition(from, to models.Status) bool {
	switch from {
	case models.PendingStatus:
		return to == models.ProcessingStatus
	case models.ProcessingStatus:
		return to == models.CompletedStatus || to == models.FailedStatus
	case models.CompletedStatus:
		return false
	case models.FailedStatus:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to models.Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition: %s -> %s", from, to)
	}
	return nil
}
