package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	PendingStatus    Status = "pending"
	ProcessingStatus Status = "processing"
	CompletedStatus  Status = "completed"
	FailedStatus     Status = "failed"
)

// Job is one unit of video-to-frames work tracked through its lifecycle.
// OutputRef is set exactly when the job reaches CompletedStatus; CompletedAt
// is set once, on the terminal transition.
type Job struct {
	ID          int64      `db:"id"`
	OwnerID     uuid.UUID  `db:"owner_id"`
	Filename    string     `db:"filename"`
	InputRef    string     `db:"input_ref"`
	OutputRef   *string    `db:"output_ref"`
	Status      Status     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Terminal reports whether the job can never change state again.
func (j *Job) Terminal() bool {
	return j.Status == CompletedStatus || j.Status == FailedStatus
}

// OutputRefFor derives the object key a job's archive is uploaded under.
// The orchestrator and the reconciler must agree on it, since either may
// build the dispatch message.
func OutputRefFor(jobID int64) string {
	return fmt.Sprintf("outputs/%d.zip", jobID)
}
