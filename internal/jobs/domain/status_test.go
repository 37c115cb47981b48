package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/frames-service/internal/jobs/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from models.Status
		to   models.Status
		want bool
	}{
		{name: "pending to processing", from: models.PendingStatus, to: models.ProcessingStatus, want: true},
		{name: "processing to completed", from: models.ProcessingStatus, to: models.CompletedStatus, want: true},
		{name: "processing to failed", from: models.ProcessingStatus, to: models.FailedStatus, want: true},
		{name: "pending to completed skips processing", from: models.PendingStatus, to: models.CompletedStatus, want: false},
		{name: "pending to failed skips processing", from: models.PendingStatus, to: models.FailedStatus, want: false},
		{name: "completed is terminal", from: models.CompletedStatus, to: models.ProcessingStatus, want: false},
		{name: "failed is terminal", from: models.FailedStatus, to: models.PendingStatus, want: false},
		{name: "processing back to pending", from: models.ProcessingStatus, to: models.PendingStatus, want: false},
		{name: "self transition", from: models.ProcessingStatus, to: models.ProcessingStatus, want: false},
		{name: "unknown source", from: models.Status("archived"), to: models.ProcessingStatus, want: false},
		{name: "unknown target", from: models.PendingStatus, to: models.Status("archived"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestValidateTransition(t *testing.T) {
	require.NoError(t, ValidateTransition(models.PendingStatus, models.ProcessingStatus))

	err := ValidateTransition(models.CompletedStatus, models.PendingStatus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completed")
	assert.Contains(t, err.Error(), "pending")
}
