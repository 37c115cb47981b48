package httpapi

import (
	"time"

	"github.com/romariotrain/frames-service/internal/jobs/models"
	"github.com/romariotrain/frames-service/internal/jobs/service"
)

type SubmitResponse struct {
	Message string `json:"message"`
	JobID   int64  `json:"job_id"`
}

type JobResponse struct {
	ID          int64      `json:"id"`
	Filename    string     `json:"filename"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

type DownloadGrantResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toJobResponse(j models.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Filename:    j.Filename,
		State:       string(j.Status),
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

func toJobResponses(jobs []models.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	return out
}

func toGrantResponse(g *service.DownloadGrant) DownloadGrantResponse {
	return DownloadGrantResponse{
		Token:     g.Token,
		URL:       g.URL,
		ExpiresAt: g.ExpiresAt,
	}
}
