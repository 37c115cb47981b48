package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/frames-service/internal/blob"
	"github.com/romariotrain/frames-service/internal/jobs/models"
	"github.com/romariotrain/frames-service/internal/jobs/repository"
	"github.com/romariotrain/frames-service/internal/token"
)

// Queue is the dispatch side of the work queue.
type Queue interface {
	Enqueue(ctx context.Context, d models.Dispatch) error
}

type Options struct {
	SampleInterval time.Duration
	DownloadTTL    time.Duration
}

// Service is the job orchestrator: it accepts submissions, dispatches them
// to the work queue and answers status and download queries. It never
// touches jobs past the pending state; terminal transitions belong to the
// worker.
type Service struct {
	repo   repository.JobRepository
	blobs  blob.Gateway
	queue  Queue
	codec  *token.Codec
	opts   Options
	clock  func() time.Time
	idGen  func() uuid.UUID
	logger zerolog.Logger
}

func New(repo repository.JobRepository, blobs blob.Gateway, queue Queue, codec *token.Codec, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		blobs:  blobs,
		queue:  queue,
		codec:  codec,
		opts:   opts,
		clock:  time.Now,
		idGen:  uuid.New,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Submit stores the raw video, creates a pending job and dispatches it.
// Storage and creation come first; if the enqueue then fails, the job is
// left durably pending for the reconciliation sweep and the caller still
// sees the failure.
func (s *Service) Submit(ctx context.Context, ownerID uuid.UUID, filename string, video io.Reader, size int64) (int64, error) {
	if ownerID == uuid.Nil || filename == "" || video == nil {
		return 0, models.ErrInvalidArgument
	}
	// A non-positive sampling interval would divide by zero in the frame
	// transform; reject it before anything is stored or dispatched.
	if s.opts.SampleInterval < time.Second {
		return 0, models.ErrInvalidArgument
	}

	inputRef := fmt.Sprintf("uploads/%s_%s", s.idGen(), filename)
	if err := s.blobs.Upload(ctx, inputRef, video, size); err != nil {
		return 0, fmt.Errorf("%w: upload input: %s", models.ErrStorageUnavailable, err)
	}

	j := &models.Job{
		OwnerID:   ownerID,
		Filename:  filename,
		InputRef:  inputRef,
		Status:    models.PendingStatus,
		CreatedAt: s.clock(),
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}

	d := models.Dispatch{
		InputRef:  j.InputRef,
		OutputRef: models.OutputRefFor(j.ID),
		JobID:     j.ID,
	}
	if err := s.queue.Enqueue(ctx, d); err != nil {
		// The pending row survives; the reconciler will redispatch it.
		s.logger.Error().
			Err(err).
			Int64("job_id", j.ID).
			Msg("dispatch enqueue failed, job left pending")
		return 0, fmt.Errorf("%w: enqueue dispatch: %s", models.ErrQueueUnavailable, err)
	}

	s.logger.Info().
		Int64("job_id", j.ID).
		Str("owner_id", ownerID.String()).
		Str("filename", filename).
		Msg("job submitted")
	return j.ID, nil
}

// Status returns the caller's jobs in creation order. Read-only.
func (s *Service) Status(ctx context.Context, ownerID uuid.UUID) ([]models.Job, error) {
	if ownerID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

// DownloadGrant is a freshly minted capability for one completed job.
type DownloadGrant struct {
	Token     string
	URL       string
	ExpiresAt time.Time
}

// RequestDownload mints a capability token and a presigned storage URL for
// a completed job owned by the caller.
func (s *Service) RequestDownload(ctx context.Context, jobID int64, ownerID uuid.UUID) (*DownloadGrant, error) {
	j, err := s.repo.GetByOwner(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}
	if j.Status != models.CompletedStatus {
		return nil, models.ErrNotReady
	}

	url, err := s.blobs.PresignedGet(ctx, *j.OutputRef, s.opts.DownloadTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: presign output: %s", models.ErrStorageUnavailable, err)
	}
	return &DownloadGrant{
		Token:     s.codec.Mint(j.ID, j.OwnerID, s.opts.DownloadTTL),
		URL:       url,
		ExpiresAt: s.clock().Add(s.opts.DownloadTTL),
	}, nil
}

// OpenOutput streams a completed job's archive for the owner-scoped direct
// download path. The caller must close the reader.
func (s *Service) OpenOutput(ctx context.Context, jobID int64, ownerID uuid.UUID) (io.ReadCloser, *models.Job, error) {
	j, err := s.repo.GetByOwner(ctx, jobID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if j.Status != models.CompletedStatus {
		return nil, nil, models.ErrNotReady
	}

	rc, err := s.blobs.Download(ctx, *j.OutputRef)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open output: %s", models.ErrStorageUnavailable, err)
	}
	return rc, j, nil
}

// ResolveSecureDownload verifies a capability token and returns a presigned
// URL to redirect to. Token errors pass through so the transport can map
// them to 403; a job that is missing or not completed reads as not found,
// and no storage call is made for an invalid token.
func (s *Service) ResolveSecureDownload(ctx context.Context, tok string) (string, error) {
	claims, err := s.codec.Verify(tok)
	if err != nil {
		return "", err
	}

	j, err := s.repo.GetByOwner(ctx, claims.JobID, claims.OwnerID)
	if err != nil {
		return "", err
	}
	if j.Status != models.CompletedStatus {
		return "", models.ErrNotFound
	}

	url, err := s.blobs.PresignedGet(ctx, *j.OutputRef, s.opts.DownloadTTL)
	if err != nil {
		return "", fmt.Errorf("%w: presign output: %s", models.ErrStorageUnavailable, err)
	}
	return url, nil
}
