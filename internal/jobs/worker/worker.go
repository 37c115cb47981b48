package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/frames-service/internal/blob"
	"github.com/romariotrain/frames-service/internal/jobs/models"
	"github.com/romariotrain/frames-service/internal/jobs/repository"
	"github.com/romariotrain/frames-service/internal/notify"
	"github.com/romariotrain/frames-service/internal/token"
	"github.com/romariotrain/frames-service/internal/transform"
)

// Lease is the heartbeat the worker holds while a job is processing, so the
// reconciler can tell a live run from an orphaned one.
type Lease interface {
	Acquire(ctx context.Context, jobID int64, ttl time.Duration) (bool, error)
	Refresh(ctx context.Context, jobID int64, ttl time.Duration) error
	Release(ctx context.Context, jobID int64) error
}

type Options struct {
	SampleInterval time.Duration
	JobTimeout     time.Duration
	Heartbeat      time.Duration
	DownloadTTL    time.Duration
	// BaseURL prefixes the secure-download link placed in success emails.
	BaseURL string
}

// Worker executes dispatched jobs: claim, download, transform, upload,
// terminal transition, notify. It is the only actor that moves jobs out of
// processing.
type Worker struct {
	repo      repository.JobRepository
	blobs     blob.Gateway
	extractor transform.Extractor
	sink      notify.Sink
	directory notify.Directory
	leases    Lease
	codec     *token.Codec
	opts      Options
	clock     func() time.Time
	logger    zerolog.Logger
}

func New(repo repository.JobRepository, blobs blob.Gateway, extractor transform.Extractor, sink notify.Sink, directory notify.Directory, leases Lease, codec *token.Codec, opts Options, logger zerolog.Logger) *Worker {
	return &Worker{
		repo:      repo,
		blobs:     blobs,
		extractor: extractor,
		sink:      sink,
		directory: directory,
		leases:    leases,
		codec:     codec,
		opts:      opts,
		clock:     time.Now,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// Handle processes one dispatch message. A nil return means the message may
// be acknowledged: the job reached a terminal state, or it was a duplicate
// and was dropped. A non-nil return means infrastructure got in the way
// before any terminal transition, so the message must be redelivered.
func (w *Worker) Handle(ctx context.Context, d models.Dispatch) error {
	logger := w.logger.With().Int64("job_id", d.JobID).Logger()

	// Claim. Losing this race means another worker owns the job, or it is
	// already terminal; either way the message is spent.
	job, err := w.repo.Transition(ctx, d.JobID, models.PendingStatus, models.ProcessingStatus, repository.TransitionFields{})
	switch {
	case errors.Is(err, models.ErrStaleState):
		logger.Debug().Msg("dispatch already claimed or terminal, dropping")
		return nil
	case errors.Is(err, models.ErrNotFound):
		logger.Warn().Msg("dispatch for unknown job, dropping")
		return nil
	case err != nil:
		return fmt.Errorf("claim job: %w", err)
	}

	stopHeartbeat := w.startHeartbeat(ctx, d.JobID)
	defer stopHeartbeat()

	if cause, failErr := w.process(ctx, d); cause != "" {
		logger.Warn().Err(failErr).Str("cause", cause).Msg("job failed")
		return w.markFailed(ctx, job, cause)
	} else if failErr != nil {
		// Terminal-transition or notification-path infra trouble.
		return failErr
	}

	logger.Info().Msg("job completed")
	return nil
}

// process runs download, transform, upload and the completed transition.
// A non-empty cause means a job failure that must be recorded as terminal;
// an error with an empty cause is infrastructure trouble after the point of
// no return.
func (w *Worker) process(ctx context.Context, d models.Dispatch) (cause string, err error) {
	procCtx := ctx
	if w.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		procCtx, cancel = context.WithTimeout(ctx, w.opts.JobTimeout)
		defer cancel()
	}

	workDir, err := os.MkdirTemp("", "frames-job-*")
	if err != nil {
		return "could not allocate workspace", err
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input")
	if err := w.fetchInput(procCtx, d.InputRef, videoPath); err != nil {
		return "could not fetch input video", err
	}

	archivePath := filepath.Join(workDir, "frames.zip")
	if err := w.extractor.Extract(procCtx, videoPath, archivePath, w.opts.SampleInterval); err != nil {
		if errors.Is(procCtx.Err(), context.DeadlineExceeded) {
			return "processing time limit exceeded", err
		}
		return fmt.Sprintf("frame extraction failed: %v", err), err
	}

	if err := w.uploadArchive(procCtx, archivePath, d.OutputRef); err != nil {
		return "could not store result archive", err
	}

	now := w.clock()
	job, err := w.repo.Transition(ctx, d.JobID, models.ProcessingStatus, models.CompletedStatus, repository.TransitionFields{
		OutputRef:   &d.OutputRef,
		CompletedAt: &now,
	})
	if err != nil {
		if errors.Is(err, models.ErrStaleState) || errors.Is(err, models.ErrNotFound) {
			// Someone else finished the job's story; nothing left to do.
			w.logger.Warn().Int64("job_id", d.JobID).Err(err).Msg("completed transition lost")
			return "", nil
		}
		return "", fmt.Errorf("complete job: %w", err)
	}

	w.notifySuccess(ctx, job)
	return "", nil
}

func (w *Worker) fetchInput(ctx context.Context, ref, dst string) error {
	rc, err := w.blobs.Download(ctx, ref)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return err
	}
	return f.Sync()
}

func (w *Worker) uploadArchive(ctx context.Context, path, ref string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return w.blobs.Upload(ctx, ref, f, info.Size())
}

// markFailed records the terminal failure and sends the one failure
// notification. Losing the transition race here means the job already has a
// terminal story, so the message is treated as spent.
func (w *Worker) markFailed(ctx context.Context, job *models.Job, cause string) error {
	now := w.clock()
	failed, err := w.repo.Transition(ctx, job.ID, models.ProcessingStatus, models.FailedStatus, repository.TransitionFields{
		CompletedAt: &now,
	})
	if err != nil {
		if errors.Is(err, models.ErrStaleState) || errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fail job: %w", err)
	}

	w.notifyFailure(ctx, failed, cause)
	return nil
}

func (w *Worker) notifySuccess(ctx context.Context, job *models.Job) {
	recipient, err := w.directory.Email(ctx, job.OwnerID)
	if err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("resolve recipient")
		return
	}

	tok := w.codec.Mint(job.ID, job.OwnerID, w.opts.DownloadTTL)
	link := fmt.Sprintf("%s/videos/secure-download/%s", w.opts.BaseURL, tok)

	if err := w.sink.NotifySuccess(ctx, recipient, job.Filename, link); err != nil {
		// Best-effort only; never feeds back into job state.
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("success notification")
	}
}

func (w *Worker) notifyFailure(ctx context.Context, job *models.Job, cause string) {
	recipient, err := w.directory.Email(ctx, job.OwnerID)
	if err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("resolve recipient")
		return
	}

	if err := w.sink.NotifyFailure(ctx, recipient, job.Filename, cause); err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failure notification")
	}
}

// startHeartbeat keeps the processing lease fresh until the returned stop
// function is called. Lease trouble is logged, never escalated: the lease
// only informs the reconciler, it does not gate correctness.
func (w *Worker) startHeartbeat(ctx context.Context, jobID int64) func() {
	interval := w.opts.Heartbeat
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ttl := 3 * interval
	if ok, err := w.leases.Acquire(ctx, jobID, ttl); err != nil {
		w.logger.Warn().Err(err).Int64("job_id", jobID).Msg("lease acquire")
	} else if !ok {
		w.logger.Warn().Int64("job_id", jobID).Msg("lease already held")
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.leases.Refresh(ctx, jobID, ttl); err != nil {
					w.logger.Warn().Err(err).Int64("job_id", jobID).Msg("lease refresh")
				}
			}
		}
	}()

	return func() {
		close(done)
		if err := w.leases.Release(context.WithoutCancel(ctx), jobID); err != nil {
			w.logger.Warn().Err(err).Int64("job_id", jobID).Msg("lease release")
		}
	}
}
