package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/frames-service/internal/jobs/models"
	"github.com/romariotrain/frames-service/internal/jobs/repository"
	"github.com/romariotrain/frames-service/internal/token"
	"github.com/romariotrain/frames-service/internal/transform"
)

// fakeBlobs keeps blobs in a map.
type fakeBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: make(map[string][]byte)}
}

func (f *fakeBlobs) Upload(ctx context.Context, ref string, r io.Reader, size int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[ref] = b
	return nil
}

func (f *fakeBlobs) Download(ctx context.Context, ref string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[ref]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlobs) PresignedGet(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	return "https://storage.example.com/" + ref, nil
}

// stubExtractor writes a two-entry archive, or fails.
type stubExtractor struct {
	fail error
	// block keeps extracting until the context dies.
	block bool
}

func (s *stubExtractor) Extract(ctx context.Context, videoPath, archivePath string, interval time.Duration) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.fail != nil {
		return s.fail
	}
	if _, err := os.Stat(videoPath); err != nil {
		return err
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, name := range []string{"frame_0s.jpg", "frame_1s.jpg"} {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("jpeg")); err != nil {
			return err
		}
	}
	return zw.Close()
}

type notification struct {
	recipient string
	jobName   string
	detail    string
	success   bool
}

// recordingSink captures notifications; optionally errors.
type recordingSink struct {
	mu   sync.Mutex
	sent []notification
	fail error
}

func (s *recordingSink) NotifySuccess(ctx context.Context, recipient, jobName, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, notification{recipient: recipient, jobName: jobName, detail: link, success: true})
	return s.fail
}

func (s *recordingSink) NotifyFailure(ctx context.Context, recipient, jobName, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, notification{recipient: recipient, jobName: jobName, detail: errText})
	return s.fail
}

type staticDirectory struct{ email string }

func (d staticDirectory) Email(ctx context.Context, ownerID uuid.UUID) (string, error) {
	return d.email, nil
}

type noopLease struct{}

func (noopLease) Acquire(ctx context.Context, jobID int64, ttl time.Duration) (bool, error) {
	return true, nil
}
func (noopLease) Refresh(ctx context.Context, jobID int64, ttl time.Duration) error { return nil }
func (noopLease) Release(ctx context.Context, jobID int64) error                    { return nil }

type fixture struct {
	worker *Worker
	repo   *repository.MemoryRepository
	blobs  *fakeBlobs
	sink   *recordingSink
	codec  *token.Codec
}

func newFixture(t *testing.T, extractor transform.Extractor) *fixture {
	t.Helper()
	repo := repository.NewMemoryRepository()
	blobs := newFakeBlobs()
	sink := &recordingSink{}
	codec := token.NewCodec([]byte("test-secret"))

	w := New(repo, blobs, extractor, sink, staticDirectory{email: "owner@example.com"}, noopLease{}, codec, Options{
		SampleInterval: time.Second,
		JobTimeout:     time.Minute,
		Heartbeat:      time.Second,
		DownloadTTL:    time.Hour,
		BaseURL:        "https://frames.example.com",
	}, zerolog.Nop())

	return &fixture{worker: w, repo: repo, blobs: blobs, sink: sink, codec: codec}
}

func (f *fixture) submitJob(t *testing.T, ctx context.Context) (*models.Job, models.Dispatch) {
	t.Helper()
	j := &models.Job{
		OwnerID:   uuid.New(),
		Filename:  "clip.mp4",
		InputRef:  "uploads/abc_clip.mp4",
		Status:    models.PendingStatus,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.repo.Create(ctx, j))
	require.NoError(t, f.blobs.Upload(ctx, j.InputRef, strings.NewReader("videobytes"), 10))
	return j, models.Dispatch{InputRef: j.InputRef, OutputRef: models.OutputRefFor(j.ID), JobID: j.ID}
}

func TestHandle_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubExtractor{})
	j, d := f.submitJob(t, ctx)

	require.NoError(t, f.worker.Handle(ctx, d))

	got, err := f.repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletedStatus, got.Status)
	require.NotNil(t, got.OutputRef)
	assert.Equal(t, d.OutputRef, *got.OutputRef)
	require.NotNil(t, got.CompletedAt)

	// The archive landed in storage.
	rc, err := f.blobs.Download(ctx, d.OutputRef)
	require.NoError(t, err)
	rc.Close()

	// Exactly one success notification, carrying a verifiable capability link.
	require.Len(t, f.sink.sent, 1)
	n := f.sink.sent[0]
	assert.True(t, n.success)
	assert.Equal(t, "owner@example.com", n.recipient)
	assert.Equal(t, "clip.mp4", n.jobName)

	tok := n.detail[strings.LastIndex(n.detail, "/")+1:]
	claims, err := f.codec.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, j.ID, claims.JobID)
	assert.Equal(t, j.OwnerID, claims.OwnerID)
}

func TestHandle_TransformFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubExtractor{fail: transform.ErrUnreadable})
	j, d := f.submitJob(t, ctx)

	// A transform failure is a job failure, not a handler error.
	require.NoError(t, f.worker.Handle(ctx, d))

	got, err := f.repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FailedStatus, got.Status)
	assert.Nil(t, got.OutputRef)
	require.NotNil(t, got.CompletedAt)

	require.Len(t, f.sink.sent, 1)
	n := f.sink.sent[0]
	assert.False(t, n.success)
	assert.Contains(t, n.detail, "frame extraction failed")
}

func TestHandle_MissingInputBlobIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubExtractor{})

	j := &models.Job{
		OwnerID:   uuid.New(),
		Filename:  "gone.mp4",
		InputRef:  "uploads/never-uploaded.mp4",
		Status:    models.PendingStatus,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.repo.Create(ctx, j))

	d := models.Dispatch{InputRef: j.InputRef, OutputRef: models.OutputRefFor(j.ID), JobID: j.ID}
	require.NoError(t, f.worker.Handle(ctx, d))

	got, err := f.repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FailedStatus, got.Status)

	require.Len(t, f.sink.sent, 1)
	assert.Contains(t, f.sink.sent[0].detail, "could not fetch input video")
}

func TestHandle_AlreadyClaimedDropsSilently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubExtractor{})
	j, d := f.submitJob(t, ctx)

	_, err := f.repo.Transition(ctx, j.ID, models.PendingStatus, models.ProcessingStatus, repository.TransitionFields{})
	require.NoError(t, err)

	// Redelivery of a claimed job: dropped, nothing changes, no notification.
	require.NoError(t, f.worker.Handle(ctx, d))

	got, err := f.repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatus, got.Status)
	assert.Empty(t, f.sink.sent)
}

func TestHandle_TerminalJobDropsSilently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubExtractor{})
	j, d := f.submitJob(t, ctx)

	require.NoError(t, f.worker.Handle(ctx, d))
	require.Len(t, f.sink.sent, 1)

	// Second delivery of the same message finds a terminal job.
	require.NoError(t, f.worker.Handle(ctx, d))

	got, err := f.repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletedStatus, got.Status)
	assert.Len(t, f.sink.sent, 1, "no duplicate notification")
}

func TestHandle_UnknownJobDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubExtractor{})

	d := models.Dispatch{InputRef: "uploads/x", OutputRef: "outputs/99.zip", JobID: 99}
	require.NoError(t, f.worker.Handle(ctx, d))
	assert.Empty(t, f.sink.sent)
}

func TestHandle_TimeoutIsJobFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubExtractor{block: true})
	f.worker.opts.JobTimeout = 50 * time.Millisecond
	j, d := f.submitJob(t, ctx)

	require.NoError(t, f.worker.Handle(ctx, d))

	got, err := f.repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FailedStatus, got.Status)

	require.Len(t, f.sink.sent, 1)
	assert.Contains(t, f.sink.sent[0].detail, "time limit")
}

func TestHandle_NotificationFailureDoesNotChangeState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubExtractor{})
	f.sink.fail = errors.New("smtp down")
	j, d := f.submitJob(t, ctx)

	require.NoError(t, f.worker.Handle(ctx, d))

	got, err := f.repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletedStatus, got.Status)
}

func TestHandle_InfraErrorOnClaimIsReturned(t *testing.T) {
	f := newFixture(t, &stubExtractor{})
	_, d := f.submitJob(t, context.Background())

	// A dead context stands in for an unreachable store: the handler must
	// surface the error so the message stays unacknowledged.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.worker.Handle(ctx, d)
	require.Error(t, err)
}
