package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/frames-service/internal/jobs/models"
	"github.com/romariotrain/frames-service/internal/jobs/repository"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) Create(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *RepoMock) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) GetByOwner(ctx context.Context, id int64, ownerID uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id, ownerID)
	if v := args.Get(0); v != nil {
		return v.(*models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Job, error) {
	args := m.Called(ctx, ownerID)
	if v := args.Get(0); v != nil {
		return v.([]models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) Transition(ctx context.Context, id int64, from, to models.Status, fields repository.TransitionFields) (*models.Job, error) {
	args := m.Called(ctx, id, from, to, fields)
	if v := args.Get(0); v != nil {
		return v.(*models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) ListStalled(ctx context.Context, status models.Status, before time.Time, limit int) ([]models.Job, error) {
	args := m.Called(ctx, status, before, limit)
	if v := args.Get(0); v != nil {
		return v.([]models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) Requeue(ctx context.Context, id int64) (*models.Job, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

type QueueMock struct {
	mock.Mock
}

func (m *QueueMock) Enqueue(ctx context.Context, d models.Dispatch) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

type BlobMock struct {
	mock.Mock
}

func (m *BlobMock) Upload(ctx context.Context, ref string, r io.Reader, size int64) error {
	args := m.Called(ctx, ref, r, size)
	return args.Error(0)
}

func (m *BlobMock) Download(ctx context.Context, ref string) (io.ReadCloser, error) {
	args := m.Called(ctx, ref)
	if v := args.Get(0); v != nil {
		return v.(io.ReadCloser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BlobMock) PresignedGet(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, ref, expiry)
	return args.String(0), args.Error(1)
}
