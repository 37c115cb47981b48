package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/romariotrain/frames-service/internal/config"
)

// MinioGateway is the S3-compatible Gateway implementation used by both the
// API process and the workers.
type MinioGateway struct {
	client *minio.Client
	bucket string
}

func NewMinioGateway(cfg config.StorageConfig) (*MinioGateway, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &MinioGateway{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet. Called once at
// process start, not on the request path.
func (g *MinioGateway) EnsureBucket(ctx context.Context) error {
	exists, err := g.client.BucketExists(ctx, g.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := g.client.MakeBucket(ctx, g.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

func (g *MinioGateway) Upload(ctx context.Context, ref string, r io.Reader, size int64) error {
	_, err := g.client.PutObject(ctx, g.bucket, ref, r, size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("blob upload %s: %w", ref, err)
	}
	return nil
}

func (g *MinioGateway) Download(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj, err := g.client.GetObject(ctx, g.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blob download %s: %w", ref, err)
	}
	// GetObject is lazy; a Stat forces the first round trip so missing
	// objects fail here instead of on the first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("blob stat %s: %w", ref, err)
	}
	return obj, nil
}

func (g *MinioGateway) PresignedGet(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	u, err := g.client.PresignedGetObject(ctx, g.bucket, ref, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", ref, err)
	}
	return u.String(), nil
}
