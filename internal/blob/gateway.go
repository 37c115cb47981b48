package blob

import (
	"context"
	"io"
	"time"
)

// Gateway moves blobs in and out of object storage. References are opaque
// object keys; callers never assume anything about their shape beyond
// uniqueness.
type Gateway interface {
	Upload(ctx context.Context, ref string, r io.Reader, size int64) error
	Download(ctx context.Context, ref string) (io.ReadCloser, error)
	PresignedGet(ctx context.Context, ref string, expiry time.Duration) (string, error)
}
