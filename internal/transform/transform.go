// Package transform turns a video file into an archive of frames sampled at
// a fixed interval. The worker treats it as a black box: it either produces
// the archive or reports why the video could not be processed.
package transform

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnreadable means the input could not be decoded as a video.
	ErrUnreadable = errors.New("unreadable video")
	// ErrInvalidInterval means the sampling interval is zero or negative.
	ErrInvalidInterval = errors.New("invalid sampling interval")
)

// Extractor samples one frame every interval from the video at videoPath and
// writes a zip archive of the frames to archivePath. Entries are named by
// elapsed second: frame_0s.jpg, frame_20s.jpg, ...
type Extractor interface {
	Extract(ctx context.Context, videoPath, archivePath string, interval time.Duration) error
}
