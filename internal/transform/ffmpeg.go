package transform

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FFmpegExtractor shells out to ffmpeg to decode the video and sample one
// frame per interval, then packs the frames into a zip archive.
type FFmpegExtractor struct {
	// Binary overrides the ffmpeg executable name, for tests.
	Binary string
}

func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{Binary: "ffmpeg"}
}

func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath, archivePath string, interval time.Duration) error {
	seconds := int(interval / time.Second)
	if seconds <= 0 {
		return ErrInvalidInterval
	}

	frameDir, err := os.MkdirTemp("", "frames-*")
	if err != nil {
		return fmt.Errorf("frame dir: %w", err)
	}
	defer os.RemoveAll(frameDir)

	// fps=1/N emits the frame nearest each N-second boundary, starting at 0s.
	cmd := exec.CommandContext(ctx, e.Binary,
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d", seconds),
		"-start_number", "0",
		filepath.Join(frameDir, "raw_%d.jpg"),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", ErrUnreadable, firstLine(stderr.String()))
	}

	frames, err := sampledFrames(frameDir)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames decoded", ErrUnreadable)
	}

	return writeArchive(archivePath, frameDir, frames, seconds)
}

// sampledFrames returns the raw frame file names ordered by sample index.
func sampledFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "raw_") && strings.HasSuffix(entry.Name(), ".jpg") {
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return frameIndex(names[i]) < frameIndex(names[j])
	})
	return names, nil
}

func frameIndex(name string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "raw_"), ".jpg"))
	return n
}

// ArchiveEntryName maps the i-th sampled frame to its archive entry name,
// keyed by elapsed second.
func ArchiveEntryName(index, intervalSeconds int) string {
	return fmt.Sprintf("frame_%ds.jpg", index*intervalSeconds)
}

func writeArchive(archivePath, frameDir string, frames []string, intervalSeconds int) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, name := range frames {
		if err := addEntry(zw, filepath.Join(frameDir, name), ArchiveEntryName(frameIndex(name), intervalSeconds)); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, path, entryName string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	w, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", entryName, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write entry %s: %w", entryName, err)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "ffmpeg failed"
	}
	return s
}
