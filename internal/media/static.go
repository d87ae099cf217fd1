package media

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/moodbeats/internal/shared"
)

// DefaultFrameInterval paces a [StaticCamera] when no interval is given.
const DefaultFrameInterval = 200 * time.Millisecond

// StaticCamera replays a fixed set of images in order, looping forever.
type StaticCamera struct {
	images   []image.Image
	interval time.Duration
}

// NewStaticCamera serves images every interval.
func NewStaticCamera(interval time.Duration, images ...image.Image) *StaticCamera {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &StaticCamera{images: images, interval: interval}
}

// LoadStaticCamera reads a JPEG/PNG file, or every such file in a directory in
// name order.
func LoadStaticCamera(path string, interval time.Duration) (*StaticCamera, error) {
	path = shared.ExpandPath(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCameraUnavailable, err)
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCameraUnavailable, err)
		}

		files = files[:0]
		for _, e := range entries {
			if e.IsDir() || !isImageFile(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(path, e.Name()))
		}
		sort.Strings(files)
	}

	images := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, err := decodeFile(f)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", shared.ErrCameraUnavailable, path)
	}
	return NewStaticCamera(interval, images...), nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCameraUnavailable, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

func (c *StaticCamera) Open(ctx context.Context) (Stream, error) {
	if len(c.images) == 0 {
		return nil, fmt.Errorf("%w: no images", shared.ErrCameraUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticStream{images: c.images, interval: c.interval, closed: make(chan struct{})}, nil
}

type staticStream struct {
	images    []image.Image
	interval  time.Duration
	next      int
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *staticStream) Next(ctx context.Context) (image.Image, error) {
	if s.next > 0 {
		timer := time.NewTimer(s.interval)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, io.EOF
		case <-timer.C:
		}
	}

	select {
	case <-s.closed:
		return nil, io.EOF
	default:
	}

	img := s.images[s.next%len(s.images)]
	s.next++
	return img, nil
}

func (s *staticStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
