package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestFrameScanner(t *testing.T) {
	a := encodeJPEG(t, solid(8, 8, color.White))
	b := encodeJPEG(t, solid(16, 4, color.Black))

	var stream bytes.Buffer
	stream.WriteString("ffmpeg noise")
	stream.Write(a)
	stream.Write([]byte{0x00, 0x01})
	stream.Write(b)
	stream.Write(b[:10])

	sc := NewFrameScanner(&stream)

	var frames [][]byte
	for sc.Scan() {
		frames = append(frames, append([]byte(nil), sc.Bytes()...))
	}
	require.NoError(t, sc.Err())
	require.Len(t, frames, 2)
	assert.Equal(t, a, frames[0])
	assert.Equal(t, b, frames[1])

	img, err := jpeg.Decode(bytes.NewReader(frames[1]))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestFFmpegArgs(t *testing.T) {
	cam := NewFFmpegCamera(shared.CameraConfig{
		InputFormat: "v4l2",
		Device:      "/dev/video0",
		Width:       640,
		Height:      480,
		FrameRate:   5,
	})

	args := cam.Args()
	assert.Subset(t, args, []string{"-f", "v4l2", "-framerate", "5", "-video_size", "640x480", "-i", "/dev/video0", "image2pipe", "mjpeg"})
	assert.Equal(t, "-", args[len(args)-1])
}

func TestFFmpegMissingBinary(t *testing.T) {
	cam := NewFFmpegCamera(shared.CameraConfig{FFmpegPath: "/nonexistent/ffmpeg", Device: "/dev/video0"})

	_, err := cam.Open(context.Background())
	assert.ErrorIs(t, err, shared.ErrCameraUnavailable)
}

func TestSink(t *testing.T) {
	s := NewSink()

	_, ok := s.Latest()
	assert.False(t, ok)

	s.Put(solid(1, 1, color.White))
	s.Put(solid(2, 2, color.White))

	f, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), f.Seq)
	assert.Equal(t, 2, f.Image.Bounds().Dx())
	assert.False(t, f.At.IsZero())
}

func TestStaticCamera(t *testing.T) {
	t.Run("cycles images", func(t *testing.T) {
		white, black := solid(1, 1, color.White), solid(2, 2, color.Black)
		stream, err := NewStaticCamera(time.Millisecond, white, black).Open(context.Background())
		require.NoError(t, err)
		defer stream.Close()

		ctx := context.Background()
		for _, want := range []image.Image{white, black, white} {
			got, err := stream.Next(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("closed stream ends", func(t *testing.T) {
		stream, err := NewStaticCamera(time.Hour, solid(1, 1, color.White)).Open(context.Background())
		require.NoError(t, err)

		_, err = stream.Next(context.Background())
		require.NoError(t, err)

		require.NoError(t, stream.Close())
		require.NoError(t, stream.Close())

		_, err = stream.Next(context.Background())
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewStaticCamera(0).Open(context.Background())
		assert.ErrorIs(t, err, shared.ErrCameraUnavailable)
	})

	t.Run("load directory", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"b.png", "a.png"} {
			f, err := os.Create(filepath.Join(dir, name))
			require.NoError(t, err)
			require.NoError(t, png.Encode(f, solid(3, 3, color.White)))
			f.Close()
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))

		cam, err := LoadStaticCamera(dir, time.Millisecond)
		require.NoError(t, err)
		assert.Len(t, cam.images, 2)
	})

	t.Run("load missing path", func(t *testing.T) {
		_, err := LoadStaticCamera(filepath.Join(t.TempDir(), "nope.jpg"), 0)
		assert.ErrorIs(t, err, shared.ErrCameraUnavailable)
	})
}

type countingCamera struct {
	opens atomic.Int32
	inner Camera
	err   error
}

func (c *countingCamera) Open(ctx context.Context) (Stream, error) {
	c.opens.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Open(ctx)
}

type silentCamera struct{}

func (silentCamera) Open(context.Context) (Stream, error) {
	return &staticStream{interval: time.Hour, closed: make(chan struct{}), images: []image.Image{nil}, next: 1}, nil
}

type oneFrameCamera struct{ unplug chan struct{} }

func (c oneFrameCamera) Open(context.Context) (Stream, error) {
	return &oneFrameStream{unplug: c.unplug}, nil
}

type oneFrameStream struct {
	unplug chan struct{}
	sent   bool
}

func (s *oneFrameStream) Next(ctx context.Context) (image.Image, error) {
	if !s.sent {
		s.sent = true
		return solid(2, 2, color.White), nil
	}
	select {
	case <-s.unplug:
		return nil, errors.New("device unplugged")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *oneFrameStream) Close() error { return nil }

func TestAcquirer(t *testing.T) {
	t.Run("first frame makes it ready", func(t *testing.T) {
		cam := &countingCamera{inner: NewStaticCamera(time.Millisecond, solid(4, 4, color.White))}
		a := NewAcquirer(cam, nil, nil)

		require.NoError(t, a.Acquire(context.Background()))
		assert.Equal(t, models.Ready, a.Readiness())

		_, ok := a.Sink().Latest()
		assert.True(t, ok)

		require.NoError(t, a.Release())
		require.NoError(t, a.Release())
	})

	t.Run("requested once per mount", func(t *testing.T) {
		cam := &countingCamera{err: errors.New("permission denied")}
		a := NewAcquirer(cam, nil, nil)

		err := a.Acquire(context.Background())
		assert.ErrorIs(t, err, shared.ErrCameraUnavailable)
		assert.Equal(t, models.Failed, a.Readiness())

		err = a.Acquire(context.Background())
		assert.ErrorIs(t, err, shared.ErrCameraUnavailable)
		assert.Equal(t, int32(1), cam.opens.Load())
		assert.Equal(t, models.Failed, a.Readiness())
	})

	t.Run("no first frame before deadline", func(t *testing.T) {
		a := NewAcquirer(silentCamera{}, nil, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := a.Acquire(ctx)
		assert.ErrorIs(t, err, shared.ErrCameraUnavailable)
		assert.Equal(t, models.Failed, a.Readiness())
		require.NoError(t, a.Release())
	})

	t.Run("stream ending after ready fails the camera", func(t *testing.T) {
		unplug := make(chan struct{})
		a := NewAcquirer(oneFrameCamera{unplug: unplug}, nil, nil)

		require.NoError(t, a.Acquire(context.Background()))
		assert.Equal(t, models.Ready, a.Readiness())

		close(unplug)
		require.Eventually(t, func() bool { return a.Readiness() == models.Failed }, time.Second, time.Millisecond)
		assert.ErrorIs(t, a.Err(), shared.ErrCameraUnavailable)
		require.NoError(t, a.Release())
	})

	t.Run("release does not fail a ready camera", func(t *testing.T) {
		a := NewAcquirer(oneFrameCamera{unplug: make(chan struct{})}, nil, nil)

		require.NoError(t, a.Acquire(context.Background()))
		require.NoError(t, a.Release())
		assert.Equal(t, models.Ready, a.Readiness())
		assert.NoError(t, a.Err())
	})

	t.Run("release before acquire", func(t *testing.T) {
		cam := &countingCamera{inner: NewStaticCamera(time.Millisecond, solid(1, 1, color.White))}
		a := NewAcquirer(cam, nil, nil)

		require.NoError(t, a.Release())
		assert.ErrorIs(t, a.Acquire(context.Background()), shared.ErrCameraUnavailable)
		assert.Zero(t, cam.opens.Load())
	})
}
