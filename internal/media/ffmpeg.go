package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/desertthunder/moodbeats/internal/shared"
)

const maxFrameSize = 8 << 20

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpegCamera reads a capture device through an ffmpeg subprocess that
// writes an MJPEG stream to stdout.
type FFmpegCamera struct {
	cfg shared.CameraConfig
}

func NewFFmpegCamera(cfg shared.CameraConfig) *FFmpegCamera {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &FFmpegCamera{cfg: cfg}
}

// Args returns the ffmpeg arguments used to open the device.
func (c *FFmpegCamera) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if c.cfg.InputFormat != "" {
		args = append(args, "-f", c.cfg.InputFormat)
	}
	if c.cfg.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(c.cfg.FrameRate))
	}
	if c.cfg.Width > 0 && c.cfg.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height))
	}
	return append(args,
		"-i", c.cfg.Device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	)
}

// Open starts ffmpeg. The process is killed when ctx is done or the stream is closed.
func (c *FFmpegCamera) Open(ctx context.Context) (Stream, error) {
	path, err := exec.LookPath(c.cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found: %v", shared.ErrCameraUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, path, c.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach ffmpeg stdout: %w", err)
	}

	stderr := &tailBuffer{limit: 2048}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", shared.ErrCameraUnavailable, err)
	}

	return &ffmpegStream{
		cmd:    cmd,
		stdout: stdout,
		frames: NewFrameScanner(stdout),
		stderr: stderr,
	}, nil
}

type ffmpegStream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	frames    *bufio.Scanner
	stderr    *tailBuffer
	closeOnce sync.Once
}

func (s *ffmpegStream) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.frames.Scan() {
		err := s.frames.Err()
		if err == nil {
			err = io.EOF
		}
		if msg := s.stderr.String(); msg != "" {
			return nil, fmt.Errorf("%w: ffmpeg stream ended: %v: %s", shared.ErrCameraUnavailable, err, msg)
		}
		return nil, fmt.Errorf("%w: ffmpeg stream ended: %v", shared.ErrCameraUnavailable, err)
	}

	img, err := jpeg.Decode(bytes.NewReader(s.frames.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.stdout.Close()
		s.cmd.Wait()
	})
	return nil
}

// NewFrameScanner splits an MJPEG byte stream into JPEG images.
func NewFrameScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256<<10), maxFrameSize)
	sc.Split(splitJPEG)
	return sc
}

// splitJPEG is a [bufio.SplitFunc] yielding SOI..EOI segments. Bytes before an
// SOI marker are discarded.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a trailing 0xFF that may begin the next marker
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}
