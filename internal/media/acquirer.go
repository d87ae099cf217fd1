package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
)

// Acquirer requests a camera exactly once and binds the resulting stream to a [Sink].
//
// A denied or failing camera leaves the acquirer Failed for the rest of its
// life; there is no retry. A stream that ends after the first frame moves it
// from Ready to Failed.
type Acquirer struct {
	camera Camera
	sink   *Sink
	logger *log.Logger

	once sync.Once

	mu       sync.Mutex
	state    models.Readiness
	err      error
	stream   Stream
	cancel   context.CancelFunc
	done     chan struct{}
	released bool
	lost     error
}

func NewAcquirer(camera Camera, sink *Sink, logger *log.Logger) *Acquirer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if sink == nil {
		sink = NewSink()
	}
	return &Acquirer{camera: camera, sink: sink, logger: logger}
}

// Sink returns the sink frames are delivered to.
func (a *Acquirer) Sink() *Sink {
	return a.sink
}

// Readiness returns the current acquisition state.
func (a *Acquirer) Readiness() models.Readiness {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err returns the acquisition failure, if any.
func (a *Acquirer) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Acquire opens the camera and waits for its first frame. Only the first call
// does any work; later calls return the first outcome.
//
// ctx bounds the wait for the first frame. The stream itself lives until [Acquirer.Release].
func (a *Acquirer) Acquire(ctx context.Context) error {
	a.once.Do(func() { a.acquire(ctx) })
	return a.Err()
}

func (a *Acquirer) acquire(ctx context.Context) {
	a.mu.Lock()
	if a.released {
		a.state, a.err = models.Failed, fmt.Errorf("%w: released before acquisition", shared.ErrCameraUnavailable)
		a.mu.Unlock()
		return
	}
	a.state, _ = a.state.Next(models.Requesting)
	a.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	stream, err := a.camera.Open(runCtx)
	if err != nil {
		cancel()
		a.fail(err)
		return
	}

	first := make(chan error, 1)
	done := make(chan struct{})
	go a.pump(runCtx, stream, first, done)

	select {
	case err = <-first:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		cancel()
		stream.Close()
		<-done
		a.fail(err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		cancel()
		stream.Close()
		a.state, a.err = models.Failed, fmt.Errorf("%w: released during acquisition", shared.ErrCameraUnavailable)
		return
	}
	a.stream, a.cancel, a.done = stream, cancel, done
	a.state, _ = a.state.Next(models.Ready)
	if a.lost != nil {
		a.state, _ = a.state.Next(models.Failed)
		a.err = a.lost
		a.logger.Error("camera lost", "error", a.lost)
		return
	}
	a.logger.Info("camera ready")
}

func (a *Acquirer) fail(err error) {
	if !errors.Is(err, shared.ErrCameraUnavailable) {
		err = fmt.Errorf("%w: %v", shared.ErrCameraUnavailable, err)
	}

	a.mu.Lock()
	a.state, _ = a.state.Next(models.Failed)
	a.err = err
	a.mu.Unlock()

	a.logger.Error("camera unavailable", "error", err)
}

// pump copies frames into the sink until the stream ends. The outcome of the
// first read is reported on first.
func (a *Acquirer) pump(ctx context.Context, stream Stream, first chan<- error, done chan<- struct{}) {
	defer close(done)

	reported := false
	report := func(err error) {
		if !reported {
			reported = true
			first <- err
		}
	}

	for {
		img, err := stream.Next(ctx)
		if err != nil {
			if !reported {
				report(err)
				return
			}
			if ctx.Err() == nil {
				a.lose(err)
			}
			return
		}
		a.sink.Put(img)
		report(nil)
	}
}

// lose marks a camera whose stream ended after the first frame as Failed.
func (a *Acquirer) lose(err error) {
	err = fmt.Errorf("%w: stream ended: %v", shared.ErrCameraUnavailable, err)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lost = err
	if a.state == models.Ready {
		a.state, _ = a.state.Next(models.Failed)
		a.err = err
		a.logger.Error("camera lost", "error", err)
	}
}

// Release stops the stream and frees the device. It is idempotent and safe to
// call before or without [Acquirer.Acquire].
func (a *Acquirer) Release() error {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return nil
	}
	a.released = true
	stream, cancel, done := a.stream, a.cancel, a.done
	a.stream, a.cancel, a.done = nil, nil, nil
	a.mu.Unlock()

	if stream == nil {
		return nil
	}

	cancel()
	err := stream.Close()
	<-done
	a.logger.Debug("camera released")
	return err
}
