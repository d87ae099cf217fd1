package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/emotion"
	"github.com/desertthunder/moodbeats/internal/inference"
	"github.com/desertthunder/moodbeats/internal/media"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/observability"
	"github.com/desertthunder/moodbeats/internal/shared"
)

// DefaultInterval is the capture period.
const DefaultInterval = 5 * time.Second

// ModelSource provides the inference adapter.
type ModelSource interface {
	Load(ctx context.Context) (*inference.Adapter, error)
	Readiness() models.Readiness
	Close() error
}

// SessionOpts configures a [Session]. Zero fields take defaults.
type SessionOpts struct {
	Interval time.Duration
	Metrics  *observability.Metrics
	Logger   *log.Logger
	// EventBuffer is the capacity of the event channel.
	EventBuffer int
}

// Session owns one capture lifetime: it acquires the camera and the models,
// ticks while both are ready, and tears everything down in [Session.Close].
type Session struct {
	camera     *media.Acquirer
	source     ModelSource
	dispatcher *Dispatcher
	interval   time.Duration
	metrics    *observability.Metrics
	logger     *log.Logger

	adapter *inference.Adapter
	busy    atomic.Bool
	wg      sync.WaitGroup
	lastSeq uint64

	// ctx is canceled by Close and bounds every Prepare, Tick and loop.
	ctx context.Context

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	started bool
	closing bool
	closed  bool
	cancel  context.CancelFunc
	events  chan Event
	status  Status
}

func NewSession(camera *media.Acquirer, source ModelSource, dispatcher *Dispatcher, opts SessionOpts) *Session {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ctx:        ctx,
		cancel:     cancel,
		camera:     camera,
		source:     source,
		dispatcher: dispatcher,
		interval:   opts.Interval,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		events:     make(chan Event, opts.EventBuffer),
	}
}

// Events delivers progress updates. Updates are dropped when nobody reads.
// The channel is closed by [Session.Close].
func (s *Session) Events() <-chan Event {
	return s.events
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.Camera = s.camera.Readiness()
	st.Models = s.source.Readiness()
	return st
}

// Prepare acquires the camera and loads the models concurrently, once. It
// fails unless both end up ready.
func (s *Session) Prepare(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return fmt.Errorf("%w: session closed", shared.ErrNotReady)
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, stop := s.bind(ctx)
	defer stop()

	var camErr, modelErr error
	var adapter *inference.Adapter

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.metrics.SetReadiness("camera", models.Requesting)
		camErr = s.camera.Acquire(ctx)
		s.readinessChanged(EventCamera, s.camera.Readiness(), camErr)
	}()
	go func() {
		defer wg.Done()
		s.metrics.SetReadiness("models", models.Requesting)
		adapter, modelErr = s.source.Load(ctx)
		s.readinessChanged(EventModels, s.source.Readiness(), modelErr)
	}()
	wg.Wait()

	if err := errors.Join(camErr, modelErr); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNotReady, err)
	}

	s.mu.Lock()
	s.adapter = adapter
	s.mu.Unlock()
	return nil
}

// bind derives a context from ctx that is also canceled when the session closes.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	unhook := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		unhook()
		cancel()
	}
}

func (s *Session) readinessChanged(kind EventKind, r models.Readiness, err error) {
	s.metrics.SetReadiness(string(kind), r)
	s.publish(Event{Kind: kind, Readiness: r, Err: err, At: time.Now()})
}

// Start prepares the session and, once camera and models are ready, starts
// ticking every interval until ctx is done or the session is closed. If
// either resource fails the loop never starts.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("capture session already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.Prepare(ctx); err != nil {
		s.logger.Warn("capture loop not started", "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return fmt.Errorf("%w: session closed", shared.ErrNotReady)
	}

	runCtx, stop := s.bind(ctx)
	s.status.Running = true

	s.wg.Add(1)
	go func() {
		defer stop()
		s.loop(runCtx)
	}()

	s.logger.Info("capture loop started", "interval", s.interval)
	return nil
}

func (s *Session) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.busy.CompareAndSwap(false, true) {
				s.metrics.ObserveTick(observability.TickBusy)
				s.logger.Debug("capture tick skipped, previous pass still running")
				continue
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.busy.Store(false)
				s.Tick(ctx)
			}()
		}
	}
}

// Tick runs one capture pass: latest frame, inference, reduction and upload.
// It requires a successful [Session.Prepare].
func (s *Session) Tick(ctx context.Context) Report {
	ctx, stop := s.bind(ctx)
	report := s.tick(ctx)
	stop()

	s.metrics.ObserveTick(report.Result)
	now := time.Now()

	s.mu.Lock()
	s.status.Ticks++
	s.status.LastTickAt = now
	s.status.LastResult = report.Result
	if report.Emotion != nil {
		s.status.LastEmotion = report.Emotion
		s.status.LastOutcome = report.Outcome
	}
	s.mu.Unlock()

	s.publish(Event{Kind: EventTick, Result: report.Result, Emotion: report.Emotion, Err: report.Err, At: now})
	if report.Emotion != nil {
		s.publish(Event{Kind: EventUpload, Emotion: report.Emotion, Outcome: report.Outcome, At: now})
	}
	return report
}

func (s *Session) tick(ctx context.Context) Report {
	s.mu.Lock()
	adapter := s.adapter
	s.mu.Unlock()

	if adapter == nil {
		return Report{Result: observability.TickError, Err: shared.ErrNotReady}
	}

	if s.camera.Readiness() != models.Ready {
		return Report{Result: observability.TickNoFrame, Err: s.camera.Err()}
	}

	frame, ok := s.camera.Sink().Latest()
	if !ok {
		return Report{Result: observability.TickNoFrame}
	}

	s.mu.Lock()
	stale := frame.Seq == s.lastSeq
	s.lastSeq = frame.Seq
	s.mu.Unlock()
	if stale {
		s.logger.Debug("capture tick skipped, no new frame since the last pass", "seq", frame.Seq)
		return Report{Result: observability.TickNoFrame}
	}

	start := time.Now()
	sample, found, err := adapter.Infer(ctx, frame.Image)
	s.metrics.ObserveInferenceLatency(time.Since(start))
	if err != nil {
		s.logger.Warn("inference failed", "error", err)
		return Report{Result: observability.TickError, Err: err}
	}
	if !found {
		return Report{Result: observability.TickNoFace}
	}

	e, err := emotion.Reduce(sample)
	if err != nil {
		s.logger.Warn("failed to reduce expression sample", "error", err)
		return Report{Result: observability.TickError, Err: err}
	}

	outcome := s.dispatcher.Dispatch(ctx, e)
	return Report{Result: observability.TickProcessed, Emotion: &e, Outcome: outcome}
}

// publish delivers ev without blocking; it is dropped when the buffer is full
// or the session is closed.
func (s *Session) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

// Close stops the loop, waits for any in-flight pass, releases the camera
// and the models, and closes the event channel. It is idempotent; nothing is
// published after it returns.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.close() })
	return s.closeErr
}

func (s *Session) close() error {
	s.mu.Lock()
	s.closing = true
	s.status.Running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	err := errors.Join(s.camera.Release(), s.source.Close())

	s.mu.Lock()
	stopped := Event{Kind: EventStopped, At: time.Now()}
	select {
	case s.events <- stopped:
	default:
		// make room so the final event is never lost
		select {
		case <-s.events:
		default:
		}
		s.events <- stopped
	}
	s.closed = true
	s.adapter = nil
	close(s.events)
	s.mu.Unlock()

	s.logger.Debug("capture session closed")
	return err
}
