package capture

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/moodbeats/internal/inference"
	"github.com/desertthunder/moodbeats/internal/media"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/observability"
	"github.com/desertthunder/moodbeats/internal/services"
	"github.com/desertthunder/moodbeats/internal/session"
	"github.com/desertthunder/moodbeats/internal/shared"
	tu "github.com/desertthunder/moodbeats/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memJournal struct {
	mu      sync.Mutex
	entries []*models.JournalEntry
}

func (j *memJournal) Create(e *models.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) outcomes() []models.Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.Outcome
	for _, e := range j.entries {
		out = append(out, e.Outcome())
	}
	return out
}

func newStub(t *testing.T) *tu.APIStub {
	stub := tu.NewAPIStub(t)
	stub.Respond(services.PathStoreEmotion, http.StatusOK, map[string]string{"message": "Emotion stored successfully"})
	return stub
}

func newAPI(stub *tu.APIStub, store session.Store) *services.Client {
	return services.NewClient(stub.URL, nil, session.NewTokenSource(store))
}

func TestDispatcher(t *testing.T) {
	happy := models.Emotion{Label: "happy", Confidence: 87}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no token makes no network call", func(t *testing.T) {
		stub := newStub(t)
		store := tu.NewMemStore()
		journal := &memJournal{}

		d := NewDispatcher(newAPI(stub, store), store, DispatcherOpts{Journal: journal})
		outcome := d.Dispatch(context.Background(), happy)

		assert.Equal(t, models.OutcomeSkippedNoToken, outcome)
		assert.Zero(t, stub.Hits())
		assert.Equal(t, []models.Outcome{models.OutcomeSkippedNoToken}, journal.outcomes())
	})

	t.Run("sends one record", func(t *testing.T) {
		stub := newStub(t)
		store := tu.NewMemStore(session.TokenKey, "T")
		metrics := observability.NewMetrics("test")

		d := NewDispatcher(newAPI(stub, store), store, DispatcherOpts{
			Metrics: metrics,
			Now:     func() time.Time { return at },
		})
		outcome := d.Dispatch(context.Background(), happy)
		require.Equal(t, models.OutcomeSent, outcome)

		reqs := stub.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "Bearer T", reqs[0].Auth)

		var body map[string]any
		require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
		assert.Equal(t, "happy", body["emotion"])
		assert.Equal(t, 87.0, body["confidence"])
		assert.Equal(t, "2026-03-01T12:00:00.000Z", body["timestamp"])

		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Uploads.WithLabelValues("sent")))
	})

	t.Run("failure is not retried", func(t *testing.T) {
		stub := tu.NewAPIStub(t)
		stub.Respond(services.PathStoreEmotion, http.StatusInternalServerError, map[string]string{"error": "db down"})
		store := tu.NewMemStore(session.TokenKey, "T")
		journal := &memJournal{}

		d := NewDispatcher(newAPI(stub, store), store, DispatcherOpts{Journal: journal})
		outcome := d.Dispatch(context.Background(), happy)

		assert.Equal(t, models.OutcomeFailed, outcome)
		assert.Equal(t, 1, stub.Hits())
		require.Len(t, journal.entries, 1)
		assert.Contains(t, journal.entries[0].Detail(), "db down")
	})

	t.Run("debounce", func(t *testing.T) {
		stub := newStub(t)
		store := tu.NewMemStore(session.TokenKey, "T")

		now := at
		d := NewDispatcher(newAPI(stub, store), store, DispatcherOpts{
			MinInterval: 4 * time.Second,
			Now:         func() time.Time { return now },
		})

		assert.Equal(t, models.OutcomeSent, d.Dispatch(context.Background(), happy))
		now = now.Add(time.Second)
		assert.Equal(t, models.OutcomeSkippedDebounced, d.Dispatch(context.Background(), happy))
		now = now.Add(4 * time.Second)
		assert.Equal(t, models.OutcomeSent, d.Dispatch(context.Background(), happy))
		assert.Equal(t, 2, stub.Hits())
	})
}

type fakeDetector struct{ found bool }

func (f *fakeDetector) DetectSingleFace(_ context.Context, img image.Image) (inference.Box, bool, error) {
	return inference.Box{Rect: img.Bounds(), Score: 0.9}, f.found, nil
}

func (f *fakeDetector) Close() error { return nil }

type fakeClassifier struct {
	sample models.ExpressionSample
	block  chan struct{}
}

func (f *fakeClassifier) Expressions(ctx context.Context, _ image.Image, _ inference.Box) (models.ExpressionSample, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.sample, nil
}

func (f *fakeClassifier) Close() error { return nil }

type fakeSource struct {
	mu      sync.Mutex
	adapter *inference.Adapter
	err     error
	state   models.Readiness
	closes  int
}

func (f *fakeSource) Load(context.Context) (*inference.Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		f.state = models.Failed
		return nil, f.err
	}
	f.state = models.Ready
	return f.adapter, nil
}

func (f *fakeSource) Readiness() models.Readiness {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

type deniedCamera struct{}

func (deniedCamera) Open(context.Context) (media.Stream, error) {
	return nil, errors.New("permission denied")
}

// unpluggedCamera delivers one frame, then fails once unplug is closed.
// A nil unplug never delivers a frame at all.
type unpluggedCamera struct {
	unplug chan struct{}
	silent bool
}

func (c unpluggedCamera) Open(context.Context) (media.Stream, error) {
	return &unpluggedStream{cam: c}, nil
}

type unpluggedStream struct {
	cam  unpluggedCamera
	sent bool
}

func (s *unpluggedStream) Next(ctx context.Context) (image.Image, error) {
	if !s.sent && !s.cam.silent {
		s.sent = true
		return frame(), nil
	}
	select {
	case <-s.cam.unplug:
		return nil, errors.New("device unplugged")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *unpluggedStream) Close() error { return nil }

func frame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	return img
}

func happySource(block chan struct{}) *fakeSource {
	return &fakeSource{adapter: inference.NewAdapter(
		&fakeDetector{found: true},
		&fakeClassifier{sample: models.ExpressionSample{"happiness": 0.873, "neutral": 0.1, "sadness": 0.027}, block: block},
	)}
}

func newSession(t *testing.T, cam media.Camera, source ModelSource, stub *tu.APIStub, metrics *observability.Metrics) *Session {
	t.Helper()
	store := tu.NewMemStore(session.TokenKey, "T")
	d := NewDispatcher(newAPI(stub, store), store, DispatcherOpts{Metrics: metrics})
	s := NewSession(media.NewAcquirer(cam, nil, nil), source, d, SessionOpts{
		Interval: 5 * time.Millisecond,
		Metrics:  metrics,
	})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSession(t *testing.T) {
	t.Run("camera never ready means no tick and no upload", func(t *testing.T) {
		stub := newStub(t)
		source := happySource(nil)
		s := newSession(t, deniedCamera{}, source, stub, nil)

		err := s.Start(context.Background())
		assert.ErrorIs(t, err, shared.ErrNotReady)

		time.Sleep(50 * time.Millisecond)
		st := s.Status()
		assert.Equal(t, models.Failed, st.Camera)
		assert.False(t, st.Running)
		assert.Zero(t, st.Ticks)
		assert.Zero(t, stub.Hits())
	})

	t.Run("models never ready means no tick", func(t *testing.T) {
		stub := newStub(t)
		s := newSession(t, media.NewStaticCamera(time.Millisecond, frame()), &fakeSource{err: shared.ErrModelsUnavailable}, stub, nil)

		require.ErrorIs(t, s.Start(context.Background()), shared.ErrNotReady)
		time.Sleep(30 * time.Millisecond)
		assert.Zero(t, s.Status().Ticks)
		assert.Zero(t, stub.Hits())
	})

	t.Run("ticks upload the reduced emotion", func(t *testing.T) {
		stub := newStub(t)
		s := newSession(t, media.NewStaticCamera(time.Millisecond, frame()), happySource(nil), stub, nil)

		require.NoError(t, s.Start(context.Background()))
		require.Eventually(t, func() bool { return stub.Hits() >= 1 }, time.Second, 5*time.Millisecond)

		var body map[string]any
		require.NoError(t, json.Unmarshal(stub.Requests()[0].Body, &body))
		assert.Equal(t, "happy", body["emotion"])
		assert.Equal(t, 87.0, body["confidence"])

		st := s.Status()
		assert.True(t, st.Running)
		require.NotNil(t, st.LastEmotion)
		assert.Equal(t, "happy", st.LastEmotion.Label)
	})

	t.Run("no face skips the upload", func(t *testing.T) {
		stub := newStub(t)
		source := &fakeSource{adapter: inference.NewAdapter(&fakeDetector{}, &fakeClassifier{})}
		s := newSession(t, media.NewStaticCamera(time.Millisecond, frame()), source, stub, nil)

		require.NoError(t, s.Prepare(context.Background()))
		report := s.Tick(context.Background())
		assert.Equal(t, observability.TickNoFace, report.Result)
		assert.Nil(t, report.Emotion)
		assert.Zero(t, stub.Hits())
	})

	t.Run("overlapping ticks are skipped", func(t *testing.T) {
		stub := newStub(t)
		metrics := observability.NewMetrics("test")
		block := make(chan struct{})
		s := newSession(t, media.NewStaticCamera(time.Millisecond, frame()), happySource(block), stub, metrics)

		require.NoError(t, s.Start(context.Background()))
		require.Eventually(t, func() bool {
			return testutil.ToFloat64(metrics.Ticks.WithLabelValues(observability.TickBusy)) >= 2
		}, time.Second, 5*time.Millisecond)

		close(block)
		require.Eventually(t, func() bool { return stub.Hits() >= 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("close tears everything down once", func(t *testing.T) {
		stub := newStub(t)
		source := happySource(nil)
		s := newSession(t, media.NewStaticCamera(time.Millisecond, frame()), source, stub, nil)

		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		assert.Equal(t, 1, source.closes)
		assert.False(t, s.Status().Running)

		hits := stub.Hits()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, hits, stub.Hits())

		var last Event
		for ev := range s.Events() {
			last = ev
		}
		assert.Equal(t, EventStopped, last.Kind)

		assert.ErrorIs(t, s.Prepare(context.Background()), shared.ErrNotReady)
	})
}

func TestSessionCameraLifecycle(t *testing.T) {
	t.Run("a frame is uploaded once", func(t *testing.T) {
		stub := newStub(t)
		s := newSession(t, unpluggedCamera{unplug: make(chan struct{})}, happySource(nil), stub, nil)

		require.NoError(t, s.Prepare(context.Background()))
		assert.Equal(t, observability.TickProcessed, s.Tick(context.Background()).Result)
		assert.Equal(t, observability.TickNoFrame, s.Tick(context.Background()).Result)
		assert.Equal(t, 1, stub.Hits())
	})

	t.Run("stream ending after the first frame stops uploads", func(t *testing.T) {
		stub := newStub(t)
		unplug := make(chan struct{})
		s := newSession(t, unpluggedCamera{unplug: unplug}, happySource(nil), stub, nil)

		require.NoError(t, s.Prepare(context.Background()))
		close(unplug)
		require.Eventually(t, func() bool { return s.Status().Camera == models.Failed }, time.Second, 5*time.Millisecond)

		for range 3 {
			report := s.Tick(context.Background())
			assert.Equal(t, observability.TickNoFrame, report.Result)
			assert.ErrorIs(t, report.Err, shared.ErrCameraUnavailable)
		}
		assert.Zero(t, stub.Hits())
	})

	t.Run("close cancels an in-flight prepare", func(t *testing.T) {
		stub := newStub(t)
		s := newSession(t, unpluggedCamera{silent: true}, happySource(nil), stub, nil)

		started := make(chan error, 1)
		go func() { started <- s.Start(context.Background()) }()
		require.Eventually(t, func() bool { return s.Status().Camera == models.Requesting }, time.Second, time.Millisecond)

		closed := make(chan struct{})
		go func() {
			s.Close()
			close(closed)
		}()

		select {
		case <-closed:
		case <-time.After(time.Second):
			t.Fatal("Close blocked on the pending camera")
		}
		assert.ErrorIs(t, <-started, shared.ErrNotReady)
		assert.Zero(t, stub.Hits())
	})
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(Event{Kind: EventCamera, Readiness: models.Failed, Err: errors.New("denied")})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "camera", out["kind"])
	assert.Equal(t, "failed", out["readiness"])
	assert.Equal(t, "denied", out["error"])
}
