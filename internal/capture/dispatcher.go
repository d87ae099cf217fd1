// package capture runs the periodic camera → inference → upload loop.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/observability"
	"github.com/desertthunder/moodbeats/internal/session"
	"github.com/desertthunder/moodbeats/internal/shared"
	"golang.org/x/time/rate"
)

// Uploader stores an emotion sample remotely.
type Uploader interface {
	StoreEmotion(ctx context.Context, rec models.SyncRecord) error
}

// Journal records upload attempts locally.
type Journal interface {
	Create(entry *models.JournalEntry) error
}

// DispatcherOpts configures a [Dispatcher]. Zero fields take defaults.
type DispatcherOpts struct {
	// MinInterval is the shortest gap between two uploads; zero disables debouncing.
	MinInterval time.Duration
	Journal     Journal
	Metrics     *observability.Metrics
	Logger      *log.Logger
	Now         func() time.Time
}

// Dispatcher uploads reduced emotions. It never retries and never reports
// failures beyond logs, the journal and metrics.
type Dispatcher struct {
	api     Uploader
	store   session.Store
	limiter *rate.Limiter
	journal Journal
	metrics *observability.Metrics
	logger  *log.Logger
	now     func() time.Time
}

func NewDispatcher(api Uploader, store session.Store, opts DispatcherOpts) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Dispatcher{
		api:     api,
		store:   store,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if opts.MinInterval > 0 {
		d.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	return d
}

// Dispatch uploads e stamped with the current time. Without a stored session
// token nothing leaves the process.
func (d *Dispatcher) Dispatch(ctx context.Context, e models.Emotion) models.Outcome {
	now := d.now()
	rec := models.NewSyncRecord(e, now)

	outcome, detail := d.send(ctx, rec, now)

	d.metrics.ObserveUpload(outcome)
	if d.journal != nil {
		if err := d.journal.Create(models.NewJournalEntry(rec, outcome, detail)); err != nil {
			d.logger.Warn("failed to journal upload", "outcome", outcome, "error", err)
		}
	}
	return outcome
}

func (d *Dispatcher) send(ctx context.Context, rec models.SyncRecord, now time.Time) (models.Outcome, string) {
	if _, err := session.LoadToken(d.store); err != nil {
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			d.logger.Warn("failed to read session token", "error", err)
		}
		return models.OutcomeSkippedNoToken, ""
	}

	if d.limiter != nil && !d.limiter.AllowN(now, 1) {
		d.logger.Debug("upload debounced", "emotion", rec.Emotion)
		return models.OutcomeSkippedDebounced, ""
	}

	if err := d.api.StoreEmotion(ctx, rec); err != nil {
		d.logger.Warn("emotion upload failed", "emotion", rec.Emotion, "error", err)
		return models.OutcomeFailed, err.Error()
	}

	d.logger.Debug("emotion uploaded", "emotion", rec.Emotion, "confidence", rec.Confidence)
	return models.OutcomeSent, ""
}
