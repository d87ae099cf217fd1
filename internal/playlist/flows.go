// package playlist drives the user-initiated playlist requests: mood
// analysis, recommendation preview and playlist generation.
//
// Each action is an independent state machine with its own result snapshot.
// A failure raises exactly one alert with a static message and leaves the
// snapshot empty. Responses to superseded requests are discarded so an old
// result never replaces a newer one.
package playlist

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/observability"
	"github.com/desertthunder/moodbeats/internal/shared"
)

// Action names a playlist flow.
type Action string

const (
	ActionAnalyze  Action = "analyze"
	ActionPreview  Action = "preview"
	ActionGenerate Action = "generate"
)

// Alert messages are static; request details only go to the log.
const (
	AlertAnalyze  = "Failed to analyze moods. Please try again."
	AlertPreview  = "Failed to load recommendations. Please try again."
	AlertGenerate = "Failed to generate playlist. Please try again."
)

// API is the remote surface the flows call.
type API interface {
	AnalyzeMoods(ctx context.Context, days int) (*models.MoodAnalysis, error)
	PreviewRecommendations(ctx context.Context, req models.PlaylistRequest) (*models.Recommendations, error)
	GeneratePlaylist(ctx context.Context, req models.PlaylistRequest) (*models.GenerationResult, error)
}

// Alerter shows a message to the user.
type Alerter interface {
	Alert(message string)
}

// AlertFunc adapts a function to [Alerter].
type AlertFunc func(message string)

func (f AlertFunc) Alert(message string) { f(message) }

type slot[T any] struct {
	state  models.Readiness
	gen    uint64
	result T
}

// Snapshot is a copy of every action's state and result.
type Snapshot struct {
	AnalyzeState    models.Readiness
	Analysis        *models.MoodAnalysis
	PreviewState    models.Readiness
	Recommendations *models.Recommendations
	GenerateState   models.Readiness
	Generated       *models.GenerationResult
	// Mood is the latest mood analysis carried by any successful response.
	Mood *models.MoodAnalysis
}

// Flows holds the three playlist actions.
type Flows struct {
	api     API
	alerter Alerter
	metrics *observability.Metrics
	logger  *log.Logger

	mu       sync.Mutex
	analysis slot[*models.MoodAnalysis]
	preview  slot[*models.Recommendations]
	generate slot[*models.GenerationResult]
	mood     *models.MoodAnalysis
}

// FlowsOpts configures [Flows]. Nil fields take defaults.
type FlowsOpts struct {
	Metrics *observability.Metrics
	Logger  *log.Logger
}

func NewFlows(api API, alerter Alerter, opts FlowsOpts) *Flows {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if alerter == nil {
		alerter = AlertFunc(func(string) {})
	}
	return &Flows{api: api, alerter: alerter, metrics: opts.Metrics, logger: opts.Logger}
}

// Analyze fetches the mood analysis over the last days.
func (f *Flows) Analyze(ctx context.Context, days int) (*models.MoodAnalysis, error) {
	return run(ctx, f, ActionAnalyze, AlertAnalyze, &f.analysis,
		func(ctx context.Context) (*models.MoodAnalysis, error) { return f.api.AnalyzeMoods(ctx, days) },
		func(m *models.MoodAnalysis) *models.MoodAnalysis { return m })
}

// Preview fetches recommendations without creating a playlist.
func (f *Flows) Preview(ctx context.Context, req models.PlaylistRequest) (*models.Recommendations, error) {
	return run(ctx, f, ActionPreview, AlertPreview, &f.preview,
		func(ctx context.Context) (*models.Recommendations, error) {
			return f.api.PreviewRecommendations(ctx, req)
		},
		func(r *models.Recommendations) *models.MoodAnalysis { return r.MoodAnalysis })
}

// Generate creates a playlist on the user's Spotify account.
func (f *Flows) Generate(ctx context.Context, req models.PlaylistRequest) (*models.GenerationResult, error) {
	return run(ctx, f, ActionGenerate, AlertGenerate, &f.generate,
		func(ctx context.Context) (*models.GenerationResult, error) { return f.api.GeneratePlaylist(ctx, req) },
		func(g *models.GenerationResult) *models.MoodAnalysis { return g.MoodAnalysis })
}

func run[T any](
	ctx context.Context,
	f *Flows,
	action Action,
	alert string,
	s *slot[T],
	call func(context.Context) (T, error),
	mood func(T) *models.MoodAnalysis,
) (T, error) {
	var zero T

	f.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = models.Requesting
	s.result = zero
	f.mu.Unlock()

	logger := f.logger.With("action", action)
	res, err := call(ctx)

	f.mu.Lock()
	if gen != s.gen {
		f.mu.Unlock()
		logger.Debug("discarding superseded response", "error", err)
		return res, err
	}

	if err != nil {
		s.state = models.Failed
		f.mu.Unlock()

		logger.Error("playlist request failed", "error", err)
		f.metrics.ObservePlaylistRequest(string(action), false)
		f.alerter.Alert(alert)
		return zero, err
	}

	s.result = res
	s.state = models.Ready
	if m := mood(res); m != nil {
		f.mood = m
	}
	f.mu.Unlock()

	f.metrics.ObservePlaylistRequest(string(action), true)
	logger.Debug("playlist request finished")
	return res, nil
}

// State returns the readiness of action.
func (f *Flows) State(action Action) models.Readiness {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch action {
	case ActionAnalyze:
		return f.analysis.state
	case ActionPreview:
		return f.preview.state
	case ActionGenerate:
		return f.generate.state
	}
	return models.Idle
}

// Loading reports whether any action is in flight.
func (f *Flows) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analysis.state == models.Requesting ||
		f.preview.state == models.Requesting ||
		f.generate.state == models.Requesting
}

// Snapshot copies the current state of every action.
func (f *Flows) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		AnalyzeState:    f.analysis.state,
		Analysis:        f.analysis.result,
		PreviewState:    f.preview.state,
		Recommendations: f.preview.result,
		GenerateState:   f.generate.state,
		Generated:       f.generate.result,
		Mood:            f.mood,
	}
}
