// package observability exposes capture loop metrics and a small local
// status server.
package observability

import (
	"net/http"
	"time"

	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick results.
const (
	TickProcessed = "processed"
	TickNoFace    = "no_face"
	TickNoFrame   = "no_frame"
	TickBusy      = "busy"
	TickError     = "error"
)

// Metrics groups all Prometheus instruments used by the client. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Ticks            *prometheus.CounterVec
	Uploads          *prometheus.CounterVec
	InferenceLatency prometheus.Histogram
	Readiness        *prometheus.GaugeVec
	PlaylistRequests *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics registers every instrument on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_ticks_total",
			Help:      "Capture ticks by result.",
		}, []string{"result"}),
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emotion_uploads_total",
			Help:      "Emotion upload attempts by outcome.",
		}, []string{"outcome"}),
		InferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_latency_ms",
			Help:      "Latency of face detection plus expression classification in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 200, 400, 800},
		}),
		Readiness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "readiness",
			Help:      "Readiness of a component: 0 idle, 1 requesting, 2 ready, 3 failed.",
		}, []string{"component"}),
		PlaylistRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playlist_requests_total",
			Help:      "Playlist flow requests by action and result.",
		}, []string{"action", "result"}),
		registry: reg,
	}
}

func (m *Metrics) ObserveTick(result string) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveUpload(outcome models.Outcome) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveInferenceLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) SetReadiness(component string, r models.Readiness) {
	if m == nil {
		return
	}
	m.Readiness.WithLabelValues(component).Set(float64(r))
}

func (m *Metrics) ObservePlaylistRequest(action string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.PlaylistRequests.WithLabelValues(action, result).Inc()
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
