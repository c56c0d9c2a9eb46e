// Package metrics provides Prometheus metrics for dictation sessions.
package metrics

import (
	"net/http"

	"github.com/liuscraft/orion-dictate/internal/speech"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orion_dictate"

// Terminal reasons for a recording session.
const (
	ReasonFinal       = "final"
	ReasonError       = "error"
	ReasonStopped     = "stopped"
	ReasonSuperseded  = "superseded"
	ReasonDeactivated = "deactivated"
)

// Metrics holds all Prometheus metrics for the dictation screen.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsEnded    *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	EngineStartFails prometheus.Counter

	// Transcript metrics
	ResultsPartial prometheus.Counter
	ResultsFinal   prometheus.Counter

	// Audio metrics
	BuffersForwarded prometheus.Counter
	BuffersDropped   *prometheus.CounterVec

	// Recognizer / authorization
	Availability        prometheus.Gauge
	AvailabilityChanges prometheus.Counter
	Authorization       *prometheus.CounterVec
	Unavailable         prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on reg. Passing a fresh registry keeps
// tests independent of the global default.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of recording sessions started",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of recording sessions currently live",
		}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of recording sessions ended, by reason",
		}, []string{"reason"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of recording sessions in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		EngineStartFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_start_failures_total",
			Help:      "Total number of audio engine start failures",
		}),

		ResultsPartial: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_partial_total",
			Help:      "Total number of partial transcripts rendered",
		}),
		ResultsFinal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_final_total",
			Help:      "Total number of final transcripts rendered",
		}),

		BuffersForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_forwarded_total",
			Help:      "Total number of tap buffers forwarded to the recognition request",
		}),
		BuffersDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_dropped_total",
			Help:      "Total number of tap buffers not forwarded, by reason",
		}, []string{"reason"}),

		Availability: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recognizer_available",
			Help:      "1 when the recognizer reports itself available",
		}),
		AvailabilityChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_availability_changes_total",
			Help:      "Total number of recognizer availability notifications",
		}),
		Authorization: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_results_total",
			Help:      "Authorization results, by status",
		}, []string{"status"}),
		Unavailable: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggle_unavailable_total",
			Help:      "Total number of record taps rejected because the recognizer was unavailable",
		}),

		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionEnded(reason string, seconds float64) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsEnded.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(seconds)
}

func (m *Metrics) EngineStartFailed() {
	if m == nil {
		return
	}
	m.EngineStartFails.Inc()
}

func (m *Metrics) Result(final bool) {
	if m == nil {
		return
	}
	if final {
		m.ResultsFinal.Inc()
		return
	}
	m.ResultsPartial.Inc()
}

func (m *Metrics) BufferForwarded() {
	if m == nil {
		return
	}
	m.BuffersForwarded.Inc()
}

func (m *Metrics) BufferDropped(reason string) {
	if m == nil {
		return
	}
	m.BuffersDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) AvailabilityChanged(available bool) {
	if m == nil {
		return
	}
	m.AvailabilityChanges.Inc()
	if available {
		m.Availability.Set(1)
	} else {
		m.Availability.Set(0)
	}
}

func (m *Metrics) AuthorizationResolved(status speech.AuthorizationStatus) {
	if m == nil {
		return
	}
	m.Authorization.WithLabelValues(status.String()).Inc()
}

func (m *Metrics) ToggleUnavailable() {
	if m == nil {
		return
	}
	m.Unavailable.Inc()
}
