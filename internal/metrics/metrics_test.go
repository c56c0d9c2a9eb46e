package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/liuscraft/orion-dictate/internal/speech"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded(ReasonFinal, 1.5)

	if got := testutil.ToFloat64(m.SessionsStarted); got != 2 {
		t.Fatalf("sessions started = %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Fatalf("sessions active = %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsEnded.WithLabelValues(ReasonFinal)); got != 1 {
		t.Fatalf("sessions ended (final) = %v", got)
	}
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Result(false)
	m.Result(false)
	m.Result(true)
	m.BufferForwarded()
	m.BufferDropped("not_live")
	m.EngineStartFailed()
	m.AuthorizationResolved(speech.Denied)
	m.ToggleUnavailable()
	m.AvailabilityChanged(false)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"partial", m.ResultsPartial, 2},
		{"final", m.ResultsFinal, 1},
		{"forwarded", m.BuffersForwarded, 1},
		{"dropped", m.BuffersDropped.WithLabelValues("not_live"), 1},
		{"engine start", m.EngineStartFails, 1},
		{"auth denied", m.Authorization.WithLabelValues("Denied"), 1},
		{"unavailable", m.Unavailable, 1},
		{"availability", m.Availability, 0},
		{"availability changes", m.AvailabilityChanges, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Fatalf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionStarted()
	m.SessionEnded(ReasonError, 0)
	m.Result(true)
	m.BufferForwarded()
	m.BufferDropped("x")
	m.EngineStartFailed()
	m.AvailabilityChanged(true)
	m.AuthorizationResolved(speech.Authorized)
	m.ToggleUnavailable()
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SessionStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "orion_dictate_sessions_started_total 1") {
		t.Fatalf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

func TestServerRoutes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	srv := NewServer("127.0.0.1:0", m)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "orion_dictate_sessions_active") {
		t.Fatal("metrics route should serve the registry")
	}
}
