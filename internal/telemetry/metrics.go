package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects client-side counters for request, refresh, and
// stream activity. All record methods are safe on a nil receiver so
// components can treat metrics as optional.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal        *prometheus.CounterVec
	refreshesTotal       *prometheus.CounterVec
	framesTotal          *prometheus.CounterVec
	malformedFramesTotal prometheus.Counter
	sessionDuration      prometheus.Histogram
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduforge_client_requests_total",
			Help: "HTTP requests issued by the client, by method and status code.",
		}, []string{"method", "code"}),
		refreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduforge_client_auth_refreshes_total",
			Help: "Credential refresh attempts, by outcome.",
		}, []string{"outcome"}),
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduforge_stream_frames_total",
			Help: "Decoded stream frames, by kind.",
		}, []string{"kind"}),
		malformedFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduforge_stream_malformed_frames_total",
			Help: "Stream records skipped because they failed to parse.",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduforge_stream_session_duration_seconds",
			Help:    "Duration of streaming sessions from open to terminal state.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.refreshesTotal,
		m.framesTotal,
		m.malformedFramesTotal,
		m.sessionDuration,
	)
	return m
}

// Handler exposes the registry in Prometheus text format, for embedding
// applications that want to scrape the client.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one completed HTTP request.
func (m *Metrics) RecordRequest(method string, code int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// RecordRefresh records a credential refresh attempt. outcome is
// "success" or "failure".
func (m *Metrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshesTotal.WithLabelValues(outcome).Inc()
}

// RecordFrame records one decoded frame.
func (m *Metrics) RecordFrame(kind string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(kind).Inc()
}

// RecordMalformedFrame records one skipped record.
func (m *Metrics) RecordMalformedFrame() {
	if m == nil {
		return
	}
	m.malformedFramesTotal.Inc()
}

// RecordSessionDuration records how long a streaming session lasted.
func (m *Metrics) RecordSessionDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.sessionDuration.Observe(d.Seconds())
}
