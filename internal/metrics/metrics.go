// Package metrics provides Prometheus metrics for docpad
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for docpad
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Document metrics
	DecodeFailuresTotal prometheus.Counter
	EmbedOutcomesTotal  *prometheus.CounterVec
	UploadsTotal        *prometheus.CounterVec
	PreviewClassesTotal *prometheus.CounterVec

	LiveConnections prometheus.Gauge
	StartTime       time.Time
}

// New creates the metrics on a private registry, so several servers (and
// tests) can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{registry: reg, StartTime: time.Now()}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docpad_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docpad_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	m.DecodeFailuresTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "docpad_document_decode_failures_total",
			Help: "Persisted values that failed to decode",
		},
	)
	m.EmbedOutcomesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docpad_embed_outcomes_total",
			Help: "Embed interactions by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	m.UploadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docpad_uploads_total",
			Help: "File uploads by status",
		},
		[]string{"status"},
	)
	m.PreviewClassesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docpad_preview_classes_total",
			Help: "Read-only views rendered per visual class",
		},
		[]string{"class"},
	)
	m.LiveConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "docpad_live_connections",
			Help: "Open live editing connections",
		},
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) ObserveEmbed(kind, outcome string) {
	m.EmbedOutcomesTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveUpload(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.UploadsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePreview(class string) {
	m.PreviewClassesTotal.WithLabelValues(class).Inc()
}
