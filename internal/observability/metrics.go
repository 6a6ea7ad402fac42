package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aihelpdesk"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	analysisRuns    *prometheus.CounterVec
	dedupOutcomes   *prometheus.CounterVec
	reviews         *prometheus.CounterVec
}

// NewMetrics registers collectors on the given registry, or a fresh one when nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by route, method and error code.",
		}, []string{"route", "method", "code"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "decisions_total",
			Help:      "Resolution engine decisions by mode and resulting status.",
		}, []string{"mode", "status"}),
		upstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "upstream_failures_total",
			Help:      "Matching or generation backend failures that forced escalation.",
		}, []string{"backend"}),
		analysisRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Knowledge analysis runs by result.",
		}, []string{"result"}),
		dedupOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "cluster_outcomes_total",
			Help:      "Cluster outcomes by bucket (new_draft, previously_rejected, already_covered, already_approved, existing_draft).",
		}, []string{"bucket"}),
		reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "decisions_total",
			Help:      "Suggestion review decisions.",
		}, []string{"decision"}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordResolution counts an engine decision.
func (m *Metrics) RecordResolution(mode, status string) {
	if m == nil {
		return
	}
	if mode == "" {
		mode = "none"
	}
	m.resolutions.WithLabelValues(mode, status).Inc()
}

// RecordUpstreamFailure counts a backend failure that was converted to escalation.
func (m *Metrics) RecordUpstreamFailure(backend string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(backend).Inc()
}

// RecordAnalysisRun counts a clustering run.
func (m *Metrics) RecordAnalysisRun(result string) {
	if m == nil {
		return
	}
	m.analysisRuns.WithLabelValues(result).Inc()
}

// RecordClusterOutcome counts a cluster landing in a dedup bucket.
func (m *Metrics) RecordClusterOutcome(bucket string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dedupOutcomes.WithLabelValues(bucket).Add(float64(n))
}

// RecordReview counts an approve or reject.
func (m *Metrics) RecordReview(decision string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(decision).Inc()
}
