package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterMetricsEndpoint exposes Prometheus metrics on /metrics.
func RegisterMetricsEndpoint(router chi.Router, gatherer prometheus.Gatherer) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// SubmissionMetrics records the form submission lifecycle in Prometheus.
type SubmissionMetrics struct {
	submissions        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	sendDuration       prometheus.Histogram
	sessions           prometheus.Gauge
}

// NewSubmissionMetrics creates the collectors and registers them with reg.
func NewSubmissionMetrics(reg prometheus.Registerer) *SubmissionMetrics {
	m := &SubmissionMetrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quoteform",
			Name:      "submissions_total",
			Help:      "Submission attempts by outcome.",
		}, []string{"outcome"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quoteform",
			Name:      "validation_failures_total",
			Help:      "Rejected submissions by offending field.",
		}, []string{"field"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quoteform",
			Name:      "send_duration_seconds",
			Help:      "Time spent in the send capability.",
			Buckets:   prometheus.DefBuckets,
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quoteform",
			Name:      "sessions_active",
			Help:      "Open form sessions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.validationFailures, m.sendDuration, m.sessions)
	}
	return m
}

// SubmissionFinished counts a resolved send and observes its latency.
func (m *SubmissionMetrics) SubmissionFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	m.sendDuration.Observe(elapsed.Seconds())
}

// ValidationFailed counts one rejection per offending field.
func (m *SubmissionMetrics) ValidationFailed(fields []string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues("invalid").Inc()
	for _, field := range fields {
		m.validationFailures.WithLabelValues(field).Inc()
	}
}

// SessionOpened increments the active session gauge.
func (m *SubmissionMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *SubmissionMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}
