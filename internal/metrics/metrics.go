package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Krishi
type Metrics struct {
	// Query metrics
	QueriesTotal      *prometheus.CounterVec
	QueryDuration     *prometheus.HistogramVec
	AdviceConfidence  prometheus.Histogram
	EscalationsTotal  *prometheus.CounterVec
	IntentsClassified *prometheus.CounterVec
	NluErrors         prometheus.Counter

	// Collaborator metrics
	CollaboratorCalls   *prometheus.CounterVec
	CollaboratorLatency *prometheus.HistogramVec

	// Learning metrics
	FeedbackTotal *prometheus.CounterVec
	FarmersTotal  prometheus.Gauge

	// System metrics
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	StreamClients       prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			QueriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "krishi_queries_total",
					Help: "Total number of farmer queries processed",
				},
				[]string{"status", "branch"},
			),
			QueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "krishi_query_duration_seconds",
					Help:    "End-to-end query processing duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to 10s
				},
				[]string{"status"},
			),
			AdviceConfidence: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "krishi_advice_confidence",
					Help:    "Confidence of generated advice",
					Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
				},
			),
			EscalationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "krishi_escalations_total",
					Help: "Total number of queries escalated to human officers",
				},
				[]string{"priority"},
			),
			IntentsClassified: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "krishi_intents_total",
					Help: "Number of queries per classified intent",
				},
				[]string{"intent"},
			),
			NluErrors: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "krishi_nlu_errors_total",
					Help: "Number of queries whose understanding failed",
				},
			),

			CollaboratorCalls: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "krishi_collaborator_calls_total",
					Help: "Calls to external collaborators (translator, classifier, recognizer, weather)",
				},
				[]string{"collaborator", "success"},
			),
			CollaboratorLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "krishi_collaborator_duration_seconds",
					Help:    "Collaborator call duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
				},
				[]string{"collaborator"},
			),

			FeedbackTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "krishi_feedback_total",
					Help: "Total feedback submissions",
				},
				[]string{"helpful"},
			),
			FarmersTotal: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "krishi_farmers_total",
					Help: "Number of known farmer profiles",
				},
			),

			CacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "krishi_cache_hits_total",
					Help: "Total number of weather cache hits",
				},
			),
			CacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "krishi_cache_misses_total",
					Help: "Total number of weather cache misses",
				},
			),
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "krishi_events_published_total",
					Help: "Total number of events published",
				},
				[]string{"event_type"},
			),
			StreamClients: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "krishi_escalation_stream_clients",
					Help: "Connected escalation stream clients",
				},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "krishi_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "krishi_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
		}
	})

	return sharedMetrics
}

// RecordQuery records a processed query
func (m *Metrics) RecordQuery(status, branch, priority string, confidence, seconds float64) {
	m.QueriesTotal.WithLabelValues(status, branch).Inc()
	m.QueryDuration.WithLabelValues(status).Observe(seconds)
	m.AdviceConfidence.Observe(confidence)
	if priority != "" {
		m.EscalationsTotal.WithLabelValues(priority).Inc()
	}
}

// RecordCollaborator records a collaborator call
func (m *Metrics) RecordCollaborator(name string, success bool, seconds float64) {
	m.CollaboratorCalls.WithLabelValues(name, strconv.FormatBool(success)).Inc()
	m.CollaboratorLatency.WithLabelValues(name).Observe(seconds)
}

// RecordFeedback records a feedback submission
func (m *Metrics) RecordFeedback(helpful bool) {
	m.FeedbackTotal.WithLabelValues(strconv.FormatBool(helpful)).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}
