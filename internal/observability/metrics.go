// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	TokensCreated     prometheus.Counter
	TokenCount        prometheus.Gauge

	// Event feed metrics
	EventsJournaled  prometheus.Counter
	EventsPublished  prometheus.Counter
	EventsDropped    prometheus.Counter
	FeedSubscribers  prometheus.Gauge
	LastEventSeq     prometheus.Gauge

	// API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthFailures    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Analytics sink metrics
	SinkBatchesFlushed prometheus.Counter
	SinkRowsInserted   prometheus.Counter
	SinkFlushErrors    prometheus.Counter

	// Health metrics
	LastSuccessfulOperation prometheus.Gauge
	UptimeSeconds           prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_ledger"
	}

	return &Metrics{
		// Ledger operation metrics
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by kind and status",
		}, []string{"kind", "status"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		TokensCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "tokens_created_total",
			Help:      "Total number of token classes created",
		}),
		TokenCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "token_count",
			Help:      "Number of token classes ever created",
		}),

		// Event feed metrics
		EventsJournaled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "journaled_total",
			Help:      "Total number of events journaled",
		}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events delivered to feed subscribers",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total number of events dropped by slow feed subscribers",
		}),
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "feed_subscribers",
			Help:      "Current number of event feed subscribers",
		}),
		LastEventSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "last_event_seq",
			Help:      "Highest journaled event sequence number",
		}),

		// API metrics
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and code",
		}, []string{"route", "code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of rejected operation signatures",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Analytics sink metrics
		SinkBatchesFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "batches_flushed_total",
			Help:      "Total number of event batches flushed to analytics storage",
		}),
		SinkRowsInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "rows_inserted_total",
			Help:      "Total number of event rows inserted into analytics storage",
		}),
		SinkFlushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "flush_errors_total",
			Help:      "Total number of failed analytics flushes",
		}),

		// Health metrics
		LastSuccessfulOperation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_operation_timestamp",
			Help:      "Unix timestamp of last successful ledger operation",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOperation records a completed ledger operation.
func RecordOperation(kind, status string, seconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordTokenCreated increments the token creation counter and count gauge.
func RecordTokenCreated(tokenCount uint32) {
	DefaultMetrics.TokensCreated.Inc()
	DefaultMetrics.TokenCount.Set(float64(tokenCount))
}

// RecordEventJournaled records a journaled event's sequence number.
func RecordEventJournaled(seq uint64) {
	DefaultMetrics.EventsJournaled.Inc()
	DefaultMetrics.LastEventSeq.Set(float64(seq))
}

// RecordEventPublished increments the published events counter.
func RecordEventPublished() {
	DefaultMetrics.EventsPublished.Inc()
}

// RecordEventDropped increments the dropped events counter.
func RecordEventDropped() {
	DefaultMetrics.EventsDropped.Inc()
}

// SetFeedSubscribers updates the subscriber gauge.
func SetFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordRequest records an API request.
func RecordRequest(route, code string, seconds float64) {
	DefaultMetrics.RequestsTotal.WithLabelValues(route, code).Inc()
	DefaultMetrics.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordAuthFailure increments the rejected signature counter.
func RecordAuthFailure() {
	DefaultMetrics.AuthFailures.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordSinkFlush records an analytics flush attempt.
func RecordSinkFlush(rows int, err error) {
	if err != nil {
		DefaultMetrics.SinkFlushErrors.Inc()
		return
	}
	DefaultMetrics.SinkBatchesFlushed.Inc()
	DefaultMetrics.SinkRowsInserted.Add(float64(rows))
}
