// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"preference_server/pkg/logger"
)

var (
	// Processing
	ProcessingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_processing_total",
			Help: "Preference processing calls by data type and outcome",
		},
		[]string{"data_type", "outcome"},
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preference_processing_duration_seconds",
			Help:    "Duration of a full load-process-save cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"data_type"},
	)

	EntriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_entries_skipped_total",
			Help: "Entries or items skipped during evidence extraction",
		},
		[]string{"data_type", "reason"},
	)

	InvariantViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preference_invariant_violations_total",
			Help: "Aggregator numeric contract violations",
		},
	)

	// Classification
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_classifications_total",
			Help: "Category resolutions by mode and winning source",
		},
		[]string{"mode", "source"},
	)

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_embedding_requests_total",
			Help: "Embedding provider calls by result",
		},
		[]string{"result"},
	)

	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_embedding_cache_hits_total",
			Help: "Embedding cache hits by tier",
		},
		[]string{"tier"},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preference_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "preference_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preference_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Worker
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_jobs_total",
			Help: "Background jobs by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	JobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preference_job_queue_depth",
			Help: "Jobs submitted to the worker pool and not yet finished",
		},
	)
)

// RecordProcessing records one processing cycle.
func RecordProcessing(dataType string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ProcessingTotal.WithLabelValues(dataType, outcome).Inc()
	ProcessingDuration.WithLabelValues(dataType).Observe(duration.Seconds())
}

// RecordSkipped records skipped entries.
func RecordSkipped(dataType, reason string, n int) {
	if n <= 0 {
		return
	}
	EntriesSkipped.WithLabelValues(dataType, reason).Add(float64(n))
}

// RecordClassification records the source that produced a category.
func RecordClassification(mode, source string) {
	Classifications.WithLabelValues(mode, source).Inc()
}

// RecordEmbedding records an embedding provider call.
func RecordEmbedding(err error) {
	if err != nil {
		EmbeddingRequests.WithLabelValues("error").Inc()
		return
	}
	EmbeddingRequests.WithLabelValues("ok").Inc()
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordJob records a finished background job.
func RecordJob(jobType string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	JobsTotal.WithLabelValues(jobType, outcome).Inc()
}

// RegisterDBStats exposes sql.DB pool statistics under the given name.
// Registering the same name twice is ignored.
func RegisterDBStats(db *sql.DB, name string) {
	if db == nil {
		return
	}
	if err := prometheus.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			logger.WithError(err).Warn("failed to register db stats collector %s", name)
		}
	}
}
