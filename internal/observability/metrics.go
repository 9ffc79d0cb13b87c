package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xplore_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xplore_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// AdmissionRejections counts large uploads turned away because the permit was held.
	AdmissionRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xplore_media_admission_rejections_total",
		Help: "Large uploads rejected because another large upload held the permit",
	})

	// AdmissionInFlight is 1 while a large upload holds the permit.
	AdmissionInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xplore_media_admission_in_flight",
		Help: "Large uploads currently holding the admission permit",
	})

	// MediaUploads counts blob uploads by media kind and result.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xplore_media_uploads_total",
		Help: "Blob uploads by kind (image, video) and result (success, failure)",
	}, []string{"kind", "result"})

	// MediaCleanupFailures counts blob deletes that failed and were skipped.
	MediaCleanupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xplore_media_cleanup_failures_total",
		Help: "Blob deletes that failed during cleanup, by stage",
	}, []string{"stage"})

	// FeedRankLatency records how long ranking a feed page takes.
	FeedRankLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xplore_feed_rank_duration_seconds",
		Help:    "Feed ranking latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// NotificationsSent counts notifications handed to a transport.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xplore_notifications_total",
		Help: "Notifications published by type, transport and result",
	}, []string{"type", "transport", "result"})

	// BreakerState is the circuit breaker state: 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xplore_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	// BreakerTransitions counts circuit breaker state changes.
	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xplore_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"name", "from", "to"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
