// Package metrics instruments the capture pipeline with Prometheus collectors,
// served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntriesCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logbook_entries_captured_total",
			Help: "Log records accepted by the capture handler",
		},
		[]string{"level"},
	)

	EntriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logbook_entries_skipped_total",
			Help: "Log records the capture handler skipped or dropped",
		},
		[]string{"reason"}, // internal, duplicate, ignored, panic
	)

	WriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logbook_write_failures_total",
			Help: "Entries that could not be persisted",
		},
		[]string{"mode"}, // sync, queue, batch
	)

	EntriesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logbook_entries_written_total",
			Help: "Entries persisted to the store",
		},
		[]string{"mode"},
	)

	BufferFlushSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logbook_buffer_flush_entries",
			Help:    "Entries drained per buffer flush",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logbook_query_duration_seconds",
			Help:    "Filter query latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	PruneDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logbook_prune_deleted_total",
			Help: "Entries removed by retention pruning",
		},
	)

	PruneDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logbook_prune_duration_seconds",
			Help:    "Retention prune run duration",
			Buckets: []float64{.01, .1, 1, 10, 60, 300},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logbook_circuit_breaker_state",
			Help: "Sync writer breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordQuery observes a query's duration.
func RecordQuery(start time.Time) {
	QueryDuration.Observe(time.Since(start).Seconds())
}

// RecordPrune observes a finished live prune.
func RecordPrune(deleted int64, start time.Time) {
	PruneDeleted.Add(float64(deleted))
	PruneDuration.Observe(time.Since(start).Seconds())
}
