package writer

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// BreakerConfig tunes the sync writer's circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "log-store",
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// SyncWriter persists inline with the caller. After repeated failures the
// breaker opens and writes are dropped until the store recovers.
type SyncWriter struct {
	store Persister
	cb    *gobreaker.CircuitBreaker[struct{}]
}

func NewSyncWriter(store Persister) *SyncWriter {
	return NewSyncWriterWithBreaker(store, DefaultBreakerConfig())
}

func NewSyncWriterWithBreaker(store Persister, cfg BreakerConfig) *SyncWriter {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	return &SyncWriter{store: store, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (w *SyncWriter) Write(ctx context.Context, e *models.LogEntry) {
	defer guard(ModeSync, e)

	ctx = context.WithoutCancel(ctx)
	_, err := w.cb.Execute(func() (struct{}, error) {
		return struct{}{}, w.store.Create(ctx, e)
	})
	if err != nil {
		fail(ModeSync, e, "failed to write log entry", err)
		return
	}
	metrics.EntriesWritten.WithLabelValues(ModeSync).Inc()
}

// State reports the breaker state, for health checks.
func (w *SyncWriter) State() gobreaker.State {
	return w.cb.State()
}
