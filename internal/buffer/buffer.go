// Package buffer accumulates entries for a unit of work and persists them
// when the unit ends or the process exits.
package buffer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// PersistFunc stores one entry.
type PersistFunc func(ctx context.Context, e *models.LogEntry) error

// Triggers are the flush points registered on the first Add. Either may be nil.
type Triggers struct {
	// OnEnd registers the primary flush with the owning unit of work.
	OnEnd func(flush func())
	// Exit runs the secondary flush on process exit paths.
	Exit *ExitHooks
}

// Buffer is safe for concurrent use. Contents are swapped out under a short
// lock before persisting, so entries added during a flush land in the next one.
type Buffer struct {
	persist  PersistFunc
	triggers Triggers

	mu         sync.Mutex
	pending    []*models.LogEntry
	armed      bool
	cancelExit func()
}

func New(persist PersistFunc, triggers Triggers) *Buffer {
	return &Buffer{persist: persist, triggers: triggers}
}

func (b *Buffer) Add(e *models.LogEntry) {
	b.mu.Lock()
	b.pending = append(b.pending, e)
	arm := !b.armed
	b.armed = true
	b.mu.Unlock()

	if arm {
		b.arm()
	}
}

func (b *Buffer) arm() {
	flush := func() { b.Flush(context.Background()) }

	if b.triggers.Exit != nil {
		cancel := b.triggers.Exit.Register(flush)
		b.mu.Lock()
		if b.armed {
			b.cancelExit = cancel
			cancel = nil
		}
		b.mu.Unlock()
		// A flush already drained the buffer while the hook was registered.
		if cancel != nil {
			cancel()
		}
	}
	if b.triggers.OnEnd != nil {
		b.triggers.OnEnd(flush)
	}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush persists everything added so far, one entry at a time in insertion
// order. Failures are reported per entry and never returned. Flushing an
// empty buffer does nothing.
func (b *Buffer) Flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.armed = false
	cancel := b.cancelExit
	b.cancelExit = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if len(batch) == 0 {
		return
	}

	metrics.BufferFlushSize.Observe(float64(len(batch)))
	ctx = context.WithoutCancel(ctx)
	for _, e := range batch {
		b.persistOne(ctx, e)
	}
}

func (b *Buffer) persistOne(ctx context.Context, e *models.LogEntry) {
	defer func() {
		if r := recover(); r != nil {
			metrics.WriteFailures.WithLabelValues("batch").Inc()
			logging.Diagnose("buffered entry persist panicked", fmt.Errorf("panic: %v", r), "entry_id", e.ID)
		}
	}()

	if b.persist == nil {
		panic("buffer has no persist function")
	}
	if err := b.persist(ctx, e); err != nil {
		metrics.WriteFailures.WithLabelValues("batch").Inc()
		logging.Diagnose("failed to persist buffered entry", err, "entry_id", e.ID)
		return
	}
	metrics.EntriesWritten.WithLabelValues("batch").Inc()
}

type ctxKey struct{}

// WithBuffer attaches b to ctx.
func WithBuffer(ctx context.Context, b *Buffer) context.Context {
	return context.WithValue(ctx, ctxKey{}, b)
}

// FromContext returns the buffer attached to ctx, or nil.
func FromContext(ctx context.Context) *Buffer {
	if ctx == nil {
		return nil
	}
	b, _ := ctx.Value(ctxKey{}).(*Buffer)
	return b
}
