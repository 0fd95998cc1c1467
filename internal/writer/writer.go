// Package writer routes built entries to storage using one of three timing
// strategies: sync, queue or batch. Writers never return errors and never
// panic; failures go to the diagnostics sink.
package writer

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/buffer"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

const (
	ModeSync  = "sync"
	ModeQueue = "queue"
	ModeBatch = "batch"
)

type Writer interface {
	Write(ctx context.Context, e *models.LogEntry)
}

// Persister stores one entry; *store.Entries implements it.
type Persister interface {
	Create(ctx context.Context, e *models.LogEntry) error
}

// Deps carries what the strategies need. Only the fields of the chosen mode
// are required: Store for sync, Store, PubSub and Queue.Topic for queue, and
// Store (or Fallback) for batch.
type Deps struct {
	Store  Persister
	PubSub PubSub
	Queue  QueueOptions
	// Exit receives the secondary flush of batch buffers.
	Exit *buffer.ExitHooks
	// Fallback collects batch entries written outside any unit of work.
	Fallback *buffer.Buffer
}

// New builds the writer for mode.
func New(mode string, deps Deps) (Writer, error) {
	switch mode {
	case ModeSync:
		if deps.Store == nil {
			return nil, fmt.Errorf("sync writer requires a store")
		}
		return NewSyncWriter(deps.Store), nil
	case ModeQueue:
		q, err := NewQueue(deps.PubSub, deps.Store, deps.Queue)
		if err != nil {
			return nil, err
		}
		return q, nil
	case ModeBatch, "":
		fallback := deps.Fallback
		if fallback == nil {
			if deps.Store == nil {
				return nil, fmt.Errorf("batch writer requires a store or a fallback buffer")
			}
			fallback = buffer.New(deps.Store.Create, buffer.Triggers{Exit: deps.Exit})
		}
		return NewBatchWriter(fallback), nil
	default:
		return nil, fmt.Errorf("unknown write mode %q", mode)
	}
}

// guard turns a panic inside a write into a diagnostic.
func guard(mode string, e *models.LogEntry) {
	if r := recover(); r != nil {
		metrics.WriteFailures.WithLabelValues(mode).Inc()
		id := ""
		if e != nil {
			id = e.ID
		}
		logging.Diagnose("log write panicked", fmt.Errorf("panic: %v", r), "mode", mode, "entry_id", id)
	}
}

func fail(mode string, e *models.LogEntry, msg string, err error) {
	metrics.WriteFailures.WithLabelValues(mode).Inc()
	logging.Diagnose(msg, err, "mode", mode, "entry_id", e.ID)
}
