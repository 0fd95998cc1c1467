package writer

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/buffer"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// BatchWriter appends to the unit of work's buffer, or to the process
// buffer when the context carries none.
type BatchWriter struct {
	fallback *buffer.Buffer
}

func NewBatchWriter(fallback *buffer.Buffer) *BatchWriter {
	return &BatchWriter{fallback: fallback}
}

func (w *BatchWriter) Write(ctx context.Context, e *models.LogEntry) {
	defer guard(ModeBatch, e)

	if b := buffer.FromContext(ctx); b != nil {
		b.Add(e)
		return
	}
	w.fallback.Add(e)
}
