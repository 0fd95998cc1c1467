package buffer

import (
	"context"
	"time"
)

// Flusher periodically drains a process-wide buffer used by code running
// outside any unit of work. It implements suture.Service.
type Flusher struct {
	buf      *Buffer
	interval time.Duration
}

func NewFlusher(buf *Buffer, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Flusher{buf: buf, interval: interval}
}

func (f *Flusher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.buf.Flush(ctx)
		case <-ctx.Done():
			f.buf.Flush(context.WithoutCancel(ctx))
			return ctx.Err()
		}
	}
}

func (f *Flusher) String() string { return "buffer-flusher" }
