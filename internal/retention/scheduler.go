package retention

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs the configured retention on an interval. It implements
// suture.Service.
type Scheduler struct {
	pruner   *Pruner
	interval time.Duration
}

func NewScheduler(p *Pruner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{pruner: p, interval: interval}
}

func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) String() string { return "retention-scheduler" }

func (s *Scheduler) runOnce(ctx context.Context) {
	res, err := s.pruner.Run(ctx, nil)
	switch {
	case err != nil:
		slog.Error("log retention failed", "error", err)
	case res.Count > 0:
		slog.Info("log retention completed", "deleted", res.Count, "cutoff", res.Cutoff)
	}
}
