// Package retention deletes entries older than the configured retention window.
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/config"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/metrics"
)

const DefaultChunkSize = 1000

var ErrInvalidDays = errors.New("retention days must be at least 1")

// Store is the slice of store.Entries the pruner needs.
type Store interface {
	CountBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByLevelBefore(ctx context.Context, cutoff time.Time) (map[string]int64, error)
	DeleteChunkBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type Result struct {
	Cutoff  time.Time        `json:"cutoff"`
	Count   int64            `json:"count"`
	ByLevel map[string]int64 `json:"by_level,omitempty"`
	DryRun  bool             `json:"dry_run"`
	// Skipped is set when retention is disabled and no days were given.
	Skipped bool `json:"skipped,omitempty"`
}

type Pruner struct {
	store Store
	cfg   config.RetentionConfig
	now   func() time.Time
}

func NewPruner(store Store, cfg config.RetentionConfig) *Pruner {
	return &Pruner{store: store, cfg: cfg, now: time.Now}
}

func (p *Pruner) WithClock(now func() time.Time) *Pruner {
	p.now = now
	return p
}

// Prune removes entries that occurred before cutoff, chunkSize rows per
// statement, until a statement deletes nothing. A dry run only counts them.
func (p *Pruner) Prune(ctx context.Context, cutoff time.Time, dryRun bool, chunkSize int) (*Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	res := &Result{Cutoff: cutoff, DryRun: dryRun}

	if dryRun {
		count, err := p.store.CountBefore(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		byLevel, err := p.store.CountByLevelBefore(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		res.Count, res.ByLevel = count, byLevel
		return res, nil
	}

	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("prune interrupted after %d entries: %w", res.Count, err)
		}
		n, err := p.store.DeleteChunkBefore(ctx, cutoff, chunkSize)
		if err != nil {
			return res, fmt.Errorf("prune failed after %d entries: %w", res.Count, err)
		}
		if n == 0 {
			break
		}
		res.Count += n
	}
	metrics.RecordPrune(res.Count, start)
	return res, nil
}

// Run prunes with cutoff = now - days. A nil days uses the configured
// retention and is skipped when retention is disabled.
func (p *Pruner) Run(ctx context.Context, days *int) (*Result, error) {
	return p.run(ctx, days, false)
}

// Preview is Run as a dry run.
func (p *Pruner) Preview(ctx context.Context, days *int) (*Result, error) {
	return p.run(ctx, days, true)
}

func (p *Pruner) run(ctx context.Context, days *int, dryRun bool) (*Result, error) {
	d := p.cfg.Days
	if days != nil {
		d = *days
	} else if !p.cfg.Enabled {
		return &Result{DryRun: dryRun, Skipped: true}, nil
	}
	if d < 1 {
		return nil, ErrInvalidDays
	}
	cutoff := p.now().UTC().AddDate(0, 0, -d)
	return p.Prune(ctx, cutoff, dryRun, p.cfg.ChunkSize)
}
