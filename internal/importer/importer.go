package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/entry"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/sanitize"
)

const DefaultBatchSize = 500

// Store is the slice of store.Entries the importer needs.
type Store interface {
	CreateBatch(ctx context.Context, entries []*models.LogEntry, size int) error
}

type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type Importer struct {
	store     Store
	builder   *entry.Builder
	sanitizer *sanitize.Sanitizer
	batchSize int
}

func New(store Store, builder *entry.Builder) *Importer {
	return &Importer{
		store:     store,
		builder:   builder,
		sanitizer: sanitize.New(),
		batchSize: DefaultBatchSize,
	}
}

// Import stores records in batches. Records with an unknown level or an
// empty message are skipped. On a store error the result counts what was
// imported before it.
func (im *Importer) Import(ctx context.Context, records []Record) (*Result, error) {
	res := &Result{}
	batch := make([]*models.LogEntry, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.store.CreateBatch(ctx, batch, im.batchSize); err != nil {
			return fmt.Errorf("import failed after %d entries: %w", res.Imported, err)
		}
		res.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, rec := range records {
		if !rec.Level.Valid() || rec.Message == "" {
			res.Skipped++
			continue
		}
		batch = append(batch, im.builder.Build(entry.Raw{
			Level:      rec.Level,
			Message:    rec.Message,
			Context:    im.sanitizer.Sanitize(rec.Context),
			Channel:    rec.Channel,
			OccurredAt: rec.OccurredAt,
		}))
		if len(batch) == im.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

// ImportReader splits r into records and imports them.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader) (*Result, error) {
	records, err := Split(r)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, records)
}
