package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

var (
	validWriteModes   = []string{"sync", "queue", "batch"}
	validCaptureModes = []string{"all", "off"}
	validConnections  = []string{"gochannel"}
)

// Validate checks enum values and limit ordering. Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.Write.Mode, validWriteModes) {
		errs = append(errs, fmt.Errorf("write.mode must be one of %s, got %q", strings.Join(validWriteModes, "|"), c.Write.Mode))
	}
	if !oneOf(c.Capture.Mode, validCaptureModes) {
		errs = append(errs, fmt.Errorf("capture.mode must be one of %s, got %q", strings.Join(validCaptureModes, "|"), c.Capture.Mode))
	}
	// Level names go through the same parser the logger uses, aliases included.
	if _, ok := models.ParseLevel(c.Capture.MinLevel); !ok {
		errs = append(errs, fmt.Errorf("capture.min_level %q is not a log level", c.Capture.MinLevel))
	}
	if _, ok := models.ParseLevel(c.Server.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("server.log_level %q is not a log level", c.Server.LogLevel))
	}
	if c.Write.Mode == "queue" && !oneOf(c.Queue.Connection, validConnections) {
		errs = append(errs, fmt.Errorf("queue.connection %q is not supported", c.Queue.Connection))
	}
	if c.Queue.MaxRetries < 0 || c.Queue.CloseTimeout <= 0 {
		errs = append(errs, errors.New("queue.max_retries must not be negative and queue.close_timeout must be positive"))
	}
	if c.Tables.Entries == "" || c.Tables.Presets == "" {
		errs = append(errs, errors.New("table names must not be empty"))
	}
	if c.Retention.Days < 1 {
		errs = append(errs, errors.New("retention.days must be at least 1"))
	}
	if c.Retention.ChunkSize < 1 {
		errs = append(errs, errors.New("retention.chunk_size must be at least 1"))
	}

	l := c.Limits
	if l.MessagePreviewLength < 1 || l.ContextPreviewLength < 1 {
		errs = append(errs, errors.New("preview lengths must be positive"))
	}
	if l.MessageInlineMax > l.TruncateAt || l.ContextInlineMax > l.TruncateAt {
		errs = append(errs, errors.New("inline maxima must not exceed truncate_at"))
	}

	if c.Pagination.PerPage < 1 || c.Pagination.MaxPerPage < c.Pagination.PerPage {
		errs = append(errs, errors.New("pagination.per_page must be positive and not exceed max_per_page"))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
