// Package entry turns raw captured data into persistable log entries.
package entry

import (
	"crypto/rand"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid"
	"gorm.io/datatypes"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/fingerprint"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// Limits bounds stored content. Lengths are bytes except the previews,
// which count characters.
type Limits struct {
	MessagePreviewLength int
	MessageInlineMax     int
	ContextPreviewLength int
	ContextInlineMax     int
	TruncateAt           int
}

func DefaultLimits() Limits {
	return Limits{
		MessagePreviewLength: 500,
		MessageInlineMax:     16000,
		ContextPreviewLength: 500,
		ContextInlineMax:     32000,
		TruncateAt:           1000000,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MessagePreviewLength <= 0 {
		l.MessagePreviewLength = d.MessagePreviewLength
	}
	if l.MessageInlineMax <= 0 {
		l.MessageInlineMax = d.MessageInlineMax
	}
	if l.ContextPreviewLength <= 0 {
		l.ContextPreviewLength = d.ContextPreviewLength
	}
	if l.ContextInlineMax <= 0 {
		l.ContextInlineMax = d.ContextInlineMax
	}
	if l.TruncateAt <= 0 {
		l.TruncateAt = d.TruncateAt
	}
	return l
}

// Raw is everything known about an event before it is built. Empty strings
// are stored as NULL. Context must already be sanitized.
type Raw struct {
	Level       models.Level
	Message     string
	Context     map[string]any
	Channel     string
	Source      string
	SourceLine  int
	Fingerprint string

	TraceID    string
	UserID     string
	IPAddress  string
	UserAgent  string
	HTTPMethod string
	URL        string

	OccurredAt time.Time
}

// Builder is safe for concurrent use.
type Builder struct {
	limits Limits
	now    func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

func NewBuilder(limits Limits) *Builder {
	return &Builder{
		limits:  limits.withDefaults(),
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// WithClock replaces the clock used for default occurred_at values.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) Limits() Limits { return b.limits }

func (b *Builder) Build(raw Raw) *models.LogEntry {
	occurred := raw.OccurredAt
	if occurred.IsZero() {
		occurred = b.now()
	}

	e := &models.LogEntry{
		ID:         b.newID(occurred),
		Level:      raw.Level,
		Status:     models.StatusOpen,
		OccurredAt: occurred,
		Channel:    optional(raw.Channel),
		Source:     optional(raw.Source),
		TraceID:    optional(raw.TraceID),
		UserID:     optional(raw.UserID),
		IPAddress:  optional(raw.IPAddress),
		UserAgent:  optional(raw.UserAgent),
		HTTPMethod: optional(raw.HTTPMethod),
		URL:        optional(raw.URL),
	}
	if raw.SourceLine > 0 {
		line := raw.SourceLine
		e.SourceLine = &line
	}

	b.applyMessage(e, raw.Message)
	b.applyContext(e, raw.Context)

	fp := raw.Fingerprint
	if fp == "" {
		fp = fingerprint.Fingerprint(raw.Message, string(raw.Level), raw.Source)
	}
	e.Fingerprint = optional(fp)

	return e
}

func (b *Builder) applyMessage(e *models.LogEntry, msg string) {
	e.Message = msg
	e.MessagePreview = cutRunes(msg, b.limits.MessagePreviewLength)
	switch {
	case len(msg) > b.limits.TruncateAt:
		e.Message = cutBytes(msg, b.limits.TruncateAt)
		e.IsTruncated = true
	case len(msg) > b.limits.MessageInlineMax:
		e.IsTruncated = true
	}
}

func (b *Builder) applyContext(e *models.LogEntry, ctx map[string]any) {
	if len(ctx) == 0 {
		return
	}
	raw, err := json.Marshal(ctx)
	if err != nil {
		raw, _ = json.Marshal(map[string]any{"_unserializable": err.Error()})
	}

	preview := cutRunes(string(raw), b.limits.ContextPreviewLength)
	e.ContextPreview = &preview

	switch size := len(raw); {
	case size > b.limits.TruncateAt:
		raw, _ = json.Marshal(map[string]any{"_truncated": true, "_original_size": size})
		e.IsTruncated = true
	case size > b.limits.ContextInlineMax:
		e.IsTruncated = true
	}
	e.Context = datatypes.JSON(raw)
}

func (b *Builder) newID(t time.Time) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), b.entropy)
	if err != nil {
		// Monotonic entropy overflows only after 2^80 ids in one millisecond.
		id = ulid.MustNew(ulid.Timestamp(t), rand.Reader)
	}
	return id.String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// cutRunes keeps at most n characters.
func cutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// cutBytes keeps at most n bytes without splitting a UTF-8 sequence.
func cutBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
