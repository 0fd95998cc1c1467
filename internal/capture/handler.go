// Package capture stores slog records through the entry pipeline. Install a
// Handler next to the process's output handler with logging.Setup.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/entry"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/reqctx"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/sanitize"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/writer"
)

const (
	ModeAll = "all"
	ModeOff = "off"

	// ChannelKey is the attribute naming an event's channel.
	ChannelKey = "channel"
)

// ContextExtractor adds application data to every captured event.
type ContextExtractor func(ctx context.Context) map[string]any

type Options struct {
	Mode               string
	MinLevel           slog.Leveler
	IgnoreDeprecations bool
	IgnoreNullChannel  bool
	Extractor          ContextExtractor
	Sanitizer          *sanitize.Sanitizer
}

type pipeline struct {
	writer  writer.Writer
	builder *entry.Builder
	opts    Options
}

// Handler is an slog.Handler that turns records into stored entries. It
// never returns an error and never panics into the caller.
type Handler struct {
	p *pipeline

	attrs    map[string]any
	groups   []string
	channel  string
	internal bool
}

func NewHandler(w writer.Writer, b *entry.Builder, opts Options) *Handler {
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	if opts.MinLevel == nil {
		opts.MinLevel = slog.LevelDebug
	}
	if opts.Sanitizer == nil {
		opts.Sanitizer = sanitize.New()
	}
	return &Handler{p: &pipeline{writer: w, builder: b, opts: opts}}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.p.opts.Mode != ModeOff && level >= h.p.opts.MinLevel.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	if h.internal || strings.Contains(r.Message, logging.Marker) {
		skip("internal")
		return nil
	}
	if Captured(ctx) || recent.seen(recordKey(r)) {
		skip("duplicate")
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			skip("panic")
			logging.Diagnose("failed to capture log event", fmt.Errorf("panic: %v", rec), "message", r.Message)
		}
	}()
	h.capture(ctx, r)
	return nil
}

func (h *Handler) capture(ctx context.Context, r slog.Record) {
	channel := h.channel
	var recordAttrs []slog.Attr
	internal := false
	r.Attrs(func(a slog.Attr) bool {
		switch {
		case a.Key == logging.InternalAttr:
			internal = true
			return false
		case a.Key == ChannelKey && len(h.groups) == 0:
			channel = a.Value.Resolve().String()
		default:
			recordAttrs = append(recordAttrs, a)
		}
		return true
	})
	if internal {
		skip("internal")
		return
	}

	opts := h.p.opts
	if opts.IgnoreDeprecations && isDeprecation(r.Message) {
		skip("ignored")
		return
	}
	if opts.IgnoreNullChannel && channel == "" {
		skip("ignored")
		return
	}

	fields := withAttrs(h.attrs, h.groups, recordAttrs)
	if opts.Extractor != nil {
		for k, v := range opts.Extractor(ctx) {
			if _, exists := fields[k]; !exists {
				fields[k] = v
			}
		}
	}

	raw := entry.Raw{
		Level:      models.LevelFromSlog(r.Level),
		Message:    r.Message,
		Channel:    channel,
		OccurredAt: r.Time,
	}
	if a := reqctx.From(ctx); a != nil {
		raw.TraceID = a.TraceID
		raw.UserID = a.UserID()
		raw.IPAddress = a.IPAddress
		raw.UserAgent = a.UserAgent
		raw.HTTPMethod = a.HTTPMethod
		raw.URL = a.URL
	}
	raw.Source, raw.SourceLine = sanitize.ExtractSource(fields, r.PC)
	raw.Context = opts.Sanitizer.Sanitize(fields)

	e := h.p.builder.Build(raw)
	metrics.EntriesCaptured.WithLabelValues(string(e.Level)).Inc()
	h.p.writer.Write(ctx, e)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	kept := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		switch {
		case a.Key == logging.InternalAttr:
			h2.internal = true
		case a.Key == ChannelKey && len(h.groups) == 0:
			h2.channel = a.Value.Resolve().String()
		default:
			kept = append(kept, a)
		}
	}
	if len(kept) > 0 {
		h2.attrs = withAttrs(h.attrs, h.groups, kept)
	}
	return h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups[:len(h2.groups):len(h2.groups)], name)
	return h2
}

func (h *Handler) clone() *Handler {
	c := *h
	return &c
}

func skip(reason string) {
	metrics.EntriesSkipped.WithLabelValues(reason).Inc()
}

func isDeprecation(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "deprecated") || strings.Contains(m, "deprecation")
}

// withAttrs returns a copy of base with attrs added under the group path.
// Maps along the path are copied; base is not modified.
func withAttrs(base map[string]any, groups []string, attrs []slog.Attr) map[string]any {
	out := copyMap(base)
	m := out
	for _, g := range groups {
		child, _ := m[g].(map[string]any)
		child = copyMap(child)
		m[g] = child
		m = child
	}
	addAttrs(m, attrs)
	return out
}

func addAttrs(m map[string]any, attrs []slog.Attr) {
	for _, a := range attrs {
		v := a.Value.Resolve()
		if v.Kind() == slog.KindGroup {
			group := v.Group()
			if len(group) == 0 {
				continue
			}
			if a.Key == "" {
				addAttrs(m, group)
				continue
			}
			child, _ := m[a.Key].(map[string]any)
			child = copyMap(child)
			addAttrs(child, group)
			m[a.Key] = child
			continue
		}
		if a.Key == "" {
			continue
		}
		m[a.Key] = v.Any()
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}
