package capture

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/entry"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/reqctx"
)

type memWriter struct {
	mu      sync.Mutex
	entries []*models.LogEntry
}

func (w *memWriter) Write(_ context.Context, e *models.LogEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, e)
}

func (w *memWriter) all() []*models.LogEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*models.LogEntry(nil), w.entries...)
}

func newHandler(opts Options) (*Handler, *memWriter) {
	w := &memWriter{}
	return NewHandler(w, entry.NewBuilder(entry.DefaultLimits()), opts), w
}

func decodeContext(t *testing.T, e *models.LogEntry) map[string]any {
	t.Helper()
	if len(e.Context) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(e.Context, &m); err != nil {
		t.Fatalf("context is not JSON: %v", err)
	}
	return m
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func TestHandler_CapturesRecord(t *testing.T) {
	h, w := newHandler(Options{})
	logger := slog.New(h).With("channel", "payments", "tenant", "acme")

	logger.Warn("card declined", "order_id", 42)

	got := w.all()
	if len(got) != 1 {
		t.Fatalf("captured %d entries, want 1", len(got))
	}
	e := got[0]
	if e.Level != models.LevelWarning || e.Message != "card declined" {
		t.Errorf("level/message = %s/%q", e.Level, e.Message)
	}
	if str(e.Channel) != "payments" {
		t.Errorf("channel = %q", str(e.Channel))
	}
	if !strings.HasSuffix(str(e.Source), "handler_test.go") || e.SourceLine == nil {
		t.Errorf("source = %q line %v", str(e.Source), e.SourceLine)
	}
	if e.Fingerprint == nil || e.Status != models.StatusOpen {
		t.Errorf("fingerprint %v status %s", e.Fingerprint, e.Status)
	}
	ctx := decodeContext(t, e)
	if ctx["tenant"] != "acme" || ctx["order_id"] != float64(42) {
		t.Errorf("context = %v", ctx)
	}
	if _, ok := ctx["channel"]; ok {
		t.Error("channel leaked into context")
	}
}

func TestHandler_RecordChannelWinsAndDoesNotStick(t *testing.T) {
	h, w := newHandler(Options{})
	logger := slog.New(h).With("channel", "app")

	logger.Info("one", "channel", "billing")
	logger.Info("two")

	got := w.all()
	if len(got) != 2 {
		t.Fatalf("captured %d entries", len(got))
	}
	if str(got[0].Channel) != "billing" || str(got[1].Channel) != "app" {
		t.Errorf("channels = %q, %q", str(got[0].Channel), str(got[1].Channel))
	}
}

func TestHandler_GroupsNestContext(t *testing.T) {
	h, w := newHandler(Options{})
	logger := slog.New(h).With("channel", "http").WithGroup("req").With("path", "/x")

	logger.Info("served", "status", 200, slog.Group("timing", "ms", 12))

	ctx := decodeContext(t, w.all()[0])
	req, ok := ctx["req"].(map[string]any)
	if !ok {
		t.Fatalf("context = %v", ctx)
	}
	if req["path"] != "/x" || req["status"] != float64(200) {
		t.Errorf("req group = %v", req)
	}
	if timing, _ := req["timing"].(map[string]any); timing["ms"] != float64(12) {
		t.Errorf("timing group = %v", req["timing"])
	}
	if str(w.all()[0].Channel) != "http" {
		t.Errorf("channel = %q", str(w.all()[0].Channel))
	}
}

func TestHandler_WithAttrsDoesNotMutateParent(t *testing.T) {
	h, w := newHandler(Options{})
	base := slog.New(h).WithGroup("g").With("a", 1)
	base.With("b", 2).Info("child")
	base.Info("parent")

	got := w.all()
	parent := decodeContext(t, got[1])["g"].(map[string]any)
	if _, ok := parent["b"]; ok {
		t.Errorf("child attribute leaked into parent: %v", parent)
	}
}

func TestHandler_SkipsInternalEvents(t *testing.T) {
	h, w := newHandler(Options{})
	logger := slog.New(h)

	logger.Error(logging.Marker + " failed to write")
	logger.Error("watermill noise", logging.InternalAttr, true)
	logger.With(logging.InternalAttr, true).Error("internal logger")

	if n := len(w.all()); n != 0 {
		t.Errorf("captured %d internal entries", n)
	}
}

func TestHandler_Deduplicates(t *testing.T) {
	h1, w := newHandler(Options{})
	h2 := NewHandler(w, entry.NewBuilder(entry.DefaultLimits()), Options{})

	r := slog.NewRecord(time.Now(), slog.LevelError, "twice", 0)
	_ = h1.Handle(context.Background(), r)
	_ = h2.Handle(context.Background(), r.Clone())

	_ = h1.Handle(MarkCaptured(context.Background()), slog.NewRecord(time.Now(), slog.LevelError, "elsewhere", 0))

	if n := len(w.all()); n != 1 {
		t.Errorf("captured %d entries, want 1", n)
	}
}

func TestHandler_IgnoreRules(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		channel string
		msg     string
		want    int
	}{
		{"deprecation ignored", Options{IgnoreDeprecations: true}, "app", "Function foo() is deprecated", 0},
		{"deprecation kept", Options{}, "app", "Deprecation: use bar", 1},
		{"null channel ignored", Options{IgnoreNullChannel: true}, "", "no channel", 0},
		{"null channel kept", Options{}, "", "no channel", 1},
		{"channel present", Options{IgnoreNullChannel: true}, "app", "has channel", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, w := newHandler(tt.opts)
			logger := slog.New(h)
			if tt.channel != "" {
				logger = logger.With("channel", tt.channel)
			}
			logger.Info(tt.msg + " " + t.Name())
			if n := len(w.all()); n != tt.want {
				t.Errorf("captured %d, want %d", n, tt.want)
			}
		})
	}
}

func TestHandler_ModeAndMinLevel(t *testing.T) {
	off, _ := newHandler(Options{Mode: ModeOff})
	if off.Enabled(context.Background(), slog.LevelError) {
		t.Error("mode off should disable the handler")
	}

	h, w := newHandler(Options{MinLevel: slog.LevelWarn})
	logger := slog.New(h)
	logger.Info("quiet")
	logger.Log(context.Background(), models.SlogCritical, "loud")

	got := w.all()
	if len(got) != 1 || got[0].Level != models.LevelCritical {
		t.Errorf("captured %v", got)
	}
}

func TestHandler_MergesAmbientAndExtractor(t *testing.T) {
	h, w := newHandler(Options{
		Extractor: func(context.Context) map[string]any {
			return map[string]any{"release": "v1.2", "tenant": "from-extractor"}
		},
	})
	ctx := reqctx.With(context.Background(), &reqctx.Ambient{
		TraceID:    "t-1",
		IPAddress:  "10.0.0.1",
		UserAgent:  "curl",
		HTTPMethod: "POST",
		URL:        "https://api.test/orders?token=[REDACTED]",
	})
	reqctx.SetUserID(ctx, "u-1")

	slog.New(h).ErrorContext(ctx, "boom", "tenant", "explicit")

	e := w.all()[0]
	if str(e.TraceID) != "t-1" || str(e.UserID) != "u-1" || str(e.IPAddress) != "10.0.0.1" ||
		str(e.UserAgent) != "curl" || str(e.HTTPMethod) != "POST" || !strings.Contains(str(e.URL), "[REDACTED]") {
		t.Errorf("request fields = %+v", e)
	}
	ctxMap := decodeContext(t, e)
	if ctxMap["release"] != "v1.2" || ctxMap["tenant"] != "explicit" {
		t.Errorf("context = %v", ctxMap)
	}
}

func TestHandler_ErrorAttributes(t *testing.T) {
	h, w := newHandler(Options{})
	err := errors.New("disk full")
	slog.New(h).Error("save failed", "error", err, "_logbook_secret", "x")

	e := w.all()[0]
	ctx := decodeContext(t, e)
	exc, ok := ctx["error"].(map[string]any)
	if !ok || exc["_type"] != "exception" || exc["message"] != "disk full" {
		t.Errorf("error attribute = %v", ctx["error"])
	}
	if _, ok := ctx["_logbook_secret"]; ok {
		t.Error("reserved key stored")
	}
	if !strings.HasSuffix(str(e.Source), "handler_test.go") {
		t.Errorf("source = %q", str(e.Source))
	}
}

type panicWriter struct{}

func (panicWriter) Write(context.Context, *models.LogEntry) { panic("writer exploded") }

func TestHandler_RecoversPanics(t *testing.T) {
	var diag bytes.Buffer
	defer logging.SetDiagnosticOutput(&diag)()

	h := NewHandler(panicWriter{}, entry.NewBuilder(entry.DefaultLimits()), Options{})
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "explodes", 0)); err != nil {
		t.Errorf("Handle returned %v", err)
	}
	if !strings.Contains(diag.String(), "writer exploded") {
		t.Errorf("diagnostic = %q", diag.String())
	}
}
