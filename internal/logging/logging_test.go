package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"notice", slog.LevelInfo + 2},
		{"critical", slog.LevelError + 4},
		{"emergency", slog.LevelError + 12},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := ParseLevel(tt.input)
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

type recordingHandler struct {
	level   slog.Level
	records []slog.Record
	err     error
}

func (h *recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return h.err
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler_FanOut(t *testing.T) {
	failing := &recordingHandler{level: slog.LevelDebug, err: errors.New("boom")}
	errorsOnly := &recordingHandler{level: slog.LevelError}
	all := &recordingHandler{level: slog.LevelDebug}

	logger := slog.New(NewMultiHandler(failing, errorsOnly, all))
	logger.Info("hello")
	logger.Error("bad")

	if len(failing.records) != 2 {
		t.Errorf("failing handler got %d records, want 2", len(failing.records))
	}
	if len(errorsOnly.records) != 1 {
		t.Errorf("error-only handler got %d records, want 1", len(errorsOnly.records))
	}
	if len(all.records) != 2 {
		t.Errorf("handler after a failing one got %d records, want 2", len(all.records))
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	h := NewMultiHandler(&recordingHandler{level: slog.LevelError}, &recordingHandler{level: slog.LevelWarn})
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should not be enabled")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled")
	}
}

func TestSetup_WithExtraHandler(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	extra := &recordingHandler{level: slog.LevelDebug}
	logger := setup(&buf, slog.LevelInfo, extra)

	logger.Info("test message", "key", "value")
	logger.Debug("hidden from stdout")

	var m map[string]any
	line := strings.SplitN(buf.String(), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v\noutput: %s", err, buf.String())
	}
	if m["msg"] != "test message" {
		t.Errorf("expected msg 'test message', got %q", m["msg"])
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug record should not reach the stdout handler")
	}
	if len(extra.records) != 2 {
		t.Errorf("extra handler got %d records, want 2", len(extra.records))
	}
}

func TestDiagnose(t *testing.T) {
	var buf bytes.Buffer
	restore := SetDiagnosticOutput(&buf)
	defer restore()

	Diagnose("flush failed", errors.New("db gone"), "count", 3)

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("diagnostic is not JSON: %v\n%s", err, buf.String())
	}
	msg, _ := m["msg"].(string)
	if !strings.HasPrefix(msg, Marker) {
		t.Errorf("msg %q missing marker", msg)
	}
	if m["error"] != "db gone" {
		t.Errorf("error = %v", m["error"])
	}
	if m[InternalAttr] != true {
		t.Errorf("%s attribute missing", InternalAttr)
	}
	if m["count"] != float64(3) {
		t.Errorf("count = %v", m["count"])
	}
}
