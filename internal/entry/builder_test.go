package entry

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

func testBuilder() *Builder {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewBuilder(Limits{
		MessagePreviewLength: 10,
		MessageInlineMax:     50,
		ContextPreviewLength: 20,
		ContextInlineMax:     60,
		TruncateAt:           100,
	}).WithClock(func() time.Time { return fixed })
}

func TestBuild_MessageThresholds(t *testing.T) {
	b := testBuilder()
	tests := []struct {
		name          string
		length        int
		wantLen       int
		wantTruncated bool
	}{
		{"short", 10, 10, false},
		{"at inline max", 50, 50, false},
		{"above inline max", 51, 51, true},
		{"at ceiling", 100, 100, true},
		{"above ceiling", 250, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := b.Build(Raw{Level: models.LevelInfo, Message: strings.Repeat("a", tt.length)})
			if len(e.Message) != tt.wantLen {
				t.Errorf("len(message) = %d, want %d", len(e.Message), tt.wantLen)
			}
			if e.IsTruncated != tt.wantTruncated {
				t.Errorf("IsTruncated = %v, want %v", e.IsTruncated, tt.wantTruncated)
			}
			if utf8.RuneCountInString(e.MessagePreview) > 10 {
				t.Errorf("preview has %d chars", utf8.RuneCountInString(e.MessagePreview))
			}
		})
	}
}

func TestBuild_TruncationKeepsUTF8(t *testing.T) {
	b := testBuilder()
	e := b.Build(Raw{Level: models.LevelInfo, Message: strings.Repeat("€", 60)})
	if !utf8.ValidString(e.Message) || !utf8.ValidString(e.MessagePreview) {
		t.Fatal("truncation produced invalid UTF-8")
	}
	if len(e.Message) > 100 {
		t.Errorf("len(message) = %d, want <= 100", len(e.Message))
	}
	if !e.IsTruncated {
		t.Error("expected IsTruncated")
	}
}

func TestBuild_Context(t *testing.T) {
	b := testBuilder()

	t.Run("small context stored verbatim", func(t *testing.T) {
		e := b.Build(Raw{Level: models.LevelInfo, Message: "m", Context: map[string]any{"a": 1}})
		if string(e.Context) != `{"a":1}` {
			t.Errorf("context = %s", e.Context)
		}
		if e.ContextPreview == nil || *e.ContextPreview != `{"a":1}` {
			t.Errorf("preview = %v", e.ContextPreview)
		}
		if e.IsTruncated {
			t.Error("unexpected IsTruncated")
		}
	})

	t.Run("large context flagged but kept", func(t *testing.T) {
		e := b.Build(Raw{Level: models.LevelInfo, Message: "m", Context: map[string]any{"a": strings.Repeat("x", 70)}})
		if !e.IsTruncated {
			t.Error("expected IsTruncated")
		}
		var m map[string]any
		if err := json.Unmarshal(e.Context, &m); err != nil || m["a"] == nil {
			t.Errorf("context lost: %s", e.Context)
		}
		if len([]rune(*e.ContextPreview)) != 20 {
			t.Errorf("preview length = %d", len([]rune(*e.ContextPreview)))
		}
	})

	t.Run("oversize context replaced", func(t *testing.T) {
		e := b.Build(Raw{Level: models.LevelInfo, Message: "m", Context: map[string]any{"a": strings.Repeat("x", 200)}})
		var m map[string]any
		if err := json.Unmarshal(e.Context, &m); err != nil {
			t.Fatal(err)
		}
		if m["_truncated"] != true || m["_original_size"] != float64(208) {
			t.Errorf("context = %s", e.Context)
		}
		if !e.IsTruncated {
			t.Error("expected IsTruncated")
		}
	})

	t.Run("empty context stays null", func(t *testing.T) {
		e := b.Build(Raw{Level: models.LevelInfo, Message: "m"})
		if e.Context != nil || e.ContextPreview != nil {
			t.Errorf("context = %s", e.Context)
		}
	})
}

func TestBuild_Defaults(t *testing.T) {
	b := testBuilder()
	e := b.Build(Raw{Level: models.LevelError, Message: "Order 7 failed", Source: "/app/orders.go", SourceLine: 12, Channel: "orders"})

	if len(e.ID) != 26 {
		t.Errorf("ID %q is not a ULID", e.ID)
	}
	if !e.OccurredAt.Equal(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("OccurredAt = %v", e.OccurredAt)
	}
	if e.Status != models.StatusOpen {
		t.Errorf("Status = %q", e.Status)
	}
	if e.Fingerprint == nil || len(*e.Fingerprint) != 16 {
		t.Errorf("Fingerprint = %v", e.Fingerprint)
	}
	if e.SourceLine == nil || *e.SourceLine != 12 {
		t.Errorf("SourceLine = %v", e.SourceLine)
	}
	if e.Channel == nil || *e.Channel != "orders" {
		t.Errorf("Channel = %v", e.Channel)
	}
	if e.TraceID != nil || e.URL != nil {
		t.Error("absent request fields should be nil")
	}
}

func TestBuild_ExplicitValuesKept(t *testing.T) {
	b := testBuilder()
	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	e := b.Build(Raw{Level: models.LevelInfo, Message: "m", Fingerprint: "custom", OccurredAt: at})
	if *e.Fingerprint != "custom" {
		t.Errorf("Fingerprint = %q", *e.Fingerprint)
	}
	if !e.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v", e.OccurredAt)
	}
}

func TestBuild_NoFingerprintWithoutMessage(t *testing.T) {
	e := testBuilder().Build(Raw{Level: models.LevelInfo})
	if e.Fingerprint != nil {
		t.Errorf("Fingerprint = %q, want nil", *e.Fingerprint)
	}
}

func TestBuild_IDsSortable(t *testing.T) {
	b := testBuilder()
	prev := ""
	for i := 0; i < 100; i++ {
		id := b.Build(Raw{Level: models.LevelInfo, Message: "m"}).ID
		if id <= prev {
			t.Fatalf("id %s not greater than %s", id, prev)
		}
		prev = id
	}
}

func TestDefaultLimits(t *testing.T) {
	l := NewBuilder(Limits{}).Limits()
	if l != DefaultLimits() {
		t.Errorf("zero limits not defaulted: %+v", l)
	}
	if l.TruncateAt != 1000000 || l.MessagePreviewLength != 500 {
		t.Errorf("unexpected defaults %+v", l)
	}
}
