package buffer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

type recorder struct {
	mu    sync.Mutex
	ids   []string
	fail  map[string]error
	panic map[string]bool
}

func (r *recorder) persist(_ context.Context, e *models.LogEntry) error {
	if r.panic[e.ID] {
		panic("store torn down")
	}
	if err := r.fail[e.ID]; err != nil {
		return err
	}
	r.mu.Lock()
	r.ids = append(r.ids, e.ID)
	r.mu.Unlock()
	return nil
}

func (r *recorder) persisted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func entry(id string) *models.LogEntry {
	return &models.LogEntry{ID: id, Level: models.LevelInfo, Message: id}
}

func silenceDiagnostics(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	t.Cleanup(logging.SetDiagnosticOutput(&buf))
	return &buf
}

func TestBuffer_RoundTrip(t *testing.T) {
	rec := &recorder{}
	b := New(rec.persist, Triggers{})

	b.Add(entry("e1"))
	b.Add(entry("e2"))
	b.Flush(context.Background())

	if got := rec.persisted(); strings.Join(got, ",") != "e1,e2" {
		t.Errorf("persisted %v, want [e1 e2]", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d after flush", b.Len())
	}

	b.Flush(context.Background())
	if got := rec.persisted(); len(got) != 2 {
		t.Errorf("second flush persisted again: %v", got)
	}
}

func TestBuffer_FailuresDoNotStopFlush(t *testing.T) {
	diag := silenceDiagnostics(t)
	rec := &recorder{
		fail:  map[string]error{"bad": errors.New("constraint violation")},
		panic: map[string]bool{"boom": true},
	}
	b := New(rec.persist, Triggers{})

	for _, id := range []string{"a", "bad", "b", "boom", "c"} {
		b.Add(entry(id))
	}
	b.Flush(context.Background())

	if got := strings.Join(rec.persisted(), ","); got != "a,b,c" {
		t.Errorf("persisted %s, want a,b,c", got)
	}
	out := diag.String()
	if !strings.Contains(out, "constraint violation") || !strings.Contains(out, "store torn down") {
		t.Errorf("diagnostics missing failures:\n%s", out)
	}
}

func TestBuffer_NilPersistIsReported(t *testing.T) {
	diag := silenceDiagnostics(t)
	b := New(nil, Triggers{})
	b.Add(entry("a"))
	b.Flush(context.Background())
	if !strings.Contains(diag.String(), logging.Marker) {
		t.Error("expected a diagnostic")
	}
}

func TestBuffer_AddDuringFlushGoesToNextBatch(t *testing.T) {
	var b *Buffer
	var order []string
	persist := func(_ context.Context, e *models.LogEntry) error {
		order = append(order, e.ID)
		if e.ID == "first" {
			b.Add(entry("late"))
		}
		return nil
	}
	b = New(persist, Triggers{})

	b.Add(entry("first"))
	b.Flush(context.Background())
	if strings.Join(order, ",") != "first" {
		t.Fatalf("first flush persisted %v", order)
	}
	if b.Len() != 1 {
		t.Fatalf("late entry lost: Len = %d", b.Len())
	}
	b.Flush(context.Background())
	if strings.Join(order, ",") != "first,late" {
		t.Errorf("persisted %v", order)
	}
}

func TestBuffer_TriggersRegisteredOnce(t *testing.T) {
	rec := &recorder{}
	exit := NewExitHooks()
	var ends int
	var primary func()
	b := New(rec.persist, Triggers{
		OnEnd: func(flush func()) { ends++; primary = flush },
		Exit:  exit,
	})

	b.Add(entry("a"))
	b.Add(entry("b"))
	if ends != 1 || exit.Len() != 1 {
		t.Fatalf("registered OnEnd %d times, exit hooks %d", ends, exit.Len())
	}

	primary()
	if len(rec.persisted()) != 2 {
		t.Errorf("primary flush persisted %v", rec.persisted())
	}
	if exit.Len() != 0 {
		t.Errorf("exit hook not released after flush: %d", exit.Len())
	}

	// Running exit hooks afterwards must not persist twice.
	exit.Run()
	if len(rec.persisted()) != 2 {
		t.Errorf("exit hook duplicated entries: %v", rec.persisted())
	}

	b.Add(entry("c"))
	if ends != 2 || exit.Len() != 1 {
		t.Errorf("not re-armed after flush: ends=%d hooks=%d", ends, exit.Len())
	}
}

func TestBuffer_ExitHookCatchesAbandonedUnit(t *testing.T) {
	rec := &recorder{}
	exit := NewExitHooks()
	ctx, _ := Begin(context.Background(), rec.persist, exit)

	FromContext(ctx).Add(entry("orphan"))
	// The unit never ends; the process exit path still delivers the entry.
	exit.Run()
	exit.Run()

	if got := rec.persisted(); len(got) != 1 || got[0] != "orphan" {
		t.Errorf("persisted %v", got)
	}
}

func TestRun_FlushesOnReturnAndPanic(t *testing.T) {
	rec := &recorder{}
	err := Run(context.Background(), rec.persist, nil, func(ctx context.Context) error {
		FromContext(ctx).Add(entry("job"))
		return errors.New("job failed")
	})
	if err == nil || err.Error() != "job failed" {
		t.Errorf("err = %v", err)
	}
	if got := rec.persisted(); len(got) != 1 {
		t.Errorf("persisted %v", got)
	}

	func() {
		defer func() { _ = recover() }()
		_ = Run(context.Background(), rec.persist, nil, func(ctx context.Context) error {
			FromContext(ctx).Add(entry("panicking job"))
			panic("job crashed")
		})
	}()
	if got := rec.persisted(); len(got) != 2 {
		t.Errorf("panicking job's entry not flushed: %v", got)
	}
}

func TestUnit_OnEndAfterEndRunsImmediately(t *testing.T) {
	u := NewUnit()
	calls := 0
	u.OnEnd(func() { calls++ })
	u.End()
	u.End()
	u.OnEnd(func() { calls++ })
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestExitHooks_OrderAndCancel(t *testing.T) {
	h := NewExitHooks()
	var order []int
	h.Register(func() { order = append(order, 1) })
	cancel := h.Register(func() { order = append(order, 2) })
	h.Register(func() { panic("bad hook") })
	h.Register(func() { order = append(order, 4) })
	cancel()

	h.Run()
	h.Run()
	if len(order) != 2 || order[0] != 1 || order[1] != 4 {
		t.Errorf("order = %v", order)
	}
}

func TestFromContext_Empty(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("expected nil buffer")
	}
}

func TestBuffer_ConcurrentAddAndFlush(t *testing.T) {
	rec := &recorder{}
	b := New(rec.persist, Triggers{Exit: NewExitHooks()})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Add(entry("x"))
				if i%10 == 0 {
					b.Flush(context.Background())
				}
			}
		}(w)
	}
	wg.Wait()
	b.Flush(context.Background())

	if got := len(rec.persisted()); got != 800 {
		t.Errorf("persisted %d entries, want 800", got)
	}
}

func TestFlusher_DrainsOnTickAndStop(t *testing.T) {
	rec := &recorder{}
	b := New(rec.persist, Triggers{})
	f := NewFlusher(b, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Serve(ctx) }()

	b.Add(entry("tick"))
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.persisted()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(rec.persisted()) != 1 {
		t.Fatal("ticker did not flush")
	}

	b.Add(entry("stop"))
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v", err)
	}
	if len(rec.persisted()) != 2 {
		t.Errorf("stop did not flush: %v", rec.persisted())
	}
}
