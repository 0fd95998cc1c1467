package capture

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const recentSize = 512

// recent remembers the last records captured by any Handler in the process,
// so a record reaching two capture paths is stored once.
var recent = newRing(recentSize)

type ring struct {
	mu   sync.Mutex
	keys []uint64
	set  map[uint64]struct{}
	next int
}

func newRing(n int) *ring {
	return &ring{keys: make([]uint64, n), set: make(map[uint64]struct{}, n)}
}

// seen records key and reports whether it was already present.
func (r *ring) seen(key uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.set[key]; ok {
		return true
	}
	if old := r.keys[r.next]; old != 0 {
		delete(r.set, old)
	}
	r.keys[r.next] = key
	r.set[key] = struct{}{}
	r.next = (r.next + 1) % len(r.keys)
	return false
}

func recordKey(r slog.Record) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.Itoa(int(r.Level)))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatInt(r.Time.UnixNano(), 10))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatUint(uint64(r.PC), 16))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(r.Message)
	if k := d.Sum64(); k != 0 {
		return k
	}
	return 1
}

type capturedKey struct{}

// MarkCaptured tells capture handlers that events logged with the returned
// context were already stored by another path.
func MarkCaptured(ctx context.Context) context.Context {
	return context.WithValue(ctx, capturedKey{}, true)
}

func Captured(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(capturedKey{}).(bool)
	return v
}
