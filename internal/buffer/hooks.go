package buffer

import (
	"os"
	"sort"
	"sync"
)

// ExitHooks is the process-exit flush registry. Run is idempotent: each
// registered hook runs at most once.
type ExitHooks struct {
	mu    sync.Mutex
	next  int
	hooks map[int]func()
}

func NewExitHooks() *ExitHooks {
	return &ExitHooks{hooks: make(map[int]func())}
}

// Register adds fn and returns a func that removes it again.
func (h *ExitHooks) Register(fn func()) (cancel func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.hooks[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.hooks, id)
		h.mu.Unlock()
	}
}

func (h *ExitHooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Run drains the registry and calls the hooks in registration order. It is
// safe to call from a signal handler goroutine and more than once.
func (h *ExitHooks) Run() {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = make(map[int]func())
	h.mu.Unlock()

	ids := make([]int, 0, len(hooks))
	for id := range hooks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		runHook(hooks[id])
	}
}

func runHook(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// Exit runs the hooks and terminates the process with code.
func (h *ExitHooks) Exit(code int) {
	h.Run()
	os.Exit(code)
}
