package buffer

import (
	"context"
	"sync"
)

// Unit is one unit of work (an HTTP request, a background job). Callbacks
// registered with OnEnd run once, when End is called.
type Unit struct {
	mu    sync.Mutex
	ended bool
	fns   []func()
}

func NewUnit() *Unit {
	return &Unit{}
}

// OnEnd registers fn. After End it runs fn immediately.
func (u *Unit) OnEnd(fn func()) {
	u.mu.Lock()
	if u.ended {
		u.mu.Unlock()
		fn()
		return
	}
	u.fns = append(u.fns, fn)
	u.mu.Unlock()
}

func (u *Unit) End() {
	u.mu.Lock()
	if u.ended {
		u.mu.Unlock()
		return
	}
	u.ended = true
	fns := u.fns
	u.fns = nil
	u.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Begin starts a unit of work with its own buffer attached to the returned
// context. The caller must call end.
func Begin(ctx context.Context, persist PersistFunc, exit *ExitHooks) (context.Context, func()) {
	u := NewUnit()
	b := New(persist, Triggers{OnEnd: u.OnEnd, Exit: exit})
	return WithBuffer(ctx, b), u.End
}

// Run executes fn as a unit of work, flushing its buffer when fn returns or panics.
func Run(ctx context.Context, persist PersistFunc, exit *ExitHooks, fn func(ctx context.Context) error) error {
	ctx, end := Begin(ctx, persist, exit)
	defer end()
	return fn(ctx)
}
