// Package reqctx carries per-request ambient data (trace id, user, client
// and request line) on the context so captured entries can be enriched
// without the logging call site passing it along.
package reqctx

import (
	"context"
	"sync"
)

// Ambient is the request data attached to every entry captured while the
// request runs. The user id may be set after authentication, so it is
// guarded; the other fields are fixed when the request starts.
type Ambient struct {
	TraceID    string
	IPAddress  string
	UserAgent  string
	HTTPMethod string
	URL        string

	mu     sync.RWMutex
	userID string
}

func (a *Ambient) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

func (a *Ambient) SetUserID(id string) {
	a.mu.Lock()
	a.userID = id
	a.mu.Unlock()
}

type ambientKey struct{}

func With(ctx context.Context, a *Ambient) context.Context {
	return context.WithValue(ctx, ambientKey{}, a)
}

// From returns the ambient data, or nil outside a request.
func From(ctx context.Context) *Ambient {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(ambientKey{}).(*Ambient)
	return a
}

// SetUserID records the authenticated user on the request's ambient data.
// It is a no-op outside a request.
func SetUserID(ctx context.Context, id string) {
	if a := From(ctx); a != nil {
		a.SetUserID(id)
	}
}

// WithTrace starts ambient data for work outside HTTP, such as a job or an
// import run, so its entries share one trace id.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return With(ctx, &Ambient{TraceID: traceID})
}
