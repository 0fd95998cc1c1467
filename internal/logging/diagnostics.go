package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

const (
	// Marker tags every diagnostic line so the capture handler never stores it.
	Marker = "[logbook]"
	// InternalAttr flags records emitted by the pipeline itself.
	InternalAttr = "_logbook_internal"
)

var diagLogger atomic.Pointer[slog.Logger]

func init() {
	diagLogger.Store(newDiagLogger(os.Stderr))
}

func newDiagLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil)).With(InternalAttr, true)
}

// SetDiagnosticOutput redirects Diagnose and returns a func restoring stderr.
func SetDiagnosticOutput(w io.Writer) (restore func()) {
	prev := diagLogger.Swap(newDiagLogger(w))
	return func() { diagLogger.Store(prev) }
}

// Diagnose is the fallback sink for failures on the capture path. It writes
// straight to stderr, bypassing slog.Default, and forwards err to Sentry when
// a client is bound. It never panics.
func Diagnose(msg string, err error, args ...any) {
	defer func() { _ = recover() }()

	if err != nil {
		args = append(args, "error", err.Error())
	}
	diagLogger.Load().Error(Marker+" "+msg, args...)

	if err == nil {
		return
	}
	hub := sentry.CurrentHub()
	if hub == nil || hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "logbook")
		scope.SetExtra("diagnostic", msg)
		hub.CaptureException(err)
	})
}
