package sanitize

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Frame is a resolved stack frame.
type Frame struct {
	File     string
	Line     int
	Function string
}

// sourceKeys are the context keys searched for an embedded error.
var sourceKeys = []string{"exception", "error", "err"}

// skipFunctionPrefixes are never reported as the source of an event.
var skipFunctionPrefixes = []string{
	"runtime.",
	"log/slog.",
	"log.",
	"github.com/ahmetcoskunkizilkaya/logbook/internal/capture",
	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging",
	"github.com/ahmetcoskunkizilkaya/logbook/internal/sanitize",
	"github.com/ahmetcoskunkizilkaya/logbook/internal/entry",
	"github.com/ahmetcoskunkizilkaya/logbook/internal/writer",
	"github.com/ahmetcoskunkizilkaya/logbook/internal/buffer",
}

// Frames returns the deepest github.com/pkg/errors stack in err's chain,
// innermost call first. It returns nil when no error in the chain carries one.
func Frames(err error) []Frame {
	var deepest errors.StackTrace
	for e := err; e != nil; e = unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			deepest = st.StackTrace()
		}
	}
	if len(deepest) == 0 {
		return nil
	}
	frames := make([]Frame, 0, len(deepest))
	for _, f := range deepest {
		pc := uintptr(f) - 1
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line := fn.FileLine(pc)
		frames = append(frames, Frame{File: file, Line: line, Function: fn.Name()})
	}
	return frames
}

func unwrap(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		return e.Cause()
	}
	return nil
}

// ExtractSource finds the file and line an event came from. It prefers the
// location of an error stored under exception/error/err (either the raw error
// or its sanitized form), then the slog record's pc, then the first caller
// outside the runtime, slog, third-party modules and the capture pipeline.
func ExtractSource(ctx map[string]any, pc uintptr) (file string, line int) {
	for _, key := range sourceKeys {
		if file, line, ok := errorSource(ctx[key]); ok {
			return file, line
		}
	}

	if pc != 0 {
		f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
		if f.File != "" {
			return f.File, f.Line
		}
	}

	return callerSource()
}

func errorSource(v any) (string, int, bool) {
	switch t := v.(type) {
	case error:
		if frames := Frames(t); len(frames) > 0 {
			return frames[0].File, frames[0].Line, true
		}
	case map[string]any:
		if t["_type"] != "exception" {
			return "", 0, false
		}
		file, _ := t["file"].(string)
		if file == "" {
			return "", 0, false
		}
		switch l := t["line"].(type) {
		case int:
			return file, l, true
		case float64:
			return file, int(l), true
		}
		return file, 0, true
	}
	return "", 0, false
}

func callerSource() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !skipFrame(f) {
			return f.File, f.Line
		}
		if !more {
			return "", 0
		}
	}
}

func skipFrame(f runtime.Frame) bool {
	if f.File == "" || strings.Contains(f.File, "/pkg/mod/") || isStdlib(f.Function) {
		return true
	}
	for _, p := range skipFunctionPrefixes {
		if strings.HasPrefix(f.Function, p) {
			return true
		}
	}
	return false
}

// isStdlib reports whether fn belongs to a standard library package, whose
// import path has no dot in its first element.
func isStdlib(fn string) bool {
	pkg := fn
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		if j := strings.Index(pkg[i:], "."); j >= 0 {
			pkg = pkg[:i+j]
		}
	} else if j := strings.Index(pkg, "."); j >= 0 {
		pkg = pkg[:j]
	}
	if pkg == "main" {
		return false
	}
	first, _, _ := strings.Cut(pkg, "/")
	return !strings.Contains(first, ".")
}
