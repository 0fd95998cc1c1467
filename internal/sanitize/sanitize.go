// Package sanitize turns arbitrary log context values into bounded,
// JSON-safe data before they are stored.
package sanitize

import (
	"encoding"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	// ReservedPrefix marks keys that are never stored.
	ReservedPrefix = "_logbook"

	DefaultMaxDepth  = 10
	DefaultMaxString = 10000
	DefaultMaxNodes  = 10000
	MaxTraceFrames   = 10

	truncatedSuffix = "... [truncated]"
	resourceMarker  = "[Resource]"
	failedMarker    = "[Unsanitizable]"
)

// Sanitizer converts context maps into storage-safe values. The zero value
// uses the default limits.
type Sanitizer struct {
	MaxDepth  int
	MaxString int
	// MaxNodes caps the values visited by one Sanitize call.
	MaxNodes int
}

func New() *Sanitizer {
	return &Sanitizer{MaxDepth: DefaultMaxDepth, MaxString: DefaultMaxString, MaxNodes: DefaultMaxNodes}
}

// Sanitize returns a new map; the input is not modified. It never panics.
// A container met again on its own path, or anything past the node budget,
// becomes the truncation marker.
func (s *Sanitizer) Sanitize(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	w := &walk{s: s, path: make(map[visit]struct{}), budget: s.maxNodes()}
	out, ok := w.value(ctx, 0).(map[string]any)
	if !ok {
		return truncatedMarker()
	}
	return out
}

func (s *Sanitizer) maxDepth() int {
	if s == nil || s.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return s.MaxDepth
}

func (s *Sanitizer) maxString() int {
	if s == nil || s.MaxString <= 0 {
		return DefaultMaxString
	}
	return s.MaxString
}

func (s *Sanitizer) maxNodes() int {
	if s == nil || s.MaxNodes <= 0 {
		return DefaultMaxNodes
	}
	return s.MaxNodes
}

func truncatedMarker() map[string]any {
	return map[string]any{"_truncated": true}
}

// visit identifies a map, slice or pointer on the current path.
type visit struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// walk is the state of one Sanitize call.
type walk struct {
	s      *Sanitizer
	path   map[visit]struct{}
	budget int
}

// enter reports whether the container rv at depth may be expanded and, if
// so, returns the func that takes it off the path again.
func (w *walk) enter(rv reflect.Value, depth int) (leave func(), ok bool) {
	if depth > w.s.maxDepth() || w.budget <= 0 {
		return nil, false
	}
	k := visit{typ: rv.Type(), ptr: rv.Pointer()}
	if rv.Kind() == reflect.Slice {
		k.len = rv.Len()
	}
	if _, seen := w.path[k]; seen {
		return nil, false
	}
	w.path[k] = struct{}{}
	return func() { delete(w.path, k) }, true
}

func (w *walk) sanitizeMap(m map[string]any, depth int) any {
	leave, ok := w.enter(reflect.ValueOf(m), depth)
	if !ok {
		return truncatedMarker()
	}
	defer leave()

	out := make(map[string]any, len(m))
	for k, v := range m {
		if strings.HasPrefix(k, ReservedPrefix) {
			continue
		}
		if w.budget <= 0 {
			out["_truncated"] = true
			break
		}
		out[k] = w.value(v, depth+1)
	}
	return out
}

// value sanitizes one value found at the given nesting depth. Panics raised
// by user methods (String, MarshalJSON, Error) degrade to a marker.
func (w *walk) value(v any, depth int) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = failedMarker
		}
	}()
	w.budget--

	s := w.s
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return s.truncate(t)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return t
	case []byte:
		return s.truncate(string(t))
	case slog.Value:
		return w.slogValue(t, depth)
	case slog.Attr:
		return w.value(t.Value, depth)
	case map[string]any:
		return w.sanitizeMap(t, depth)
	case []any:
		return w.slice(reflect.ValueOf(t), depth)
	case error:
		return s.exception(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case time.Duration:
		return t.String()
	case *os.File, net.Conn:
		return resourceMarker
	case json.Marshaler:
		return w.marshaled(t, depth)
	case fmt.Stringer:
		return s.truncate(t.String())
	case encoding.TextMarshaler:
		b, err := t.MarshalText()
		if err != nil {
			return failedMarker
		}
		return s.truncate(string(b))
	case io.Closer:
		return resourceMarker
	}
	return w.reflectValue(reflect.ValueOf(v), depth)
}

func (w *walk) slogValue(v slog.Value, depth int) any {
	v = v.Resolve()
	if v.Kind() != slog.KindGroup {
		return w.value(v.Any(), depth)
	}
	if depth > w.s.maxDepth() || w.budget <= 0 {
		return truncatedMarker()
	}
	out := make(map[string]any)
	for _, a := range v.Group() {
		if strings.HasPrefix(a.Key, ReservedPrefix) {
			continue
		}
		out[a.Key] = w.value(a.Value, depth+1)
	}
	return out
}

func (w *walk) marshaled(m json.Marshaler, depth int) any {
	b, err := m.MarshalJSON()
	if err != nil {
		return failedMarker
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return w.s.truncate(string(b))
	}
	return w.value(decoded, depth)
}

// slice sanitizes a slice or array. Arrays are values and cannot form
// cycles, so only slices go on the path.
func (w *walk) slice(rv reflect.Value, depth int) any {
	if rv.Kind() == reflect.Slice {
		if rv.IsNil() {
			return nil
		}
		leave, ok := w.enter(rv, depth)
		if !ok {
			return truncatedMarker()
		}
		defer leave()
	} else if depth > w.s.maxDepth() || w.budget <= 0 {
		return truncatedMarker()
	}

	items := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		if w.budget <= 0 {
			items = append(items, truncatedMarker())
			break
		}
		items = append(items, w.value(rv.Index(i).Interface(), depth+1))
	}
	return items
}

func (w *walk) reflectValue(rv reflect.Value, depth int) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return w.value(rv.Elem().Interface(), depth+1)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		leave, ok := w.enter(rv, depth)
		if !ok {
			return truncatedMarker()
		}
		defer leave()
		return w.value(rv.Elem().Interface(), depth+1)
	case reflect.Map:
		leave, ok := w.enter(rv, depth)
		if !ok {
			return truncatedMarker()
		}
		defer leave()
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			if strings.HasPrefix(key, ReservedPrefix) {
				continue
			}
			if w.budget <= 0 {
				out["_truncated"] = true
				break
			}
			out[key] = w.value(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		return w.slice(rv, depth)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return resourceMarker
	case reflect.String:
		return w.s.truncate(rv.String())
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(rv.Complex())
	}
	return "[Object: " + rv.Type().String() + "]"
}

func (s *Sanitizer) truncate(str string) string {
	limit := s.maxString()
	if utf8.RuneCountInString(str) <= limit {
		return str
	}
	n := 0
	for i := range str {
		if n == limit {
			return str[:i] + truncatedSuffix
		}
		n++
	}
	return str
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type intCoder interface{ Code() int }
type stringCoder interface{ Code() string }

// exception renders an error with its dynamic type, optional code and the
// deepest github.com/pkg/errors stack in its chain.
func (s *Sanitizer) exception(err error) map[string]any {
	out := map[string]any{
		"_type":   "exception",
		"class":   fmt.Sprintf("%T", err),
		"message": s.truncate(err.Error()),
	}
	switch c := err.(type) {
	case intCoder:
		out["code"] = c.Code()
	case stringCoder:
		out["code"] = c.Code()
	}

	frames := Frames(err)
	trace := make([]any, 0, MaxTraceFrames)
	for i, f := range frames {
		if i == 0 {
			out["file"] = f.File
			out["line"] = f.Line
		}
		if i >= MaxTraceFrames {
			break
		}
		trace = append(trace, fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Function))
	}
	out["trace"] = trace
	return out
}
