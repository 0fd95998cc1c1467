// Package importer loads existing log files into the entry store.
package importer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// Record is one event read from a log file. Level is empty when the file's
// level name is not recognized.
type Record struct {
	Line       int
	OccurredAt time.Time
	Channel    string
	Level      models.Level
	Message    string
	Context    map[string]any
}

// headerPattern matches "[2026-04-01 10:00:00] production.ERROR: message".
var headerPattern = regexp.MustCompile(
	`^\[(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\]\s+(\S+?)\.([A-Za-z]+):\s?(.*)$`,
)

var timeLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05",
}

// Split reads r and returns one Record per header line or JSON line. Lines
// with neither, such as stack traces, are appended to the previous record's
// message; lines before the first record are dropped.
func Split(r io.Reader) ([]Record, error) {
	var (
		records []Record
		current *Record
	)
	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return records, fmt.Errorf("read line %d: %w", lineNo, err)
		}
		line = strings.TrimRight(line, "\r\n")

		if line != "" || err == nil {
			if rec, ok := parseHeader(line); ok {
				rec.Line = lineNo
				records = append(records, rec)
				current = &records[len(records)-1]
			} else if rec, ok := parseJSON(line); ok {
				rec.Line = lineNo
				records = append(records, rec)
				current = &records[len(records)-1]
			} else if current != nil {
				current.Message += "\n" + line
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	for i := range records {
		records[i].Message = strings.TrimRight(records[i].Message, "\n")
	}
	return records, nil
}

func parseHeader(line string) (Record, bool) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}
	occurred, ok := parseTime(m[1])
	if !ok {
		return Record{}, false
	}
	level, _ := models.ParseLevel(m[3])
	msg, ctx := splitContext(m[4])
	return Record{
		OccurredAt: occurred,
		Channel:    m[2],
		Level:      level,
		Message:    msg,
		Context:    ctx,
	}, true
}

func parseTime(s string) (time.Time, bool) {
	s = strings.Replace(s, "T", " ", 1)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// splitContext separates a trailing JSON object from the message. Empty
// trailing "[]" placeholders are dropped.
func splitContext(s string) (string, map[string]any) {
	s = strings.TrimRight(s, " ")
	for strings.HasSuffix(s, " []") {
		s = strings.TrimSuffix(s, " []")
	}
	if !strings.HasSuffix(s, "}") {
		return s, nil
	}
	for i := strings.Index(s, " {"); i >= 0; {
		var ctx map[string]any
		if err := json.Unmarshal([]byte(s[i+1:]), &ctx); err == nil {
			return s[:i], ctx
		}
		next := strings.Index(s[i+1:], " {")
		if next < 0 {
			break
		}
		i += next + 1
	}
	return s, nil
}

var (
	jsonMessageKeys = []string{"message", "msg"}
	jsonLevelKeys   = []string{"level_name", "level", "severity"}
	jsonTimeKeys    = []string{"datetime", "time", "timestamp", "ts"}
	jsonSkipKeys    = map[string]struct{}{
		"message": {}, "msg": {}, "level_name": {}, "level": {}, "severity": {},
		"datetime": {}, "time": {}, "timestamp": {}, "ts": {}, "channel": {},
		"context": {}, "extra": {},
	}
)

// parseJSON reads a whole-line JSON object, as written by slog's JSON handler
// or other structured loggers.
func parseJSON(line string) (Record, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Record{}, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return Record{}, false
	}
	msg, ok := firstString(data, jsonMessageKeys)
	if !ok {
		return Record{}, false
	}

	rec := Record{Message: msg}
	rec.Channel, _ = data["channel"].(string)
	rec.Level = jsonLevel(data)
	if ts, ok := firstString(data, jsonTimeKeys); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.OccurredAt = t.UTC()
		} else if t, ok := parseTime(ts); ok {
			rec.OccurredAt = t
		}
	}

	if ctx, ok := data["context"].(map[string]any); ok {
		rec.Context = ctx
	} else {
		for k, v := range data {
			if _, skip := jsonSkipKeys[k]; skip {
				continue
			}
			if rec.Context == nil {
				rec.Context = make(map[string]any)
			}
			rec.Context[k] = v
		}
	}
	return rec, true
}

func firstString(data map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := data[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

// monologLevels are the numeric severities some loggers write instead of names.
var monologLevels = map[int]models.Level{
	100: models.LevelDebug,
	200: models.LevelInfo,
	250: models.LevelNotice,
	300: models.LevelWarning,
	400: models.LevelError,
	500: models.LevelCritical,
	550: models.LevelAlert,
	600: models.LevelEmergency,
}

func jsonLevel(data map[string]any) models.Level {
	for _, k := range jsonLevelKeys {
		switch v := data[k].(type) {
		case string:
			if l, ok := models.ParseLevel(v); ok {
				return l
			}
			if l, ok := slogLevel(v); ok {
				return l
			}
		case float64:
			if l, ok := monologLevels[int(v)]; ok {
				return l
			}
		}
	}
	return ""
}

// slogLevel reads slog's "ERROR+4" style names.
func slogLevel(s string) (models.Level, bool) {
	name, offset, found := strings.Cut(strings.ToUpper(s), "+")
	if !found {
		return "", false
	}
	n, err := strconv.Atoi(offset)
	if err != nil {
		return "", false
	}
	base, ok := models.ParseLevel(name)
	if !ok {
		return "", false
	}
	return models.LevelFromSlog(base.Slog() + slog.Level(n)), true
}
