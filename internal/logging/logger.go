package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// Setup installs a JSON stdout logger as the slog default. Extra handlers
// (the capture handler in production) receive every record as well.
func Setup(level string, extra ...slog.Handler) *slog.Logger {
	return setup(os.Stdout, ParseLevel(level), extra...)
}

func setup(w io.Writer, level slog.Level, extra ...slog.Handler) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	if len(extra) > 0 {
		handler = NewMultiHandler(append([]slog.Handler{handler}, extra...)...)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a level name to slog.Level. The syslog names
// (notice, critical, alert, emergency) map onto the extended levels.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	if lvl, ok := models.ParseLevel(strings.ToLower(s)); ok {
		return lvl.Slog()
	}
	return slog.LevelInfo
}
