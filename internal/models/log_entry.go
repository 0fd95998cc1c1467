package models

import (
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Level is the severity of a captured entry, using the syslog level names.
type Level string

const (
	LevelDebug     Level = "debug"
	LevelInfo      Level = "info"
	LevelNotice    Level = "notice"
	LevelWarning   Level = "warning"
	LevelError     Level = "error"
	LevelCritical  Level = "critical"
	LevelAlert     Level = "alert"
	LevelEmergency Level = "emergency"
)

// Extra slog levels for the syslog severities slog has no name for.
const (
	SlogNotice    = slog.LevelInfo + 2
	SlogCritical  = slog.LevelError + 4
	SlogAlert     = slog.LevelError + 8
	SlogEmergency = slog.LevelError + 12
)

var levelOrder = []Level{
	LevelDebug, LevelInfo, LevelNotice, LevelWarning,
	LevelError, LevelCritical, LevelAlert, LevelEmergency,
}

// Levels returns every level, least severe first.
func Levels() []Level {
	out := make([]Level, len(levelOrder))
	copy(out, levelOrder)
	return out
}

func (l Level) Valid() bool {
	for _, v := range levelOrder {
		if v == l {
			return true
		}
	}
	return false
}

// ParseLevel maps common spellings (WARN, err, fatal, ...) onto a Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug, true
	case "info", "information":
		return LevelInfo, true
	case "notice":
		return LevelNotice, true
	case "warn", "warning":
		return LevelWarning, true
	case "error", "err":
		return LevelError, true
	case "critical", "crit", "fatal":
		return LevelCritical, true
	case "alert":
		return LevelAlert, true
	case "emergency", "emerg", "panic":
		return LevelEmergency, true
	}
	return "", false
}

// LevelFromSlog buckets an slog level into the closest syslog level.
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < SlogNotice:
		return LevelInfo
	case l < slog.LevelWarn:
		return LevelNotice
	case l < slog.LevelError:
		return LevelWarning
	case l < SlogCritical:
		return LevelError
	case l < SlogAlert:
		return LevelCritical
	case l < SlogEmergency:
		return LevelAlert
	default:
		return LevelEmergency
	}
}

// Slog is the inverse of LevelFromSlog.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelNotice:
		return SlogNotice
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical:
		return SlogCritical
	case LevelAlert:
		return SlogAlert
	case LevelEmergency:
		return SlogEmergency
	default:
		return slog.LevelInfo
	}
}

// Status is the triage state of an entry.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusIgnored       Status = "ignored"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInvestigating, StatusResolved, StatusIgnored:
		return true
	}
	return false
}

// LogEntry is one captured log event.
type LogEntry struct {
	ID             string         `gorm:"type:char(26);primaryKey" json:"id"`
	Level          Level          `gorm:"size:16;not null;index;index:idx_log_entries_level_occurred,priority:1" json:"level"`
	Message        string         `gorm:"type:text;not null" json:"message"`
	MessagePreview string         `gorm:"type:text" json:"message_preview"`
	Context        datatypes.JSON `gorm:"type:jsonb" json:"context,omitempty"`
	ContextPreview *string        `gorm:"type:text" json:"context_preview,omitempty"`

	Channel     *string `gorm:"size:100;index;index:idx_log_entries_channel_occurred,priority:1" json:"channel,omitempty"`
	Source      *string `gorm:"size:500" json:"source,omitempty"`
	SourceLine  *int    `json:"source_line,omitempty"`
	Fingerprint *string `gorm:"size:32;index" json:"fingerprint,omitempty"`

	TraceID    *string `gorm:"size:64;index;index:idx_log_entries_trace_occurred,priority:1" json:"trace_id,omitempty"`
	UserID     *string `gorm:"size:64;index;index:idx_log_entries_user_occurred,priority:1" json:"user_id,omitempty"`
	IPAddress  *string `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent  *string `gorm:"size:500" json:"user_agent,omitempty"`
	HTTPMethod *string `gorm:"size:10" json:"http_method,omitempty"`
	URL        *string `gorm:"type:text" json:"url,omitempty"`

	Status          Status     `gorm:"size:20;not null;default:'open';index" json:"status"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
	StatusChangedBy *string    `gorm:"size:255" json:"status_changed_by,omitempty"`
	Note            *string    `gorm:"type:text" json:"note,omitempty"`

	OccurredAt  time.Time `gorm:"not null;index;index:idx_log_entries_level_occurred,priority:2;index:idx_log_entries_channel_occurred,priority:2;index:idx_log_entries_trace_occurred,priority:2;index:idx_log_entries_user_occurred,priority:2" json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
	IsTruncated bool      `gorm:"not null;default:false" json:"is_truncated"`
}

func (LogEntry) TableName() string { return "log_entries" }
