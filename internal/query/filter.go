// Package query turns a FilterSpec into a filtered, paginated gorm query.
package query

import (
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// SearchField names the column a search term matches against.
type SearchField string

const (
	FieldAny       SearchField = "any"
	FieldMessage   SearchField = "message"
	FieldContext   SearchField = "context"
	FieldSource    SearchField = "source"
	FieldChannel   SearchField = "channel"
	FieldLevel     SearchField = "level"
	FieldTraceID   SearchField = "trace_id"
	FieldUserID    SearchField = "user_id"
	FieldIP        SearchField = "ip"
	FieldURL       SearchField = "url"
	FieldUserAgent SearchField = "user_agent"
	FieldMethod    SearchField = "method"
)

// searchColumns maps every field except any to its SQL expression.
var searchColumns = map[SearchField]string{
	FieldMessage:   "message",
	FieldContext:   "CAST(context AS TEXT)",
	FieldSource:    "source",
	FieldChannel:   "channel",
	FieldLevel:     "level",
	FieldTraceID:   "trace_id",
	FieldUserID:    "user_id",
	FieldIP:        "ip_address",
	FieldURL:       "url",
	FieldUserAgent: "user_agent",
	FieldMethod:    "http_method",
}

// anyColumns are OR-ed together for FieldAny.
var anyColumns = []SearchField{FieldMessage, FieldContext, FieldSource}

// LookupField resolves a field name typed by a user, including a few aliases.
func LookupField(name string) (SearchField, bool) {
	switch f := SearchField(name); f {
	case FieldAny:
		return f, true
	case "ip_address":
		return FieldIP, true
	case "http_method":
		return FieldMethod, true
	case "msg":
		return FieldMessage, true
	default:
		_, ok := searchColumns[f]
		return f, ok
	}
}

// SearchTerm is one condition of a free-text search.
type SearchTerm struct {
	Field   SearchField `json:"field" validate:"omitempty,oneof=any message context source channel level trace_id user_id ip url user_agent method"`
	Value   string      `json:"value" validate:"max=500"`
	Exclude bool        `json:"exclude,omitempty"`
}

type Mode string

const (
	ModeAnd Mode = "and"
	ModeOr  Mode = "or"
)

// FilterSpec describes which entries a query returns. Structural filters are
// always AND-ed; search terms combine with each other using SearchMode.
type FilterSpec struct {
	Levels          []models.Level  `json:"levels,omitempty" validate:"dive,oneof=debug info notice warning error critical alert emergency"`
	ExcludeLevels   []models.Level  `json:"exclude_levels,omitempty" validate:"dive,oneof=debug info notice warning error critical alert emergency"`
	Channels        []string        `json:"channels,omitempty" validate:"dive,max=100"`
	ExcludeChannels []string        `json:"exclude_channels,omitempty" validate:"dive,max=100"`
	Methods         []string        `json:"methods,omitempty" validate:"dive,max=10"`
	ExcludeMethods  []string        `json:"exclude_methods,omitempty" validate:"dive,max=10"`
	DateFrom        string          `json:"date_from,omitempty"`
	DateTo          string          `json:"date_to,omitempty"`
	TraceID         string          `json:"trace_id,omitempty" validate:"max=64"`
	UserID          string          `json:"user_id,omitempty" validate:"max=64"`
	IPAddress       string          `json:"ip_address,omitempty" validate:"max=45"`
	URL             string          `json:"url,omitempty" validate:"max=2000"`
	Statuses        []models.Status `json:"statuses,omitempty" validate:"dive,oneof=open investigating resolved ignored"`
	Fingerprint     string          `json:"fingerprint,omitempty" validate:"max=32"`
	Search          []SearchTerm    `json:"search,omitempty" validate:"max=20,dive"`
	SearchMode      Mode            `json:"search_mode,omitempty" validate:"omitempty,oneof=and or"`
	Page            int             `json:"page,omitempty" validate:"gte=0,lte=1000000"`
	PerPage         int             `json:"per_page,omitempty" validate:"gte=0"`
}

// Page is one page of query results.
type Page struct {
	Data        []models.LogEntry `json:"data"`
	Total       int64             `json:"total"`
	CurrentPage int               `json:"current_page"`
	LastPage    int               `json:"last_page"`
	PerPage     int               `json:"per_page"`
	From        int               `json:"from"`
	To          int               `json:"to"`
}
