package query

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

const (
	DefaultPerPage    = 50
	DefaultMaxPerPage = 100
)

// Engine runs FilterSpecs against the entries table.
type Engine struct {
	db         *gorm.DB
	table      string
	perPage    int
	maxPerPage int
}

func NewEngine(db *gorm.DB, table string, perPage, maxPerPage int) *Engine {
	if table == "" {
		table = models.LogEntry{}.TableName()
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if maxPerPage <= 0 {
		maxPerPage = DefaultMaxPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return &Engine{db: db, table: table, perPage: perPage, maxPerPage: maxPerPage}
}

// Query returns the requested page, newest entries first.
func (e *Engine) Query(ctx context.Context, spec FilterSpec) (*Page, error) {
	scope, err := Scope(spec)
	if err != nil {
		return nil, err
	}

	perPage := spec.PerPage
	if perPage <= 0 {
		perPage = e.perPage
	}
	if perPage > e.maxPerPage {
		perPage = e.maxPerPage
	}
	page := spec.Page
	if page < 1 {
		page = 1
	}

	var total int64
	if err := e.db.WithContext(ctx).Table(e.table).Scopes(scope).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count log entries: %w", err)
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	// Pages past the end are empty; skip the query.
	offset := (page - 1) * perPage
	entries := []models.LogEntry{}
	if page <= lastPage {
		if err := e.db.WithContext(ctx).Table(e.table).
			Scopes(scope).
			Order("occurred_at DESC, id DESC").
			Limit(perPage).
			Offset(offset).
			Find(&entries).Error; err != nil {
			return nil, fmt.Errorf("failed to query log entries: %w", err)
		}
	}
	p := &Page{
		Data:        entries,
		Total:       total,
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     perPage,
	}
	if len(entries) > 0 {
		p.From = offset + 1
		p.To = offset + len(entries)
	}
	return p, nil
}

// Apply narrows db to the entries spec selects, for counts and bulk clears.
func (e *Engine) Apply(db *gorm.DB, spec FilterSpec) (*gorm.DB, error) {
	scope, err := Scope(spec)
	if err != nil {
		return nil, err
	}
	return db.Scopes(scope), nil
}

// Scope validates spec and returns it as a gorm scope.
func Scope(spec FilterSpec) (func(*gorm.DB) *gorm.DB, error) {
	dates, err := resolve(&spec)
	if err != nil {
		return nil, err
	}
	clauses, args := buildConditions(spec, dates)
	search, searchArgs := buildSearch(spec.Search, spec.SearchMode)
	if search != "" {
		clauses = append(clauses, search)
		args = append(args, searchArgs...)
	}

	return func(db *gorm.DB) *gorm.DB {
		if len(clauses) == 0 {
			return db
		}
		return db.Where(strings.Join(clauses, " AND "), args...)
	}, nil
}

func buildConditions(spec FilterSpec, dates *dateRange) ([]string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}

	appendIn(&clauses, &args, "level", levelStrings(spec.Levels), false)
	appendIn(&clauses, &args, "level", levelStrings(spec.ExcludeLevels), true)
	appendIn(&clauses, &args, "channel", spec.Channels, false)
	appendIn(&clauses, &args, "channel", spec.ExcludeChannels, true)
	appendIn(&clauses, &args, "http_method", upper(spec.Methods), false)
	appendIn(&clauses, &args, "http_method", upper(spec.ExcludeMethods), true)
	appendIn(&clauses, &args, "status", statusStrings(spec.Statuses), false)

	if dates.from != nil {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, *dates.from)
	}
	if dates.to != nil {
		if dates.toExclusive {
			clauses = append(clauses, "occurred_at < ?")
		} else {
			clauses = append(clauses, "occurred_at <= ?")
		}
		args = append(args, *dates.to)
	}

	for _, eq := range []struct{ column, value string }{
		{"trace_id", spec.TraceID},
		{"user_id", spec.UserID},
		{"ip_address", spec.IPAddress},
		{"fingerprint", spec.Fingerprint},
	} {
		if eq.value != "" {
			clauses = append(clauses, eq.column+" = ?")
			args = append(args, eq.value)
		}
	}
	if spec.URL != "" {
		clauses = append(clauses, `url LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(spec.URL)+"%")
	}

	return clauses, args
}

// appendIn adds "column IN ?" or its NULL-tolerant negation.
func appendIn(clauses *[]string, args *[]interface{}, column string, values []string, exclude bool) {
	if len(values) == 0 {
		return
	}
	if exclude {
		*clauses = append(*clauses, "("+column+" IS NULL OR "+column+" NOT IN ?)")
	} else {
		*clauses = append(*clauses, column+" IN ?")
	}
	*args = append(*args, values)
}

// buildSearch renders the terms as one parenthesised group joined by mode.
func buildSearch(terms []SearchTerm, mode Mode) (string, []interface{}) {
	joiner := " AND "
	if mode == ModeOr {
		joiner = " OR "
	}

	parts := []string{}
	args := []interface{}{}
	for _, term := range terms {
		// Whitespace inside a quoted value is significant.
		if strings.TrimSpace(term.Value) == "" {
			continue
		}
		field := term.Field
		if field == "" {
			field = FieldAny
		}
		pattern := "%" + escapeLike(strings.ToLower(term.Value)) + "%"

		var expr string
		if field == FieldAny {
			ors := make([]string, 0, len(anyColumns))
			for _, f := range anyColumns {
				ors = append(ors, containsExpr(searchColumns[f]))
				args = append(args, pattern)
			}
			expr = "(" + strings.Join(ors, " OR ") + ")"
		} else {
			expr = containsExpr(searchColumns[field])
			args = append(args, pattern)
		}
		if term.Exclude {
			expr = "NOT " + expr
		}
		parts = append(parts, expr)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, joiner) + ")", args
}

func containsExpr(column string) string {
	return `(LOWER(COALESCE(` + column + `, '')) LIKE ? ESCAPE '\')`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func levelStrings(levels []models.Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func upper(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(v)
	}
	return out
}
