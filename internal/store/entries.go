// Package store persists log entries and filter presets through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// Scope narrows a query, typically built from a query.FilterSpec.
type Scope = func(*gorm.DB) *gorm.DB

// Entries is the gorm-backed log entry table.
type Entries struct {
	db    *gorm.DB
	table string
}

func NewEntries(db *gorm.DB, table string) *Entries {
	if table == "" {
		table = models.LogEntry{}.TableName()
	}
	return &Entries{db: db, table: table}
}

func (s *Entries) Table() string { return s.table }

// DB returns a session bound to ctx and the entries table.
func (s *Entries) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *Entries) Create(ctx context.Context, e *models.LogEntry) error {
	if err := s.DB(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create log entry: %w", err)
	}
	return nil
}

func (s *Entries) CreateBatch(ctx context.Context, entries []*models.LogEntry, size int) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.DB(ctx).CreateInBatches(entries, size).Error; err != nil {
		return fmt.Errorf("failed to create log entries: %w", err)
	}
	return nil
}

func (s *Entries) Find(ctx context.Context, id string) (*models.LogEntry, error) {
	var e models.LogEntry
	if err := s.DB(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find log entry: %w", err)
	}
	return &e, nil
}

// SetStatus records a triage decision. A nil note leaves the existing note alone.
func (s *Entries) SetStatus(ctx context.Context, id string, status models.Status, changedBy string, note *string) (*models.LogEntry, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	updates := map[string]interface{}{
		"status":            string(status),
		"status_changed_at": time.Now().UTC(),
		"status_changed_by": nullable(changedBy),
	}
	if note != nil {
		updates["note"] = nullable(*note)
	}

	result := s.DB(ctx).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Find(ctx, id)
}

// UpdateNote replaces the note; an empty note clears it.
func (s *Entries) UpdateNote(ctx context.Context, id, note string) (*models.LogEntry, error) {
	result := s.DB(ctx).Where("id = ?", id).Update("note", nullable(note))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Find(ctx, id)
}

func (s *Entries) Delete(ctx context.Context, id string) error {
	result := s.DB(ctx).Where("id = ?", id).Delete(&models.LogEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete log entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Entries) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.DB(ctx).Where("id IN ?", ids).Delete(&models.LogEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete log entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteMatching removes every entry the scope selects. A nil scope clears the table.
func (s *Entries) DeleteMatching(ctx context.Context, scope Scope) (int64, error) {
	q := s.DB(ctx)
	if scope != nil {
		q = q.Scopes(scope)
	}
	result := q.Where("1 = 1").Delete(&models.LogEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear log entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Similar lists other entries sharing id's fingerprint, newest first.
func (s *Entries) Similar(ctx context.Context, id string, limit int) ([]models.LogEntry, error) {
	e, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	entries := []models.LogEntry{}
	if e.Fingerprint == nil {
		return entries, nil
	}
	if err := s.DB(ctx).
		Where("fingerprint = ? AND id <> ?", *e.Fingerprint, e.ID).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list similar entries: %w", err)
	}
	return entries, nil
}

// Stats summarises the table for the admin overview.
type Stats struct {
	Total    int64            `json:"total"`
	ByLevel  map[string]int64 `json:"by_level"`
	ByStatus map[string]int64 `json:"by_status"`
	Oldest   *time.Time       `json:"oldest,omitempty"`
	Newest   *time.Time       `json:"newest,omitempty"`
}

type groupCount struct {
	Name  string
	Count int64
}

func (s *Entries) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if err := s.DB(ctx).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count log entries: %w", err)
	}

	var err error
	if stats.ByLevel, err = s.countBy(ctx, "level", nil); err != nil {
		return nil, err
	}
	if stats.ByStatus, err = s.countBy(ctx, "status", nil); err != nil {
		return nil, err
	}

	if stats.Total == 0 {
		return stats, nil
	}
	var oldest, newest models.LogEntry
	if err := s.DB(ctx).Order("occurred_at ASC").Limit(1).Find(&oldest).Error; err != nil {
		return nil, fmt.Errorf("failed to find oldest entry: %w", err)
	}
	if err := s.DB(ctx).Order("occurred_at DESC").Limit(1).Find(&newest).Error; err != nil {
		return nil, fmt.Errorf("failed to find newest entry: %w", err)
	}
	stats.Oldest = &oldest.OccurredAt
	stats.Newest = &newest.OccurredAt
	return stats, nil
}

func (s *Entries) countBy(ctx context.Context, column string, scope Scope) (map[string]int64, error) {
	q := s.DB(ctx)
	if scope != nil {
		q = q.Scopes(scope)
	}
	var rows []groupCount
	if err := q.Select(column + " AS name, COUNT(*) AS count").Group(column).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count by %s: %w", column, err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Count
	}
	return out, nil
}

func olderThan(cutoff time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("occurred_at < ?", cutoff)
	}
}

func (s *Entries) CountBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	if err := s.DB(ctx).Scopes(olderThan(cutoff)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count expired entries: %w", err)
	}
	return n, nil
}

func (s *Entries) CountByLevelBefore(ctx context.Context, cutoff time.Time) (map[string]int64, error) {
	return s.countBy(ctx, "level", olderThan(cutoff))
}

// DeleteChunkBefore deletes at most limit of the oldest entries before cutoff.
func (s *Entries) DeleteChunkBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	ids := s.db.Table(s.table).
		Select("id").
		Scopes(olderThan(cutoff)).
		Order("occurred_at ASC, id ASC").
		Limit(limit)

	result := s.DB(ctx).Where("id IN (?)", ids).Delete(&models.LogEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
