package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

// Presets stores saved filters. At most one row has is_default = true.
type Presets struct {
	db    *gorm.DB
	table string
}

func NewPresets(db *gorm.DB, table string) *Presets {
	if table == "" {
		table = models.FilterPreset{}.TableName()
	}
	return &Presets{db: db, table: table}
}

func (s *Presets) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *Presets) List(ctx context.Context) ([]models.FilterPreset, error) {
	presets := []models.FilterPreset{}
	if err := s.DB(ctx).Order("sort_order ASC, name ASC").Find(&presets).Error; err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	return presets, nil
}

func (s *Presets) Get(ctx context.Context, id uuid.UUID) (*models.FilterPreset, error) {
	return s.get(s.DB(ctx), id)
}

func (s *Presets) get(tx *gorm.DB, id uuid.UUID) (*models.FilterPreset, error) {
	var p models.FilterPreset
	if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPresetMissing
		}
		return nil, fmt.Errorf("failed to find preset: %w", err)
	}
	return &p, nil
}

// Default returns the default preset, or ErrPresetMissing when none is set.
func (s *Presets) Default(ctx context.Context) (*models.FilterPreset, error) {
	var p models.FilterPreset
	if err := s.DB(ctx).Where("is_default = ?", true).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPresetMissing
		}
		return nil, fmt.Errorf("failed to find default preset: %w", err)
	}
	return &p, nil
}

func (s *Presets) Create(ctx context.Context, p *models.FilterPreset) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.IsDefault {
			if err := s.clearDefault(tx); err != nil {
				return err
			}
		}
		if err := tx.Table(s.table).Create(p).Error; err != nil {
			return fmt.Errorf("failed to create preset: %w", err)
		}
		return nil
	})
}

// Update overwrites the editable fields of an existing preset.
func (s *Presets) Update(ctx context.Context, p *models.FilterPreset) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.IsDefault {
			if err := s.clearDefault(tx); err != nil {
				return err
			}
		}
		result := tx.Table(s.table).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"name":        p.Name,
			"description": p.Description,
			"filters":     p.Filters,
			"is_default":  p.IsDefault,
			"sort_order":  p.SortOrder,
			"updated_at":  time.Now().UTC(),
		})
		if result.Error != nil {
			return fmt.Errorf("failed to update preset: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrPresetMissing
		}
		fresh, err := s.get(tx.Table(s.table), p.ID)
		if err != nil {
			return err
		}
		*p = *fresh
		return nil
	})
}

// SetDefault makes id the only default preset.
func (s *Presets) SetDefault(ctx context.Context, id uuid.UUID) (*models.FilterPreset, error) {
	var out *models.FilterPreset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.get(tx.Table(s.table), id); err != nil {
			return err
		}
		if err := s.clearDefault(tx); err != nil {
			return err
		}
		if err := tx.Table(s.table).Where("id = ?", id).Updates(map[string]interface{}{
			"is_default": true,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("failed to set default preset: %w", err)
		}
		p, err := s.get(tx.Table(s.table), id)
		out = p
		return err
	})
	return out, err
}

func (s *Presets) clearDefault(tx *gorm.DB) error {
	if err := tx.Table(s.table).Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
		return fmt.Errorf("failed to clear default preset: %w", err)
	}
	return nil
}

// Reorder assigns sort_order by position in ids.
func (s *Presets) Reorder(ctx context.Context, ids []uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			result := tx.Table(s.table).Where("id = ?", id).Update("sort_order", i)
			if result.Error != nil {
				return fmt.Errorf("failed to reorder presets: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrPresetMissing
			}
		}
		return nil
	})
}

func (s *Presets) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.DB(ctx).Where("id = ?", id).Delete(&models.FilterPreset{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete preset: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPresetMissing
	}
	return nil
}
