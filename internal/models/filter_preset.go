package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FilterPreset is a saved, named query filter.
type FilterPreset struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description *string        `gorm:"size:500" json:"description,omitempty"`
	Filters     datatypes.JSON `gorm:"type:jsonb;not null" json:"filters"`
	IsDefault   bool           `gorm:"not null;default:false;index" json:"is_default"`
	SortOrder   int            `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (FilterPreset) TableName() string { return "log_filter_presets" }
