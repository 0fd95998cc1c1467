package dto

import (
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/query"
)

type SetStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=open investigating resolved ignored"`
	Note   *string `json:"note" validate:"omitempty,max=10000"`
}

type UpdateNoteRequest struct {
	Note string `json:"note" validate:"max=10000"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,len=26"`
}

type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

type PruneRequest struct {
	Days   *int `json:"days" validate:"omitempty,gte=1"`
	DryRun bool `json:"dry_run"`
}

type PresetRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Filters     query.FilterSpec `json:"filters"`
	IsDefault   bool             `json:"is_default"`
	SortOrder   int              `json:"sort_order" validate:"gte=0"`
}

type ReorderPresetsRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}
