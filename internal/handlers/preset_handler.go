package handlers

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/query"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/store"
)

type PresetHandler struct {
	presets *store.Presets
}

func NewPresetHandler(presets *store.Presets) *PresetHandler {
	return &PresetHandler{presets: presets}
}

func (h *PresetHandler) List(c *fiber.Ctx) error {
	presets, err := h.presets.List(c.UserContext())
	if err != nil {
		return fail(c, err, "Failed to fetch presets")
	}
	return c.JSON(fiber.Map{"data": presets})
}

func (h *PresetHandler) Show(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid preset ID")
	}
	p, err := h.presets.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err, "Failed to fetch preset")
	}
	return c.JSON(p)
}

// Default returns the preset a viewer opens with. 404 when none is set.
func (h *PresetHandler) Default(c *fiber.Ctx) error {
	p, err := h.presets.Default(c.UserContext())
	if err != nil {
		return fail(c, err, "Failed to fetch default preset")
	}
	return c.JSON(p)
}

func (h *PresetHandler) Create(c *fiber.Ctx) error {
	p, err := h.fromRequest(c)
	if err != nil {
		return fail(c, err, "Invalid request body")
	}
	if err := h.presets.Create(c.UserContext(), p); err != nil {
		return fail(c, err, "Failed to create preset")
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *PresetHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid preset ID")
	}
	p, err := h.fromRequest(c)
	if err != nil {
		return fail(c, err, "Invalid request body")
	}
	p.ID = id
	if err := h.presets.Update(c.UserContext(), p); err != nil {
		return fail(c, err, "Failed to update preset")
	}
	return c.JSON(p)
}

func (h *PresetHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid preset ID")
	}
	if err := h.presets.Delete(c.UserContext(), id); err != nil {
		return fail(c, err, "Failed to delete preset")
	}
	return c.JSON(dto.MessageResponse{Message: "Preset deleted"})
}

func (h *PresetHandler) SetDefault(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid preset ID")
	}
	p, err := h.presets.SetDefault(c.UserContext(), id)
	if err != nil {
		return fail(c, err, "Failed to set default preset")
	}
	return c.JSON(p)
}

func (h *PresetHandler) Reorder(c *fiber.Ctx) error {
	var req dto.ReorderPresetsRequest
	if err := decode(c, &req); err != nil {
		return fail(c, err, "Invalid request body")
	}
	if err := h.presets.Reorder(c.UserContext(), req.IDs); err != nil {
		return fail(c, err, "Failed to reorder presets")
	}
	return c.JSON(dto.MessageResponse{Message: "Presets reordered"})
}

// fromRequest validates the body, including its filters, and converts it
// to a model. Invalid filters are rejected before they are saved.
func (h *PresetHandler) fromRequest(c *fiber.Ctx) (*models.FilterPreset, error) {
	var req dto.PresetRequest
	if err := decode(c, &req); err != nil {
		return nil, err
	}
	if err := query.Validate(&req.Filters); err != nil {
		return nil, err
	}
	filters, err := json.Marshal(req.Filters)
	if err != nil {
		return nil, err
	}
	return &models.FilterPreset{
		Name:        req.Name,
		Description: req.Description,
		Filters:     datatypes.JSON(filters),
		IsDefault:   req.IsDefault,
		SortOrder:   req.SortOrder,
	}, nil
}
