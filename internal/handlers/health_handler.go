package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/dto"
)

// BreakerStater reports the sync writer's breaker state.
type BreakerStater interface {
	State() gobreaker.State
}

type HealthHandler struct {
	ping      func() error
	writeMode string
	breaker   BreakerStater
}

// NewHealthHandler builds the health check. breaker is nil unless entries
// are written in sync mode.
func NewHealthHandler(ping func() error, writeMode string, breaker BreakerStater) *HealthHandler {
	return &HealthHandler{ping: ping, writeMode: writeMode, breaker: breaker}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := h.ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	resp := dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		WriteMode: h.writeMode,
	}
	if h.breaker != nil {
		resp.Breaker = h.breaker.State().String()
	}
	if dbStatus != "ok" {
		resp.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
