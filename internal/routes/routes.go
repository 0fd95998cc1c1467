package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/config"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/middleware"
)

type Handlers struct {
	Health  *handlers.HealthHandler
	Logs    *handlers.LogHandler
	Presets *handlers.PresetHandler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers, authorize middleware.Authorizer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	admin := api.Group("/admin", middleware.AdminRequired(cfg.Auth, authorize))

	logs := admin.Group("/logs")
	logs.Get("/", h.Logs.List)
	logs.Get("/stats", h.Logs.Stats)
	logs.Get("/levels", h.Logs.Levels)
	logs.Post("/search", h.Logs.Search)
	logs.Post("/bulk-delete", h.Logs.BulkDelete)
	logs.Post("/clear", h.Logs.Clear)
	logs.Post("/prune", h.Logs.Prune)
	logs.Post("/import", h.Logs.Import)
	logs.Get("/:id", h.Logs.Show)
	logs.Get("/:id/similar", h.Logs.Similar)
	logs.Put("/:id/status", h.Logs.SetStatus)
	logs.Put("/:id/note", h.Logs.UpdateNote)
	logs.Delete("/:id", h.Logs.Delete)

	presets := admin.Group("/presets")
	presets.Get("/", h.Presets.List)
	presets.Post("/", h.Presets.Create)
	presets.Post("/reorder", h.Presets.Reorder)
	presets.Get("/default", h.Presets.Default)
	presets.Get("/:id", h.Presets.Show)
	presets.Put("/:id", h.Presets.Update)
	presets.Delete("/:id", h.Presets.Delete)
	presets.Post("/:id/default", h.Presets.SetDefault)
}
