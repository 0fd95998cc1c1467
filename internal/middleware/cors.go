package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/config"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/reqctx"
)

func CORS(cfg config.ServerConfig) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, " + AdminTokenHeader + ", " + reqctx.TraceHeader,
		AllowMethods:     "GET, POST, PUT, DELETE, PATCH, OPTIONS",
		ExposeHeaders:    reqctx.TraceHeader,
		AllowCredentials: false,
	})
}
