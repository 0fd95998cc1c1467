package reqctx

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/buffer"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/sanitize"
)

const TraceHeader = "X-Trace-Id"

// UserResolver returns the current user's id, or "" when anonymous.
type UserResolver func(c *fiber.Ctx) string

type Options struct {
	// Persist enables a per-request buffer flushed when the request ends.
	// Leave nil unless entries are written in batch mode.
	Persist buffer.PersistFunc
	Exit    *buffer.ExitHooks
	// ResolveUser defaults to JWTSubject.
	ResolveUser UserResolver
}

// Middleware publishes the request's ambient data on the user context and
// opens the request's unit of work. The buffer is flushed after the rest of
// the chain has run, including when a handler panics.
func Middleware(opts Options) fiber.Handler {
	resolve := opts.ResolveUser
	if resolve == nil {
		resolve = JWTSubject
	}

	return func(c *fiber.Ctx) error {
		a := &Ambient{
			TraceID:    traceID(c),
			IPAddress:  c.IP(),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
			HTTPMethod: c.Method(),
			URL:        sanitize.SanitizeURL(c.BaseURL() + c.OriginalURL()),
		}
		a.SetUserID(resolve(c))

		ctx := With(c.UserContext(), a)
		if opts.Persist != nil {
			var end func()
			ctx, end = buffer.Begin(ctx, opts.Persist, opts.Exit)
			defer end()
		}
		c.SetUserContext(ctx)
		c.Set(TraceHeader, a.TraceID)

		return c.Next()
	}
}

func traceID(c *fiber.Ctx) string {
	if id := c.Get(TraceHeader); id != "" {
		return id
	}
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		return id
	}
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// JWTSubject reads the sub claim of a token stored by the jwt middleware.
func JWTSubject(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
