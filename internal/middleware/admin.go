package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/config"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/reqctx"
)

const AdminTokenHeader = "X-Admin-Token"

// Authorizer is an application-supplied admin check. When set it is the
// only check applied.
type Authorizer func(c *fiber.Ctx) bool

// AdminRequired guards the admin API. It checks, in order:
// 1. the Authorizer, when one is given
// 2. the X-Admin-Token header against the configured token or bcrypt hash
// 3. a bearer JWT whose role claim is admin, or whose email/sub is listed
func AdminRequired(cfg config.AuthConfig, authorize Authorizer) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	var jwtCheck fiber.Handler
	if cfg.JWTSecret != "" {
		jwtCheck = JWTProtected(cfg.JWTSecret, func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok || token == nil {
				return unauthorized(c, "Unauthorized")
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, "Invalid claims")
			}
			role, _ := claims["role"].(string)
			email, _ := claims["email"].(string)
			sub, _ := claims["sub"].(string)
			if role != "admin" && !contains(adminEmails, email) && !contains(adminUserIDs, sub) {
				return forbidden(c)
			}
			reqctx.SetUserID(c.UserContext(), sub)
			return c.Next()
		})
	}

	return func(c *fiber.Ctx) error {
		if authorize != nil {
			if authorize(c) {
				return c.Next()
			}
			return forbidden(c)
		}

		if token := c.Get(AdminTokenHeader); token != "" && tokenMatches(cfg, token) {
			reqctx.SetUserID(c.UserContext(), "admin-token")
			return c.Next()
		}

		if jwtCheck == nil {
			return unauthorized(c, "Unauthorized")
		}
		return jwtCheck(c)
	}
}

func tokenMatches(cfg config.AuthConfig, token string) bool {
	if cfg.AdminTokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.AdminTokenHash), []byte(token)) == nil
	}
	if cfg.AdminToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.AdminToken), []byte(token)) == 1
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
		Error: true, Message: "Admin access required",
	})
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	if val == "" {
		return false
	}
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
