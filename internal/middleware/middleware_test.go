package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/config"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/reqctx"
)

const secret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newApp(cfg config.AuthConfig, authorize Authorizer, seenUser *string) *fiber.App {
	app := fiber.New()
	app.Use(reqctx.Middleware(reqctx.Options{ResolveUser: func(*fiber.Ctx) string { return "" }}))
	app.Get("/admin", AdminRequired(cfg, authorize), func(c *fiber.Ctx) error {
		if seenUser != nil {
			*seenUser = reqctx.From(c.UserContext()).UserID()
		}
		return c.SendString("ok")
	})
	return app
}

func TestAdminRequired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	base := config.AuthConfig{JWTSecret: secret, AdminToken: "plain-token", AdminEmails: "ops@example.com"}
	hashed := base
	hashed.AdminTokenHash = string(hash)

	tests := []struct {
		name    string
		cfg     config.AuthConfig
		headers map[string]string
		want    int
	}{
		{"no credentials", base, nil, fiber.StatusUnauthorized},
		{"plain admin token", base, map[string]string{AdminTokenHeader: "plain-token"}, fiber.StatusOK},
		{"wrong admin token", base, map[string]string{AdminTokenHeader: "nope"}, fiber.StatusUnauthorized},
		{"hashed admin token", hashed, map[string]string{AdminTokenHeader: "hashed-token"}, fiber.StatusOK},
		{"hash wins over plain", hashed, map[string]string{AdminTokenHeader: "plain-token"}, fiber.StatusUnauthorized},
		{"admin role claim", base, map[string]string{"Authorization": "Bearer " + signed(t, jwt.MapClaims{"sub": "u1", "role": "admin"})}, fiber.StatusOK},
		{"listed email", base, map[string]string{"Authorization": "Bearer " + signed(t, jwt.MapClaims{"sub": "u2", "email": "ops@example.com"})}, fiber.StatusOK},
		{"ordinary user", base, map[string]string{"Authorization": "Bearer " + signed(t, jwt.MapClaims{"sub": "u3", "role": "user"})}, fiber.StatusForbidden},
		{"garbage token", base, map[string]string{"Authorization": "Bearer not-a-jwt"}, fiber.StatusUnauthorized},
		{"no jwt secret", config.AuthConfig{}, map[string]string{"Authorization": "Bearer x"}, fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(tt.cfg, nil, nil)
			req := httptest.NewRequest("GET", "/admin", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestAdminRequired_AuthorizerWins(t *testing.T) {
	cfg := config.AuthConfig{AdminToken: "plain-token"}

	deny := newApp(cfg, func(*fiber.Ctx) bool { return false }, nil)
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(AdminTokenHeader, "plain-token")
	resp, err := deny.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want 403 when the authorizer denies", resp.StatusCode)
	}

	allow := newApp(cfg, func(*fiber.Ctx) bool { return true }, nil)
	resp, err = allow.Test(httptest.NewRequest("GET", "/admin", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAdminRequired_RecordsActor(t *testing.T) {
	var user string
	app := newApp(config.AuthConfig{JWTSecret: secret}, nil, &user)
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{"sub": "admin-7", "role": "admin"}))
	if _, err := app.Test(req); err != nil {
		t.Fatal(err)
	}
	if user != "admin-7" {
		t.Errorf("request user = %q, want admin-7", user)
	}
}
