package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/crowdfund-escrow/backend/internal/auth"
)

const testSecret = "middleware-test-secret"

func newAuthApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/whoami", AuthMiddleware(testSecret, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendString(GetAccount(c))
	})
	return app
}

func TestAuthMiddlewareTokenSources(t *testing.T) {
	const account = "0:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	token, err := auth.GenerateJWT(testSecret, account, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		target     string
		header     string
		upgrade    bool
		wantStatus int
	}{
		{"bearer header", "/whoami", "Bearer " + token, false, http.StatusOK},
		{"query token on plain request", "/whoami?token=" + token, "", false, http.StatusUnauthorized},
		{"query token on websocket upgrade", "/whoami?token=" + token, "", true, http.StatusOK},
		{"header without bearer prefix", "/whoami", token, false, http.StatusUnauthorized},
		{"no token", "/whoami", "", false, http.StatusUnauthorized},
	}

	app := newAuthApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}

			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != account {
					t.Errorf("account = %q, want %q", body, account)
				}
			}
		})
	}
}
