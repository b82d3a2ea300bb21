package middleware

import (
	"strings"

	"github.com/crowdfund-escrow/backend/internal/auth"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const CtxAccount = "account"

// AuthMiddleware accepts "Authorization: Bearer <jwt>" and, only for WebSocket
// upgrades, the ?token= query parameter. The proven account goes to Locals
// and to the request context seen by the escrow service.
func AuthMiddleware(secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var tokenStr string
		if websocket.IsWebSocketUpgrade(c) {
			tokenStr = c.Query("token")
		}
		if authHeader := c.Get("Authorization"); authHeader != "" {
			tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == authHeader {
				return unauthorized(c, "invalid authorization format")
			}
		}
		if tokenStr == "" {
			return unauthorized(c, "missing authorization header")
		}

		claims, err := auth.ParseJWT(secret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(CtxAccount, claims.Account)
		c.SetUserContext(auth.WithPrincipal(c.UserContext(), claims.Account))

		return c.Next()
	}
}

func GetAccount(c *fiber.Ctx) string {
	account, _ := c.Locals(CtxAccount).(string)
	return account
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":      msg,
		"code":       "unauthorized",
		"request_id": GetRequestID(c),
	})
}
