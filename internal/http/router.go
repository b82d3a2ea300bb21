package http

import (
	"time"

	"github.com/crowdfund-escrow/backend/internal/config"
	"github.com/crowdfund-escrow/backend/internal/http/handlers"
	"github.com/crowdfund-escrow/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// SetupRouter wires every route. limiter may be nil, which disables rate
// limiting.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	limiter middleware.Counter,
	authHandler *handlers.AuthHandler,
	campaignHandler *handlers.CampaignHandler,
	accountHandler *handlers.AccountHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	authMW := middleware.AuthMiddleware(cfg.JWTSecret, log)

	// Public routes are limited per IP, protected ones per account, so the
	// limiter runs after authMW there.
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if limiter != nil {
		limit = middleware.RateLimitMiddleware(limiter, cfg.RateLimitPerMinute, time.Minute, log)
	}

	// Auth (TON Connect proof)
	api.Post("/auth/payload", limit, authHandler.GeneratePayload)
	api.Post("/auth/ton-proof", limit, authHandler.TonProof)

	// Campaigns, read side (public)
	api.Get("/campaigns", limit, campaignHandler.ListCampaigns)
	api.Get("/campaigns/:id", limit, campaignHandler.GetCampaign)
	api.Get("/campaigns/:id/contributions", limit, campaignHandler.ListContributions)
	api.Get("/campaigns/:id/events", limit, campaignHandler.GetCampaignEvents)

	// Protected endpoints
	protected := api.Group("", authMW, limit)

	protected.Post("/campaigns", campaignHandler.CreateCampaign)
	protected.Post("/campaigns/:id/contribute", campaignHandler.Contribute)
	protected.Post("/campaigns/:id/withdraw", campaignHandler.Withdraw)
	protected.Post("/campaigns/:id/refund", campaignHandler.Refund)

	protected.Get("/me/balance", accountHandler.GetBalance)
	protected.Get("/me/transfers", accountHandler.ListMyTransfers)
	protected.Get("/me/contributions", accountHandler.ListMyContributions)
	protected.Get("/me/contributions/:campaignId", accountHandler.GetMyContribution)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", authMW, websocket.New(wsHub.HandleWS))
}
