package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crowdfund-escrow/backend/internal/auth"
	"github.com/crowdfund-escrow/backend/internal/clock"
	"github.com/crowdfund-escrow/backend/internal/config"
	"github.com/crowdfund-escrow/backend/internal/custody"
	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/escrow"
	"github.com/crowdfund-escrow/backend/internal/events"
	apphttp "github.com/crowdfund-escrow/backend/internal/http"
	"github.com/crowdfund-escrow/backend/internal/http/dto"
	"github.com/crowdfund-escrow/backend/internal/http/handlers"
	"github.com/crowdfund-escrow/backend/internal/middleware"
	"github.com/crowdfund-escrow/backend/internal/pgstore"
	"github.com/crowdfund-escrow/backend/internal/repositories"
	"github.com/crowdfund-escrow/backend/migrations"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Escrow core
	deriver := custody.NewDeriver(cfg.VaultAuthorityKey, cfg.VaultWorkchain)
	store := pgstore.New(pool, deriver)
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	auditRepo := repositories.NewAuditRepo(pool)

	svc := escrow.NewService(store, store, auth.ContextVerifier{}, clock.SystemClock{}, publisher, auditRepo, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(repositories.NewProofPayloadRepo(pool), cfg, log)
	campaignHandler := handlers.NewCampaignHandler(svc, log)
	accountHandler := handlers.NewAccountHandler(svc, cfg.TONHotWalletAddress, log)
	wsHub := handlers.NewWSHub(subscriber, log)

	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{
				Error:     err.Error(),
				RequestID: middleware.GetRequestID(c),
			})
		},
	})

	apphttp.SetupRouter(app, cfg, log, middleware.NewRedisCounter(rdb), authHandler, campaignHandler, accountHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
