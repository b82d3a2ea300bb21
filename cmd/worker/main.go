package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crowdfund-escrow/backend/internal/config"
	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/events"
	"github.com/crowdfund-escrow/backend/internal/repositories"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	sweeper := &deadlineSweeper{
		campaigns: repositories.NewCampaignRepo(pool),
		marks:     redisAnnouncements{rdb: rdb},
		publisher: events.NewRedisPublisher(rdb, log),
		audit:     repositories.NewAuditRepo(pool),
		batch:     cfg.DeadlineSweepBatch,
		log:       log,
	}
	payloads := repositories.NewProofPayloadRepo(pool)

	log.Info("worker started", zap.Duration("sweep_interval", cfg.DeadlineSweepInterval))

	sweepTicker := time.NewTicker(cfg.DeadlineSweepInterval)
	cleanupTicker := time.NewTicker(time.Hour)
	defer sweepTicker.Stop()
	defer cleanupTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			n, err := sweeper.sweep(ctx, time.Now().Unix())
			if err != nil {
				log.Error("deadline sweep failed", zap.Error(err))
			} else if n > 0 {
				log.Info("deadline sweep done", zap.Int("announced", n))
			}
		case <-cleanupTicker.C:
			n, err := payloads.DeleteExpired(ctx)
			if err != nil {
				log.Error("failed to delete expired proof payloads", zap.Error(err))
			} else if n > 0 {
				log.Info("expired proof payloads deleted", zap.Int64("count", n))
			}
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
