package main

import (
	"context"
	"encoding/hex"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/crowdfund-escrow/backend/internal/config"
	"github.com/crowdfund-escrow/backend/internal/custody"
	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/events"
	"github.com/crowdfund-escrow/backend/internal/ton"
	"github.com/redis/go-redis/v9"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

const (
	redisCursorLT   = "vault-indexer:cursor:lt"
	redisCursorHash = "vault-indexer:cursor:hash"
	pollInterval    = 5 * time.Second
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TONHotWalletAddress == "" {
		log.Fatal("TON_HOT_WALLET_ADDRESS is required")
	}

	hotWallet, err := address.ParseAddr(cfg.TONHotWalletAddress)
	if err != nil {
		log.Fatal("invalid TON_HOT_WALLET_ADDRESS", zap.String("addr", cfg.TONHotWalletAddress), zap.Error(err))
	}

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

	watcher, err := ton.Connect(ctx, cfg, hotWallet, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	deriver := custody.NewDeriver(cfg.VaultAuthorityKey, cfg.VaultWorkchain)
	idx := &indexer{
		ledger:    &pgDepositor{pool: pool, deriver: deriver},
		seen:      redisSeen{rdb: rdb},
		publisher: events.NewRedisPublisher(rdb, log),
		log:       log,
	}

	log.Info("vault indexer started",
		zap.String("hot_wallet", hotWallet.String()),
		zap.String("network", cfg.TONNetwork),
	)

	initCursor(ctx, watcher, rdb, log)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := poll(ctx, watcher, idx, rdb, log); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down vault indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// initCursor stores the wallet head on first run so that only transfers
// arriving after startup are credited.
func initCursor(ctx context.Context, w *ton.Watcher, rdb *redis.Client, log *zap.Logger) {
	existing, _ := rdb.Get(ctx, redisCursorLT).Result()
	if existing != "" {
		log.Info("resuming from saved cursor", zap.String("lt", existing))
		return
	}

	lt, hash, err := w.Head(ctx)
	if err != nil {
		log.Warn("failed to read wallet head for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}
	if lt == 0 {
		log.Info("hot wallet not active yet, starting from LT=0")
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	saveCursor(ctx, rdb, lt, hash)
	log.Info("cursor initialized at current wallet state",
		zap.Uint64("lt", lt),
		zap.String("hash", hex.EncodeToString(hash)),
	)
}

func loadCursorLT(ctx context.Context, rdb *redis.Client) uint64 {
	val, err := rdb.Get(ctx, redisCursorLT).Result()
	if err != nil || val == "" {
		return 0
	}
	lt, _ := strconv.ParseUint(val, 10, 64)
	return lt
}

func saveCursor(ctx context.Context, rdb *redis.Client, lt uint64, hash []byte) {
	rdb.Set(ctx, redisCursorLT, strconv.FormatUint(lt, 10), 0)
	rdb.Set(ctx, redisCursorHash, hex.EncodeToString(hash), 0)
}

// poll credits every new deposit and moves the cursor. The cursor stays put
// when a credit fails so the cycle is retried.
func poll(ctx context.Context, w *ton.Watcher, idx *indexer, rdb *redis.Client, log *zap.Logger) error {
	cursorLT := loadCursorLT(ctx, rdb)

	transfers, headLT, headHash, err := w.Since(ctx, cursorLT)
	if err != nil {
		return err
	}
	if headLT <= cursorLT {
		return nil
	}

	if len(transfers) > 0 {
		log.Info("found new transfers", zap.Int("count", len(transfers)))
	}
	for _, t := range transfers {
		if err := idx.process(ctx, t); err != nil {
			return err
		}
	}

	saveCursor(ctx, rdb, headLT, headHash)
	return nil
}
