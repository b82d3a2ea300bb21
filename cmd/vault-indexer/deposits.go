package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/crowdfund-escrow/backend/internal/custody"
	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/events"
	"github.com/crowdfund-escrow/backend/internal/ton"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisProcessed = "vault-indexer:tx:"
	processedTTL   = 7 * 24 * time.Hour
)

type depositor interface {
	Deposit(ctx context.Context, account string, amount uint64, reference string) (bool, error)
}

// processedSet is a fast path in front of the unique reference in the
// custody ledger.
type processedSet interface {
	Seen(ctx context.Context, reference string) bool
	Mark(ctx context.Context, reference, value string)
}

type indexer struct {
	ledger    depositor
	seen      processedSet
	publisher events.Publisher
	log       *zap.Logger
}

// process credits one incoming transfer. Transfers without a deposit memo are
// recorded as skipped; only a failed credit is returned as an error.
func (i *indexer) process(ctx context.Context, t ton.IncomingTransfer) error {
	ref := strconv.FormatUint(t.LT, 10)
	if i.seen.Seen(ctx, ref) {
		return nil
	}

	account, err := ton.ParseDepositMemo(t.Comment)
	if err != nil {
		i.log.Debug("transfer without deposit memo",
			zap.Uint64("tx_lt", t.LT),
			zap.String("from", t.From),
			zap.String("comment", t.Comment),
		)
		i.seen.Mark(ctx, ref, "skipped")
		return nil
	}

	credited, err := i.ledger.Deposit(ctx, account, t.Amount, ref)
	if err != nil {
		return fmt.Errorf("credit deposit lt=%d: %w", t.LT, err)
	}
	i.seen.Mark(ctx, ref, "credited:"+account)
	if !credited {
		return nil
	}

	if err := i.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventDepositCredited,
		Payload: map[string]any{
			"account": account,
			"amount":  t.Amount,
			"tx_lt":   t.LT,
		},
	}); err != nil {
		i.log.Warn("event publish failed", zap.Uint64("tx_lt", t.LT), zap.Error(err))
	}

	i.log.Info("deposit credited",
		zap.String("account", account),
		zap.Uint64("amount", t.Amount),
		zap.Uint64("tx_lt", t.LT),
		zap.String("from", t.From),
	)
	return nil
}

type pgDepositor struct {
	pool    *pgxpool.Pool
	deriver *custody.Deriver
}

func (d *pgDepositor) Deposit(ctx context.Context, account string, amount uint64, reference string) (bool, error) {
	var credited bool
	err := db.InTx(ctx, d.pool, func(tx pgx.Tx) error {
		var err error
		credited, err = custody.NewLedger(d.deriver, tx).Deposit(ctx, account, amount, reference)
		return err
	})
	return credited, err
}

type redisSeen struct {
	rdb *redis.Client
}

func (r redisSeen) Seen(ctx context.Context, reference string) bool {
	exists, _ := r.rdb.Exists(ctx, redisProcessed+reference).Result()
	return exists > 0
}

func (r redisSeen) Mark(ctx context.Context, reference, value string) {
	r.rdb.Set(ctx, redisProcessed+reference, value, processedTTL)
}
