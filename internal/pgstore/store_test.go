package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crowdfund-escrow/backend/internal/clock"
	"github.com/crowdfund-escrow/backend/internal/custody"
	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/escrow"
	"github.com/crowdfund-escrow/backend/internal/events"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/crowdfund-escrow/backend/internal/pgstore"
	"github.com/crowdfund-escrow/backend/internal/repositories"
	"github.com/crowdfund-escrow/backend/migrations"
	"github.com/google/uuid"
)

type allowAll struct{}

func (allowAll) Verify(context.Context, string) error { return nil }

// Runs against a scratch database named by TEST_POSTGRES_DSN.
func TestEscrowFlowOnPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	log := zap.NewNop()
	pool, err := db.NewPostgresPool(ctx, dsn, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.RunMigrations(ctx, pool, migrations.FS, log))

	deriver := custody.NewDeriver("integration", 0)
	store := pgstore.New(pool, deriver)
	clk := clock.NewManual(time.Now())
	svc := escrow.NewService(store, store, allowAll{}, clk, events.NopPublisher{},
		repositories.NewAuditRepo(pool), log)

	suffix := uuid.NewString()[:8]
	creator := "0:" + suffix + "00000000000000000000000000000000000000000000000000000000"
	backer := "0:" + suffix + "11111111111111111111111111111111111111111111111111111111"

	ledger := custody.NewLedger(deriver, pool)
	credited, err := ledger.Deposit(ctx, backer, 5_000, "lt-"+suffix)
	require.NoError(t, err)
	require.True(t, credited)
	credited, err = ledger.Deposit(ctx, backer, 5_000, "lt-"+suffix)
	require.NoError(t, err)
	assert.False(t, credited, "same chain reference must credit once")

	c, err := svc.CreateCampaign(ctx, escrow.CreateCampaignInput{
		Creator: creator, Title: "Roof " + suffix, TargetAmount: 1_000, DurationDays: 1,
	})
	require.NoError(t, err)

	_, err = svc.CreateCampaign(ctx, escrow.CreateCampaignInput{
		Creator: creator, Title: "Roof " + suffix, TargetAmount: 1_000, DurationDays: 1,
	})
	require.ErrorIs(t, err, escrow.ErrCampaignExists)

	_, err = svc.Contribute(ctx, c.ID, backer, 1_500)
	require.ErrorIs(t, err, escrow.ErrExceedsTarget)

	_, err = svc.Contribute(ctx, c.ID, backer, 400)
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	refunded, err := svc.Refund(ctx, c.ID, backer)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), refunded)

	view, err := svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, view.CurrentAmount)
	assert.Equal(t, models.CampaignStateEndedUnsuccessful, view.State)

	balance, err := svc.AccountBalance(ctx, backer)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), balance)

	_, err = svc.Withdraw(ctx, c.ID, creator)
	require.ErrorIs(t, err, escrow.ErrNothingToWithdraw)

	trail, err := svc.CampaignEvents(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 3)
}
