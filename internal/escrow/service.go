package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/crowdfund-escrow/backend/internal/events"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditLogger records who did what to which campaign.
type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

// Service sequences every escrow operation as
// validate -> custodial transfer -> ledger commit -> notify.
// The first three happen inside one unit of work; notification is best-effort
// and runs only after commit.
type Service struct {
	store     Store
	reader    Reader
	identity  IdentityVerifier
	clock     Clock
	publisher events.Publisher
	audit     AuditLogger
	log       *zap.Logger
}

func NewService(
	store Store,
	reader Reader,
	identity IdentityVerifier,
	clock Clock,
	publisher events.Publisher,
	audit AuditLogger,
	log *zap.Logger,
) *Service {
	return &Service{
		store:     store,
		reader:    reader,
		identity:  identity,
		clock:     clock,
		publisher: publisher,
		audit:     audit,
		log:       log,
	}
}

type CreateCampaignInput struct {
	Creator      string
	Title        string
	Description  string
	TargetAmount uint64
	DurationDays uint64
}

type ContributionReceipt struct {
	Contribution models.Contribution `json:"contribution"`
	Amount       uint64              `json:"amount"`
	TotalRaised  uint64              `json:"total_raised"`
	IsSuccessful bool                `json:"is_successful"`
}

func (s *Service) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*models.Campaign, error) {
	if err := s.verify(ctx, in.Creator); err != nil {
		return nil, err
	}
	now := s.clock.Now().Unix()

	c, err := NewCampaign(in.Creator, in.Title, in.Description, in.TargetAmount, in.DurationDays, now)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		c.VaultAddress = tx.Custodian().VaultFor(c.ID)
		return tx.Campaigns().Insert(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, &in.Creator, models.ActorTypeUser, "campaign_created", c.ID, map[string]any{
		"target_amount": c.TargetAmount,
		"end_time":      c.EndTime,
		"vault":         c.VaultAddress,
	})
	s.notify(ctx, events.EventCampaignCreated, map[string]any{
		"campaign":      c.ID.String(),
		"creator":       c.Creator,
		"target_amount": c.TargetAmount,
		"end_time":      c.EndTime,
	})

	s.log.Info("campaign created",
		zap.String("campaign_id", c.ID.String()),
		zap.String("creator", c.Creator),
		zap.Uint64("target_amount", c.TargetAmount),
		zap.Int64("end_time", c.EndTime),
	)
	return c, nil
}

func (s *Service) Contribute(ctx context.Context, campaignID uuid.UUID, contributor string, amount uint64) (*ContributionReceipt, error) {
	if err := s.verify(ctx, contributor); err != nil {
		return nil, err
	}
	now := s.clock.Now().Unix()

	var receipt ContributionReceipt
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.Campaigns().Lock(ctx, campaignID)
		if err != nil {
			return err
		}
		before := c.State(now)

		total, err := RecordContribution(c, amount, now)
		if err != nil {
			return err
		}

		existing, err := tx.Contributions().Lock(ctx, campaignID, contributor)
		if err != nil {
			return err
		}
		rec, err := UpsertContribution(c, existing, contributor, amount)
		if err != nil {
			return err
		}

		cust := tx.Custodian()
		if err := cust.TransferIn(ctx, contributor, cust.VaultFor(c.ID), amount); err != nil {
			return transferFailed(err)
		}

		if err := checkTransition(before, c.State(now)); err != nil {
			return err
		}
		if err := tx.Campaigns().Update(ctx, c); err != nil {
			return err
		}
		if err := tx.Contributions().Upsert(ctx, rec); err != nil {
			return err
		}

		receipt = ContributionReceipt{
			Contribution: *rec,
			Amount:       amount,
			TotalRaised:  total,
			IsSuccessful: c.IsSuccessful,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, &contributor, models.ActorTypeUser, "contribution_made", campaignID, map[string]any{
		"amount":       amount,
		"total_raised": receipt.TotalRaised,
	})
	s.notify(ctx, events.EventContributionMade, map[string]any{
		"campaign":     campaignID.String(),
		"contributor":  contributor,
		"amount":       amount,
		"total_raised": receipt.TotalRaised,
	})

	s.log.Info("contribution made",
		zap.String("campaign_id", campaignID.String()),
		zap.String("contributor", contributor),
		zap.Uint64("amount", amount),
		zap.Uint64("total_raised", receipt.TotalRaised),
	)
	return &receipt, nil
}

// Withdraw releases the whole vault balance to the campaign creator.
func (s *Service) Withdraw(ctx context.Context, campaignID uuid.UUID, requester string) (uint64, error) {
	if err := s.verify(ctx, requester); err != nil {
		return 0, err
	}
	now := s.clock.Now().Unix()

	var amount uint64
	var creator string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.Campaigns().Lock(ctx, campaignID)
		if err != nil {
			return err
		}
		before := c.State(now)

		cust := tx.Custodian()
		vault := cust.VaultFor(c.ID)
		balance, err := cust.BalanceOf(ctx, vault)
		if err != nil {
			return err
		}

		amount, err = AuthorizeWithdrawal(c, requester, now, balance)
		if err != nil {
			return err
		}

		if err := cust.TransferOut(ctx, vault, c.Creator, amount, cust.DeriveVaultAuthority(c.ID)); err != nil {
			return transferFailed(err)
		}

		if err := checkTransition(before, c.State(now)); err != nil {
			return err
		}
		creator = c.Creator
		return tx.Campaigns().Update(ctx, c)
	})
	if err != nil {
		return 0, err
	}

	s.record(ctx, &requester, models.ActorTypeUser, "funds_withdrawn", campaignID, map[string]any{
		"amount": amount,
	})
	s.notify(ctx, events.EventFundsWithdrawn, map[string]any{
		"campaign": campaignID.String(),
		"creator":  creator,
		"amount":   amount,
	})

	s.log.Info("funds withdrawn",
		zap.String("campaign_id", campaignID.String()),
		zap.String("creator", creator),
		zap.Uint64("amount", amount),
	)
	return amount, nil
}

// Refund pays the contributor's whole pledge back from the vault.
func (s *Service) Refund(ctx context.Context, campaignID uuid.UUID, contributor string) (uint64, error) {
	if err := s.verify(ctx, contributor); err != nil {
		return 0, err
	}
	now := s.clock.Now().Unix()

	var amount uint64
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		// The campaign row is locked as well so a refund and a withdrawal
		// drawing on the same vault are serialized.
		c, err := tx.Campaigns().Lock(ctx, campaignID)
		if err != nil {
			return err
		}
		rec, err := tx.Contributions().Lock(ctx, campaignID, contributor)
		if err != nil {
			return err
		}

		amount, err = AuthorizeRefund(c, rec, now)
		if err != nil {
			return err
		}

		cust := tx.Custodian()
		vault := cust.VaultFor(c.ID)
		if err := cust.TransferOut(ctx, vault, contributor, amount, cust.DeriveVaultAuthority(c.ID)); err != nil {
			return transferFailed(err)
		}

		if err := tx.Contributions().Upsert(ctx, rec); err != nil {
			return err
		}
		return tx.Campaigns().Update(ctx, c)
	})
	if err != nil {
		return 0, err
	}

	s.record(ctx, &contributor, models.ActorTypeUser, "contribution_refunded", campaignID, map[string]any{
		"amount": amount,
	})
	s.notify(ctx, events.EventContributionRefunded, map[string]any{
		"campaign":    campaignID.String(),
		"contributor": contributor,
		"amount":      amount,
	})

	s.log.Info("contribution refunded",
		zap.String("campaign_id", campaignID.String()),
		zap.String("contributor", contributor),
		zap.Uint64("amount", amount),
	)
	return amount, nil
}

// --- read side ---

func (s *Service) GetCampaign(ctx context.Context, id uuid.UUID) (*models.CampaignView, error) {
	c, err := s.reader.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CampaignView{Campaign: *c, State: c.State(s.clock.Now().Unix())}, nil
}

func (s *Service) ListCampaigns(ctx context.Context, f CampaignFilter) ([]models.CampaignView, error) {
	campaigns, err := s.reader.ListCampaigns(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().Unix()
	views := make([]models.CampaignView, 0, len(campaigns))
	for _, c := range campaigns {
		views = append(views, models.CampaignView{Campaign: c, State: c.State(now)})
	}
	return views, nil
}

func (s *Service) GetContribution(ctx context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error) {
	return s.reader.GetContribution(ctx, campaignID, contributor)
}

func (s *Service) ListContributions(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]models.Contribution, error) {
	if _, err := s.reader.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.reader.ListContributions(ctx, campaignID, limit, offset)
}

// ContributionsOf lists an account's contributions across campaigns,
// refunded ones included.
func (s *Service) ContributionsOf(ctx context.Context, contributor string, limit, offset int) ([]models.Contribution, error) {
	return s.reader.ListContributionsBy(ctx, contributor, limit, offset)
}

// TransferHistory lists custody movements in and out of account.
func (s *Service) TransferHistory(ctx context.Context, account string, limit, offset int) ([]models.CustodyTransfer, error) {
	return s.reader.ListTransfers(ctx, account, limit, offset)
}

// VaultBalance reports what the custodian currently holds for the campaign.
func (s *Service) VaultBalance(ctx context.Context, campaignID uuid.UUID) (uint64, error) {
	var balance uint64
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		cust := tx.Custodian()
		var err error
		balance, err = cust.BalanceOf(ctx, cust.VaultFor(campaignID))
		return err
	})
	return balance, err
}

// AccountBalance reports the free custody balance of an account.
func (s *Service) AccountBalance(ctx context.Context, account string) (uint64, error) {
	var balance uint64
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		balance, err = tx.Custodian().BalanceOf(ctx, account)
		return err
	})
	return balance, err
}

func (s *Service) CampaignEvents(ctx context.Context, campaignID uuid.UUID) ([]models.AuditLog, error) {
	return s.audit.GetByEntity(ctx, models.EntityCampaign, campaignID, 100, 0)
}

// --- helpers ---

func (s *Service) verify(ctx context.Context, actor string) error {
	if actor == "" {
		return ErrInvalidIdentity
	}
	if err := s.identity.Verify(ctx, actor); err != nil {
		return fmt.Errorf("%w: %w", ErrIdentityNotVerified, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor *string, actorType, action string, campaignID uuid.UUID, meta map[string]any) {
	if err := s.audit.Log(ctx, models.AuditLog{
		Actor:      actor,
		ActorType:  actorType,
		Action:     action,
		EntityType: models.EntityCampaign,
		EntityID:   &campaignID,
		Meta:       meta,
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, eventType string, payload map[string]any) {
	if err := s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type:    eventType,
		Payload: payload,
	}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

func checkTransition(before, after string) error {
	if before == after || models.IsValidCampaignTransition(before, after) {
		return nil
	}
	return fmt.Errorf("invalid campaign transition from %s to %s", before, after)
}

func transferFailed(err error) error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransferFailed, err)
}
