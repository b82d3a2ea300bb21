// Package pgstore runs escrow units of work as Postgres transactions.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/crowdfund-escrow/backend/internal/custody"
	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/escrow"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/crowdfund-escrow/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements escrow.Store and escrow.Reader.
type Store struct {
	pool          *pgxpool.Pool
	deriver       *custody.Deriver
	campaigns     *repositories.CampaignRepo
	contributions *repositories.ContributionRepo
}

func New(pool *pgxpool.Pool, deriver *custody.Deriver) *Store {
	return &Store{
		pool:          pool,
		deriver:       deriver,
		campaigns:     repositories.NewCampaignRepo(pool),
		contributions: repositories.NewContributionRepo(pool),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx escrow.Tx) error) error {
	return db.InTx(ctx, s.pool, func(pgTx pgx.Tx) error {
		return fn(ctx, &unitOfWork{
			campaigns:     campaignStore{repositories.NewCampaignRepo(pgTx)},
			contributions: contributionStore{repositories.NewContributionRepo(pgTx)},
			custodian:     custody.NewLedger(s.deriver, pgTx),
		})
	})
}

func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, campaignErr(id, err)
	}
	return c, nil
}

func (s *Store) ListCampaigns(ctx context.Context, f escrow.CampaignFilter) ([]models.Campaign, error) {
	return s.campaigns.List(ctx, f.Creator, f.Limit, f.Offset)
}

func (s *Store) GetContribution(ctx context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error) {
	c, err := s.contributions.Get(ctx, campaignID, contributor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, escrow.ErrContributionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}

func (s *Store) ListContributions(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]models.Contribution, error) {
	return s.contributions.ListByCampaign(ctx, campaignID, limit, offset)
}

// ListContributionsBy lists every campaign contribution of one account.
func (s *Store) ListContributionsBy(ctx context.Context, contributor string, limit, offset int) ([]models.Contribution, error) {
	return s.contributions.ListByContributor(ctx, contributor, limit, offset)
}

// ListTransfers reads custody history outside any transaction.
func (s *Store) ListTransfers(ctx context.Context, account string, limit, offset int) ([]models.CustodyTransfer, error) {
	return custody.NewLedger(s.deriver, s.pool).History(ctx, account, limit, offset)
}

type unitOfWork struct {
	campaigns     campaignStore
	contributions contributionStore
	custodian     *custody.Ledger
}

func (u *unitOfWork) Campaigns() escrow.CampaignStore         { return u.campaigns }
func (u *unitOfWork) Contributions() escrow.ContributionStore { return u.contributions }
func (u *unitOfWork) Custodian() escrow.Custodian             { return u.custodian }

type campaignStore struct {
	repo *repositories.CampaignRepo
}

func (s campaignStore) Insert(ctx context.Context, c *models.Campaign) error {
	if err := s.repo.Create(ctx, c); err != nil {
		if repositories.IsUniqueViolation(err) {
			return escrow.ErrCampaignExists
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (s campaignStore) Lock(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, campaignErr(id, err)
	}
	return c, nil
}

func (s campaignStore) Update(ctx context.Context, c *models.Campaign) error {
	return s.repo.Update(ctx, c)
}

type contributionStore struct {
	repo *repositories.ContributionRepo
}

func (s contributionStore) Lock(ctx context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error) {
	c, err := s.repo.GetForUpdate(ctx, campaignID, contributor)
	if err != nil {
		return nil, fmt.Errorf("lock contribution: %w", err)
	}
	return c, nil
}

func (s contributionStore) Upsert(ctx context.Context, c *models.Contribution) error {
	if err := s.repo.Upsert(ctx, c); err != nil {
		return fmt.Errorf("upsert contribution: %w", err)
	}
	return nil
}

func campaignErr(id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return escrow.ErrCampaignNotFound
	}
	return fmt.Errorf("campaign %s: %w", id, err)
}
