// Package memstore keeps the escrow ledger and custody balances in memory.
// Units of work are serialized by a mutex and staged on a copy of the state,
// which replaces the live state only when the unit of work succeeds.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crowdfund-escrow/backend/internal/custody"
	"github.com/crowdfund-escrow/backend/internal/escrow"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/google/uuid"
)

type contributionKey struct {
	campaignID  uuid.UUID
	contributor string
}

type state struct {
	campaigns     map[uuid.UUID]models.Campaign
	contributions map[contributionKey]models.Contribution
	balances      map[string]uint64
	transfers     []models.CustodyTransfer
}

func (s *state) clone() *state {
	c := &state{
		campaigns:     make(map[uuid.UUID]models.Campaign, len(s.campaigns)),
		contributions: make(map[contributionKey]models.Contribution, len(s.contributions)),
		balances:      make(map[string]uint64, len(s.balances)),
		transfers:     append([]models.CustodyTransfer(nil), s.transfers...),
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.contributions {
		c.contributions[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return c
}

// Store implements escrow.Store and escrow.Reader.
type Store struct {
	mu      sync.Mutex
	deriver *custody.Deriver
	now     func() time.Time
	live    *state

	// failTransfers, when set, is returned by every custodial transfer.
	failTransfers error
}

func New(deriver *custody.Deriver) *Store {
	return &Store{
		deriver: deriver,
		now:     time.Now,
		live: &state{
			campaigns:     map[uuid.UUID]models.Campaign{},
			contributions: map[contributionKey]models.Contribution{},
			balances:      map[string]uint64{},
		},
	}
}

// Deposit credits account outside any escrow operation, like the chain indexer does.
func (s *Store) Deposit(account string, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live.balances[account] += amount
	s.live.transfers = append(s.live.transfers, models.CustodyTransfer{
		ID:        uuid.New(),
		ToAccount: account,
		Amount:    amount,
		Kind:      models.TransferKindDeposit,
		CreatedAt: s.now(),
	})
}

// FailTransfers makes every following custodial transfer fail with err.
// Pass nil to restore normal behaviour.
func (s *Store) FailTransfers(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTransfers = err
}

func (s *Store) Balance(account string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live.balances[account]
}

func (s *Store) Transfers() []models.CustodyTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CustodyTransfer(nil), s.live.transfers...)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx escrow.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.live.clone()
	if err := fn(ctx, &tx{store: s, st: staged}); err != nil {
		return err
	}
	s.live = staged
	return nil
}

// --- escrow.Reader ---

func (s *Store) GetCampaign(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live.campaigns[id]
	if !ok {
		return nil, escrow.ErrCampaignNotFound
	}
	return &c, nil
}

func (s *Store) ListCampaigns(_ context.Context, f escrow.CampaignFilter) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Campaign
	for _, c := range s.live.campaigns {
		if f.Creator != nil && c.Creator != *f.Creator {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime > out[j].StartTime
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) GetContribution(_ context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live.contributions[contributionKey{campaignID, contributor}]
	if !ok {
		return nil, escrow.ErrContributionNotFound
	}
	return &c, nil
}

func (s *Store) ListContributions(_ context.Context, campaignID uuid.UUID, limit, offset int) ([]models.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Contribution
	for k, c := range s.live.contributions {
		if k.campaignID == campaignID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contributor < out[j].Contributor })
	return page(out, limit, offset), nil
}

func (s *Store) ListContributionsBy(_ context.Context, contributor string, limit, offset int) ([]models.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Contribution
	for k, c := range s.live.contributions {
		if k.contributor == contributor {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CampaignID.String() < out[j].CampaignID.String()
	})
	return page(out, limit, offset), nil
}

// ListTransfers returns account's transfers, newest first.
func (s *Store) ListTransfers(_ context.Context, account string, limit, offset int) ([]models.CustodyTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CustodyTransfer
	for i := len(s.live.transfers) - 1; i >= 0; i-- {
		t := s.live.transfers[i]
		if t.ToAccount == account || (t.FromAccount != nil && *t.FromAccount == account) {
			out = append(out, t)
		}
	}
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// --- escrow.Tx ---

type tx struct {
	store *Store
	st    *state
}

func (t *tx) Campaigns() escrow.CampaignStore         { return campaigns{t} }
func (t *tx) Contributions() escrow.ContributionStore { return contributions{t} }
func (t *tx) Custodian() escrow.Custodian             { return custodian{t} }

type campaigns struct{ *tx }

func (c campaigns) Insert(_ context.Context, campaign *models.Campaign) error {
	if _, ok := c.st.campaigns[campaign.ID]; ok {
		return escrow.ErrCampaignExists
	}
	now := c.store.now()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	c.st.campaigns[campaign.ID] = *campaign
	return nil
}

func (c campaigns) Lock(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	campaign, ok := c.st.campaigns[id]
	if !ok {
		return nil, escrow.ErrCampaignNotFound
	}
	return &campaign, nil
}

func (c campaigns) Update(_ context.Context, campaign *models.Campaign) error {
	if _, ok := c.st.campaigns[campaign.ID]; !ok {
		return escrow.ErrCampaignNotFound
	}
	campaign.UpdatedAt = c.store.now()
	c.st.campaigns[campaign.ID] = *campaign
	return nil
}

type contributions struct{ *tx }

func (c contributions) Lock(_ context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error) {
	rec, ok := c.st.contributions[contributionKey{campaignID, contributor}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (c contributions) Upsert(_ context.Context, rec *models.Contribution) error {
	key := contributionKey{rec.CampaignID, rec.Contributor}
	now := c.store.now()
	if prev, ok := c.st.contributions[key]; ok {
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	c.st.contributions[key] = *rec
	return nil
}

type custodian struct{ *tx }

func (c custodian) VaultFor(campaignID uuid.UUID) string {
	return c.store.deriver.VaultFor(campaignID)
}

func (c custodian) DeriveVaultAuthority(campaignID uuid.UUID) custody.VaultAuthority {
	return c.store.deriver.Authority(campaignID)
}

func (c custodian) TransferIn(_ context.Context, from, vault string, amount uint64) error {
	return c.move(from, vault, amount, models.TransferKindIn)
}

func (c custodian) TransferOut(_ context.Context, vault, to string, amount uint64, auth custody.VaultAuthority) error {
	if err := c.store.deriver.Check(auth, vault); err != nil {
		return err
	}
	return c.move(vault, to, amount, models.TransferKindOut)
}

func (c custodian) BalanceOf(_ context.Context, account string) (uint64, error) {
	return c.st.balances[account], nil
}

func (c custodian) move(from, to string, amount uint64, kind string) error {
	if c.store.failTransfers != nil {
		return c.store.failTransfers
	}
	if amount == 0 {
		return custody.ErrInvalidAmount
	}
	if c.st.balances[from] < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", custody.ErrInsufficientFunds, from, c.st.balances[from], amount)
	}
	c.st.balances[from] -= amount
	c.st.balances[to] += amount
	c.st.transfers = append(c.st.transfers, models.CustodyTransfer{
		ID:          uuid.New(),
		FromAccount: &from,
		ToAccount:   to,
		Amount:      amount,
		Kind:        kind,
		CreatedAt:   c.store.now(),
	})
	return nil
}

// AuditLog is an in-memory escrow.AuditLogger.
type AuditLog struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *AuditLog) Log(_ context.Context, entry models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *AuditLog) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []models.AuditLog
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}
