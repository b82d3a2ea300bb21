package escrow

import (
	"context"
	"time"

	"github.com/crowdfund-escrow/backend/internal/custody"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/google/uuid"
)

// Store opens units of work. Everything fn does through tx is committed
// together when fn returns nil and discarded otherwise, including custodial
// transfers.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Campaigns() CampaignStore
	Contributions() ContributionStore
	Custodian() Custodian
}

// CampaignStore must return ErrCampaignNotFound (possibly wrapped) for
// unknown ids. Lock reads the record and holds it until the unit of work ends.
type CampaignStore interface {
	Insert(ctx context.Context, c *models.Campaign) error
	Lock(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
}

// ContributionStore.Lock returns (nil, nil) when the pair has no record yet.
type ContributionStore interface {
	Lock(ctx context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error)
	Upsert(ctx context.Context, c *models.Contribution) error
}

// Custodian holds pooled value. Vault spending requires the authority minted
// for that vault.
type Custodian interface {
	VaultFor(campaignID uuid.UUID) string
	DeriveVaultAuthority(campaignID uuid.UUID) custody.VaultAuthority
	TransferIn(ctx context.Context, from, vault string, amount uint64) error
	TransferOut(ctx context.Context, vault, to string, amount uint64, auth custody.VaultAuthority) error
	BalanceOf(ctx context.Context, account string) (uint64, error)
}

// IdentityVerifier confirms that actor authorized the current call.
type IdentityVerifier interface {
	Verify(ctx context.Context, actor string) error
}

type Clock interface {
	Now() time.Time
}

// Reader serves the read side; it needs no unit of work.
type Reader interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, f CampaignFilter) ([]models.Campaign, error)
	GetContribution(ctx context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error)
	ListContributions(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]models.Contribution, error)
	ListContributionsBy(ctx context.Context, contributor string, limit, offset int) ([]models.Contribution, error)
	ListTransfers(ctx context.Context, account string, limit, offset int) ([]models.CustodyTransfer, error)
}

type CampaignFilter struct {
	Creator *string
	Limit   int
	Offset  int
}
