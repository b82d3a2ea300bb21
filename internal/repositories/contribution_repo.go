package repositories

import (
	"context"
	"errors"

	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const contributionColumns = `campaign_id, contributor, amount::text, created_at, updated_at`

type ContributionRepo struct {
	q db.DBTX
}

func NewContributionRepo(q db.DBTX) *ContributionRepo {
	return &ContributionRepo{q: q}
}

func (r *ContributionRepo) Get(ctx context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error) {
	return scanContribution(r.q.QueryRow(ctx, `
		SELECT `+contributionColumns+` FROM contributions
		WHERE campaign_id = $1 AND contributor = $2
	`, campaignID, contributor))
}

// GetForUpdate row-locks the contribution. It returns (nil, nil) when the
// contributor never pledged to the campaign.
func (r *ContributionRepo) GetForUpdate(ctx context.Context, campaignID uuid.UUID, contributor string) (*models.Contribution, error) {
	c, err := scanContribution(r.q.QueryRow(ctx, `
		SELECT `+contributionColumns+` FROM contributions
		WHERE campaign_id = $1 AND contributor = $2
		FOR UPDATE
	`, campaignID, contributor))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *ContributionRepo) Upsert(ctx context.Context, c *models.Contribution) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO contributions (campaign_id, contributor, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (campaign_id, contributor) DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = now()
		RETURNING created_at, updated_at
	`, c.CampaignID, c.Contributor, formatAmount(c.Amount)).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ContributionRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]models.Contribution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+contributionColumns+` FROM contributions
		WHERE campaign_id = $1
		ORDER BY created_at ASC, contributor ASC LIMIT $2 OFFSET $3
	`, campaignID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectContributions(rows)
}

func (r *ContributionRepo) ListByContributor(ctx context.Context, contributor string, limit, offset int) ([]models.Contribution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+contributionColumns+` FROM contributions
		WHERE contributor = $1
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3
	`, contributor, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectContributions(rows)
}

func collectContributions(rows pgx.Rows) ([]models.Contribution, error) {
	defer rows.Close()

	var out []models.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanContribution(row pgx.Row) (*models.Contribution, error) {
	var (
		c      models.Contribution
		amount string
	)
	if err := row.Scan(&c.CampaignID, &c.Contributor, &amount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if c.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &c, nil
}
