package repositories

import (
	"context"
	"fmt"

	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const campaignColumns = `
	id, creator, title, description, target_amount::text, current_amount::text,
	start_time, end_time, is_successful, is_withdrawn, contributors_count,
	vault_address, created_at, updated_at`

type CampaignRepo struct {
	q db.DBTX
}

// NewCampaignRepo works on a pool or inside a transaction.
func NewCampaignRepo(q db.DBTX) *CampaignRepo {
	return &CampaignRepo{q: q}
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO campaigns (
			id, creator, title, description, target_amount, current_amount,
			start_time, end_time, is_successful, is_withdrawn, contributors_count, vault_address
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, c.ID, c.Creator, c.Title, c.Description,
		formatAmount(c.TargetAmount), formatAmount(c.CurrentAmount),
		c.StartTime, c.EndTime, c.IsSuccessful, c.IsWithdrawn, int64(c.ContributorsCount), c.VaultAddress,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return scanCampaign(r.q.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

// GetForUpdate reads the campaign and row-locks it until the transaction ends.
func (r *CampaignRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return scanCampaign(r.q.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id))
}

// Update writes the mutable fields only.
func (r *CampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	err := r.q.QueryRow(ctx, `
		UPDATE campaigns SET
			current_amount = $2::numeric,
			is_successful = $3,
			is_withdrawn = $4,
			contributors_count = $5,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, c.ID, formatAmount(c.CurrentAmount), c.IsSuccessful, c.IsWithdrawn, int64(c.ContributorsCount),
	).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update campaign %s: %w", c.ID, err)
	}
	return nil
}

func (r *CampaignRepo) List(ctx context.Context, creator *string, limit, offset int) ([]models.Campaign, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE ($1::text IS NULL OR creator = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, creator, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectCampaigns(rows)
}

// ListEndedBetween returns campaigns whose deadline falls in (after, until],
// oldest deadline first.
func (r *CampaignRepo) ListEndedBetween(ctx context.Context, after, until int64, limit, offset int) ([]models.Campaign, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE end_time > $1 AND end_time <= $2
		ORDER BY end_time ASC, id ASC LIMIT $3 OFFSET $4
	`, after, until, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectCampaigns(rows)
}

func collectCampaigns(rows pgx.Rows) ([]models.Campaign, error) {
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var (
		c               models.Campaign
		target, current string
		contributors    int64
	)
	err := row.Scan(
		&c.ID, &c.Creator, &c.Title, &c.Description, &target, &current,
		&c.StartTime, &c.EndTime, &c.IsSuccessful, &c.IsWithdrawn, &contributors,
		&c.VaultAddress, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.TargetAmount, err = parseAmount(target); err != nil {
		return nil, err
	}
	if c.CurrentAmount, err = parseAmount(current); err != nil {
		return nil, err
	}
	c.ContributorsCount = uint32(contributors)
	return &c, nil
}
