package escrow

import (
	"math"

	"github.com/crowdfund-escrow/backend/internal/models"
)

// UpsertContribution adds amount to the contributor's record, creating it if
// existing is nil. A record holding zero (new or fully refunded) counts as a
// new contributor on the campaign. Neither c nor existing is modified on error.
func UpsertContribution(c *models.Campaign, existing *models.Contribution, contributor string, amount uint64) (*models.Contribution, error) {
	rec := models.Contribution{CampaignID: c.ID, Contributor: contributor}
	if existing != nil {
		rec = *existing
	}

	newAmount, ok := addUint64(rec.Amount, amount)
	if !ok {
		return nil, ErrAmountOverflow
	}

	if rec.IsEmpty() {
		if c.ContributorsCount == math.MaxUint32 {
			return nil, ErrContributorsOverflow
		}
		c.ContributorsCount++
	}
	rec.Amount = newAmount
	return &rec, nil
}

// AuthorizeRefund checks that the contribution can be paid back, zeroes it and
// removes it from the campaign total. It returns the amount to transfer.
func AuthorizeRefund(c *models.Campaign, contribution *models.Contribution, now int64) (uint64, error) {
	if !c.HasEnded(now) {
		return 0, ErrCampaignStillActive
	}
	if c.IsSuccessful {
		return 0, ErrCampaignWasSuccessful
	}
	if contribution == nil || contribution.IsEmpty() {
		return 0, ErrNothingToRefund
	}

	amount := contribution.Amount
	if c.CurrentAmount < amount {
		return 0, ErrAmountUnderflow
	}

	c.CurrentAmount -= amount
	contribution.Amount = 0
	return amount, nil
}
