package escrow

import (
	"math"

	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/google/uuid"
)

// campaignNamespace scopes the name-based campaign ids.
var campaignNamespace = uuid.MustParse("8a3f5c1e-2d4b-5e6f-9a0b-7c8d9e0f1a2b")

// CampaignID derives the id of the campaign a creator opens under title.
// The same (creator, title) pair always maps to the same campaign.
func CampaignID(creator, title string) uuid.UUID {
	return uuid.NewSHA1(campaignNamespace, []byte(creator+"\x00"+title))
}

// NewCampaign validates creation parameters and returns the initial record.
// Text limits are in bytes.
func NewCampaign(creator, title, description string, targetAmount, durationDays uint64, now int64) (*models.Campaign, error) {
	if creator == "" {
		return nil, ErrInvalidIdentity
	}
	if len(title) > models.MaxTitleLength {
		return nil, ErrTitleTooLong
	}
	if len(description) > models.MaxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if targetAmount == 0 {
		return nil, ErrInvalidTargetAmount
	}
	if durationDays < models.MinDurationDays || durationDays > models.MaxDurationDays {
		return nil, ErrInvalidDuration
	}

	return &models.Campaign{
		ID:           CampaignID(creator, title),
		Creator:      creator,
		Title:        title,
		Description:  description,
		TargetAmount: targetAmount,
		StartTime:    now,
		EndTime:      now + int64(durationDays)*models.SecondsPerDay,
	}, nil
}

// RecordContribution applies amount to the campaign totals and returns the
// new total raised. c is left untouched on error.
func RecordContribution(c *models.Campaign, amount uint64, now int64) (uint64, error) {
	if c.HasEnded(now) {
		return 0, ErrCampaignEnded
	}
	if amount == 0 {
		return 0, ErrInvalidContribution
	}
	if c.IsWithdrawn {
		return 0, ErrCampaignAlreadyWithdrawn
	}

	newTotal, ok := addUint64(c.CurrentAmount, amount)
	if !ok {
		return 0, ErrAmountOverflow
	}
	// Hard cap: no pledge may push the total past the goal.
	if newTotal > c.TargetAmount {
		return 0, ErrExceedsTarget
	}

	c.CurrentAmount = newTotal
	if newTotal >= c.TargetAmount {
		c.IsSuccessful = true
	}
	return newTotal, nil
}

// AuthorizeWithdrawal checks that requester may drain the vault and marks the
// campaign withdrawn. The returned amount is the whole vault balance.
func AuthorizeWithdrawal(c *models.Campaign, requester string, now int64, vaultBalance uint64) (uint64, error) {
	if requester != c.Creator {
		return 0, ErrUnauthorizedWithdrawal
	}
	// An ended campaign is withdrawable even when it missed its target.
	if !c.IsSuccessful && !c.HasEnded(now) {
		return 0, ErrWithdrawalNotAllowed
	}
	if c.IsWithdrawn {
		return 0, ErrAlreadyWithdrawn
	}
	if vaultBalance == 0 {
		return 0, ErrNothingToWithdraw
	}

	c.IsWithdrawn = true
	return vaultBalance, nil
}

func addUint64(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}
