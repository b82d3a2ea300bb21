package models

import (
	"time"

	"github.com/google/uuid"
)

// Contribution is one contributor's cumulative, not yet refunded pledge.
// A refunded contribution keeps its row with Amount == 0.
type Contribution struct {
	CampaignID  uuid.UUID `json:"campaign_id"`
	Contributor string    `json:"contributor"`
	Amount      uint64    `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsEmpty is true for fresh and fully refunded contributions alike.
func (c *Contribution) IsEmpty() bool {
	return c.Amount == 0
}
