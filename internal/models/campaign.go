package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign lifecycle states. They are derived from the stored flags and the
// clock, never persisted.
const (
	CampaignStateOpen              = "open"
	CampaignStateSuccessful        = "successful"
	CampaignStateEndedUnsuccessful = "ended_unsuccessful"
	CampaignStateWithdrawn         = "withdrawn"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
	MinDurationDays      = 1
	MaxDurationDays      = 365
	SecondsPerDay        = 24 * 60 * 60
)

// Valid state transitions: from -> []to
var ValidCampaignTransitions = map[string][]string{
	CampaignStateOpen:              {CampaignStateSuccessful, CampaignStateEndedUnsuccessful},
	CampaignStateSuccessful:        {CampaignStateWithdrawn},
	CampaignStateEndedUnsuccessful: {CampaignStateWithdrawn},
	CampaignStateWithdrawn:         {},
}

func IsValidCampaignTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type Campaign struct {
	ID                uuid.UUID `json:"id"`
	Creator           string    `json:"creator"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	TargetAmount      uint64    `json:"target_amount"`
	CurrentAmount     uint64    `json:"current_amount"`
	StartTime         int64     `json:"start_time"`
	EndTime           int64     `json:"end_time"`
	IsSuccessful      bool      `json:"is_successful"`
	IsWithdrawn       bool      `json:"is_withdrawn"`
	ContributorsCount uint32    `json:"contributors_count"`
	VaultAddress      string    `json:"vault_address"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// State reports the lifecycle state of the campaign at the given unix time.
func (c *Campaign) State(now int64) string {
	switch {
	case c.IsWithdrawn:
		return CampaignStateWithdrawn
	case c.IsSuccessful:
		return CampaignStateSuccessful
	case now >= c.EndTime:
		return CampaignStateEndedUnsuccessful
	default:
		return CampaignStateOpen
	}
}

// HasEnded reports whether the deadline has passed at now.
func (c *Campaign) HasEnded(now int64) bool {
	return now >= c.EndTime
}

// CampaignView is a campaign with its derived state, as served by read APIs.
type CampaignView struct {
	Campaign
	State string `json:"state"`
}
