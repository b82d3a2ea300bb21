package events

import "context"

// StreamEscrow carries every escrow lifecycle event.
const StreamEscrow = "events:escrow"

// Event types
const (
	EventCampaignCreated      = "campaign_created"
	EventContributionMade     = "contribution_made"
	EventFundsWithdrawn       = "funds_withdrawn"
	EventContributionRefunded = "contribution_refunded"
	EventCampaignEnded        = "campaign_ended"
	EventDepositCredited      = "deposit_credited"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
