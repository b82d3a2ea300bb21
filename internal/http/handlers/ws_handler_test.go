package handlers

import (
	"testing"

	"github.com/crowdfund-escrow/backend/internal/events"
)

func TestWSClientWants(t *testing.T) {
	const (
		alice    = "0:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
		bob      = "0:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
		campaign = "5f0c6f9e-2b1a-5c3d-9e8f-0a1b2c3d4e5f"
	)

	deposit := events.Event{
		Type:    events.EventDepositCredited,
		Payload: map[string]any{"account": alice, "amount": float64(10)},
	}
	contribution := events.Event{
		Type:    events.EventContributionMade,
		Payload: map[string]any{"campaign": campaign, "contributor": bob},
	}
	otherCampaign := events.Event{
		Type:    events.EventContributionMade,
		Payload: map[string]any{"campaign": "another", "contributor": bob},
	}

	tests := []struct {
		name   string
		client *wsClient
		event  events.Event
		want   bool
	}{
		{"own deposit", &wsClient{account: alice}, deposit, true},
		{"foreign deposit", &wsClient{account: bob}, deposit, false},
		{"foreign deposit, campaign filter", &wsClient{account: bob, campaign: campaign}, deposit, false},
		{"deposit without account", &wsClient{}, events.Event{Type: events.EventDepositCredited, Payload: map[string]any{}}, false},
		{"unfiltered campaign event", &wsClient{account: alice}, contribution, true},
		{"matching campaign filter", &wsClient{account: alice, campaign: campaign}, contribution, true},
		{"other campaign filtered out", &wsClient{account: alice, campaign: campaign}, otherCampaign, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.wants(tt.event); got != tt.want {
				t.Errorf("wants = %v, want %v", got, tt.want)
			}
		})
	}
}
