package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"

	EntityCampaign = "campaign"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id"`
	Actor      *string    `json:"actor,omitempty"` // account address
	ActorType  string     `json:"actor_type"`      // user/system
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	Meta       any        `json:"meta,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
