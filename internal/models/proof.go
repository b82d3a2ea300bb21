package models

import (
	"time"

	"github.com/google/uuid"
)

// TonProofPayload is a one-time nonce the wallet signs during TON Connect login.
type TonProofPayload struct {
	ID        uuid.UUID `json:"id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
	Used      bool      `json:"-"`
}
