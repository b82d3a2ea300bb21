package models

import (
	"time"

	"github.com/google/uuid"
)

// Custody transfer kinds
const (
	TransferKindDeposit = "deposit"      // chain -> account, credited by the indexer
	TransferKindIn      = "transfer_in"  // account -> vault
	TransferKindOut     = "transfer_out" // vault -> account, requires vault authority
)

type CustodyAccount struct {
	Account   string    `json:"account"` // raw: 0:<hex>
	Balance   uint64    `json:"balance"` // nanoTON
	UpdatedAt time.Time `json:"updated_at"`
}

type CustodyTransfer struct {
	ID          uuid.UUID `json:"id"`
	FromAccount *string   `json:"from_account,omitempty"` // nil for deposits
	ToAccount   string    `json:"to_account"`
	Amount      uint64    `json:"amount"`
	Kind        string    `json:"kind"`
	Reference   *string   `json:"reference,omitempty"` // tx LT for deposits
	CreatedAt   time.Time `json:"created_at"`
}
