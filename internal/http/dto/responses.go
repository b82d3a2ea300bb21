package dto

import (
	"time"

	"github.com/crowdfund-escrow/backend/internal/models"
)

type AuthResponse struct {
	Token     string    `json:"token"`
	Account   string    `json:"account"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ProofPayloadResponse struct {
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type CampaignResponse struct {
	models.CampaignView
	VaultBalance uint64 `json:"vault_balance"`
}

type AmountResponse struct {
	CampaignID string `json:"campaign_id"`
	Amount     uint64 `json:"amount"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
	// DepositMemo is the comment to attach when topping up through the hot wallet.
	DepositMemo   string `json:"deposit_memo"`
	DepositWallet string `json:"deposit_wallet,omitempty"`
}
