package dto

import "github.com/crowdfund-escrow/backend/internal/ton"

// TonProofRequest is the TON Connect wallet account plus its ton_proof item.
type TonProofRequest struct {
	ton.ProofData
}

type CreateCampaignRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	TargetAmount uint64 `json:"target_amount"` // nanoTON
	DurationDays uint64 `json:"duration_days"`
}

type ContributeRequest struct {
	Amount uint64 `json:"amount"` // nanoTON
}
