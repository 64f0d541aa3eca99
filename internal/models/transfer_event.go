package models

import (
	"time"

	"github.com/mint-engine/internal/types"
)

// TransferEvent represents one observed on-chain ownership change of a
// collection token. Events are append-only; the (tx hash, token id) pair is
// the natural dedup key.
type TransferEvent struct {
	ID              int64     `json:"id" db:"id"`
	TokenID         uint64    `json:"tokenId" db:"token_id"`
	FromAddress     string    `json:"fromAddress" db:"from_address"`
	ToAddress       string    `json:"toAddress" db:"to_address"`
	BlockNumber     uint64    `json:"blockNumber" db:"block_number"`
	TransactionHash string    `json:"transactionHash" db:"transaction_hash"`
	IngestedAt      time.Time `json:"ingestedAt" db:"ingested_at"`
}

// IsMint reports whether the event minted the token (transfer from the
// zero address).
func (e *TransferEvent) IsMint() bool {
	return types.IsZeroAddress(e.FromAddress)
}

// IsGift reports whether the event moved the token between two distinct
// non-zero holders.
func (e *TransferEvent) IsGift() bool {
	return !e.IsMint() &&
		types.NormalizeAddress(e.FromAddress) != types.NormalizeAddress(e.ToAddress)
}
