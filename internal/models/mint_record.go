package models

import "time"

// MintRecord represents one successful mint with its artifact locations.
// Keyed by token id; re-ingestion of the same token id is a no-op.
type MintRecord struct {
	TokenID         uint64    `json:"tokenId" db:"token_id"`
	MinterAddress   string    `json:"minterAddress" db:"minter_address"`
	TransactionHash string    `json:"transactionHash" db:"transaction_hash"`
	ImageURI        string    `json:"imageUri" db:"image_uri"`
	MetadataURI     string    `json:"metadataUri" db:"metadata_uri"`
	MintedAt        time.Time `json:"mintedAt" db:"minted_at"`
}
