package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/mint-engine/internal/errors"
	"github.com/mint-engine/internal/models"
)

// LedgerRepository handles the append-only event ledger: transfer events and
// mint records. Uniqueness is enforced at the store (transfer_events unique
// on (transaction_hash, token_id), mint_records keyed by token_id) so
// concurrent delivery of the same real-world event records exactly one row.
type LedgerRepository struct {
	db *PostgresDB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *PostgresDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// InsertTransfer appends a transfer event. Returns true when the event was
// newly recorded, false when the natural key already existed.
func (r *LedgerRepository) InsertTransfer(ctx context.Context, ev *models.TransferEvent) (bool, error) {
	query := `
		INSERT INTO transfer_events (token_id, from_address, to_address, block_number, transaction_hash, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_hash, token_id) DO NOTHING
	`

	ingestedAt := ev.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}

	tag, err := r.db.Pool().Exec(ctx, query,
		ev.TokenID,
		ev.FromAddress,
		ev.ToAddress,
		ev.BlockNumber,
		ev.TransactionHash,
		ingestedAt,
	)
	if err != nil {
		return false, apperrors.NewUnavailableError("event ledger", err)
	}

	return tag.RowsAffected() > 0, nil
}

// InsertMint appends a mint record. Returns true when the token id was newly
// recorded, false on a duplicate.
func (r *LedgerRepository) InsertMint(ctx context.Context, rec *models.MintRecord) (bool, error) {
	query := `
		INSERT INTO mint_records (token_id, minter_address, transaction_hash, image_uri, metadata_uri, minted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_id) DO NOTHING
	`

	mintedAt := rec.MintedAt
	if mintedAt.IsZero() {
		mintedAt = time.Now().UTC()
	}

	tag, err := r.db.Pool().Exec(ctx, query,
		rec.TokenID,
		rec.MinterAddress,
		rec.TransactionHash,
		rec.ImageURI,
		rec.MetadataURI,
		mintedAt,
	)
	if err != nil {
		return false, apperrors.NewUnavailableError("event ledger", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListTransfers returns the full ledger ordered by block number, ties broken
// by ingestion order. Replay over this ordering is the canonical ownership
// computation.
func (r *LedgerRepository) ListTransfers(ctx context.Context) ([]*models.TransferEvent, error) {
	query := `
		SELECT id, token_id, from_address, to_address, block_number, transaction_hash, ingested_at
		FROM transfer_events
		ORDER BY block_number ASC, id ASC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewUnavailableError("event ledger", err)
	}
	defer rows.Close()

	var events []*models.TransferEvent
	for rows.Next() {
		var ev models.TransferEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.TokenID,
			&ev.FromAddress,
			&ev.ToAddress,
			&ev.BlockNumber,
			&ev.TransactionHash,
			&ev.IngestedAt,
		); err != nil {
			return nil, apperrors.NewUnavailableError("event ledger", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUnavailableError("event ledger", err)
	}

	return events, nil
}

// ListTransfersAfter returns ledger events with block number strictly above
// the given checkpoint, in replay order. This is the aggregation window.
func (r *LedgerRepository) ListTransfersAfter(ctx context.Context, blockNumber uint64) ([]*models.TransferEvent, error) {
	query := `
		SELECT id, token_id, from_address, to_address, block_number, transaction_hash, ingested_at
		FROM transfer_events
		WHERE block_number > $1
		ORDER BY block_number ASC, id ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, blockNumber)
	if err != nil {
		return nil, apperrors.NewUnavailableError("event ledger", err)
	}
	defer rows.Close()

	var events []*models.TransferEvent
	for rows.Next() {
		var ev models.TransferEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.TokenID,
			&ev.FromAddress,
			&ev.ToAddress,
			&ev.BlockNumber,
			&ev.TransactionHash,
			&ev.IngestedAt,
		); err != nil {
			return nil, apperrors.NewUnavailableError("event ledger", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUnavailableError("event ledger", err)
	}

	return events, nil
}

// GetMint retrieves a mint record by token id
func (r *LedgerRepository) GetMint(ctx context.Context, tokenID uint64) (*models.MintRecord, error) {
	query := `
		SELECT token_id, minter_address, transaction_hash, image_uri, metadata_uri, minted_at
		FROM mint_records
		WHERE token_id = $1
	`

	var rec models.MintRecord
	err := r.db.Pool().QueryRow(ctx, query, tokenID).Scan(
		&rec.TokenID,
		&rec.MinterAddress,
		&rec.TransactionHash,
		&rec.ImageURI,
		&rec.MetadataURI,
		&rec.MintedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("mint", fmt.Sprintf("%d", tokenID))
		}
		return nil, apperrors.NewUnavailableError("event ledger", err)
	}

	return &rec, nil
}
