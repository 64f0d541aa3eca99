package storage

import (
	"context"

	apperrors "github.com/mint-engine/internal/errors"
)

// CheckpointRepository tracks the highest block number whose events have
// been successfully relayed. A single row holds the checkpoint; it only
// moves forward, and only after a confirmed relay.
type CheckpointRepository struct {
	db *PostgresDB
}

// NewCheckpointRepository creates a new checkpoint repository
func NewCheckpointRepository(db *PostgresDB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// Get returns the last relayed block number. The migration seeds the row at
// zero, so a fresh deployment relays from the beginning of the ledger.
func (r *CheckpointRepository) Get(ctx context.Context) (uint64, error) {
	query := `SELECT last_relayed_block FROM relay_checkpoint WHERE id = 1`

	var block uint64
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&block); err != nil {
		return 0, apperrors.NewUnavailableError("checkpoint store", err)
	}

	return block, nil
}

// Advance moves the checkpoint to blockNumber. The guard keeps the
// checkpoint monotonic if two runs ever race.
func (r *CheckpointRepository) Advance(ctx context.Context, blockNumber uint64) error {
	query := `
		UPDATE relay_checkpoint
		SET last_relayed_block = $1, updated_at = now()
		WHERE id = 1 AND last_relayed_block < $1
	`

	if _, err := r.db.Pool().Exec(ctx, query, blockNumber); err != nil {
		return apperrors.NewUnavailableError("checkpoint store", err)
	}

	return nil
}
