package ledger

import (
	"context"

	apperrors "github.com/mint-engine/internal/errors"
	"github.com/mint-engine/internal/logging"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

// Store is the persistence boundary for the event ledger.
// Implemented by storage.LedgerRepository.
type Store interface {
	InsertTransfer(ctx context.Context, ev *models.TransferEvent) (bool, error)
	InsertMint(ctx context.Context, rec *models.MintRecord) (bool, error)
	ListTransfers(ctx context.Context) ([]*models.TransferEvent, error)
	GetMint(ctx context.Context, tokenID uint64) (*models.MintRecord, error)
}

// Counters is the boundary for the global mint counter and leaderboard
// cache. Implemented by storage.RedisCache.
type Counters interface {
	IncrTotalMints(ctx context.Context) (int64, error)
	GetTotalMints(ctx context.Context) (int64, error)
	GetLeaderboard(ctx context.Context) ([]types.HolderCount, error)
	SetLeaderboard(ctx context.Context, entries []types.HolderCount) error
	InvalidateLeaderboard(ctx context.Context) error
}

// TransferInput is one transfer event presented by the watcher or a webhook.
type TransferInput struct {
	TokenID         uint64 `json:"tokenId"`
	FromAddress     string `json:"fromAddress"`
	ToAddress       string `json:"toAddress"`
	BlockNumber     uint64 `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
}

// MintInput is one mint fact delivered out-of-band with artifact locations.
type MintInput struct {
	TokenID         uint64 `json:"tokenId"`
	MinterAddress   string `json:"minterAddress"`
	TransactionHash string `json:"transactionHash"`
	ImageURI        string `json:"imageUri"`
	MetadataURI     string `json:"metadataUri"`
}

// Service ties ingestion, reconstruction and the leaderboard together.
type Service struct {
	store    Store
	counters Counters
	logger   *logging.Logger
}

// NewService creates a ledger service. counters may be nil, in which case
// the mint counter and leaderboard cache are skipped.
func NewService(store Store, counters Counters, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Service{store: store, counters: counters, logger: logger}
}

// IngestTransfer validates and appends one transfer event. Re-ingestion of
// an already-seen (tx hash, token id) pair succeeds without effect; derived
// counters move only on first ingestion.
func (s *Service) IngestTransfer(ctx context.Context, input *TransferInput) error {
	if input.TransactionHash == "" {
		return apperrors.NewInvalidInputError("transactionHash", "must not be empty")
	}
	if input.BlockNumber == 0 {
		return apperrors.NewInvalidInputError("blockNumber", "must be positive")
	}
	if !types.IsValidAddress(input.FromAddress) {
		return apperrors.NewInvalidAddressError(input.FromAddress)
	}
	if !types.IsValidAddress(input.ToAddress) {
		return apperrors.NewInvalidAddressError(input.ToAddress)
	}

	ev := &models.TransferEvent{
		TokenID:         input.TokenID,
		FromAddress:     types.NormalizeAddress(input.FromAddress),
		ToAddress:       types.NormalizeAddress(input.ToAddress),
		BlockNumber:     input.BlockNumber,
		TransactionHash: input.TransactionHash,
	}

	inserted, err := s.store.InsertTransfer(ctx, ev)
	if err != nil {
		return err
	}
	if !inserted {
		s.logger.WithFields(map[string]interface{}{
			"txHash":  input.TransactionHash,
			"tokenId": input.TokenID,
		}).Debug("Transfer already recorded, absorbed")
		return nil
	}

	s.invalidateLeaderboard(ctx)

	s.logger.WithFields(map[string]interface{}{
		"tokenId": ev.TokenID,
		"block":   ev.BlockNumber,
		"mint":    ev.IsMint(),
		"gift":    ev.IsGift(),
	}).Info("Transfer event recorded")

	return nil
}

// IngestMint validates and appends one mint record, bumping the global mint
// counter exactly once per token. The counter increment is guarded by the
// insert's row count, not by a read-then-write, so concurrent delivery of
// the same mint cannot double-count.
func (s *Service) IngestMint(ctx context.Context, input *MintInput) error {
	if input.TransactionHash == "" {
		return apperrors.NewInvalidInputError("transactionHash", "must not be empty")
	}
	if !types.IsValidAddress(input.MinterAddress) {
		return apperrors.NewInvalidAddressError(input.MinterAddress)
	}
	if input.ImageURI == "" {
		return apperrors.NewInvalidInputError("imageUri", "must not be empty")
	}
	if input.MetadataURI == "" {
		return apperrors.NewInvalidInputError("metadataUri", "must not be empty")
	}

	rec := &models.MintRecord{
		TokenID:         input.TokenID,
		MinterAddress:   types.NormalizeAddress(input.MinterAddress),
		TransactionHash: input.TransactionHash,
		ImageURI:        input.ImageURI,
		MetadataURI:     input.MetadataURI,
	}

	inserted, err := s.store.InsertMint(ctx, rec)
	if err != nil {
		return err
	}
	if !inserted {
		s.logger.WithField("tokenId", input.TokenID).Debug("Mint already recorded, absorbed")
		return nil
	}

	if s.counters != nil {
		if _, err := s.counters.IncrTotalMints(ctx); err != nil {
			// The record is durable; the counter is derived and can be
			// rebuilt from mint_records.
			s.logger.WithError(err).Warn("Failed to bump total mint counter")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"tokenId": rec.TokenID,
		"minter":  rec.MinterAddress,
	}).Info("Mint recorded")

	return nil
}

// Leaderboard returns the top-n holders by current token count, serving
// from the cache when possible.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]types.HolderCount, error) {
	if s.counters != nil {
		if cached, err := s.counters.GetLeaderboard(ctx); err == nil && cached != nil {
			if n > 0 && len(cached) > n {
				cached = cached[:n]
			}
			return cached, nil
		}
	}

	events, err := s.store.ListTransfers(ctx)
	if err != nil {
		return nil, err
	}

	entries := Leaderboard(HolderCounts(ReplayOwnership(events)), 0)

	if s.counters != nil {
		if err := s.counters.SetLeaderboard(ctx, entries); err != nil {
			s.logger.WithError(err).Warn("Failed to cache leaderboard")
		}
	}

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// Mint returns the recorded mint for a token, artifact locations included.
func (s *Service) Mint(ctx context.Context, tokenID uint64) (*models.MintRecord, error) {
	return s.store.GetMint(ctx, tokenID)
}

// TotalMints returns the global mint counter.
func (s *Service) TotalMints(ctx context.Context) (int64, error) {
	if s.counters == nil {
		return 0, nil
	}
	return s.counters.GetTotalMints(ctx)
}

func (s *Service) invalidateLeaderboard(ctx context.Context) {
	if s.counters == nil {
		return
	}
	if err := s.counters.InvalidateLeaderboard(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate leaderboard cache")
	}
}
