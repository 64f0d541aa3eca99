// Package watcher subscribes to the chain node for transfer events on the
// collection contract and feeds them to the ledger's idempotent ingestion.
// The subscription is treated purely as an at-least-once, possibly
// reordered delivery source; correctness comes from idempotent append plus
// block-ordered replay, never from delivery order.
package watcher

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mint-engine/internal/ledger"
	"github.com/mint-engine/internal/logging"
)

// transferTopic is the ERC-721 Transfer(address,address,uint256) signature.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Ingester is the ledger boundary the watcher writes to.
type Ingester interface {
	IngestTransfer(ctx context.Context, input *ledger.TransferInput) error
}

// LogSubscriber is the chain node boundary. Implemented by ethclient.Client.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error)
}

// Watcher ingests transfer events for one fixed contract address.
type Watcher struct {
	client   LogSubscriber
	contract common.Address
	ingester Ingester
	logger   *logging.Logger
}

// New creates a watcher for the given contract
func New(client LogSubscriber, contract common.Address, ingester Ingester, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Watcher{
		client:   client,
		contract: contract,
		ingester: ingester,
		logger:   logger,
	}
}

// Run subscribes and processes logs until the context is cancelled. A
// dropped subscription is re-established with exponential backoff;
// re-delivery of already-seen events is harmless because ingestion is
// idempotent.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.watchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.WithError(err).Warn("Subscription dropped, reconnecting")
		}
	}
}

func (w *Watcher) watchOnce(ctx context.Context) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{w.contract},
		Topics:    [][]common.Hash{{transferTopic}},
	}

	logs := make(chan ethtypes.Log, 64)

	var sub ethereum.Subscription
	subscribe := func() error {
		var err error
		sub, err = w.client.SubscribeFilterLogs(ctx, query, logs)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0 // keep retrying until the context is cancelled

	if err := backoff.Retry(subscribe, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to transfer logs: %w", err)
	}
	defer sub.Unsubscribe()

	w.logger.WithField("contract", w.contract.Hex()).Info("Watching transfer events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case vLog := <-logs:
			w.handleLog(ctx, vLog)
		}
	}
}

// handleLog decodes one log and hands it to the ledger. A bad log or a
// failed ingest is contained here; it must not halt the watch loop.
func (w *Watcher) handleLog(ctx context.Context, vLog ethtypes.Log) {
	input, err := ParseTransferLog(vLog)
	if err != nil {
		w.logger.WithError(err).Warn("Skipping undecodable log")
		return
	}

	if err := w.ingester.IngestTransfer(ctx, input); err != nil {
		w.logger.WithError(err).WithFields(map[string]interface{}{
			"txHash":  input.TransactionHash,
			"tokenId": input.TokenID,
		}).Warn("Failed to ingest transfer event")
	}
}

// ParseTransferLog decodes an ERC-721 Transfer log into a ledger input.
// All three parameters are indexed, so the payload lives in the topics.
func ParseTransferLog(vLog ethtypes.Log) (*ledger.TransferInput, error) {
	if len(vLog.Topics) != 4 {
		return nil, fmt.Errorf("expected 4 topics for ERC-721 transfer, got %d", len(vLog.Topics))
	}
	if vLog.Topics[0] != transferTopic {
		return nil, fmt.Errorf("unexpected event signature %s", vLog.Topics[0].Hex())
	}

	// The ledger schema stores token ids as BIGINT, so reject anything
	// that does not fit a signed 64-bit integer.
	tokenID := new(big.Int).SetBytes(vLog.Topics[3].Bytes())
	if !tokenID.IsInt64() {
		return nil, fmt.Errorf("token id %s out of range", tokenID)
	}

	return &ledger.TransferInput{
		TokenID:         tokenID.Uint64(),
		FromAddress:     common.BytesToAddress(vLog.Topics[1].Bytes()).Hex(),
		ToAddress:       common.BytesToAddress(vLog.Topics[2].Bytes()).Hex(),
		BlockNumber:     vLog.BlockNumber,
		TransactionHash: vLog.TxHash.Hex(),
	}, nil
}
