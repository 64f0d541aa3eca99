// Package relayer implements the aggregator/relayer: on a fixed schedule it
// folds the ledger events accumulated since the last checkpoint into one
// batched on-chain update, and advances the checkpoint only after the
// submission is confirmed.
package relayer

import (
	"context"
	"sort"
	"time"

	"github.com/mint-engine/internal/ledger"
	"github.com/mint-engine/internal/logging"
	"github.com/mint-engine/internal/models"
	"github.com/robfig/cron/v3"
)

// Window reads the slice of ledger events above a checkpoint.
// Implemented by storage.LedgerRepository.
type Window interface {
	ListTransfersAfter(ctx context.Context, blockNumber uint64) ([]*models.TransferEvent, error)
}

// Checkpoint tracks relay progress. Implemented by storage.CheckpointRepository.
type Checkpoint interface {
	Get(ctx context.Context) (uint64, error)
	Advance(ctx context.Context, blockNumber uint64) error
}

// Submitter performs the one outbound on-chain call per run. A retried
// batch carries the same window, so submissions must be safe to repeat.
type Submitter interface {
	Submit(ctx context.Context, batch *Batch) error
}

// Batch is the folded summary of one aggregation window.
type Batch struct {
	ThroughBlock uint64
	MintCount    uint64
	GiftCount    uint64
	Owners       map[uint64]string // final owner per token in the window
}

// Fold collapses a window of events into one batch: per-token final owner
// by chain order, mint/gift tallies, and the highest block covered.
func Fold(events []*models.TransferEvent) *Batch {
	batch := &Batch{Owners: ledger.ReplayOwnership(events)}

	for _, ev := range events {
		if ev.BlockNumber > batch.ThroughBlock {
			batch.ThroughBlock = ev.BlockNumber
		}
		if ev.IsMint() {
			batch.MintCount++
		} else if ev.IsGift() {
			batch.GiftCount++
		}
	}

	return batch
}

// SortedOwners returns the batch ownership as parallel slices ordered by
// token id, the deterministic layout the on-chain call expects.
func (b *Batch) SortedOwners() (tokenIDs []uint64, owners []string) {
	tokenIDs = make([]uint64, 0, len(b.Owners))
	for tokenID := range b.Owners {
		tokenIDs = append(tokenIDs, tokenID)
	}
	sort.Slice(tokenIDs, func(i, j int) bool { return tokenIDs[i] < tokenIDs[j] })

	owners = make([]string, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		owners[i] = b.Owners[tokenID]
	}
	return tokenIDs, owners
}

// Relayer runs scheduled aggregation runs.
type Relayer struct {
	window     Window
	checkpoint Checkpoint
	submitter  Submitter
	timeout    time.Duration
	logger     *logging.Logger
	cron       *cron.Cron
}

// New creates a relayer
func New(window Window, checkpoint Checkpoint, submitter Submitter, submitTimeout time.Duration, logger *logging.Logger) *Relayer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if submitTimeout <= 0 {
		submitTimeout = 2 * time.Minute
	}
	return &Relayer{
		window:     window,
		checkpoint: checkpoint,
		submitter:  submitter,
		timeout:    submitTimeout,
		logger:     logger,
	}
}

// Start schedules runs on the given cron expression ("@daily" in this
// deployment). Runs never overlap: a run still in flight makes the next
// tick skip.
func (r *Relayer) Start(ctx context.Context, schedule string) error {
	r.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.WithError(err).Error("Aggregation run failed")
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.WithField("schedule", schedule).Info("Relayer scheduled")
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (r *Relayer) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce performs one aggregation run. An empty window is a no-op: no
// relay call, checkpoint untouched. A failed submission leaves the
// checkpoint where it was, so the same window is retried next run
// (at-least-once relay semantics).
func (r *Relayer) RunOnce(ctx context.Context) error {
	since, err := r.checkpoint.Get(ctx)
	if err != nil {
		return err
	}

	events, err := r.window.ListTransfersAfter(ctx, since)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		r.logger.WithField("checkpoint", since).Info("No accumulated events, skipping relay")
		return nil
	}

	batch := Fold(events)

	log := r.logger.WithFields(map[string]interface{}{
		"checkpoint":   since,
		"throughBlock": batch.ThroughBlock,
		"events":       len(events),
		"mints":        batch.MintCount,
		"gifts":        batch.GiftCount,
	})
	log.Info("Submitting batched update")

	submitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.submitter.Submit(submitCtx, batch); err != nil {
		// Checkpoint stays put; the next run retries the same window.
		return err
	}

	if err := r.checkpoint.Advance(ctx, batch.ThroughBlock); err != nil {
		return err
	}

	log.Info("Batch relayed, checkpoint advanced")
	return nil
}
