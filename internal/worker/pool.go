// Package worker implements the render worker pool: independent claim
// loops against the shared queue store, with per-job failure containment.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mint-engine/internal/job"
	"github.com/mint-engine/internal/logging"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

// Store is the queue store boundary the workers rely on. ClaimNext must be
// atomic: exactly one caller observes the waiting -> active transition for
// a given job. That atomicity is the only concurrency-safety requirement
// the pool has. Implemented by storage.JobRepository.
type Store interface {
	ClaimNext(ctx context.Context, workerID string) (*models.RenderJob, error)
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	Complete(ctx context.Context, jobID string, result *types.ArtifactRefs) error
	Fail(ctx context.Context, jobID string, reason string) error
	ReclaimExpired(ctx context.Context) (int64, error)
}

// Config holds worker pool configuration
type Config struct {
	Workers       int
	PollInterval  time.Duration
	RenderTimeout time.Duration
}

// Pool runs a fixed number of claim loops against the shared store.
type Pool struct {
	store      Store
	dispatcher *job.Dispatcher
	workers    int
	poll       time.Duration
	timeout    time.Duration
	logger     *logging.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a worker pool
func NewPool(store Store, dispatcher *job.Dispatcher, cfg *Config, logger *logging.Logger) (*Pool, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 1 * time.Second
	}
	timeout := cfg.RenderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Pool{
		store:      store,
		dispatcher: dispatcher,
		workers:    workers,
		poll:       poll,
		timeout:    timeout,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}, nil
}

// Start launches the claim loops and the lease reclaimer.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pool already started")
	}
	p.running = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		workerID := fmt.Sprintf("worker-%s", uuid.New().String()[:8])
		p.wg.Add(1)
		go p.claimLoop(ctx, workerID)
	}

	p.wg.Add(1)
	go p.reclaimLoop(ctx)

	p.logger.WithField("workers", p.workers).Info("Render worker pool started")
	return nil
}

// Stop signals all loops to exit and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Render worker pool stopped")
}

// claimLoop repeatedly claims the oldest waiting job. When no work is
// available it waits on the ticker instead of busy-spinning.
func (p *Pool) claimLoop(ctx context.Context, workerID string) {
	defer p.wg.Done()

	log := p.logger.WithField("worker", workerID)
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			claimed, err := p.store.ClaimNext(ctx, workerID)
			if err != nil {
				// Store connectivity failures must not kill the loop.
				log.WithError(err).Warn("Claim attempt failed")
				continue
			}
			if claimed == nil {
				continue
			}
			p.processJob(ctx, log, claimed)
		}
	}
}

// processJob runs one claimed job. Every failure mode, panics included, is
// converted into a failed transition so one bad job never stops the pool.
func (p *Pool) processJob(ctx context.Context, log *logging.Logger, claimed *models.RenderJob) {
	log = log.WithField("jobId", claimed.JobID)

	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("render panicked: %v", r)
			log.Error(reason)
			if err := p.store.Fail(ctx, claimed.JobID, reason); err != nil {
				log.WithError(err).Error("Failed to mark panicked job as failed")
			}
		}
	}()

	executor, ok := p.dispatcher.Lookup(claimed.Type)
	if !ok {
		reason := fmt.Sprintf("no executor registered for job type %q", claimed.Type)
		log.Warn(reason)
		if err := p.store.Fail(ctx, claimed.JobID, reason); err != nil {
			log.WithError(err).Error("Failed to mark job as failed")
		}
		return
	}

	// Bound the render so a stuck pipeline deterministically fails instead
	// of holding the worker forever.
	renderCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	report := func(progress int) {
		if err := p.store.UpdateProgress(ctx, claimed.JobID, progress); err != nil {
			log.WithError(err).Warn("Failed to write progress milestone")
		}
	}

	log.Info("Job claimed, rendering")

	result, err := executor.Execute(renderCtx, claimed, report)
	if err != nil {
		reason := err.Error()
		if renderCtx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("render timed out after %v", p.timeout)
		}
		log.WithField("reason", reason).Warn("Render failed")
		if failErr := p.store.Fail(ctx, claimed.JobID, reason); failErr != nil {
			log.WithError(failErr).Error("Failed to mark job as failed")
		}
		return
	}

	if err := p.store.Complete(ctx, claimed.JobID, result); err != nil {
		log.WithError(err).Error("Failed to mark job as completed")
		return
	}

	log.Info("Job completed")
}

// reclaimLoop periodically returns jobs with lapsed claim leases to
// waiting, so a crashed worker does not strand them in active.
func (p *Pool) reclaimLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			reclaimed, err := p.store.ReclaimExpired(ctx)
			if err != nil {
				p.logger.WithError(err).Warn("Lease reclaim failed")
				continue
			}
			if reclaimed > 0 {
				p.logger.WithField("count", reclaimed).Warn("Reclaimed jobs with expired claim leases")
			}
		}
	}
}
