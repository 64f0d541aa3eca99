package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/mint-engine/internal/errors"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

// JobRepository handles render job persistence. It is the durable queue
// store: claims are serialized here with FOR UPDATE SKIP LOCKED so exactly
// one worker observes the waiting -> active transition for a given job.
type JobRepository struct {
	db    *PostgresDB
	lease time.Duration
}

// NewJobRepository creates a new job repository. lease bounds how long a
// claimed job may sit in active without a progress write before it becomes
// reclaimable.
func NewJobRepository(db *PostgresDB, lease time.Duration) *JobRepository {
	if lease <= 0 {
		lease = 15 * time.Minute
	}
	return &JobRepository{db: db, lease: lease}
}

const jobColumns = `job_id, type, owner_address, settings, state, progress,
	   result, failure_reason, claimed_by, claim_expires_at, created_at, completed_at`

// Create inserts a new job in waiting state
func (r *JobRepository) Create(ctx context.Context, job *models.RenderJob) error {
	query := `
		INSERT INTO render_jobs (job_id, type, owner_address, settings, state, progress, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		job.JobID,
		job.Type,
		job.OwnerAddress,
		job.Settings,
		job.State,
		job.Progress,
		job.CreatedAt,
	)

	if err != nil {
		return apperrors.NewUnavailableError("queue store", err)
	}

	return nil
}

// GetByID retrieves a job by ID. Unknown ids map to a not-found error,
// connectivity failures to a retryable unavailable error.
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*models.RenderJob, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs WHERE job_id = $1`

	row := r.db.Pool().QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("job", jobID)
		}
		return nil, apperrors.NewUnavailableError("queue store", err)
	}

	return job, nil
}

// ClaimNext atomically claims the oldest waiting job for workerID and
// transitions it to active. Returns (nil, nil) when no waiting job exists.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID string) (*models.RenderJob, error) {
	query := `
		UPDATE render_jobs
		SET state = $1, claimed_by = $2, claim_expires_at = now() + $3
		WHERE job_id = (
			SELECT job_id FROM render_jobs
			WHERE state = $4
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	row := r.db.Pool().QueryRow(ctx, query,
		types.JobStateActive, workerID, r.lease, types.JobStateWaiting)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewUnavailableError("queue store", err)
	}

	return job, nil
}

// UpdateProgress writes a progress milestone for an active job and renews
// its claim lease. Progress is clamped monotonic at the store so a late
// write can never move it backwards.
func (r *JobRepository) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	query := `
		UPDATE render_jobs
		SET progress = GREATEST(progress, $2), claim_expires_at = now() + $3
		WHERE job_id = $1 AND state = $4
	`

	tag, err := r.db.Pool().Exec(ctx, query, jobID, progress, r.lease, types.JobStateActive)
	if err != nil {
		return apperrors.NewUnavailableError("queue store", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not active", jobID)
	}

	return nil
}

// Complete transitions an active job to completed with its result attached.
// Terminal states are immutable: the guard on state makes a second terminal
// transition fail instead of overwriting.
func (r *JobRepository) Complete(ctx context.Context, jobID string, result *types.ArtifactRefs) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	query := `
		UPDATE render_jobs
		SET state = $2, progress = 100, result = $3, completed_at = now(),
		    claimed_by = NULL, claim_expires_at = NULL
		WHERE job_id = $1 AND state = $4
	`

	tag, err := r.db.Pool().Exec(ctx, query, jobID, types.JobStateCompleted, resultJSON, types.JobStateActive)
	if err != nil {
		return apperrors.NewUnavailableError("queue store", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not active", jobID)
	}

	return nil
}

// Fail transitions an active job to failed with a descriptive reason.
func (r *JobRepository) Fail(ctx context.Context, jobID string, reason string) error {
	query := `
		UPDATE render_jobs
		SET state = $2, failure_reason = $3, completed_at = now(),
		    claimed_by = NULL, claim_expires_at = NULL
		WHERE job_id = $1 AND state = $4
	`

	tag, err := r.db.Pool().Exec(ctx, query, jobID, types.JobStateFailed, reason, types.JobStateActive)
	if err != nil {
		return apperrors.NewUnavailableError("queue store", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not active", jobID)
	}

	return nil
}

// ReclaimExpired returns active jobs whose claim lease has lapsed to
// waiting so another worker can pick them up after a crash.
func (r *JobRepository) ReclaimExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE render_jobs
		SET state = $1, claimed_by = NULL, claim_expires_at = NULL
		WHERE state = $2 AND claim_expires_at < now()
	`

	tag, err := r.db.Pool().Exec(ctx, query, types.JobStateWaiting, types.JobStateActive)
	if err != nil {
		return 0, apperrors.NewUnavailableError("queue store", err)
	}

	return tag.RowsAffected(), nil
}

// scanJob scans one job row including nullable result and claim columns
func scanJob(row pgx.Row) (*models.RenderJob, error) {
	var job models.RenderJob
	var resultJSON []byte

	err := row.Scan(
		&job.JobID,
		&job.Type,
		&job.OwnerAddress,
		&job.Settings,
		&job.State,
		&job.Progress,
		&resultJSON,
		&job.FailureReason,
		&job.ClaimedBy,
		&job.ClaimExpiresAt,
		&job.CreatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		var refs types.ArtifactRefs
		if err := json.Unmarshal(resultJSON, &refs); err != nil {
			return nil, fmt.Errorf("failed to decode job result: %w", err)
		}
		job.Result = &refs
	}

	return &job, nil
}
