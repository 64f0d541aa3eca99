// Package job implements render job submission and status queries against
// the durable queue store.
package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/mint-engine/internal/errors"
	"github.com/mint-engine/internal/logging"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

// Store is the queue store boundary used by submission and status queries.
// Implemented by storage.JobRepository.
type Store interface {
	Create(ctx context.Context, job *models.RenderJob) error
	GetByID(ctx context.Context, jobID string) (*models.RenderJob, error)
}

// SubmitInput represents a render job submission.
type SubmitInput struct {
	Type         types.JobType   `json:"type"`
	OwnerAddress string          `json:"ownerAddress"`
	Settings     json.RawMessage `json:"settings"`
}

// SubmitResult returns the id of the queued job.
type SubmitResult struct {
	JobID string         `json:"jobId"`
	State types.JobState `json:"state"`
}

// StatusResult is the client-pollable view of a job.
type StatusResult struct {
	JobID         string              `json:"jobId"`
	State         types.JobState      `json:"state"`
	Progress      *int                `json:"progress,omitempty"`
	Result        *types.ArtifactRefs `json:"result,omitempty"`
	FailureReason *string             `json:"failureReason,omitempty"`
}

// Service handles job submission and status queries. Submission never
// blocks on rendering: it performs one bounded store insert and returns.
type Service struct {
	store  Store
	logger *logging.Logger
}

// NewService creates a job service
func NewService(store Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Service{store: store, logger: logger}
}

// Submit validates the request and atomically inserts a waiting job,
// returning its id immediately.
func (s *Service) Submit(ctx context.Context, input *SubmitInput) (*SubmitResult, error) {
	jobType := input.Type
	if jobType == "" {
		jobType = types.JobTypeRender
	}
	if jobType != types.JobTypeRender {
		return nil, apperrors.NewInvalidInputError("type", "unknown job type")
	}
	if !types.IsValidAddress(input.OwnerAddress) {
		return nil, apperrors.NewInvalidAddressError(input.OwnerAddress)
	}
	if err := validateSettings(input.Settings); err != nil {
		return nil, err
	}

	record := &models.RenderJob{
		JobID:        uuid.New().String(),
		Type:         jobType,
		OwnerAddress: types.NormalizeAddress(input.OwnerAddress),
		Settings:     input.Settings,
		State:        types.JobStateWaiting,
		Progress:     0,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"jobId": record.JobID,
		"owner": record.OwnerAddress,
	}).Info("Render job queued")

	return &SubmitResult{JobID: record.JobID, State: record.State}, nil
}

// Status returns the current state of a job without mutating it. Unknown
// ids surface as not-found; store connectivity failures as retryable
// unavailability, so callers can tell outage from render failure.
func (s *Service) Status(ctx context.Context, jobID string) (*StatusResult, error) {
	if jobID == "" {
		return nil, apperrors.NewInvalidInputError("jobId", "must not be empty")
	}

	record, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		JobID: record.JobID,
		State: record.State,
	}

	switch record.State {
	case types.JobStateCompleted:
		result.Result = record.Result
	case types.JobStateFailed:
		result.FailureReason = record.FailureReason
	default:
		progress := record.Progress
		result.Progress = &progress
	}

	return result, nil
}

// validateSettings requires a non-empty JSON object payload
func validateSettings(settings json.RawMessage) error {
	if len(settings) == 0 {
		return apperrors.NewInvalidInputError("settings", "must not be empty")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(settings, &decoded); err != nil {
		return apperrors.NewInvalidInputError("settings", "must be a JSON object")
	}
	if len(decoded) == 0 {
		return apperrors.NewInvalidInputError("settings", "must not be empty")
	}

	return nil
}
