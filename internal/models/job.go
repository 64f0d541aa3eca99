package models

import (
	"encoding/json"
	"time"

	"github.com/mint-engine/internal/types"
)

// RenderJob represents a render job record in the queue store (one per
// submitted render request).
type RenderJob struct {
	JobID          string              `json:"jobId" db:"job_id"`
	Type           types.JobType       `json:"type" db:"type"`
	OwnerAddress   string              `json:"ownerAddress" db:"owner_address"`
	Settings       json.RawMessage     `json:"settings" db:"settings"`
	State          types.JobState      `json:"state" db:"state"`
	Progress       int                 `json:"progress" db:"progress"`
	Result         *types.ArtifactRefs `json:"result,omitempty" db:"result"`
	FailureReason  *string             `json:"failureReason,omitempty" db:"failure_reason"`
	ClaimedBy      *string             `json:"claimedBy,omitempty" db:"claimed_by"`
	ClaimExpiresAt *time.Time          `json:"claimExpiresAt,omitempty" db:"claim_expires_at"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty" db:"completed_at"`
}
