// Package types defines shared domain types used across the mint engine.
package types

import (
	"regexp"
	"strings"
)

// JobState represents the lifecycle state of a render job.
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// IsTerminal reports whether a job in this state can never transition again.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// IsValid reports whether s is one of the known job states.
func (s JobState) IsValid() bool {
	switch s {
	case JobStateWaiting, JobStateActive, JobStateCompleted, JobStateFailed:
		return true
	}
	return false
}

// JobType tags the kind of work a job carries. Only render exists today;
// the dispatch table in internal/job keys executors by this tag.
type JobType string

const (
	JobTypeRender JobType = "render"
)

// ZeroAddress is the EVM zero address; a transfer from it is a mint.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValidAddress reports whether addr looks like a hex EVM address.
func IsValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// NormalizeAddress lowercases an address so equality checks and map keys
// are case-insensitive.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

// IsZeroAddress reports whether addr is the zero address.
func IsZeroAddress(addr string) bool {
	return NormalizeAddress(addr) == ZeroAddress
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// ArtifactRefs holds the content-addressed locations produced by a
// completed render.
type ArtifactRefs struct {
	ImageURI    string `json:"imageUri"`
	MetadataURI string `json:"metadataUri"`
}

// HolderCount is one leaderboard row: an address and how many tokens it holds.
type HolderCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}
