// Package errors defines the categorized error taxonomy for the mint engine.
// Callers distinguish three classes: caller errors (never retried),
// infrastructure unavailability (retryable), and execution failures (attached
// to the job, never fatal to a worker). Duplicate ingestion is absorbed at
// the store layer and never surfaces as an error.
package errors

import (
	"fmt"
	"net/http"

	"github.com/mint-engine/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents caller errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryNotFound represents unknown-resource errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryUnavailable represents store or chain-node connectivity failures
	CategoryUnavailable ErrorCategory = "unavailable"
	// CategoryExecution represents render pipeline failures
	CategoryExecution ErrorCategory = "execution"
	// CategorySystem represents everything else (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidInputError creates a caller error for a malformed field
func NewInvalidInputError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_INPUT",
		Message:    fmt.Sprintf("invalid field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewInvalidAddressError creates a caller error for a malformed address
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewUnavailableError creates a retryable infrastructure error, distinct
// from job failure so clients can tell outage from render failure
func NewUnavailableError(service string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUnavailable,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    fmt.Sprintf("service unavailable: %s", service),
		Cause:      cause,
		Details: map[string]interface{}{
			"service": service,
		},
	}
}

// NewExecutionError wraps a render pipeline failure. It is attached to the
// owning job as its failure reason and contained at the worker boundary.
func NewExecutionError(stage string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryExecution,
		StatusCode: http.StatusInternalServerError,
		Code:       "EXECUTION_FAILED",
		Message:    fmt.Sprintf("render failed during %s", stage),
		Cause:      cause,
		Details: map[string]interface{}{
			"stage": stage,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Category == CategoryUnavailable
}

// IsNotFound reports whether an error marks an unknown resource
func IsNotFound(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Category == CategoryNotFound
}

// IsUserError determines if an error is a caller error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
