package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/mint-engine/internal/errors"
	"github.com/mint-engine/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondServiceError maps a categorized error onto the wire. Retryable
// unavailability keeps its 503 so clients can tell outage from job failure.
func respondServiceError(w http.ResponseWriter, err error) {
	catErr := apperrors.Categorize(err)
	if catErr.StatusCode >= 500 && catErr.Category != apperrors.CategoryUnavailable {
		// Internal details stay out of responses.
		respondError(w, catErr.StatusCode, catErr.Code, "An internal error occurred", nil)
		return
	}
	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
}
