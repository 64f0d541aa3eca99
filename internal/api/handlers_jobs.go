package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mint-engine/internal/job"
)

// handleSubmitJob queues a render job and returns its id immediately.
// Submission never blocks on rendering.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var input job.SubmitInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body", nil)
		return
	}

	result, err := s.jobService.Submit(r.Context(), &input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, result)
}

// handleJobStatus returns the current state of a job without mutating it.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	result, err := s.jobService.Status(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
