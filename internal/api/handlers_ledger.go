package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mint-engine/internal/ledger"
)

const defaultLeaderboardSize = 10

// handleIngestTransfer records a transfer fact delivered out-of-band.
// Ingestion is idempotent: re-delivery of an already-recorded event
// responds success without effect.
func (s *Server) handleIngestTransfer(w http.ResponseWriter, r *http.Request) {
	var input ledger.TransferInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body", nil)
		return
	}

	if err := s.ledgerService.IngestTransfer(r.Context(), &input); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleIngestMint records a mint fact with its artifact locations.
func (s *Server) handleIngestMint(w http.ResponseWriter, r *http.Request) {
	var input ledger.MintInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body", nil)
		return
	}

	if err := s.ledgerService.IngestMint(r.Context(), &input); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleTokenMint returns the recorded mint for a token.
func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "token id must be a non-negative integer", nil)
		return
	}

	rec, err := s.ledgerService.Mint(r.Context(), tokenID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// handleLeaderboard returns the top holders by current token count.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	n := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			respondError(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be between 1 and 100", nil)
			return
		}
		n = parsed
	}

	entries, err := s.ledgerService.Leaderboard(r.Context(), n)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

// handleStats returns collection-level counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totalMints, err := s.ledgerService.TotalMints(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"totalMints": totalMints})
}
