package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/mint-engine/internal/errors"
	"github.com/mint-engine/internal/job"
	"github.com/mint-engine/internal/ledger"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

const testAddress = "0x1234567890123456789012345678901234567890"

// mockJobService returns canned responses per call.
type mockJobService struct {
	submitResult *job.SubmitResult
	submitErr    error
	statusResult *job.StatusResult
	statusErr    error
}

func (m *mockJobService) Submit(ctx context.Context, input *job.SubmitInput) (*job.SubmitResult, error) {
	return m.submitResult, m.submitErr
}

func (m *mockJobService) Status(ctx context.Context, jobID string) (*job.StatusResult, error) {
	return m.statusResult, m.statusErr
}

type mockLedgerService struct {
	transferErr error
	mintErr     error
	leaderboard []types.HolderCount
	mintRecord  *models.MintRecord
	totalMints  int64
}

func (m *mockLedgerService) IngestTransfer(ctx context.Context, input *ledger.TransferInput) error {
	return m.transferErr
}

func (m *mockLedgerService) IngestMint(ctx context.Context, input *ledger.MintInput) error {
	return m.mintErr
}

func (m *mockLedgerService) Leaderboard(ctx context.Context, n int) ([]types.HolderCount, error) {
	if n > 0 && len(m.leaderboard) > n {
		return m.leaderboard[:n], nil
	}
	return m.leaderboard, nil
}

func (m *mockLedgerService) Mint(ctx context.Context, tokenID uint64) (*models.MintRecord, error) {
	if m.mintRecord == nil {
		return nil, apperrors.NewNotFoundError("mint", "unknown")
	}
	return m.mintRecord, nil
}

func (m *mockLedgerService) TotalMints(ctx context.Context) (int64, error) {
	return m.totalMints, nil
}

func createTestServer(jobSvc JobServiceInterface, ledgerSvc LedgerServiceInterface) *Server {
	return NewServer(&ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		RequestsPerSec: 100,
	}, jobSvc, ledgerSvc, nil, nil)
}

func TestSubmitJob_Accepted(t *testing.T) {
	jobSvc := &mockJobService{
		submitResult: &job.SubmitResult{JobID: "abc-123", State: types.JobStateWaiting},
	}
	server := createTestServer(jobSvc, &mockLedgerService{})

	body, _ := json.Marshal(map[string]interface{}{
		"ownerAddress": testAddress,
		"settings":     map[string]interface{}{"palette": "dusk"},
	})

	req := httptest.NewRequest("POST", "/api/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}

	var result job.SubmitResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.JobID != "abc-123" || result.State != types.JobStateWaiting {
		t.Errorf("Unexpected response: %+v", result)
	}
}

func TestSubmitJob_InvalidJSON(t *testing.T) {
	server := createTestServer(&mockJobService{}, &mockLedgerService{})

	req := httptest.NewRequest("POST", "/api/jobs", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSubmitJob_ValidationError(t *testing.T) {
	jobSvc := &mockJobService{submitErr: apperrors.NewInvalidAddressError("0xnope")}
	server := createTestServer(jobSvc, &mockLedgerService{})

	body, _ := json.Marshal(map[string]interface{}{"ownerAddress": "0xnope"})

	req := httptest.NewRequest("POST", "/api/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestJobStatus_Found(t *testing.T) {
	progress := 60
	jobSvc := &mockJobService{
		statusResult: &job.StatusResult{
			JobID:    "abc-123",
			State:    types.JobStateActive,
			Progress: &progress,
		},
	}
	server := createTestServer(jobSvc, &mockLedgerService{})

	req := httptest.NewRequest("GET", "/api/jobs/abc-123", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var result job.StatusResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Progress == nil || *result.Progress != 60 {
		t.Errorf("Expected progress 60, got %v", result.Progress)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	jobSvc := &mockJobService{statusErr: apperrors.NewNotFoundError("job", "missing")}
	server := createTestServer(jobSvc, &mockLedgerService{})

	req := httptest.NewRequest("GET", "/api/jobs/missing", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestJobStatus_StoreUnavailable(t *testing.T) {
	jobSvc := &mockJobService{
		statusErr: apperrors.NewUnavailableError("queue store", errors.New("connection refused")),
	}
	server := createTestServer(jobSvc, &mockLedgerService{})

	req := httptest.NewRequest("GET", "/api/jobs/abc-123", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("Expected code SERVICE_UNAVAILABLE, got %s", resp.Error.Code)
	}
}

func TestIngestTransfer_OK(t *testing.T) {
	server := createTestServer(&mockJobService{}, &mockLedgerService{})

	body, _ := json.Marshal(map[string]interface{}{
		"tokenId":         1,
		"fromAddress":     types.ZeroAddress,
		"toAddress":       testAddress,
		"blockNumber":     10,
		"transactionHash": "0xabc",
	})

	req := httptest.NewRequest("POST", "/api/webhooks/transfer", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestIngestTransfer_UnknownField(t *testing.T) {
	server := createTestServer(&mockJobService{}, &mockLedgerService{})

	req := httptest.NewRequest("POST", "/api/webhooks/transfer",
		bytes.NewReader([]byte(`{"surprise":true}`)))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestIngestMint_ValidationError(t *testing.T) {
	ledgerSvc := &mockLedgerService{mintErr: apperrors.NewInvalidInputError("imageUri", "must not be empty")}
	server := createTestServer(&mockJobService{}, ledgerSvc)

	body, _ := json.Marshal(map[string]interface{}{
		"tokenId":         1,
		"minterAddress":   testAddress,
		"transactionHash": "0xabc",
	})

	req := httptest.NewRequest("POST", "/api/webhooks/mint", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestLeaderboard_DefaultLimit(t *testing.T) {
	ledgerSvc := &mockLedgerService{leaderboard: []types.HolderCount{
		{Address: testAddress, Count: 3},
	}}
	server := createTestServer(&mockJobService{}, ledgerSvc)

	req := httptest.NewRequest("GET", "/api/leaderboard", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var result struct {
		Leaderboard []types.HolderCount `json:"leaderboard"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(result.Leaderboard) != 1 || result.Leaderboard[0].Count != 3 {
		t.Errorf("Unexpected leaderboard: %+v", result.Leaderboard)
	}
}

func TestLeaderboard_InvalidLimit(t *testing.T) {
	server := createTestServer(&mockJobService{}, &mockLedgerService{})

	tests := []string{"?limit=0", "?limit=-1", "?limit=abc", "?limit=1000"}
	for _, query := range tests {
		req := httptest.NewRequest("GET", "/api/leaderboard"+query, nil)
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Query %q: expected status 400, got %d", query, w.Code)
		}
	}
}

func TestStats_ReturnsTotalMints(t *testing.T) {
	ledgerSvc := &mockLedgerService{totalMints: 1234}
	server := createTestServer(&mockJobService{}, ledgerSvc)

	req := httptest.NewRequest("GET", "/api/stats", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var result map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["totalMints"] != 1234 {
		t.Errorf("Expected 1234 total mints, got %d", result["totalMints"])
	}
}

func TestTokenMint_Found(t *testing.T) {
	ledgerSvc := &mockLedgerService{mintRecord: &models.MintRecord{
		TokenID:       7,
		MinterAddress: testAddress,
		ImageURI:      "ipfs://image",
		MetadataURI:   "ipfs://metadata",
	}}
	server := createTestServer(&mockJobService{}, ledgerSvc)

	req := httptest.NewRequest("GET", "/api/tokens/7", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var rec models.MintRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if rec.TokenID != 7 || rec.ImageURI != "ipfs://image" {
		t.Errorf("Unexpected record: %+v", rec)
	}
}

func TestTokenMint_NotFound(t *testing.T) {
	server := createTestServer(&mockJobService{}, &mockLedgerService{})

	req := httptest.NewRequest("GET", "/api/tokens/999", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestTokenMint_BadID(t *testing.T) {
	server := createTestServer(&mockJobService{}, &mockLedgerService{})

	req := httptest.NewRequest("GET", "/api/tokens/not-a-number", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHealth_OKWithoutCheckers(t *testing.T) {
	server := createTestServer(&mockJobService{}, &mockLedgerService{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
