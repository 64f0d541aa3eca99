package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/mint-engine/internal/errors"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

const testOwner = "0x1234567890123456789012345678901234567890"

// mockStore is an in-memory queue store keyed by job id.
type mockStore struct {
	jobs      map[string]*models.RenderJob
	createErr error
	getErr    error
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[string]*models.RenderJob)}
}

func (m *mockStore) Create(ctx context.Context, job *models.RenderJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.jobs[job.JobID] = job
	return nil
}

func (m *mockStore) GetByID(ctx context.Context, jobID string) (*models.RenderJob, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, apperrors.NewNotFoundError("job", jobID)
	}
	return job, nil
}

func validSubmit() *SubmitInput {
	return &SubmitInput{
		OwnerAddress: testOwner,
		Settings:     json.RawMessage(`{"palette":"dusk","complexity":7}`),
	}
}

func TestSubmit_QueuesWaitingJob(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	result, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.JobID == "" {
		t.Error("Expected a job id")
	}
	if result.State != types.JobStateWaiting {
		t.Errorf("Expected state waiting, got %s", result.State)
	}

	stored := store.jobs[result.JobID]
	if stored == nil {
		t.Fatal("Expected job to be persisted")
	}
	if stored.Progress != 0 {
		t.Errorf("Expected progress 0, got %d", stored.Progress)
	}
	if stored.OwnerAddress != testOwner {
		t.Errorf("Expected owner %s, got %s", testOwner, stored.OwnerAddress)
	}
}

func TestSubmit_GeneratesUniqueIDs(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		result, err := svc.Submit(context.Background(), validSubmit())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if seen[result.JobID] {
			t.Fatalf("Duplicate job id: %s", result.JobID)
		}
		seen[result.JobID] = true
	}
}

func TestSubmit_DefaultsToRenderType(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	result, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if store.jobs[result.JobID].Type != types.JobTypeRender {
		t.Errorf("Expected render type, got %s", store.jobs[result.JobID].Type)
	}
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitInput)
	}{
		{"unknown job type", func(in *SubmitInput) { in.Type = "thumbnail" }},
		{"invalid owner address", func(in *SubmitInput) { in.OwnerAddress = "0xnope" }},
		{"empty settings", func(in *SubmitInput) { in.Settings = nil }},
		{"settings not an object", func(in *SubmitInput) { in.Settings = json.RawMessage(`[1,2,3]`) }},
		{"settings empty object", func(in *SubmitInput) { in.Settings = json.RawMessage(`{}`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			svc := NewService(store, nil)

			in := validSubmit()
			tt.mutate(in)

			_, err := svc.Submit(context.Background(), in)
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			if !apperrors.IsUserError(err) {
				t.Errorf("Expected a caller error, got %v", err)
			}
			if len(store.jobs) != 0 {
				t.Error("Expected nothing persisted on validation failure")
			}
		})
	}
}

func TestStatus_WaitingJobReportsProgress(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	submitted, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	status, err := svc.Status(context.Background(), submitted.JobID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if status.State != types.JobStateWaiting {
		t.Errorf("Expected waiting, got %s", status.State)
	}
	if status.Progress == nil || *status.Progress != 0 {
		t.Error("Expected progress 0 for a waiting job")
	}
	if status.Result != nil || status.FailureReason != nil {
		t.Error("Expected no result or failure reason for a waiting job")
	}
}

func TestStatus_CompletedJobCarriesResult(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	store.jobs["done"] = &models.RenderJob{
		JobID: "done",
		State: types.JobStateCompleted,
		Result: &types.ArtifactRefs{
			ImageURI:    "ipfs://image",
			MetadataURI: "ipfs://metadata",
		},
	}

	status, err := svc.Status(context.Background(), "done")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if status.Result == nil || status.Result.ImageURI != "ipfs://image" {
		t.Errorf("Expected artifact refs, got %+v", status.Result)
	}
	if status.Progress != nil {
		t.Error("Expected no progress field on a terminal job")
	}
}

func TestStatus_FailedJobCarriesReason(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, nil)

	reason := "render timed out after 10m0s"
	store.jobs["failed"] = &models.RenderJob{
		JobID:         "failed",
		State:         types.JobStateFailed,
		FailureReason: &reason,
	}

	status, err := svc.Status(context.Background(), "failed")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if status.FailureReason == nil || *status.FailureReason != reason {
		t.Errorf("Expected failure reason %q, got %v", reason, status.FailureReason)
	}
}

func TestStatus_UnknownJob(t *testing.T) {
	svc := NewService(newMockStore(), nil)

	_, err := svc.Status(context.Background(), "no-such-job")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !apperrors.IsNotFound(err) {
		t.Errorf("Expected not-found, got %v", err)
	}
}

func TestStatus_StoreUnavailable(t *testing.T) {
	store := newMockStore()
	store.getErr = apperrors.NewUnavailableError("queue store", errors.New("connection refused"))
	svc := NewService(store, nil)

	_, err := svc.Status(context.Background(), "some-job")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !apperrors.IsRetryable(err) {
		t.Errorf("Expected a retryable unavailability error, got %v", err)
	}
	if apperrors.IsNotFound(err) {
		t.Error("Expected an outage not to masquerade as not-found")
	}
}

func TestStatus_EmptyID(t *testing.T) {
	svc := NewService(newMockStore(), nil)

	_, err := svc.Status(context.Background(), "")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !apperrors.IsUserError(err) {
		t.Errorf("Expected a caller error, got %v", err)
	}
}
