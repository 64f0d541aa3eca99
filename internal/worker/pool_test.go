package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mint-engine/internal/job"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

// memStore is an in-memory queue store with the same claim atomicity and
// terminal-state guarantees as the real repository.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*models.RenderJob
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*models.RenderJob)}
}

func (m *memStore) add(jobType types.JobType) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("job-%d", len(m.jobs)+1)
	m.jobs[id] = &models.RenderJob{
		JobID:     id,
		Type:      jobType,
		State:     types.JobStateWaiting,
		Settings:  []byte(`{"palette":"dusk"}`),
		CreatedAt: time.Now().Add(time.Duration(len(m.jobs)) * time.Millisecond),
	}
	return id
}

func (m *memStore) get(jobID string) models.RenderJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[jobID]
}

func (m *memStore) ClaimNext(ctx context.Context, workerID string) (*models.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *models.RenderJob
	for _, j := range m.jobs {
		if j.State != types.JobStateWaiting {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, nil
	}

	oldest.State = types.JobStateActive
	oldest.ClaimedBy = &workerID
	claimed := *oldest
	return &claimed, nil
}

func (m *memStore) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || j.State != types.JobStateActive {
		return fmt.Errorf("job %s is not active", jobID)
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	return nil
}

func (m *memStore) Complete(ctx context.Context, jobID string, result *types.ArtifactRefs) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || j.State != types.JobStateActive {
		return fmt.Errorf("job %s is not active", jobID)
	}
	j.State = types.JobStateCompleted
	j.Progress = 100
	j.Result = result
	return nil
}

func (m *memStore) Fail(ctx context.Context, jobID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || j.State != types.JobStateActive {
		return fmt.Errorf("job %s is not active", jobID)
	}
	j.State = types.JobStateFailed
	j.FailureReason = &reason
	return nil
}

func (m *memStore) ReclaimExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// stubExecutor runs a caller-provided function per job.
type stubExecutor struct {
	fn func(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error)
}

func (s *stubExecutor) Execute(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
	return s.fn(ctx, j, report)
}

func startPool(t *testing.T, store Store, executor job.Executor, cfg *Config) *Pool {
	t.Helper()

	dispatcher := job.NewDispatcher()
	dispatcher.Register(types.JobTypeRender, executor)

	pool, err := NewPool(store, dispatcher, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	t.Cleanup(pool.Stop)

	return pool
}

func waitForState(t *testing.T, store *memStore, jobID string, state types.JobState) models.RenderJob {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j := store.get(jobID)
		if j.State == state {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s never reached state %s (currently %s)", jobID, state, store.get(jobID).State)
	return models.RenderJob{}
}

func TestPool_CompletesJob(t *testing.T) {
	store := newMemStore()
	jobID := store.add(types.JobTypeRender)

	executor := &stubExecutor{fn: func(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
		report(10)
		report(60)
		report(90)
		return &types.ArtifactRefs{ImageURI: "ipfs://image", MetadataURI: "ipfs://metadata"}, nil
	}}

	startPool(t, store, executor, &Config{Workers: 1, PollInterval: 10 * time.Millisecond})

	done := waitForState(t, store, jobID, types.JobStateCompleted)

	if done.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", done.Progress)
	}
	if done.Result == nil || done.Result.ImageURI != "ipfs://image" {
		t.Errorf("Expected artifact refs, got %+v", done.Result)
	}
}

func TestPool_RenderErrorFailsJobOnly(t *testing.T) {
	store := newMemStore()
	bad := store.add(types.JobTypeRender)
	good := store.add(types.JobTypeRender)

	executor := &stubExecutor{fn: func(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
		if j.JobID == bad {
			return nil, errors.New("palette out of range")
		}
		return &types.ArtifactRefs{ImageURI: "ipfs://image", MetadataURI: "ipfs://metadata"}, nil
	}}

	startPool(t, store, executor, &Config{Workers: 1, PollInterval: 10 * time.Millisecond})

	failed := waitForState(t, store, bad, types.JobStateFailed)
	if failed.FailureReason == nil || *failed.FailureReason != "palette out of range" {
		t.Errorf("Expected failure reason, got %v", failed.FailureReason)
	}

	// The pool keeps draining the queue after a failure.
	waitForState(t, store, good, types.JobStateCompleted)
}

func TestPool_PanicContained(t *testing.T) {
	store := newMemStore()
	panicking := store.add(types.JobTypeRender)
	good := store.add(types.JobTypeRender)

	executor := &stubExecutor{fn: func(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
		if j.JobID == panicking {
			panic("corrupt settings")
		}
		return &types.ArtifactRefs{ImageURI: "ipfs://image", MetadataURI: "ipfs://metadata"}, nil
	}}

	startPool(t, store, executor, &Config{Workers: 1, PollInterval: 10 * time.Millisecond})

	failed := waitForState(t, store, panicking, types.JobStateFailed)
	if failed.FailureReason == nil {
		t.Fatal("Expected a failure reason")
	}

	waitForState(t, store, good, types.JobStateCompleted)
}

func TestPool_UnknownTypeFails(t *testing.T) {
	store := newMemStore()
	jobID := store.add(types.JobType("hologram"))

	executor := &stubExecutor{fn: func(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
		return &types.ArtifactRefs{ImageURI: "ipfs://image", MetadataURI: "ipfs://metadata"}, nil
	}}

	startPool(t, store, executor, &Config{Workers: 1, PollInterval: 10 * time.Millisecond})

	waitForState(t, store, jobID, types.JobStateFailed)
}

func TestPool_RenderTimeout(t *testing.T) {
	store := newMemStore()
	jobID := store.add(types.JobTypeRender)

	executor := &stubExecutor{fn: func(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	startPool(t, store, executor, &Config{
		Workers:       1,
		PollInterval:  10 * time.Millisecond,
		RenderTimeout: 50 * time.Millisecond,
	})

	failed := waitForState(t, store, jobID, types.JobStateFailed)
	if failed.FailureReason == nil {
		t.Fatal("Expected a failure reason")
	}
}

func TestPool_ConcurrentWorkersProcessAllJobsOnce(t *testing.T) {
	store := newMemStore()
	const jobCount = 20
	ids := make([]string, 0, jobCount)
	for i := 0; i < jobCount; i++ {
		ids = append(ids, store.add(types.JobTypeRender))
	}

	var mu sync.Mutex
	executions := make(map[string]int)

	executor := &stubExecutor{fn: func(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
		mu.Lock()
		executions[j.JobID]++
		mu.Unlock()
		return &types.ArtifactRefs{ImageURI: "ipfs://image", MetadataURI: "ipfs://metadata"}, nil
	}}

	startPool(t, store, executor, &Config{Workers: 4, PollInterval: 5 * time.Millisecond})

	for _, id := range ids {
		waitForState(t, store, id, types.JobStateCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		if executions[id] != 1 {
			t.Errorf("Job %s executed %d times, expected exactly once", id, executions[id])
		}
	}
}

func TestPool_DoubleStartRejected(t *testing.T) {
	store := newMemStore()
	executor := &stubExecutor{fn: func(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
		return nil, nil
	}}

	pool := startPool(t, store, executor, &Config{Workers: 1, PollInterval: 10 * time.Millisecond})

	if err := pool.Start(context.Background()); err == nil {
		t.Error("Expected second Start to fail")
	}
}
