package job

import (
	"context"

	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

// ProgressFunc reports a progress milestone (0-100) for a running job.
type ProgressFunc func(progress int)

// Executor runs one claimed job of a particular type to completion and
// returns its artifact references.
type Executor interface {
	Execute(ctx context.Context, job *models.RenderJob, report ProgressFunc) (*types.ArtifactRefs, error)
}

// Dispatcher maps job type tags to executors. Only render exists today, but
// new job types slot in without changing the queue store contract.
type Dispatcher struct {
	executors map[types.JobType]Executor
}

// NewDispatcher creates an empty dispatch table
func NewDispatcher() *Dispatcher {
	return &Dispatcher{executors: make(map[types.JobType]Executor)}
}

// Register binds an executor to a job type tag
func (d *Dispatcher) Register(jobType types.JobType, executor Executor) {
	d.executors[jobType] = executor
}

// Lookup returns the executor for a job type tag
func (d *Dispatcher) Lookup(jobType types.JobType) (Executor, bool) {
	executor, ok := d.executors[jobType]
	return executor, ok
}
