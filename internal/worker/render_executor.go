package worker

import (
	"context"

	apperrors "github.com/mint-engine/internal/errors"
	"github.com/mint-engine/internal/job"
	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/render"
	"github.com/mint-engine/internal/types"
)

// RenderExecutor adapts the rendering pipeline to the job dispatch table.
type RenderExecutor struct {
	pipeline render.Pipeline
}

// NewRenderExecutor creates an executor backed by the given pipeline
func NewRenderExecutor(pipeline render.Pipeline) *RenderExecutor {
	return &RenderExecutor{pipeline: pipeline}
}

// Execute runs one render job through the pipeline
func (e *RenderExecutor) Execute(ctx context.Context, j *models.RenderJob, report job.ProgressFunc) (*types.ArtifactRefs, error) {
	result, err := e.pipeline.Render(ctx, &render.Request{
		JobID:        j.JobID,
		OwnerAddress: j.OwnerAddress,
		Settings:     j.Settings,
	}, render.ProgressFunc(report))
	if err != nil {
		return nil, apperrors.NewExecutionError("render", err)
	}

	return &types.ArtifactRefs{
		ImageURI:    result.ImageURI,
		MetadataURI: result.MetadataURI,
	}, nil
}
