package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/etl/pipeline"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

const TypePipelineRun = "pipeline_run"

// PipelineRunHandler executes one ETL run from a queued job. The job payload
// is a serialized pipeline.JobConfig.
type PipelineRunHandler struct {
	runner *pipeline.Runner
	log    *logger.Logger
}

func NewPipelineRunHandler(runner *pipeline.Runner, baseLog *logger.Logger) *PipelineRunHandler {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &PipelineRunHandler{runner: runner, log: baseLog.With("handler", TypePipelineRun)}
}

func (h *PipelineRunHandler) Type() string { return TypePipelineRun }

func (h *PipelineRunHandler) Run(ctx context.Context, job *types.PipelineJob) (map[string]any, error) {
	var cfg pipeline.JobConfig
	if len(job.Payload) == 0 {
		return nil, fmt.Errorf("job %s has empty payload", job.ID)
	}
	if err := json.Unmarshal(job.Payload, &cfg); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}

	version, err := h.runner.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"version_id":        version.ID,
		"status":            version.Status,
		"records_processed": version.RecordsProcessed,
		"records_inserted":  version.RecordsInserted,
		"records_rejected":  version.RecordsRejected,
		"quality_score":     version.QualityScore,
	}, nil
}
