package pipeline

import (
	"context"
	"time"

	"github.com/contentforge/pipeline-be/internal/domain"
)

// Stage identifies one of the seven fixed pipeline stages.
type Stage string

const (
	StageValidation Stage = "VALIDATION"
	StageIngestion  Stage = "INGESTION"
	StageASR        Stage = "ASR"
	StageInsights   Stage = "INSIGHTS"
	StageDrafting   Stage = "DRAFTING"
	StageQA         Stage = "QA"
	StageDelivery   Stage = "DELIVERY"
)

// StageOrder is the fixed execution order. Stages never run in parallel
// within a run.
var StageOrder = []Stage{
	StageValidation,
	StageIngestion,
	StageASR,
	StageInsights,
	StageDrafting,
	StageQA,
	StageDelivery,
}

// stageSuccessStatus maps each stage to the job status applied when the
// stage succeeds.
var stageSuccessStatus = map[Stage]domain.JobStatus{
	StageValidation: domain.JobStatusValidated,
	StageIngestion:  domain.JobStatusIngested,
	StageASR:        domain.JobStatusTranscribed,
	StageInsights:   domain.JobStatusInsights,
	StageDrafting:   domain.JobStatusDrafted,
	StageQA:         domain.JobStatusReviewed,
	StageDelivery:   domain.JobStatusDelivered,
}

// SuccessStatus returns the job status a stage advances the job to.
func SuccessStatus(stage Stage) (domain.JobStatus, bool) {
	status, ok := stageSuccessStatus[stage]
	return status, ok
}

// StepResult is the definitive outcome of one stage handler invocation.
// Failures are data: handlers report them here instead of returning errors.
type StepResult struct {
	Success      bool
	Stage        Stage
	Duration     time.Duration
	ErrorCode    domain.ErrorCode
	ErrorMessage string
	Outputs      map[string]string
	TokensUsed   int64
	CostUSD      float64
	Metrics      map[string]any
}

// Handler executes one pipeline stage against the run's context. Handlers
// must not panic; a panic is converted to an INTERNAL_ERROR result by the
// executor.
type Handler func(ctx context.Context, pctx *Context) StepResult

// Context is the ephemeral per-run aggregate carried between stage
// invocations. It is owned by the orchestrator for the lifetime of one run
// execution and discarded when the run finishes; it is never persisted as its
// own record.
type Context struct {
	Job      *domain.Job
	Run      *domain.Run
	Contract map[string]any

	// Outputs accumulates identifiers produced by earlier stages, e.g.
	// media_asset_id after INGESTION and transcript_id after ASR.
	Outputs map[string]string

	TokensUsed int64
	CostUSD    float64
}

// NewContext builds the pipeline context for one run execution.
func NewContext(job *domain.Job, run *domain.Run) *Context {
	return &Context{
		Job:      job,
		Run:      run,
		Contract: run.Contract,
		Outputs:  make(map[string]string),
	}
}

// absorb merges a successful step's outputs and usage into the context.
func (c *Context) absorb(result StepResult) {
	for k, v := range result.Outputs {
		c.Outputs[k] = v
	}
	c.TokensUsed += result.TokensUsed
	c.CostUSD += result.CostUSD
}
