package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/contentforge/pipeline-be/internal/lifecycle"
)

// Orchestrator drives one run through the fixed stage order, advancing the
// job status on each success and mapping a definitive failure to one of the
// five terminal failure/escalation statuses.
type Orchestrator struct {
	store     domain.Store
	lifecycle *lifecycle.Manager
	executor  *Executor
	handlers  map[Stage]Handler
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given stage handlers.
func NewOrchestrator(store domain.Store, lc *lifecycle.Manager, executor *Executor, handlers map[Stage]Handler, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		lifecycle: lc,
		executor:  executor,
		handlers:  handlers,
		logger:    logger,
	}
}

// FailureStatus maps a failing stage and error code to the job's terminal
// status. Precedence: validation failures first, then entitlement, then the
// two resumable escalations, then plain FAILED.
func FailureStatus(stage Stage, code domain.ErrorCode) domain.JobStatus {
	switch {
	case stage == StageValidation:
		return domain.JobStatusFailedValidation
	case code == domain.ErrCodeQuotaExceeded:
		return domain.JobStatusBlockedEntitlement
	case code == domain.ErrCodeHighRiskContent:
		return domain.JobStatusManualReview
	case code == domain.ErrCodeLowQualityASR:
		return domain.JobStatusNeedsUserInput
	default:
		return domain.JobStatusFailed
	}
}

// ExecuteRun executes the full pipeline for one run. A stage failure ends the
// run with an explicit status and is not an error; the returned error only
// reports infrastructure problems (load/update failures) the caller may want
// to retry at the transport level.
func (o *Orchestrator) ExecuteRun(ctx context.Context, runID string) error {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if domain.IsTerminalRunStatus(run.Status) {
		o.logger.Warn("Run already finished, skipping",
			slog.String("run_id", runID),
			slog.String("status", string(run.Status)),
		)
		return nil
	}

	job, err := o.store.GetJob(ctx, run.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", run.JobID, err)
	}

	if err := o.lifecycle.UpdateRunStatus(ctx, runID, domain.RunStatusRunning, ""); err != nil {
		return err
	}

	o.logger.Info("Run started",
		slog.String("run_id", runID),
		slog.String("job_id", job.JobID),
		slog.Int("run_number", run.RunNumber),
	)

	pctx := NewContext(job, run)

	for _, stage := range StageOrder {
		handler, ok := o.handlers[stage]
		if !ok {
			result := StepResult{
				Success:      false,
				Stage:        stage,
				ErrorCode:    domain.ErrCodeInternal,
				ErrorMessage: fmt.Sprintf("no handler registered for stage %s", stage),
			}
			return o.failRun(ctx, pctx, stage, result)
		}

		result := o.executor.ExecuteStep(ctx, pctx, stage, handler)
		if !result.Success {
			return o.failRun(ctx, pctx, stage, result)
		}

		target := stageSuccessStatus[stage]
		if err := o.lifecycle.UpdateJobStatus(ctx, job.JobID, target, ""); err != nil {
			return fmt.Errorf("failed to advance job after stage %s: %w", stage, err)
		}
	}

	// All seven stages succeeded: archive and log unconditionally, then
	// close out the run.
	if err := o.lifecycle.UpdateJobStatus(ctx, job.JobID, domain.JobStatusStored, ""); err != nil {
		return fmt.Errorf("failed to mark job stored: %w", err)
	}
	if err := o.lifecycle.UpdateJobStatus(ctx, job.JobID, domain.JobStatusAnalytics, ""); err != nil {
		return fmt.Errorf("failed to mark job analytics-logged: %w", err)
	}
	if err := o.lifecycle.UpdateRunStatus(ctx, runID, domain.RunStatusSucceeded, ""); err != nil {
		return err
	}

	o.logger.Info("Run succeeded",
		slog.String("run_id", runID),
		slog.String("job_id", job.JobID),
		slog.Int64("tokens_used", pctx.TokensUsed),
		slog.Float64("cost_usd", pctx.CostUSD),
	)

	return nil
}

// failRun lands the job in its terminal failure/escalation status, marks the
// run FAILED, and stops the stage loop. The status write bypasses the
// transition table: the failure mapping is authoritative here.
func (o *Orchestrator) failRun(ctx context.Context, pctx *Context, stage Stage, result StepResult) error {
	terminal := FailureStatus(stage, result.ErrorCode)
	reason := fmt.Sprintf("%s failed: %s", stage, result.ErrorMessage)
	if result.ErrorMessage == "" {
		reason = fmt.Sprintf("%s failed: %s", stage, result.ErrorCode)
	}

	if err := o.lifecycle.EscalateJob(ctx, pctx.Job.JobID, terminal, reason); err != nil {
		return err
	}
	if err := o.lifecycle.UpdateRunStatus(ctx, pctx.Run.RunID, domain.RunStatusFailed, reason); err != nil {
		return err
	}

	o.logger.Error("Run failed",
		slog.String("run_id", pctx.Run.RunID),
		slog.String("job_id", pctx.Job.JobID),
		slog.String("stage", string(stage)),
		slog.String("error_code", string(result.ErrorCode)),
		slog.String("job_status", string(terminal)),
	)

	return nil
}
