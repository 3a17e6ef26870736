package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/google/uuid"
)

// RetryConfig holds the tunables for the bounded retry loop.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns the standard retry budget: 3 attempts with
// 1s/2s/4s backoff capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1000 * time.Millisecond,
		MaxDelay:    30000 * time.Millisecond,
		Multiplier:  2,
	}
}

// Delay computes the backoff before retrying after the given 1-based attempt:
// min(base * multiplier^(attempt-1), max).
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if max := float64(c.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// Scheduler suspends the calling goroutine for a backoff delay. It must not
// block other runs; tests substitute a fake so backoff takes no wall-clock
// time.
type Scheduler interface {
	Wait(ctx context.Context, d time.Duration) error
}

// TimerScheduler waits on a real timer, honoring context cancellation.
type TimerScheduler struct{}

func (TimerScheduler) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executor runs one pipeline stage with RunStep bookkeeping and a bounded
// retry loop. It never returns an error: every outcome, including retry
// exhaustion and handler panics, comes back as a StepResult.
type Executor struct {
	store  domain.Store
	sched  Scheduler
	retry  RetryConfig
	logger *slog.Logger
}

// NewExecutor creates a step executor.
func NewExecutor(store domain.Store, sched Scheduler, retry RetryConfig, logger *slog.Logger) *Executor {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}
	return &Executor{
		store:  store,
		sched:  sched,
		retry:  retry,
		logger: logger,
	}
}

// ExecuteStep runs the handler for one stage, retrying transient failures
// with exponential backoff up to the configured attempt budget. On success
// the step's outputs and usage are merged into the pipeline context and the
// run totals.
func (e *Executor) ExecuteStep(ctx context.Context, pctx *Context, stage Stage, handler Handler) StepResult {
	step := &domain.RunStep{
		StepID:    uuid.New().String(),
		RunID:     pctx.Run.RunID,
		Stage:     string(stage),
		Status:    domain.StepStatusStarted,
		Attempt:   1,
		StartedAt: time.Now().UTC(),
	}

	if err := e.store.CreateRunStep(ctx, step); err != nil {
		e.logger.Error("Failed to create run step",
			slog.String("run_id", pctx.Run.RunID),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
	}

	for {
		result := e.invoke(ctx, pctx, stage, handler)

		if result.Success {
			e.finishStep(ctx, step, domain.StepStatusSucceeded, result)
			pctx.absorb(result)
			if result.TokensUsed > 0 || result.CostUSD > 0 {
				if err := e.store.AddRunUsage(ctx, pctx.Run.RunID, result.TokensUsed, result.CostUSD); err != nil {
					e.logger.Error("Failed to record run usage",
						slog.String("run_id", pctx.Run.RunID),
						slog.String("error", err.Error()),
					)
				}
			}
			e.logger.Info("Stage succeeded",
				slog.String("run_id", pctx.Run.RunID),
				slog.String("stage", string(stage)),
				slog.Int("attempt", step.Attempt),
				slog.Duration("duration", result.Duration),
			)
			return result
		}

		if result.ErrorCode == "" {
			result.ErrorCode = domain.ErrCodeUnknown
		}

		if domain.IsRetryableError(result.ErrorCode) && step.Attempt < e.retry.MaxAttempts {
			delay := e.retry.Delay(step.Attempt)
			step.Status = domain.StepStatusRetrying
			step.ErrorCode = result.ErrorCode
			step.ErrorDetail = result.ErrorMessage
			if err := e.store.UpdateRunStep(ctx, step); err != nil {
				e.logger.Error("Failed to update run step",
					slog.String("step_id", step.StepID),
					slog.String("error", err.Error()),
				)
			}

			e.logger.Warn("Stage failed, retrying",
				slog.String("run_id", pctx.Run.RunID),
				slog.String("stage", string(stage)),
				slog.String("error_code", string(result.ErrorCode)),
				slog.Int("attempt", step.Attempt),
				slog.Int("max_attempts", e.retry.MaxAttempts),
				slog.Duration("retry_after", delay),
			)

			if err := e.sched.Wait(ctx, delay); err != nil {
				// Context canceled mid-backoff: give up on this step.
				result.ErrorMessage = fmt.Sprintf("backoff interrupted: %s (last error: %s)", err, result.ErrorMessage)
				e.finishStep(ctx, step, domain.StepStatusFailed, result)
				return result
			}

			step.Attempt++
			continue
		}

		e.finishStep(ctx, step, domain.StepStatusFailed, result)
		e.logger.Error("Stage failed",
			slog.String("run_id", pctx.Run.RunID),
			slog.String("stage", string(stage)),
			slog.String("error_code", string(result.ErrorCode)),
			slog.Int("attempts", step.Attempt),
		)
		return result
	}
}

// invoke calls the handler, converting a panic into a failed INTERNAL_ERROR
// result and filling in stage and duration when the handler left them empty.
func (e *Executor) invoke(ctx context.Context, pctx *Context, stage Stage, handler Handler) (result StepResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Stage handler panicked",
				slog.String("run_id", pctx.Run.RunID),
				slog.String("stage", string(stage)),
				slog.Any("panic", r),
			)
			result = StepResult{
				Success:      false,
				Stage:        stage,
				Duration:     time.Since(start),
				ErrorCode:    domain.ErrCodeInternal,
				ErrorMessage: fmt.Sprintf("stage handler panicked: %v", r),
			}
		}
	}()

	result = handler(ctx, pctx)
	if result.Stage == "" {
		result.Stage = stage
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

// finishStep records the step's final (or latest failed) state.
func (e *Executor) finishStep(ctx context.Context, step *domain.RunStep, status domain.StepStatus, result StepResult) {
	now := time.Now().UTC()
	step.Status = status
	step.FinishedAt = &now
	step.DurationMS = result.Duration.Milliseconds()
	step.Metrics = result.Metrics
	if status == domain.StepStatusFailed {
		step.ErrorCode = result.ErrorCode
		step.ErrorDetail = result.ErrorMessage
	} else {
		step.ErrorCode = ""
		step.ErrorDetail = ""
	}

	if err := e.store.UpdateRunStep(ctx, step); err != nil {
		e.logger.Error("Failed to finalize run step",
			slog.String("step_id", step.StepID),
			slog.String("error", err.Error()),
		)
	}
}
