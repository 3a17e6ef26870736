package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/contentforge/pipeline-be/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeScheduler records requested delays and returns immediately.
type fakeScheduler struct {
	waits []time.Duration
}

func (s *fakeScheduler) Wait(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestRun(t *testing.T, store *storage.Memory) (*domain.Job, *domain.Run) {
	t.Helper()
	ctx := context.Background()

	job := &domain.Job{
		JobID:       uuid.New().String(),
		WorkspaceID: "ws-1",
		CreatedBy:   "user-1",
		SourceKind:  domain.SourceKindURL,
		SourceURL:   "https://example.com/episode.mp3",
		Status:      domain.JobStatusReceived,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.CreateJob(ctx, job))

	run := &domain.Run{
		RunID:     uuid.New().String(),
		JobID:     job.JobID,
		RunNumber: 1,
		Trigger:   domain.TriggerUserCreate,
		Status:    domain.RunStatusRunning,
		Contract:  map[string]any{"tone": "professional"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	return job, run
}

func singleStep(t *testing.T, store *storage.Memory, runID string) domain.RunStep {
	t.Helper()
	steps, err := store.ListRunSteps(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	return steps[0]
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := DefaultRetryConfig()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{4, 8000 * time.Millisecond},
		{5, 16000 * time.Millisecond},
		{6, 30000 * time.Millisecond},
		{10, 30000 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExecuteStep_SuccessFirstAttempt(t *testing.T) {
	store := storage.NewMemory()
	sched := &fakeScheduler{}
	exec := NewExecutor(store, sched, DefaultRetryConfig(), testLogger())
	job, run := newTestRun(t, store)
	pctx := NewContext(job, run)

	handler := func(_ context.Context, _ *Context) StepResult {
		return StepResult{
			Success:    true,
			Outputs:    map[string]string{"media_asset_id": "asset-42"},
			TokensUsed: 120,
			CostUSD:    0.004,
		}
	}

	result := exec.ExecuteStep(context.Background(), pctx, StageIngestion, handler)

	require.True(t, result.Success)
	assert.Equal(t, StageIngestion, result.Stage)
	assert.Empty(t, sched.waits)

	assert.Equal(t, "asset-42", pctx.Outputs["media_asset_id"])
	assert.Equal(t, int64(120), pctx.TokensUsed)
	assert.InDelta(t, 0.004, pctx.CostUSD, 1e-9)

	step := singleStep(t, store, run.RunID)
	assert.Equal(t, domain.StepStatusSucceeded, step.Status)
	assert.Equal(t, 1, step.Attempt)
	require.NotNil(t, step.FinishedAt)

	stored, err := store.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), stored.TokensUsed)
	assert.InDelta(t, 0.004, stored.CostUSD, 1e-9)
}

func TestExecuteStep_RetryableThenSuccess(t *testing.T) {
	store := storage.NewMemory()
	sched := &fakeScheduler{}
	exec := NewExecutor(store, sched, DefaultRetryConfig(), testLogger())
	job, run := newTestRun(t, store)
	pctx := NewContext(job, run)

	calls := 0
	handler := func(_ context.Context, _ *Context) StepResult {
		calls++
		if calls < 3 {
			return StepResult{Success: false, ErrorCode: domain.ErrCodeNetworkError, ErrorMessage: "connection refused"}
		}
		return StepResult{Success: true}
	}

	result := exec.ExecuteStep(context.Background(), pctx, StageIngestion, handler)

	require.True(t, result.Success)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, sched.waits)

	step := singleStep(t, store, run.RunID)
	assert.Equal(t, domain.StepStatusSucceeded, step.Status)
	assert.Equal(t, 3, step.Attempt)
}

func TestExecuteStep_NonRetryableFailsWithoutRetry(t *testing.T) {
	store := storage.NewMemory()
	sched := &fakeScheduler{}
	exec := NewExecutor(store, sched, DefaultRetryConfig(), testLogger())
	job, run := newTestRun(t, store)
	pctx := NewContext(job, run)

	calls := 0
	handler := func(_ context.Context, _ *Context) StepResult {
		calls++
		return StepResult{Success: false, ErrorCode: domain.ErrCodeInvalidInput, ErrorMessage: "missing source"}
	}

	result := exec.ExecuteStep(context.Background(), pctx, StageValidation, handler)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeInvalidInput, result.ErrorCode)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sched.waits)

	step := singleStep(t, store, run.RunID)
	assert.Equal(t, domain.StepStatusFailed, step.Status)
	assert.Equal(t, 1, step.Attempt)
	assert.Equal(t, domain.ErrCodeInvalidInput, step.ErrorCode)
	assert.Equal(t, "missing source", step.ErrorDetail)
}

func TestExecuteStep_RetryBudgetExhausted(t *testing.T) {
	store := storage.NewMemory()
	sched := &fakeScheduler{}
	exec := NewExecutor(store, sched, DefaultRetryConfig(), testLogger())
	job, run := newTestRun(t, store)
	pctx := NewContext(job, run)

	calls := 0
	handler := func(_ context.Context, _ *Context) StepResult {
		calls++
		return StepResult{Success: false, ErrorCode: domain.ErrCodeGenerationFailed, ErrorMessage: "model refused"}
	}

	result := exec.ExecuteStep(context.Background(), pctx, StageDrafting, handler)

	require.False(t, result.Success)
	assert.Equal(t, 3, calls)
	assert.Len(t, sched.waits, 2)

	step := singleStep(t, store, run.RunID)
	assert.Equal(t, domain.StepStatusFailed, step.Status)
	assert.Equal(t, 3, step.Attempt)
	assert.Equal(t, domain.ErrCodeGenerationFailed, step.ErrorCode)
}

func TestExecuteStep_MissingErrorCodeDefaultsToUnknown(t *testing.T) {
	store := storage.NewMemory()
	exec := NewExecutor(store, &fakeScheduler{}, DefaultRetryConfig(), testLogger())
	job, run := newTestRun(t, store)
	pctx := NewContext(job, run)

	handler := func(_ context.Context, _ *Context) StepResult {
		return StepResult{Success: false, ErrorMessage: "something broke"}
	}

	result := exec.ExecuteStep(context.Background(), pctx, StageQA, handler)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeUnknown, result.ErrorCode)
}

func TestExecuteStep_PanicBecomesInternalError(t *testing.T) {
	store := storage.NewMemory()
	sched := &fakeScheduler{}
	exec := NewExecutor(store, sched, DefaultRetryConfig(), testLogger())
	job, run := newTestRun(t, store)
	pctx := NewContext(job, run)

	handler := func(_ context.Context, _ *Context) StepResult {
		panic("nil pointer somewhere deep")
	}

	result := exec.ExecuteStep(context.Background(), pctx, StageInsights, handler)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeInternal, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "nil pointer somewhere deep")
	// INTERNAL_ERROR is non-retryable, so a panic never triggers backoff.
	assert.Empty(t, sched.waits)

	step := singleStep(t, store, run.RunID)
	assert.Equal(t, domain.StepStatusFailed, step.Status)
	assert.Equal(t, 1, step.Attempt)
}

func TestExecuteStep_CanceledDuringBackoff(t *testing.T) {
	store := storage.NewMemory()
	exec := NewExecutor(store, canceledScheduler{}, DefaultRetryConfig(), testLogger())
	job, run := newTestRun(t, store)
	pctx := NewContext(job, run)

	calls := 0
	handler := func(_ context.Context, _ *Context) StepResult {
		calls++
		return StepResult{Success: false, ErrorCode: domain.ErrCodeTimeout, ErrorMessage: "upstream slow"}
	}

	result := exec.ExecuteStep(context.Background(), pctx, StageASR, handler)

	require.False(t, result.Success)
	assert.Equal(t, 1, calls)
	assert.Contains(t, result.ErrorMessage, "backoff interrupted")

	step := singleStep(t, store, run.RunID)
	assert.Equal(t, domain.StepStatusFailed, step.Status)
}

type canceledScheduler struct{}

func (canceledScheduler) Wait(_ context.Context, _ time.Duration) error {
	return context.Canceled
}

func TestTimerScheduler_Wait(t *testing.T) {
	var sched TimerScheduler

	start := time.Now()
	err := sched.Wait(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = sched.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
