package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/google/uuid"
)

// usageDayFormat keys the per-workspace daily usage counter.
const usageDayFormat = "2006-01-02"

// ErrInvalidJobInput wraps CreateJob validation failures so callers can map
// them to a client error instead of a server error.
var ErrInvalidJobInput = errors.New("invalid job input")

// Manager owns job and run lifecycle operations: creation, validated status
// updates, and the rerun predicate. All persistence goes through the Store
// port so tests can substitute an in-memory implementation.
type Manager struct {
	store  domain.Store
	logger *slog.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(store domain.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
	}
}

// CreateJobInput carries the fields required to submit a new job.
type CreateJobInput struct {
	WorkspaceID    string
	CreatedBy      string
	SourceKind     domain.SourceKind
	SourceURL      string
	SourceFilename string
	Language       string
	BrandPresetID  string
}

// CreateJob validates the input and persists a new job in status RECEIVED.
func (m *Manager) CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	if in.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: workspace_id is required", ErrInvalidJobInput)
	}
	if in.CreatedBy == "" {
		return nil, fmt.Errorf("%w: created_by is required", ErrInvalidJobInput)
	}

	switch in.SourceKind {
	case domain.SourceKindURL:
		if in.SourceURL == "" {
			return nil, fmt.Errorf("%w: source_url is required for kind %s", ErrInvalidJobInput, in.SourceKind)
		}
	case domain.SourceKindUpload:
		if in.SourceFilename == "" {
			return nil, fmt.Errorf("%w: source_filename is required for kind %s", ErrInvalidJobInput, in.SourceKind)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported source kind %q", ErrInvalidJobInput, in.SourceKind)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		JobID:          uuid.New().String(),
		WorkspaceID:    in.WorkspaceID,
		CreatedBy:      in.CreatedBy,
		SourceKind:     in.SourceKind,
		SourceURL:      in.SourceURL,
		SourceFilename: in.SourceFilename,
		Status:         domain.JobStatusReceived,
		Language:       in.Language,
		BrandPresetID:  in.BrandPresetID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("workspace_id", job.WorkspaceID),
		slog.String("source_kind", string(job.SourceKind)),
	)

	return job, nil
}

// UpdateJobStatus moves a job to a new status after checking the transition
// table. This is the only validation performed before persisting the change.
func (m *Manager) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, reason string) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	if !domain.CanTransitionTo(job.Status, status) {
		return &domain.InvalidTransitionError{From: job.Status, To: status}
	}

	if err := m.store.SetJobStatus(ctx, jobID, status, reason); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	m.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("from", string(job.Status)),
		slog.String("to", string(status)),
	)

	return nil
}

// EscalateJob writes a status directly, bypassing the transition table. The
// orchestrator uses it to land a job in its terminal failure or escalation
// status from whatever stage the pipeline stopped at, and CreateRun uses it
// to reset a rerun back to RECEIVED. The status still has to be one of the
// fifteen known values.
func (m *Manager) EscalateJob(ctx context.Context, jobID string, status domain.JobStatus, reason string) error {
	if !domain.IsValidStatus(status) {
		return fmt.Errorf("unknown job status: %q", status)
	}

	if err := m.store.SetJobStatus(ctx, jobID, status, reason); err != nil {
		return fmt.Errorf("failed to escalate job status: %w", err)
	}

	m.logger.Info("Job status escalated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
		slog.String("reason", reason),
	)

	return nil
}

// CanRerun reports whether a new run may be created for the job: any terminal
// status except BLOCKED_ENTITLEMENT, or either user-action status.
func (m *Manager) CanRerun(job *domain.Job) bool {
	if domain.IsTerminalStatus(job.Status) && job.Status != domain.JobStatusBlockedEntitlement {
		return true
	}
	return domain.RequiresUserAction(job.Status)
}

// CreateRunInput carries the fields required to request a pipeline run.
type CreateRunInput struct {
	JobID     string
	Trigger   domain.TriggerReason
	Overrides map[string]any
}

// CreateRun creates the next run for a job. It rejects when an active run
// exists or the job is mid-pipeline, assigns the next run_number, resolves
// the generation contract (defaults, then brand preset, then overrides), and
// bumps the workspace's daily usage counter. Jobs being rerun are reset to
// RECEIVED so the new run replays the full stage order.
func (m *Manager) CreateRun(ctx context.Context, in CreateRunInput) (*domain.Run, error) {
	job, err := m.store.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	active, err := m.store.ActiveRun(ctx, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active run: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: run %s is %s", domain.ErrActiveRunExists, active.RunID, active.Status)
	}

	count, err := m.store.CountRuns(ctx, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	fresh := count == 0 && job.Status == domain.JobStatusReceived
	if !fresh && !m.CanRerun(job) {
		return nil, fmt.Errorf("%w: status %s", domain.ErrJobNotRerunnable, job.Status)
	}

	contract, err := m.resolveContract(ctx, job, in.Overrides)
	if err != nil {
		return nil, err
	}

	trigger := in.Trigger
	if trigger == "" {
		trigger = domain.TriggerUserCreate
	}

	now := time.Now().UTC()
	run := &domain.Run{
		RunID:     uuid.New().String(),
		JobID:     job.JobID,
		RunNumber: count + 1,
		Trigger:   trigger,
		Status:    domain.RunStatusPending,
		Contract:  contract,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if !fresh {
		// Rerun: replay the whole pipeline from the top.
		if err := m.EscalateJob(ctx, job.JobID, domain.JobStatusReceived, "rerun requested"); err != nil {
			return nil, err
		}
	}

	if err := m.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if err := m.store.IncrementDailyUsage(ctx, job.WorkspaceID, now.Format(usageDayFormat)); err != nil {
		// The counter is advisory; a failed increment must not lose the run.
		m.logger.Warn("Failed to increment daily usage",
			slog.String("workspace_id", job.WorkspaceID),
			slog.String("error", err.Error()),
		)
	}

	m.logger.Info("Run created",
		slog.String("run_id", run.RunID),
		slog.String("job_id", run.JobID),
		slog.Int("run_number", run.RunNumber),
		slog.String("trigger", string(run.Trigger)),
	)

	return run, nil
}

// resolveContract layers built-in defaults, preset defaults, and overrides.
func (m *Manager) resolveContract(ctx context.Context, job *domain.Job, overrides map[string]any) (map[string]any, error) {
	var presetDefaults map[string]any
	if job.BrandPresetID != "" {
		preset, err := m.store.GetBrandPreset(ctx, job.BrandPresetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load brand preset %s: %w", job.BrandPresetID, err)
		}
		presetDefaults = preset.Defaults
	}

	return ResolveContract(DefaultContract(), presetDefaults, overrides), nil
}

// UpdateRunStatus sets a run's status. Terminal runs are immutable; the store
// stamps started_at on the first RUNNING transition and finished_at on any
// terminal status.
func (m *Manager) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, errorMessage string) error {
	run, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	if domain.IsTerminalRunStatus(run.Status) {
		return fmt.Errorf("run %s is already %s and cannot change status", runID, run.Status)
	}

	if err := m.store.UpdateRunStatus(ctx, runID, status, errorMessage); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	m.logger.Info("Run status updated",
		slog.String("run_id", runID),
		slog.String("status", string(status)),
	)

	return nil
}
