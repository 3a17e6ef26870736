package domain

import (
	"context"
	"time"
)

// JobCursor is the keyset-pagination position for job listings.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// JobFilter narrows and paginates job listings.
type JobFilter struct {
	WorkspaceID string
	Status      string
	PageSize    int
	Cursor      *JobCursor
}

// Store is the persistence port for jobs, runs, steps, presets, and the
// per-workspace daily usage counter. The pipeline core assumes read-after-write
// consistency on the record it just wrote; it does not require cross-record
// transactions. Implementations must be safe for concurrent use.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
	// SetJobStatus writes status and reason directly. Transition validation
	// belongs to the lifecycle manager, not the store.
	SetJobStatus(ctx context.Context, jobID string, status JobStatus, reason string) error

	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, jobID string) ([]Run, error)
	CountRuns(ctx context.Context, jobID string) (int, error)
	// ActiveRun returns the job's non-terminal run, or nil when there is none.
	ActiveRun(ctx context.Context, jobID string) (*Run, error)
	// UpdateRunStatus sets the run status, stamping started_at on the first
	// transition to RUNNING and finished_at on any terminal status.
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errorMessage string) error
	AddRunUsage(ctx context.Context, runID string, tokens int64, costUSD float64) error

	CreateRunStep(ctx context.Context, step *RunStep) error
	UpdateRunStep(ctx context.Context, step *RunStep) error
	ListRunSteps(ctx context.Context, runID string) ([]RunStep, error)

	GetBrandPreset(ctx context.Context, presetID string) (*BrandPreset, error)

	IncrementDailyUsage(ctx context.Context, workspaceID string, day string) error
	DailyUsage(ctx context.Context, workspaceID string, day string) (int, error)
}
