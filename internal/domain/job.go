package domain

import "time"

// SourceKind identifies how the media source is supplied.
type SourceKind string

const (
	SourceKindUpload SourceKind = "UPLOAD"
	SourceKindURL    SourceKind = "URL"
)

// Job is one end-to-end processing request for a single media source.
type Job struct {
	JobID          string     `db:"job_id"`
	WorkspaceID    string     `db:"workspace_id"`
	CreatedBy      string     `db:"created_by"`
	SourceKind     SourceKind `db:"source_kind"`
	SourceURL      string     `db:"source_url"`
	SourceFilename string     `db:"source_filename"`
	Status         JobStatus  `db:"status"`
	StatusReason   string     `db:"status_reason"`
	Language       string     `db:"language"`
	BrandPresetID  string     `db:"brand_preset_id"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// RunStatus is the lifecycle state of one pipeline execution attempt.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminalRunStatus reports whether a run in this status is immutable.
func IsTerminalRunStatus(status RunStatus) bool {
	switch status {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// TriggerReason records why a run was created.
type TriggerReason string

const (
	TriggerUserCreate TriggerReason = "USER_CREATE"
	TriggerRegenerate TriggerReason = "REGENERATE"
	TriggerRetry      TriggerReason = "RETRY"
	TriggerSystem     TriggerReason = "SYSTEM"
)

// Run is one execution attempt of the full pipeline for a job. RunNumber is
// 1-based and monotonically increasing per job.
type Run struct {
	RunID        string        `db:"run_id"`
	JobID        string        `db:"job_id"`
	RunNumber    int           `db:"run_number"`
	Trigger      TriggerReason `db:"trigger_reason"`
	Status       RunStatus     `db:"status"`
	Contract     map[string]any
	TokensUsed   int64      `db:"tokens_used"`
	CostUSD      float64    `db:"cost_usd"`
	StartedAt    *time.Time `db:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"`
	ErrorMessage string     `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// StepStatus is the state of one stage attempt record.
type StepStatus string

const (
	StepStatusStarted   StepStatus = "STARTED"
	StepStatusSucceeded StepStatus = "SUCCEEDED"
	StepStatusFailed    StepStatus = "FAILED"
	StepStatusRetrying  StepStatus = "RETRYING"
)

// RunStep records the attempts of one pipeline stage within a run. A step is
// created when its stage starts and updated on every retry and on the final
// outcome; it is never reused across stages.
type RunStep struct {
	StepID      string     `db:"step_id"`
	RunID       string     `db:"run_id"`
	Stage       string     `db:"stage"`
	Status      StepStatus `db:"status"`
	Attempt     int        `db:"attempt"`
	StartedAt   time.Time  `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
	DurationMS  int64      `db:"duration_ms"`
	ErrorCode   ErrorCode  `db:"error_code"`
	ErrorDetail string     `db:"error_detail"`
	Metrics     map[string]any
}

// BrandPreset carries per-workspace generation-contract defaults. The
// Defaults blob is opaque to the pipeline core.
type BrandPreset struct {
	PresetID    string    `db:"preset_id"`
	WorkspaceID string    `db:"workspace_id"`
	Name        string    `db:"name"`
	Defaults    map[string]any
	CreatedAt   time.Time `db:"created_at"`
}

// RunMessage is the queue payload dispatching one run to the worker service.
type RunMessage struct {
	JobID string `json:"job_id"`
	RunID string `json:"run_id"`
}
