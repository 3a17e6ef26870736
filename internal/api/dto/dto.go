package dto

import (
	"time"

	"github.com/contentforge/pipeline-be/internal/domain"
)

type CreateJobRequest struct {
	WorkspaceID    string `json:"workspace_id" binding:"required"`
	CreatedBy      string `json:"created_by" binding:"required"`
	SourceKind     string `json:"source_kind" binding:"required,oneof=UPLOAD URL"`
	SourceURL      string `json:"source_url"`
	SourceFilename string `json:"source_filename"`
	Language       string `json:"language"`
	BrandPresetID  string `json:"brand_preset_id"`
}

type ListJobsRequest struct {
	WorkspaceID string `form:"workspace_id"`
	Status      string `form:"status"`
	PageSize    int    `form:"page_size"`
	Cursor      string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID          string `json:"job_id"`
	WorkspaceID    string `json:"workspace_id"`
	CreatedBy      string `json:"created_by"`
	SourceKind     string `json:"source_kind"`
	SourceURL      string `json:"source_url,omitempty"`
	SourceFilename string `json:"source_filename,omitempty"`
	Status         string `json:"status"`
	StatusReason   string `json:"status_reason,omitempty"`
	Language       string `json:"language,omitempty"`
	BrandPresetID  string `json:"brand_preset_id,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// JobFromDomain converts a job record to its response shape.
func JobFromDomain(job *domain.Job) JobDTO {
	return JobDTO{
		JobID:          job.JobID,
		WorkspaceID:    job.WorkspaceID,
		CreatedBy:      job.CreatedBy,
		SourceKind:     string(job.SourceKind),
		SourceURL:      job.SourceURL,
		SourceFilename: job.SourceFilename,
		Status:         string(job.Status),
		StatusReason:   job.StatusReason,
		Language:       job.Language,
		BrandPresetID:  job.BrandPresetID,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
}

type CreateRunRequest struct {
	Trigger   string         `json:"trigger" binding:"omitempty,oneof=USER_CREATE REGENERATE RETRY SYSTEM"`
	Overrides map[string]any `json:"overrides"`
}

type RunDTO struct {
	RunID        string         `json:"run_id"`
	JobID        string         `json:"job_id"`
	RunNumber    int            `json:"run_number"`
	Trigger      string         `json:"trigger"`
	Status       string         `json:"status"`
	Contract     map[string]any `json:"contract,omitempty"`
	TokensUsed   int64          `json:"tokens_used"`
	CostUSD      float64        `json:"cost_usd"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

// RunFromDomain converts a run record to its response shape.
func RunFromDomain(run *domain.Run) RunDTO {
	return RunDTO{
		RunID:        run.RunID,
		JobID:        run.JobID,
		RunNumber:    run.RunNumber,
		Trigger:      string(run.Trigger),
		Status:       string(run.Status),
		Contract:     run.Contract,
		TokensUsed:   run.TokensUsed,
		CostUSD:      run.CostUSD,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
	}
}

type ListRunsResponse struct {
	Runs []RunDTO `json:"runs"`
}

type RunStepDTO struct {
	StepID      string         `json:"step_id"`
	Stage       string         `json:"stage"`
	Status      string         `json:"status"`
	Attempt     int            `json:"attempt"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`
}

// RunStepFromDomain converts a step record to its response shape.
func RunStepFromDomain(step *domain.RunStep) RunStepDTO {
	return RunStepDTO{
		StepID:      step.StepID,
		Stage:       step.Stage,
		Status:      string(step.Status),
		Attempt:     step.Attempt,
		StartedAt:   step.StartedAt,
		FinishedAt:  step.FinishedAt,
		DurationMS:  step.DurationMS,
		ErrorCode:   string(step.ErrorCode),
		ErrorDetail: step.ErrorDetail,
		Metrics:     step.Metrics,
	}
}

type RunDetailResponse struct {
	Run   RunDTO       `json:"run"`
	Steps []RunStepDTO `json:"steps"`
}
