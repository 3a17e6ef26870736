package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/contentforge/pipeline-be/internal/domain"
)

// Memory is an in-memory implementation of domain.Store. It backs unit tests
// and local development; the worker and API services use Postgres.
type Memory struct {
	mu      sync.RWMutex
	jobs    map[string]domain.Job
	runs    map[string]domain.Run
	steps   map[string]domain.RunStep
	stepSeq []string
	presets map[string]domain.BrandPreset
	usage   map[string]int
}

var _ domain.Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:    make(map[string]domain.Job),
		runs:    make(map[string]domain.Run),
		steps:   make(map[string]domain.RunStep),
		presets: make(map[string]domain.BrandPreset),
		usage:   make(map[string]int),
	}
}

func (m *Memory) CreateJob(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = *job
	return nil
}

func (m *Memory) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	out := job
	return &out, nil
}

func (m *Memory) ListJobs(_ context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []domain.Job
	for _, job := range m.jobs {
		if filter.WorkspaceID != "" && job.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.Status != "" && string(job.Status) != filter.Status {
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].JobID > jobs[j].JobID
	})

	if filter.Cursor != nil {
		pos := 0
		for i, job := range jobs {
			if job.CreatedAt.Before(filter.Cursor.CreatedAt) ||
				(job.CreatedAt.Equal(filter.Cursor.CreatedAt) && job.JobID < filter.Cursor.JobID) {
				pos = i
				break
			}
			pos = i + 1
		}
		jobs = jobs[pos:]
	}

	if filter.PageSize > 0 && len(jobs) > filter.PageSize+1 {
		jobs = jobs[:filter.PageSize+1]
	}

	return jobs, nil
}

func (m *Memory) SetJobStatus(_ context.Context, jobID string, status domain.JobStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = status
	job.StatusReason = reason
	job.UpdatedAt = time.Now().UTC()
	m.jobs[jobID] = job
	return nil
}

func (m *Memory) CreateRun(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RunID] = *run
	return nil
}

func (m *Memory) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	out := run
	return &out, nil
}

func (m *Memory) ListRuns(_ context.Context, jobID string) ([]domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var runs []domain.Run
	for _, run := range m.runs {
		if run.JobID == jobID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunNumber < runs[j].RunNumber })
	return runs, nil
}

func (m *Memory) CountRuns(_ context.Context, jobID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, run := range m.runs {
		if run.JobID == jobID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ActiveRun(_ context.Context, jobID string) (*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, run := range m.runs {
		if run.JobID == jobID && !domain.IsTerminalRunStatus(run.Status) {
			out := run
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateRunStatus(_ context.Context, runID string, status domain.RunStatus, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return domain.ErrRunNotFound
	}

	now := time.Now().UTC()
	run.Status = status
	run.ErrorMessage = errorMessage
	run.UpdatedAt = now
	if status == domain.RunStatusRunning && run.StartedAt == nil {
		run.StartedAt = &now
	}
	if domain.IsTerminalRunStatus(status) && run.FinishedAt == nil {
		run.FinishedAt = &now
	}

	m.runs[runID] = run
	return nil
}

func (m *Memory) AddRunUsage(_ context.Context, runID string, tokens int64, costUSD float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return domain.ErrRunNotFound
	}
	run.TokensUsed += tokens
	run.CostUSD += costUSD
	run.UpdatedAt = time.Now().UTC()
	m.runs[runID] = run
	return nil
}

func (m *Memory) CreateRunStep(_ context.Context, step *domain.RunStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[step.StepID] = *step
	m.stepSeq = append(m.stepSeq, step.StepID)
	return nil
}

func (m *Memory) UpdateRunStep(_ context.Context, step *domain.RunStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.steps[step.StepID]; !ok {
		return domain.ErrRunNotFound
	}
	m.steps[step.StepID] = *step
	return nil
}

func (m *Memory) ListRunSteps(_ context.Context, runID string) ([]domain.RunStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var steps []domain.RunStep
	for _, id := range m.stepSeq {
		step := m.steps[id]
		if step.RunID == runID {
			steps = append(steps, step)
		}
	}
	return steps, nil
}

func (m *Memory) CreateBrandPreset(_ context.Context, preset *domain.BrandPreset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presets[preset.PresetID] = *preset
	return nil
}

func (m *Memory) GetBrandPreset(_ context.Context, presetID string) (*domain.BrandPreset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	preset, ok := m.presets[presetID]
	if !ok {
		return nil, domain.ErrPresetNotFound
	}
	out := preset
	return &out, nil
}

func (m *Memory) IncrementDailyUsage(_ context.Context, workspaceID string, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[workspaceID+"|"+day]++
	return nil
}

func (m *Memory) DailyUsage(_ context.Context, workspaceID string, day string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage[workspaceID+"|"+day], nil
}
