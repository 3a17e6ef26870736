package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/contentforge/pipeline-be/internal/domain"
)

// Postgres implements domain.Store on PostgreSQL. JSON columns (run contracts,
// step metrics, preset defaults) are marshalled by hand so the structs stay
// plain maps for the rest of the code.
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ domain.Store = (*Postgres)(nil)

// NewPostgres creates a Postgres store over an open sqlx handle.
func NewPostgres(db *sqlx.DB, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger,
	}
}

func (s *Postgres) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, workspace_id, created_by, source_kind,
			source_url, source_filename, status, status_reason,
			language, brand_preset_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.WorkspaceID,
		job.CreatedBy,
		job.SourceKind,
		job.SourceURL,
		job.SourceFilename,
		job.Status,
		job.StatusReason,
		job.Language,
		job.BrandPresetID,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Postgres) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `
		SELECT
			job_id, workspace_id, created_by, source_kind,
			source_url, source_filename, status, status_reason,
			language, brand_preset_id, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *Postgres) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	query := `
		SELECT
			job_id, workspace_id, created_by, source_kind,
			source_url, source_filename, status, status_reason,
			language, brand_preset_id, created_at, updated_at
		FROM jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.WorkspaceID != "" {
		query += fmt.Sprintf(" AND workspace_id = $%d", argIdx)
		args = append(args, filter.WorkspaceID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Keyset order must match the cursor comparison.
	query += " ORDER BY created_at DESC, job_id DESC"

	// One extra row tells the handler whether another page exists.
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *Postgres) SetJobStatus(ctx context.Context, jobID string, status domain.JobStatus, reason string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    status_reason = $2,
		    updated_at = NOW()
		WHERE job_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, reason, jobID)
	if err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	s.logger.Info("job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)

	return nil
}

func (s *Postgres) CreateRun(ctx context.Context, run *domain.Run) error {
	contractJSON, err := json.Marshal(run.Contract)
	if err != nil {
		return fmt.Errorf("failed to marshal contract: %w", err)
	}

	query := `
		INSERT INTO runs (
			run_id, job_id, run_number, trigger_reason,
			status, contract, tokens_used, cost_usd,
			error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11
		)
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		run.RunID,
		run.JobID,
		run.RunNumber,
		run.Trigger,
		run.Status,
		contractJSON,
		run.TokensUsed,
		run.CostUSD,
		run.ErrorMessage,
		run.CreatedAt,
		run.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

const runColumns = `
	run_id, job_id, run_number, trigger_reason,
	status, contract, tokens_used, cost_usd,
	started_at, finished_at, error_message, created_at, updated_at
`

func (s *Postgres) scanRun(row *sql.Row) (*domain.Run, error) {
	var run domain.Run
	var contractJSON []byte

	err := row.Scan(
		&run.RunID,
		&run.JobID,
		&run.RunNumber,
		&run.Trigger,
		&run.Status,
		&contractJSON,
		&run.TokensUsed,
		&run.CostUSD,
		&run.StartedAt,
		&run.FinishedAt,
		&run.ErrorMessage,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(contractJSON) > 0 {
		if err := json.Unmarshal(contractJSON, &run.Contract); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contract: %w", err)
		}
	}

	return &run, nil
}

func (s *Postgres) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = $1`

	run, err := s.scanRun(s.db.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

func (s *Postgres) ListRuns(ctx context.Context, jobID string) ([]domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE job_id = $1 ORDER BY run_number ASC`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		var contractJSON []byte

		err := rows.Scan(
			&run.RunID,
			&run.JobID,
			&run.RunNumber,
			&run.Trigger,
			&run.Status,
			&contractJSON,
			&run.TokensUsed,
			&run.CostUSD,
			&run.StartedAt,
			&run.FinishedAt,
			&run.ErrorMessage,
			&run.CreatedAt,
			&run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if len(contractJSON) > 0 {
			if err := json.Unmarshal(contractJSON, &run.Contract); err != nil {
				return nil, fmt.Errorf("failed to unmarshal contract: %w", err)
			}
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func (s *Postgres) CountRuns(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM runs WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

func (s *Postgres) ActiveRun(ctx context.Context, jobID string) (*domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE job_id = $1 AND status IN ($2, $3)
		ORDER BY run_number DESC
		LIMIT 1
	`

	run, err := s.scanRun(s.db.QueryRowContext(ctx, query, jobID, domain.RunStatusPending, domain.RunStatusRunning))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active run: %w", err)
	}

	return run, nil
}

func (s *Postgres) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, errorMessage string) error {
	query := `
		UPDATE runs
		SET status = $1::text,
		    error_message = $2,
		    started_at = CASE
		        WHEN $1::text = $3::text AND started_at IS NULL THEN NOW()
		        ELSE started_at
		    END,
		    finished_at = CASE
		        WHEN $1::text IN ($4::text, $5::text, $6::text) THEN NOW()
		        ELSE finished_at
		    END,
		    updated_at = NOW()
		WHERE run_id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		errorMessage,
		domain.RunStatusRunning,
		domain.RunStatusSucceeded,
		domain.RunStatusFailed,
		domain.RunStatusCancelled,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrRunNotFound
	}

	s.logger.Info("run status updated",
		slog.String("run_id", runID),
		slog.String("status", string(status)),
	)

	return nil
}

func (s *Postgres) AddRunUsage(ctx context.Context, runID string, tokens int64, costUSD float64) error {
	query := `
		UPDATE runs
		SET tokens_used = tokens_used + $1,
		    cost_usd = cost_usd + $2,
		    updated_at = NOW()
		WHERE run_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, tokens, costUSD, runID)
	if err != nil {
		return fmt.Errorf("failed to add run usage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}

func (s *Postgres) CreateRunStep(ctx context.Context, step *domain.RunStep) error {
	metricsJSON, err := json.Marshal(step.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO run_steps (
			step_id, run_id, stage, status,
			attempt, started_at, finished_at, duration_ms,
			error_code, error_detail, metrics
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11
		)
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		step.StepID,
		step.RunID,
		step.Stage,
		step.Status,
		step.Attempt,
		step.StartedAt,
		step.FinishedAt,
		step.DurationMS,
		step.ErrorCode,
		step.ErrorDetail,
		metricsJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to create run step: %w", err)
	}

	return nil
}

func (s *Postgres) UpdateRunStep(ctx context.Context, step *domain.RunStep) error {
	metricsJSON, err := json.Marshal(step.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		UPDATE run_steps
		SET status = $1,
		    attempt = $2,
		    finished_at = $3,
		    duration_ms = $4,
		    error_code = $5,
		    error_detail = $6,
		    metrics = $7
		WHERE step_id = $8
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		step.Status,
		step.Attempt,
		step.FinishedAt,
		step.DurationMS,
		step.ErrorCode,
		step.ErrorDetail,
		metricsJSON,
		step.StepID,
	)

	if err != nil {
		return fmt.Errorf("failed to update run step: %w", err)
	}

	return nil
}

func (s *Postgres) ListRunSteps(ctx context.Context, runID string) ([]domain.RunStep, error) {
	query := `
		SELECT
			step_id, run_id, stage, status,
			attempt, started_at, finished_at, duration_ms,
			error_code, error_detail, metrics
		FROM run_steps
		WHERE run_id = $1
		ORDER BY started_at ASC, step_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.RunStep
	for rows.Next() {
		var step domain.RunStep
		var metricsJSON []byte

		err := rows.Scan(
			&step.StepID,
			&step.RunID,
			&step.Stage,
			&step.Status,
			&step.Attempt,
			&step.StartedAt,
			&step.FinishedAt,
			&step.DurationMS,
			&step.ErrorCode,
			&step.ErrorDetail,
			&metricsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}

		if len(metricsJSON) > 0 {
			if err := json.Unmarshal(metricsJSON, &step.Metrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
			}
		}

		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run steps: %w", err)
	}

	return steps, nil
}

func (s *Postgres) GetBrandPreset(ctx context.Context, presetID string) (*domain.BrandPreset, error) {
	query := `
		SELECT preset_id, workspace_id, name, defaults, created_at
		FROM brand_presets
		WHERE preset_id = $1
	`

	var preset domain.BrandPreset
	var defaultsJSON []byte

	err := s.db.QueryRowContext(ctx, query, presetID).Scan(
		&preset.PresetID,
		&preset.WorkspaceID,
		&preset.Name,
		&defaultsJSON,
		&preset.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPresetNotFound
		}
		return nil, fmt.Errorf("failed to get brand preset: %w", err)
	}

	if len(defaultsJSON) > 0 {
		if err := json.Unmarshal(defaultsJSON, &preset.Defaults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preset defaults: %w", err)
		}
	}

	return &preset, nil
}

func (s *Postgres) IncrementDailyUsage(ctx context.Context, workspaceID string, day string) error {
	query := `
		INSERT INTO daily_usage (workspace_id, day, runs)
		VALUES ($1, $2, 1)
		ON CONFLICT (workspace_id, day)
		DO UPDATE SET runs = daily_usage.runs + 1
	`

	_, err := s.db.ExecContext(ctx, query, workspaceID, day)
	if err != nil {
		return fmt.Errorf("failed to increment daily usage: %w", err)
	}

	return nil
}

func (s *Postgres) DailyUsage(ctx context.Context, workspaceID string, day string) (int, error) {
	var runs int
	query := `SELECT runs FROM daily_usage WHERE workspace_id = $1 AND day = $2`

	err := s.db.GetContext(ctx, &runs, query, workspaceID, day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get daily usage: %w", err)
	}

	return runs, nil
}
