package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contentforge/pipeline-be/internal/api/dto"
	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/contentforge/pipeline-be/internal/lifecycle"
)

// CreateRun handles POST /api/v1/jobs/:job_id/runs
// Creates the next pipeline run for a job and dispatches it to the worker
// queue. Reruns are only accepted for jobs in a rerunnable status.
func (h *RunHandler) CreateRun(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	// An empty body is fine; a malformed one is not.
	var req dto.CreateRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Error("Invalid request body", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}
	}

	run, err := h.lifecycle.CreateRun(c.Request.Context(), lifecycle.CreateRunInput{
		JobID:     jobID,
		Trigger:   domain.TriggerReason(req.Trigger),
		Overrides: req.Overrides,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		case errors.Is(err, domain.ErrActiveRunExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrJobNotRerunnable):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrPresetNotFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to create run", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create run"})
		}
		return
	}

	body, err := json.Marshal(domain.RunMessage{JobID: run.JobID, RunID: run.RunID})
	if err != nil {
		h.logger.Error("Failed to marshal run message", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch run"})
		return
	}

	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish run message",
			slog.String("run_id", run.RunID),
			slog.String("error", err.Error()),
		)
		// The run stays PENDING; a requeue sweep or manual redispatch can
		// pick it up once the broker is back.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch run"})
		return
	}

	h.logger.Info("Run dispatched",
		slog.String("run_id", run.RunID),
		slog.String("job_id", run.JobID),
		slog.Int("run_number", run.RunNumber),
	)

	c.JSON(http.StatusCreated, dto.RunFromDomain(run))
}

// ListRuns handles GET /api/v1/jobs/:job_id/runs
// Lists every run of a job in run_number order.
func (h *RunHandler) ListRuns(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if _, err := h.store.GetJob(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	runs, err := h.store.ListRuns(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to list runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	runResponse := make([]dto.RunDTO, len(runs))
	for i := range runs {
		runResponse[i] = dto.RunFromDomain(&runs[i])
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{Runs: runResponse})
}

// GetRun handles GET /api/v1/runs/:run_id
// Returns a run together with its per-stage step records.
func (h *RunHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		h.logger.Error("Failed to get run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get run"})
		return
	}

	steps, err := h.store.ListRunSteps(c.Request.Context(), runID)
	if err != nil {
		h.logger.Error("Failed to list run steps", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get run"})
		return
	}

	stepResponse := make([]dto.RunStepDTO, len(steps))
	for i := range steps {
		stepResponse[i] = dto.RunStepFromDomain(&steps[i])
	}

	c.JSON(http.StatusOK, dto.RunDetailResponse{
		Run:   dto.RunFromDomain(run),
		Steps: stepResponse,
	})
}
