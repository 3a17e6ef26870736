package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentforge/pipeline-be/internal/api/dto"
	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/contentforge/pipeline-be/internal/lifecycle"
	"github.com/contentforge/pipeline-be/internal/storage"
)

func newRunRouter(deps *Dependencies) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewRunHandler(deps)
	r.GET("/api/v1/jobs/:job_id/runs", h.ListRuns)
	r.GET("/api/v1/runs/:run_id", h.GetRun)
	return r
}

func seedJobWithRun(t *testing.T, deps *Dependencies) (*domain.Job, *domain.Run) {
	t.Helper()

	job, err := deps.Lifecycle.CreateJob(context.Background(), lifecycle.CreateJobInput{
		WorkspaceID: "ws-1",
		CreatedBy:   "user-1",
		SourceKind:  domain.SourceKindURL,
		SourceURL:   "https://example.com/a.mp3",
	})
	require.NoError(t, err)

	run, err := deps.Lifecycle.CreateRun(context.Background(), lifecycle.CreateRunInput{
		JobID: job.JobID,
	})
	require.NoError(t, err)

	return job, run
}

func TestListRunsEndpoint(t *testing.T) {
	store := storage.NewMemory()
	deps := newTestDeps(store)
	r := newRunRouter(deps)

	job, run := seedJobWithRun(t, deps)

	t.Run("lists runs", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.JobID+"/runs", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.ListRunsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Runs, 1)
		assert.Equal(t, run.RunID, resp.Runs[0].RunID)
		assert.Equal(t, 1, resp.Runs[0].RunNumber)
	})

	t.Run("unknown job", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.New().String()+"/runs", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid job id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope/runs", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetRunEndpoint(t *testing.T) {
	store := storage.NewMemory()
	deps := newTestDeps(store)
	r := newRunRouter(deps)

	_, run := seedJobWithRun(t, deps)

	now := time.Now().UTC()
	require.NoError(t, store.CreateRunStep(context.Background(), &domain.RunStep{
		StepID:    uuid.New().String(),
		RunID:     run.RunID,
		Stage:     "VALIDATION",
		Status:    domain.StepStatusSucceeded,
		Attempt:   1,
		StartedAt: now,
	}))

	t.Run("run with steps", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+run.RunID, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.RunDetailResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, run.RunID, resp.Run.RunID)
		require.Len(t, resp.Steps, 1)
		assert.Equal(t, "VALIDATION", resp.Steps[0].Stage)
	})

	t.Run("unknown run", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.New().String(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
