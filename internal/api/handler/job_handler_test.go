package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
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

func newTestDeps(store domain.Store) *Dependencies {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Dependencies{
		Logger:    logger,
		Store:     store,
		Lifecycle: lifecycle.NewManager(store, logger),
	}
}

func newJobRouter(deps *Dependencies) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewJobHandler(deps)
	r.POST("/api/v1/jobs", h.CreateJob)
	r.GET("/api/v1/jobs", h.ListJobs)
	r.GET("/api/v1/jobs/:job_id", h.GetJob)
	return r
}

func TestCreateJobEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid url job",
			body:       `{"workspace_id":"ws-1","created_by":"user-1","source_kind":"URL","source_url":"https://example.com/a.mp3"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "valid upload job",
			body:       `{"workspace_id":"ws-1","created_by":"user-1","source_kind":"UPLOAD","source_filename":"talk.mp4"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed json",
			body:       `{"workspace_id":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown source kind",
			body:       `{"workspace_id":"ws-1","created_by":"user-1","source_kind":"STREAM"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "url job without url",
			body:       `{"workspace_id":"ws-1","created_by":"user-1","source_kind":"URL"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newJobRouter(newTestDeps(storage.NewMemory()))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantStatus == http.StatusCreated {
				var resp dto.JobDTO
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, string(domain.JobStatusReceived), resp.Status)
				assert.NotEmpty(t, resp.JobID)
			}
		})
	}
}

func TestGetJobEndpoint(t *testing.T) {
	store := storage.NewMemory()
	deps := newTestDeps(store)
	r := newJobRouter(deps)

	job, err := deps.Lifecycle.CreateJob(context.Background(), lifecycle.CreateJobInput{
		WorkspaceID: "ws-1",
		CreatedBy:   "user-1",
		SourceKind:  domain.SourceKindURL,
		SourceURL:   "https://example.com/a.mp3",
	})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.JobID, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.JobDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, job.JobID, resp.JobID)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.New().String(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid uuid", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListJobsEndpoint_Pagination(t *testing.T) {
	store := storage.NewMemory()
	deps := newTestDeps(store)
	r := newJobRouter(deps)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		err := store.CreateJob(context.Background(), &domain.Job{
			JobID:       uuid.New().String(),
			WorkspaceID: "ws-1",
			CreatedBy:   "user-1",
			SourceKind:  domain.SourceKindURL,
			SourceURL:   fmt.Sprintf("https://example.com/%d.mp3", i),
			Status:      domain.JobStatusReceived,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
			UpdatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?workspace_id=ws-1&page_size=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var page1 dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page1))
	require.Len(t, page1.Jobs, 2)
	require.NotEmpty(t, page1.NextCursor)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?workspace_id=ws-1&page_size=2&cursor="+page1.NextCursor, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var page2 dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page2))
	require.Len(t, page2.Jobs, 2)

	// Newest first, no overlap between pages.
	seen := map[string]bool{}
	for _, j := range append(page1.Jobs, page2.Jobs...) {
		assert.False(t, seen[j.JobID])
		seen[j.JobID] = true
	}

	t.Run("unknown status filter", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?status=NOPE", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("garbage cursor", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?cursor=%21%21%21", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobCursorRoundTrip(t *testing.T) {
	orig := &domain.JobCursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793, time.UTC),
		JobID:     "7c9b1b3a-9f1a-4a8e-b7a6-2f62b2f6a001",
	}

	decoded, err := DecodeJobCursor(EncodeJobCursor(orig))
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.True(t, orig.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, orig.JobID, decoded.JobID)

	t.Run("empty cursor", func(t *testing.T) {
		decoded, err := DecodeJobCursor("")
		require.NoError(t, err)
		assert.Nil(t, decoded)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, err := DecodeJobCursor("bm9zZXBhcmF0b3I=")
		assert.Error(t, err)
	})
}
