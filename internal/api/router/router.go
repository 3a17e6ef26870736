package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contentforge/pipeline-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "pipeline-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	runHandler := handler.NewRunHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Register a new job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/runs - Create and dispatch the next run
			jobs.POST("/:job_id/runs", runHandler.CreateRun)

			// GET /api/v1/jobs/:job_id/runs - List a job's runs
			jobs.GET("/:job_id/runs", runHandler.ListRuns)
		}

		runs := v1.Group("/runs")
		{
			// GET /api/v1/runs/:run_id - Get a run with its step records
			runs.GET("/:run_id", runHandler.GetRun)
		}
	}

	return r
}
