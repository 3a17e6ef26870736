package handler

import (
	"log/slog"

	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/contentforge/pipeline-be/internal/lifecycle"
	"github.com/contentforge/pipeline-be/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Store        domain.Store
	Lifecycle    *lifecycle.Manager
	RabbitClient *rabbitmq.Client
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	store     domain.Store
	lifecycle *lifecycle.Manager
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		lifecycle: deps.Lifecycle,
	}
}

// RunHandler handles run-related HTTP requests
type RunHandler struct {
	logger       *slog.Logger
	store        domain.Store
	lifecycle    *lifecycle.Manager
	rabbitClient *rabbitmq.Client
}

// NewRunHandler creates a new RunHandler instance
func NewRunHandler(deps *Dependencies) *RunHandler {
	return &RunHandler{
		logger:       deps.Logger,
		store:        deps.Store,
		lifecycle:    deps.Lifecycle,
		rabbitClient: deps.RabbitClient,
	}
}
