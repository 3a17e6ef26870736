package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/contentforge/pipeline-be/internal/pipeline"
	"github.com/contentforge/pipeline-be/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Orchestrator  *pipeline.Orchestrator
	WorkerID      string
	QueueName     string
	Concurrency   int
	PrefetchCount int
	RunTimeout    time.Duration
}

// runMessage pairs a queued run with its broker delivery tag so the
// processing goroutine can ACK or NACK it.
type runMessage struct {
	JobID       string
	RunID       string
	DeliveryTag uint64
}

// Worker consumes run messages from the queue and executes the pipeline for
// each one through a pool of goroutines.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	orchestrator  *pipeline.Orchestrator
	workerID      string
	queueName     string
	concurrency   int
	prefetchCount int
	runTimeout    time.Duration
	runsChan      chan *runMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		orchestrator:  cfg.Orchestrator,
		workerID:      cfg.WorkerID,
		queueName:     cfg.QueueName,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		runTimeout:    cfg.RunTimeout,
		runsChan:      make(chan *runMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing runs. It blocks until the context is
// canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("run_timeout", w.runTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker pool, waiting for in-flight runs.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
