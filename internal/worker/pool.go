package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/contentforge/pipeline-be/internal/domain"
)

// spawnWorkerPool spawns N processing goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each pool goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.runsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - runsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.logger.Info("Worker picked up run",
				slog.String("worker_name", workerName),
				slog.String("run_id", msg.RunID),
				slog.String("job_id", msg.JobID),
			)

			err := w.executeRun(ctx, msg)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("run_id", msg.RunID),
				)
				continue
			}

			if err != nil {
				w.logger.Error("Run processing failed",
					slog.String("worker_name", workerName),
					slog.String("run_id", msg.RunID),
					slog.String("error", err.Error()),
				)

				requeue := w.shouldRequeueRun(err)
				if nackErr := channel.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.String("run_id", msg.RunID),
						slog.String("error", nackErr.Error()),
					)
				} else {
					w.logger.Info("Message NACKed",
						slog.String("worker_name", workerName),
						slog.String("run_id", msg.RunID),
						slog.Bool("requeue", requeue),
					)
				}
				continue
			}

			if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("run_id", msg.RunID),
					slog.String("error", ackErr.Error()),
				)
			} else {
				w.logger.Info("Run processed",
					slog.String("worker_name", workerName),
					slog.String("run_id", msg.RunID),
				)
			}
		}
	}
}

// executeRun drives the pipeline for one run under the configured timeout.
// Stage failures are recorded by the orchestrator and are not errors here; an
// error means the run could not be driven at all.
func (w *Worker) executeRun(ctx context.Context, msg *runMessage) error {
	runCtx := ctx
	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}

	return w.orchestrator.ExecuteRun(runCtx, msg.RunID)
}

// shouldRequeueRun decides the NACK requeue flag. Runs that no longer exist
// can never succeed on redelivery; infrastructure errors are presumed
// transient and worth another worker's attempt.
func (w *Worker) shouldRequeueRun(err error) bool {
	if errors.Is(err, domain.ErrRunNotFound) || errors.Is(err, domain.ErrJobNotFound) {
		return false
	}
	return true
}
