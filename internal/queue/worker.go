package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/textpipeline/internal/analyzer"
)

// Worker wraps the Asynq server for processing batch jobs
type Worker struct {
	server           *asynq.Server
	mux              *asynq.ServeMux
	analyzer         *analyzer.Analyzer
	concurrency      int
	batchConcurrency int
	logger           *slog.Logger
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
	// BatchConcurrency bounds the sessions run in parallel inside one job
	BatchConcurrency int
}

var queuePriorities = map[string]int{
	QueueAnalysis: 6,
	QueueBulk:     3,
}

// NewWorker creates a new queue worker
func NewWorker(cfg WorkerConfig, a *analyzer.Analyzer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}

	w := &Worker{
		mux:              asynq.NewServeMux(),
		analyzer:         a,
		concurrency:      cfg.Concurrency,
		batchConcurrency: cfg.BatchConcurrency,
		logger:           logger,
	}

	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	w.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,

		// processed proportionally, bulk jobs are not blocked outright
		Queues:         queuePriorities,
		StrictPriority: false,

		RetryDelayFunc:  retryDelay,
		ShutdownTimeout: 30 * time.Second,

		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			logger.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
	})

	w.registerHandlers()
	return w
}

func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeAnalyzeBatch, w.handleAnalyzeBatch)
}

// Start begins processing tasks. It blocks until the server stops.
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"batch_concurrency", w.batchConcurrency,
		"queues", queuePriorities,
	)

	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}

var (
	// transient failures (redis hiccups, cancelled runs): retry soon
	transientDelays = []time.Duration{
		10 * time.Second,
		30 * time.Second,
		1 * time.Minute,
		5 * time.Minute,
	}
	standardDelays = []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
	}
)

// retryDelay picks the backoff ladder from the failure
func retryDelay(n int, err error, _ *asynq.Task) time.Duration {
	delays := standardDelays
	if isRetriableError(err) {
		delays = transientDelays
	}
	if n < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}
