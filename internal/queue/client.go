package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/metrics"
	"github.com/zombar/textpipeline/internal/models"
)

// TypeAnalyzeBatch is the asynq task type of batch analysis jobs
const TypeAnalyzeBatch = "textpipeline:analyze_batch"

// Queue names. Batches larger than BulkThreshold go to the bulk queue so
// they do not starve small jobs.
const (
	QueueAnalysis = "analysis"
	QueueBulk     = "analysis-bulk"
	BulkThreshold = 20
)

// ErrJobNotFound is returned by GetJob for unknown or expired job ids
var ErrJobNotFound = errors.New("job not found")

// JobStatus is the externally visible state of a batch job
type JobStatus struct {
	ID          string       `json:"id"`
	Queue       string       `json:"queue"`
	State       string       `json:"state"`
	Retried     int          `json:"retried"`
	MaxRetry    int          `json:"max_retry"`
	LastError   string       `json:"last_error,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Result      *BatchResult `json:"result,omitempty"`
}

// Client wraps the Asynq client for enqueueing batch jobs and the inspector
// for reading them back
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

// EnqueueBatch enqueues texts for asynchronous analysis with opts and returns
// the job id. lang may be nil to use the worker's language defaults.
func (c *Client) EnqueueBatch(ctx context.Context, texts []string, opts models.Options, lang *langdetect.Options) (string, error) {
	jobID := uuid.NewString()

	task, taskOpts, err := newAnalyzeBatchTask(ctx, jobID, texts, opts, lang)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task, taskOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue batch task: %w", err)
	}

	metrics.JobsTotal.WithLabelValues("enqueued").Inc()
	return info.ID, nil
}

// newAnalyzeBatchTask builds the task and its options, copying the trace
// context of ctx into the payload
func newAnalyzeBatchTask(ctx context.Context, jobID string, texts []string, opts models.Options, lang *langdetect.Options) (*asynq.Task, []asynq.Option, error) {
	encoded, err := compressTexts(texts)
	if err != nil {
		return nil, nil, err
	}

	payload := AnalyzeBatchPayload{
		JobID:      jobID,
		Texts:      encoded,
		Options:    opts,
		Language:   lang,
		EnqueuedAt: time.Now().UnixNano(),
	}

	queueName := queueFor(len(texts))

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeBatch),
			attribute.String("task.id", jobID),
			attribute.String("task.queue", queueName),
			attribute.Int("batch.size", len(texts)),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeAnalyzeBatch, payloadBytes, asynq.TaskID(jobID))
	taskOpts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(10 * time.Minute),
		asynq.Queue(queueName),
		asynq.Retention(24 * time.Hour), // results stay readable for a day
	}
	return task, taskOpts, nil
}

func queueFor(size int) string {
	if size > BulkThreshold {
		return QueueBulk
	}
	return QueueAnalysis
}

// GetJob looks a job up in both queues and decodes its result once it has
// completed
func (c *Client) GetJob(ctx context.Context, id string) (*JobStatus, error) {
	for _, queueName := range []string{QueueAnalysis, QueueBulk} {
		info, err := c.inspector.GetTaskInfo(queueName, id)
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to inspect job %s: %w", id, err)
		}
		return jobStatusFromInfo(info)
	}
	return nil, ErrJobNotFound
}

// taskState names a task state. String panics on the zero value.
func taskState(state asynq.TaskState) string {
	if state < asynq.TaskStateActive || state > asynq.TaskStateAggregating {
		return "unknown"
	}
	return state.String()
}

func jobStatusFromInfo(info *asynq.TaskInfo) (*JobStatus, error) {
	status := &JobStatus{
		ID:        info.ID,
		Queue:     info.Queue,
		State:     taskState(info.State),
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
		LastError: info.LastErr,
	}
	if !info.CompletedAt.IsZero() {
		completed := info.CompletedAt
		status.CompletedAt = &completed
	}
	if len(info.Result) > 0 {
		var result BatchResult
		if err := json.Unmarshal(info.Result, &result); err != nil {
			return nil, fmt.Errorf("failed to decode result of job %s: %w", info.ID, err)
		}
		status.Result = &result
	}
	return status, nil
}

// Close closes the client and inspector connections
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
