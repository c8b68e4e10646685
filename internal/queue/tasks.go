package queue

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/textpipeline/internal/analyzer"
	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/metrics"
	"github.com/zombar/textpipeline/internal/models"
	"github.com/zombar/textpipeline/internal/tracing"
)

// BatchResult is written as the task result when a batch job completes
type BatchResult struct {
	JobID       string               `json:"job_id"`
	Items       []analyzer.BatchItem `json:"items"`
	Succeeded   int                  `json:"succeeded"`
	Failed      int                  `json:"failed"`
	CompletedAt time.Time            `json:"completed_at"`
}

// handleAnalyzeBatch runs a batch job through the analyzer
func (w *Worker) handleAnalyzeBatch(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzeBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	retryCount, _ := asynq.GetRetryCount(ctx)

	var queueWaitTime time.Duration
	if payload.EnqueuedAt > 0 {
		queueWaitTime = time.Since(time.Unix(0, payload.EnqueuedAt))
	}

	if parent, ok := tracing.ContextWithRemoteParent(ctx, payload.TraceID, payload.SpanID); ok {
		ctx = parent
	}
	ctx, span := otel.Tracer("textpipeline/queue").Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeBatch),
			attribute.String("job.id", payload.JobID),
			attribute.Int("retry_count", retryCount),
			attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		),
	)
	defer span.End()

	texts, err := decompressTexts(payload.Texts)
	if err != nil {
		w.logger.Error("failed to decode batch texts", "job_id", payload.JobID, "error", err)
		tracing.RecordError(ctx, err)
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("invalid batch texts: %v: %w", err, asynq.SkipRetry)
	}
	span.SetAttributes(attribute.Int("batch.size", len(texts)))

	w.logger.Info("processing batch job",
		"job_id", payload.JobID,
		"texts", len(texts),
		"retry_count", retryCount,
		"queue_wait_seconds", queueWaitTime.Seconds(),
	)

	var sessionOpts []analyzer.SessionOption
	if payload.Language != nil {
		sessionOpts = append(sessionOpts, analyzer.WithLanguageOptions(*payload.Language))
	}

	items := w.analyzer.RunBatch(ctx, texts, payload.Options, w.batchConcurrency, sessionOpts...)

	// cancelled mid-batch: let asynq retry the whole job
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	result := BatchResult{
		JobID:       payload.JobID,
		Items:       items,
		CompletedAt: time.Now().UTC(),
	}
	for _, item := range items {
		if item.Result != nil {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to marshal batch result: %v: %w", err, asynq.SkipRetry)
	}

	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(data); err != nil {
			tracing.RecordError(ctx, err)
			if isRetriableError(err) {
				w.logger.Warn("retriable error writing batch result, will retry", "job_id", payload.JobID, "error", err)
				return err
			}
			metrics.JobsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("failed to write batch result: %v: %w", err, asynq.SkipRetry)
		}
	}

	metrics.JobsTotal.WithLabelValues("completed").Inc()
	span.SetAttributes(
		attribute.Int("batch.succeeded", result.Succeeded),
		attribute.Int("batch.failed", result.Failed),
	)
	w.logger.Info("batch job completed",
		"job_id", payload.JobID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return nil
}

// isRetriableError reports whether err looks like a transient connection or
// timeout failure rather than a permanent one
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	retriablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"bad gateway",
		"too many requests",
		"circuit breaker is open",
		"i/o timeout",
		"no such host",
		"network is unreachable",
	}
	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// compressTexts gzips the JSON encoding of texts and base64 encodes it. No
// texts compress to "".
func compressTexts(texts []string) (string, error) {
	if len(texts) == 0 {
		return "", nil
	}

	raw, err := json.Marshal(texts)
	if err != nil {
		return "", fmt.Errorf("failed to encode texts: %w", err)
	}

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	if _, err := gzWriter.Write(raw); err != nil {
		return "", fmt.Errorf("failed to write to gzip: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decompressTexts reverses compressTexts. An empty string decodes to no texts.
func decompressTexts(encoded string) ([]string, error) {
	if encoded == "" {
		return []string{}, nil
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	gzReader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	raw, err := io.ReadAll(gzReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}

	var texts []string
	if err := json.Unmarshal(raw, &texts); err != nil {
		return nil, fmt.Errorf("failed to decode texts: %w", err)
	}
	if texts == nil {
		texts = []string{}
	}
	return texts, nil
}

// AnalyzeBatchPayload is the asynq payload of a batch job
type AnalyzeBatchPayload struct {
	JobID    string              `json:"job_id"`
	Texts    string              `json:"texts"` // gzip + base64 encoded JSON array
	Options  models.Options      `json:"options"`
	Language *langdetect.Options `json:"language,omitempty"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}
