package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/textpipeline/internal/analyzer"
	"github.com/zombar/textpipeline/internal/lexicon"
	"github.com/zombar/textpipeline/internal/models"
)

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := analyzer.New(
		analyzer.WithLexicon(lexicon.NewStatic(nil, nil)),
		analyzer.WithLogger(logger),
	)
	return &Worker{analyzer: a, batchConcurrency: 2, logger: logger}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
	}{
		{"single", []string{"Sample text for analysis"}},
		{"several", []string{"one", "", "three"}},
		{"unicode", []string{"Hello 世界 مرحبا שלום Привет"}},
		{"newlines and tabs", []string{"line one\n\tline two\r\n"}},
		{"large", []string{strings.Repeat("Paragraph content with some text. ", 500)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := compressTexts(tt.texts)
			require.NoError(t, err)
			require.NotEmpty(t, compressed)

			decompressed, err := decompressTexts(compressed)
			require.NoError(t, err)
			assert.Equal(t, tt.texts, decompressed)
		})
	}
}

func TestCompressEmpty(t *testing.T) {
	compressed, err := compressTexts(nil)
	require.NoError(t, err)
	assert.Empty(t, compressed)

	texts, err := decompressTexts("")
	require.NoError(t, err)
	assert.NotNil(t, texts)
	assert.Empty(t, texts)
}

func TestDecompressErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid base64", "not-valid-base64!!!"},
		{"not gzipped", "SGVsbG8gV29ybGQ="}, // "Hello World"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decompressTexts(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestCompressionRatio(t *testing.T) {
	text := strings.Repeat("This is a paragraph with repetitive content. ", 200)

	compressed, err := compressTexts([]string{text, text})
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(text)/4)
}

func TestHandleAnalyzeBatch(t *testing.T) {
	w := newTestWorker(t)

	opts := models.NewOptions("toUppercase", true, "countWords", true)
	task, _, err := newAnalyzeBatchTask(context.Background(), "job-1", []string{"hello world", "one two three"}, opts, nil)
	require.NoError(t, err)

	require.NoError(t, w.handleAnalyzeBatch(context.Background(), task))
}

func TestHandleAnalyzeBatchInvalidPayload(t *testing.T) {
	w := newTestWorker(t)

	err := w.handleAnalyzeBatch(context.Background(), asynq.NewTask(TypeAnalyzeBatch, []byte("{not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	payload, err := json.Marshal(AnalyzeBatchPayload{JobID: "job-2", Texts: "%%%"})
	require.NoError(t, err)
	err = w.handleAnalyzeBatch(context.Background(), asynq.NewTask(TypeAnalyzeBatch, payload))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleAnalyzeBatchCancelled(t *testing.T) {
	w := newTestWorker(t)

	task, _, err := newAnalyzeBatchTask(context.Background(), "job-3", []string{"text"}, models.NewOptions("toUppercase", true), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = w.handleAnalyzeBatch(ctx, task)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}
