package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		ollamaURL     string
		model         string
		expectError   bool
		expectedModel string
	}{
		{
			name:          "default values",
			expectedModel: DefaultModel,
		},
		{
			name:          "custom URL and model",
			ollamaURL:     "http://custom-ollama:11434",
			model:         "llama3.2",
			expectedModel: "llama3.2",
		},
		{
			name:        "invalid URL",
			ollamaURL:   "://invalid-url",
			model:       "test",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.ollamaURL, tt.model)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedModel, client.Model())
			assert.Equal(t, DefaultTimeout, client.timeout)
		})
	}
}

func TestParseSentimentScore(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected float64
		wantErr  bool
	}{
		{"plain object", `{"score": 0.75, "label": "positive"}`, 0.75, false},
		{"wrapped in prose", "Here you go:\n```json\n{\"score\": -0.4}\n```", -0.4, false},
		{"clamped high", `{"score": 3}`, 1, false},
		{"clamped low", `{"score": -2.5}`, -1, false},
		{"no object", "I think it is positive", 0, true},
		{"malformed", `{"score": "high"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSentimentScore(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func newTestServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/" && r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/generate":
			var req map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req["model"])

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"model":    "test-model",
				"response": reply,
				"done":     true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestScoreSentimentAgainstServer(t *testing.T) {
	server := newTestServer(t, `{"score": -0.6, "label": "negative"}`)
	defer server.Close()

	client, err := New(server.URL, "test-model")
	require.NoError(t, err)

	require.NoError(t, client.Ping(context.Background()))

	score, err := client.ScoreSentiment(context.Background(), "This is terrible")
	require.NoError(t, err)
	assert.Equal(t, -0.6, score)
}

func TestPingUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := New(url, "test-model")
	require.NoError(t, err)

	assert.Error(t, client.Ping(context.Background()))
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model crashed"}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "test-model")
	require.NoError(t, err)

	for i := 0; i < minRequests+2; i++ {
		_, err := client.GenerateResponse(context.Background(), "hello")
		assert.Error(t, err)
	}

	assert.Equal(t, minRequests, hits, "open breaker short-circuits further calls")
}

func TestContextHandling(t *testing.T) {
	server := newTestServer(t, "unused")
	defer server.Close()

	client, err := New(server.URL, "test-model")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.ScoreSentiment(ctx, "test")
	assert.Error(t, err)
}
