package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sony/gobreaker"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "gpt-oss:20b"
	DefaultTimeout = 60 * time.Second

	// breaker trips when at least minRequests calls were made in the
	// interval and failureRatio of them failed
	minRequests  = 3
	failureRatio = 0.6
)

// Client wraps the Ollama API client
type Client struct {
	client     *api.Client
	httpClient *http.Client
	model      string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout bounds a single generation
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient sets the HTTP client used for API calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new Ollama client
func New(ollamaURL, model string, opts ...Option) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	c := &Client{
		httpClient: http.DefaultClient,
		model:      model,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = api.NewClient(baseURL, c.httpClient)

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ollama",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Ping checks that the Ollama server is reachable
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat failed: %w", err)
	}
	return nil
}

// GenerateResponse generates a response from the LLM
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("sending request to Ollama", "model", c.model, "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req := &api.GenerateRequest{
			Model:  c.model,
			Prompt: prompt,
			Stream: new(bool), // false
		}

		var response strings.Builder
		err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
			response.WriteString(resp.Response)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(response.String()), nil
	})
	if err != nil {
		c.logger.Error("Ollama generation failed", "model", c.model, "error", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text := result.(string)
	c.logger.Debug("Ollama response received", "chars", len(text))
	return text, nil
}

// sentimentResponse is the JSON object the model is asked to return
type sentimentResponse struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// ScoreSentiment asks the model for a polarity score in [-1, 1]
func (c *Client) ScoreSentiment(ctx context.Context, text string) (float64, error) {
	prompt := fmt.Sprintf(`Rate the overall sentiment of the following text.

Requirements:
- Return a score between -1.0 (very negative) and 1.0 (very positive)
- Use 0.0 for neutral or purely factual text
- Judge the author's tone, not the topic

Return ONLY a JSON object of the form {"score": 0.0, "label": "positive|negative|neutral"}, nothing else.

Text:
%s

JSON:`, text)

	response, err := c.GenerateResponse(ctx, prompt)
	if err != nil {
		return 0, err
	}
	return parseSentimentScore(response)
}

// parseSentimentScore extracts the score from a model reply that may wrap
// the JSON object in prose or code fences
func parseSentimentScore(response string) (float64, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return 0, fmt.Errorf("no JSON object found in response")
	}

	var result sentimentResponse
	if err := json.Unmarshal([]byte(response[start:end+1]), &result); err != nil {
		return 0, fmt.Errorf("failed to parse sentiment JSON: %w", err)
	}
	return math.Max(-1, math.Min(1, result.Score)), nil
}
