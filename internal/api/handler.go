package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/textpipeline/internal/analyzer"
	"github.com/zombar/textpipeline/internal/config"
	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/models"
	"github.com/zombar/textpipeline/internal/queue"
	"github.com/zombar/textpipeline/internal/tracing"
	"github.com/zombar/textpipeline/pkg/logging"
)

// JobQueue enqueues and reads back asynchronous batch jobs
type JobQueue interface {
	EnqueueBatch(ctx context.Context, texts []string, opts models.Options, lang *langdetect.Options) (string, error)
	GetJob(ctx context.Context, id string) (*queue.JobStatus, error)
}

// Handler handles HTTP requests
type Handler struct {
	analyzer *analyzer.Analyzer
	jobs     JobQueue
	logger   *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler

	mu       sync.RWMutex
	defaults models.Options
	language langdetect.Options
	pipeline config.PipelineConfig
}

// NewHandler creates a new API handler with CORS support and metrics. jobs
// may be nil, in which case the job endpoints answer 503.
func NewHandler(cfg *config.Config, a *analyzer.Analyzer, jobs JobQueue, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		analyzer: a,
		jobs:     jobs,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	h.Reload(cfg)
	h.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	h.handler = c.Handler(h.mux)

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Reload swaps the pipeline defaults and limits. Server settings such as
// CORS origins need a restart.
func (h *Handler) Reload(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaults = cfg.Pipeline.Options.Clone()
	h.language = cfg.Language
	h.pipeline = cfg.Pipeline
}

func (h *Handler) setupRoutes() {
	h.mux.Handle("/metrics", promhttp.Handler())
	h.mux.HandleFunc("/api/analyze", h.handleAnalyze)
	h.mux.HandleFunc("/api/batch", h.handleBatch)
	h.mux.HandleFunc("/api/jobs", h.handleEnqueueJob)
	h.mux.HandleFunc("/api/jobs/", h.handleJobStatus)
	h.mux.HandleFunc("/api/operations", h.handleOperations)
	h.mux.HandleFunc("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":         "ok",
		"time":           time.Now().Format(time.RFC3339),
		"lexicon_loaded": h.analyzer.Lexicon().Loaded(),
		"jobs_enabled":   h.jobs != nil,
	}, http.StatusOK)
}

type analyzeRequest struct {
	Text     string              `json:"text" validate:"required"`
	Options  models.Options      `json:"options"`
	Language *langdetect.Options `json:"language,omitempty"`
}

type batchRequest struct {
	Texts    []string            `json:"texts" validate:"required,min=1,dive,required"`
	Options  models.Options      `json:"options"`
	Language *langdetect.Options `json:"language,omitempty"`
}

// handleAnalyze runs the pipeline over a single text
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limits := h.limits()

	var req analyzeRequest
	if !h.decode(w, r, &req, int64(limits.MaxTextBytes)+(64<<10)) {
		return
	}
	if len(req.Text) > limits.MaxTextBytes {
		respondError(w, fmt.Sprintf("text exceeds %d bytes", limits.MaxTextBytes), http.StatusRequestEntityTooLarge)
		return
	}

	opts, lang := h.resolve(req.Options, req.Language)
	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("text.length", len(req.Text)),
		attribute.StringSlice("pipeline.options", opts.Keys()),
	)

	result, err := h.analyzer.NewSession(req.Text,
		analyzer.WithOptions(opts),
		analyzer.WithLanguageOptions(lang),
		analyzer.WithSessionLogger(h.logger),
	).Run(r.Context())
	if err != nil {
		h.respondPipelineError(w, r, err)
		return
	}

	respondJSON(w, result, http.StatusOK)
}

// handleBatch runs the pipeline over several texts and waits for all of them
func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	opts, lang := h.resolve(req.Options, req.Language)
	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("batch.size", len(req.Texts)),
		attribute.StringSlice("pipeline.options", opts.Keys()),
	)

	items := h.analyzer.RunBatch(r.Context(), req.Texts, opts, h.limits().BatchConcurrency,
		analyzer.WithLanguageOptions(lang),
		analyzer.WithSessionLogger(h.logger),
	)

	respondJSON(w, map[string]any{"items": items}, http.StatusOK)
}

// handleEnqueueJob queues a batch for asynchronous processing
func (h *Handler) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.jobs == nil {
		respondError(w, "batch jobs are not enabled", http.StatusServiceUnavailable)
		return
	}

	req, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	opts, lang := h.resolve(req.Options, req.Language)
	jobID, err := h.jobs.EnqueueBatch(r.Context(), req.Texts, opts, &lang)
	if err != nil {
		logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, err, r)
		respondError(w, fmt.Sprintf("Failed to enqueue batch: %v", err), http.StatusInternalServerError)
		return
	}
	tracing.SetSpanAttributes(r.Context(), attribute.String("job.id", jobID))

	respondJSON(w, map[string]any{
		"job_id": jobID,
		"status": "queued",
		"texts":  len(req.Texts),
	}, http.StatusAccepted)
}

// handleJobStatus reports the state of a queued batch and its result once done
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.jobs == nil {
		respondError(w, "batch jobs are not enabled", http.StatusServiceUnavailable)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if idx := strings.Index(jobID, "/"); idx != -1 {
		jobID = jobID[:idx]
	}
	if jobID == "" {
		respondError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	status, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		respondJSON(w, map[string]any{
			"job_id":  jobID,
			"status":  "not_found",
			"message": "Job not found - it may have expired",
		}, http.StatusNotFound)
		return
	}
	if err != nil {
		logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, err, r)
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, status, http.StatusOK)
}

// handleOperations lists the built-in operation catalogue
func (h *Handler) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, analyzer.Operations(), http.StatusOK)
}

func (h *Handler) limits() config.PipelineConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pipeline
}

// resolve merges request options over the configured defaults. A request
// language block replaces the default one entirely.
func (h *Handler) resolve(reqOpts models.Options, reqLang *langdetect.Options) (models.Options, langdetect.Options) {
	h.mu.RLock()
	opts := h.defaults.Clone()
	lang := h.language
	h.mu.RUnlock()

	opts.Merge(reqOpts)
	if reqLang != nil {
		lang = *reqLang
		if lang.MinLength == 0 {
			lang.MinLength = langdetect.DefaultMinLength
		}
	}
	return opts, lang
}

func (h *Handler) decodeBatch(w http.ResponseWriter, r *http.Request) (*batchRequest, bool) {
	limits := h.limits()

	var req batchRequest
	if !h.decode(w, r, &req, int64(limits.MaxTextBytes)*int64(limits.MaxBatchSize)+(64<<10)) {
		return nil, false
	}
	if len(req.Texts) > limits.MaxBatchSize {
		respondError(w, fmt.Sprintf("batch exceeds %d texts", limits.MaxBatchSize), http.StatusBadRequest)
		return nil, false
	}
	for i, text := range req.Texts {
		if len(text) > limits.MaxTextBytes {
			respondError(w, fmt.Sprintf("text %d exceeds %d bytes", i, limits.MaxTextBytes), http.StatusRequestEntityTooLarge)
			return nil, false
		}
	}
	return &req, true
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode reads a JSON body of at most limit bytes into dst and validates it.
// It writes the error response itself and reports whether to continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, limit int64) bool {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		respondError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			respondError(w, "Invalid request: "+strings.Join(msgs, "; "), http.StatusBadRequest)
			return false
		}
		respondError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// respondPipelineError maps analyzer error kinds to client errors; anything
// else is a server error
func (h *Handler) respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	kind := analyzer.KindOf(err)
	status := http.StatusBadRequest
	if kind == "" {
		status = http.StatusInternalServerError
		logging.HTTPErrorLogger(h.logger, status, err, r)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
