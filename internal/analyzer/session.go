package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/metrics"
	"github.com/zombar/textpipeline/internal/models"
)

// CustomOperation is a caller-defined pipeline step
type CustomOperation struct {
	ID        string
	Name      string
	Transform func(text string) (string, error)
	Enabled   bool

	// Metadata is merged into the run's custom metadata under ID
	Metadata map[string]any

	// MetadataExtractor sees the text before Transform runs; its output is
	// merged over Metadata
	MetadataExtractor func(text string) map[string]any
}

// Session owns one text buffer and everything derived from it. A session
// must not be used from more than one goroutine at a time.
type Session struct {
	analyzer *Analyzer
	logger   *slog.Logger

	original string
	text     string
	options  models.Options
	langOpts langdetect.Options

	customOps map[string]*CustomOperation

	counts      models.Counts
	extracted   models.Extracted
	sentiment   *models.SentimentResult
	readability *models.ReadabilityResult
	language    *models.LanguageDetectionResult
	comparison  *models.TextDiffResult
	custom      map[string]any
	log         []models.LogEntry
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithOptions sets the initial operation options
func WithOptions(opts models.Options) SessionOption {
	return func(s *Session) { s.options.Merge(opts) }
}

// WithLanguageOptions sets the whitelist, blacklist and minimum length used
// by language detection
func WithLanguageOptions(opts langdetect.Options) SessionOption {
	return func(s *Session) { s.langOpts = opts }
}

// WithSessionLogger sets the session logger
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// NewSession creates a session over text
func (a *Analyzer) NewSession(text string, opts ...SessionOption) *Session {
	s := &Session{
		analyzer:  a,
		logger:    a.logger,
		original:  text,
		text:      text,
		langOpts:  a.langOpts,
		customOps: make(map[string]*CustomOperation),
	}
	s.clearDerived()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Text returns the current buffer
func (s *Session) Text() string {
	return s.text
}

// Options returns a copy of the current options
func (s *Session) Options() models.Options {
	return s.options.Clone()
}

// Configure merges opts into the session options. Existing keys keep their
// position and take the new value; new keys are appended.
func (s *Session) Configure(opts models.Options) {
	s.options.Merge(opts)
}

// RegisterCustomOperation adds a custom operation. Its id must not collide
// with a built-in key or value or another custom id.
func (s *Session) RegisterCustomOperation(op CustomOperation) error {
	const method = "RegisterCustomOperation"

	switch {
	case op.ID == "":
		return newError(KindInvalidArgument, method, "operation id is required")
	case op.Name == "":
		return newError(KindInvalidArgument, method, "operation name is required")
	case op.Transform == nil:
		return newError(KindInvalidArgument, method, "operation %q has no transform", op.ID)
	}

	if IsBuiltin(op.ID) {
		return newError(KindDuplicateOperation, method, "%q is a built-in operation", op.ID)
	}
	if _, exists := s.customOps[op.ID]; exists {
		return newError(KindDuplicateOperation, method, "%q is already registered", op.ID)
	}

	registered := op
	registered.Metadata = maps.Clone(op.Metadata)
	s.customOps[op.ID] = &registered

	if v, ok := s.options.Get(op.ID); !ok || !isEnabled(v) {
		s.options.Set(op.ID, op.Enabled)
	}
	return nil
}

// Toggle enables or disables an operation. The id must be a configured
// option, a built-in or a registered custom operation.
func (s *Session) Toggle(id string, enabled bool) error {
	_, configured := s.options.Get(id)
	_, custom := s.customOps[id]
	if !configured && !custom && !IsBuiltin(id) {
		return newError(KindUnknownOperation, "Toggle", "%q is not a known operation", id)
	}

	if v, ok := s.options.Get(id); ok {
		b, isBool := v.(bool)
		if isBool && b == enabled {
			return nil
		}
		// a config payload already means enabled
		if !isBool && v != nil && enabled {
			return nil
		}
	}
	s.options.Set(id, enabled)
	return nil
}

// EnableAll enables every built-in, by key and by value, and every custom
// operation
func (s *Session) EnableAll() {
	s.setAll(true)
}

// DisableAll disables every built-in and custom operation
func (s *Session) DisableAll() {
	s.setAll(false)
}

func (s *Session) setAll(enabled bool) {
	for _, op := range builtins {
		s.options.Set(op.Key, enabled)
		s.options.Set(op.Value, enabled)
	}
	for id := range s.customOps {
		s.options.Set(id, enabled)
	}
}

// Reset restores the original text and clears derived state and the log.
// Custom operations and options are kept.
func (s *Session) Reset() {
	s.text = s.original
	s.clearDerived()
}

// ResetText replaces the text and clears derived state and the log. The new
// text becomes the text Reset returns to.
func (s *Session) ResetText(text string) {
	s.original = text
	s.text = text
	s.clearDerived()
}

func (s *Session) clearDerived() {
	s.counts = models.Counts{}
	s.extracted = models.Extracted{
		URLs:         []string{},
		Emails:       []string{},
		PhoneNumbers: []string{},
		Hashtags:     []string{},
		Mentions:     []string{},
		Keywords:     []string{},
	}
	s.sentiment = nil
	s.readability = nil
	s.language = nil
	s.comparison = nil
	s.custom = make(map[string]any)
	s.log = nil
}

// Run executes the enabled operations in option order. An option is enabled
// when its value is true or any non-nil, non-false payload. Options without a
// handler are skipped with a warning. The first handler error stops the run
// and is returned; mutations made before it are kept.
func (s *Session) Run(ctx context.Context) (*models.Result, error) {
	started := time.Now()

	ctx, span := s.analyzer.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.Int("text.length", len(s.text)),
			attribute.Int("options.count", s.options.Len()),
		),
	)
	defer span.End()

	// key and value name the same built-in; it runs once per pass
	ran := make(map[string]bool)
	for _, id := range s.options.Keys() {
		cfg, _ := s.options.Get(id)
		if !isEnabled(cfg) {
			continue
		}
		if _, custom := s.customOps[id]; !custom {
			if op, ok := LookupOperation(id); ok {
				if ran[op.Value] {
					continue
				}
				ran[op.Value] = true
			}
		}

		if err := s.apply(ctx, id, cfg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
			metrics.PipelineRunDuration.Observe(time.Since(started).Seconds())
			return nil, err
		}
	}

	finished := time.Now()
	metrics.PipelineRunsTotal.WithLabelValues("success").Inc()
	metrics.PipelineRunDuration.Observe(finished.Sub(started).Seconds())
	span.SetAttributes(attribute.Int("operations.applied", len(s.log)))

	return s.snapshot(started, finished), nil
}

func (s *Session) apply(ctx context.Context, id string, cfg any) error {
	var (
		kind        string
		name        string
		description string
		err         error
	)

	start := time.Now()
	if op, ok := s.customOps[id]; ok {
		kind, name = models.KindCustom, op.Name
		description, err = s.applyCustom(op)
	} else if op, ok := LookupOperation(id); ok {
		kind, name = models.KindBuiltin, op.Value

		opCtx, span := s.analyzer.tracer.Start(ctx, "pipeline.operation",
			trace.WithAttributes(attribute.String("operation", op.Value)),
		)
		description, err = op.handler.Apply(opCtx, s, cfg)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	} else {
		metrics.UnknownOperationsTotal.Inc()
		s.logger.Warn("no handler for option, skipping", "operation", id)
		return nil
	}

	// custom ids are unbounded, so they share a label
	label := name
	if kind == models.KindCustom {
		label = "custom"
	}
	metrics.OperationDuration.WithLabelValues(label, kind).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.OperationsTotal.WithLabelValues(label, kind, "error").Inc()
		s.log = append(s.log, models.LogEntry{
			Operation:   id,
			Description: fmt.Sprintf("Failed: %s: %v", name, err),
			Kind:        kind,
			Failed:      true,
		})
		s.logger.Error("operation failed", "operation", id, "kind", kind, "error", err)
		return err
	}

	metrics.OperationsTotal.WithLabelValues(label, kind, "success").Inc()
	s.log = append(s.log, models.LogEntry{
		Operation:   id,
		Description: description,
		Kind:        kind,
	})
	return nil
}

func (s *Session) applyCustom(op *CustomOperation) (string, error) {
	var meta map[string]any
	if len(op.Metadata) > 0 {
		meta = maps.Clone(op.Metadata)
	}
	if op.MetadataExtractor != nil {
		if extracted := op.MetadataExtractor(s.text); len(extracted) > 0 {
			if meta == nil {
				meta = make(map[string]any, len(extracted))
			}
			maps.Copy(meta, extracted)
		}
	}

	out, err := op.Transform(s.text)
	if err != nil {
		return "", err
	}
	s.text = out

	if meta != nil {
		s.custom[op.ID] = meta
	}
	return op.Name, nil
}

// Log returns a copy of the operation log, including a failed entry if the
// last run stopped on an error
func (s *Session) Log() []models.LogEntry {
	out := make([]models.LogEntry, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Session) snapshot(started, finished time.Time) *models.Result {
	ops := models.OperationLog{
		All:     []string{},
		Builtin: []string{},
		Custom:  []string{},
		Entries: s.Log(),
	}
	for _, e := range s.log {
		ops.All = append(ops.All, e.Description)
		if e.Kind == models.KindCustom {
			ops.Custom = append(ops.Custom, e.Description)
		} else {
			ops.Builtin = append(ops.Builtin, e.Description)
		}
	}

	meta := models.Metadata{
		Counts: s.counts,
		Extracted: models.Extracted{
			URLs:         cloneStrings(s.extracted.URLs),
			Emails:       cloneStrings(s.extracted.Emails),
			PhoneNumbers: cloneStrings(s.extracted.PhoneNumbers),
			Hashtags:     cloneStrings(s.extracted.Hashtags),
			Mentions:     cloneStrings(s.extracted.Mentions),
			Keywords:     cloneStrings(s.extracted.Keywords),
		},
		Custom: make(map[string]any, len(s.custom)),
	}
	for id, v := range s.custom {
		if m, ok := v.(map[string]any); ok {
			meta.Custom[id] = maps.Clone(m)
		} else {
			meta.Custom[id] = v
		}
	}
	if s.sentiment != nil {
		v := *s.sentiment
		meta.Sentiment = &v
	}
	if s.readability != nil {
		v := *s.readability
		meta.Readability = &v
	}
	if s.language != nil {
		v := *s.language
		v.Scores = append([]models.LanguageScore{}, s.language.Scores...)
		v.AlternativeLanguages = append([]models.AlternativeLanguage{}, s.language.AlternativeLanguages...)
		meta.Language = &v
	}
	if s.comparison != nil {
		v := *s.comparison
		v.Added = cloneStrings(v.Added)
		v.Removed = cloneStrings(v.Removed)
		v.Unchanged = cloneStrings(v.Unchanged)
		v.CommonSubstrings = cloneStrings(v.CommonSubstrings)
		meta.Comparison = &v
	}

	return &models.Result{
		Output:        s.text,
		Operations:    ops,
		StartedAt:     started,
		FinishedAt:    finished,
		ExecutionTime: finished.Sub(started),
		Metadata:      meta,
	}
}

// isEnabled treats true and any non-nil payload other than false as enabled
func isEnabled(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	default:
		return true
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
