package analyzer

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/zombar/textpipeline/internal/keywords"
	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/lexicon"
	"github.com/zombar/textpipeline/internal/models"
	"github.com/zombar/textpipeline/internal/ollama"
	"github.com/zombar/textpipeline/internal/sentiment"
)

// DefaultBatchConcurrency bounds RunBatch when no limit is given
const DefaultBatchConcurrency = 4

// Analyzer holds the components shared by all sessions. It is safe for
// concurrent use; sessions are not.
type Analyzer struct {
	lexicon   *lexicon.Loader
	keywords  *keywords.Extractor
	sentiment *sentiment.Analyzer
	languages *langdetect.Detector
	langOpts  langdetect.Options
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLexicon sets the stopword/IDF cache
func WithLexicon(l *lexicon.Loader) Option {
	return func(a *Analyzer) { a.lexicon = l }
}

// WithSentiment sets the sentiment analyzer
func WithSentiment(s *sentiment.Analyzer) Option {
	return func(a *Analyzer) { a.sentiment = s }
}

// WithClassifier sets the language classifier
func WithClassifier(c langdetect.Classifier) Option {
	return func(a *Analyzer) { a.languages = langdetect.NewDetector(c) }
}

// WithLanguageDefaults sets the language options sessions start with
func WithLanguageDefaults(opts langdetect.Options) Option {
	return func(a *Analyzer) { a.langOpts = opts }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// New creates a new Analyzer. Unset components get defaults: the built-in
// stopword list, a lexicon+heuristic sentiment ensemble and lingua.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger: slog.Default(),
		tracer: otel.Tracer("textpipeline/analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.lexicon == nil {
		a.lexicon = lexicon.NewLoader(lexicon.Sources{}, lexicon.WithLogger(a.logger))
	}
	if a.sentiment == nil {
		a.sentiment = sentiment.New(sentiment.WithLogger(a.logger))
	}
	if a.languages == nil {
		a.languages = langdetect.NewDetector(nil)
	}
	a.keywords = keywords.NewExtractor(a.lexicon)
	return a
}

// NewWithOllama creates a new Analyzer whose sentiment ensemble includes the
// Ollama model as its secondary signal
func NewWithOllama(ollamaClient *ollama.Client, opts ...Option) *Analyzer {
	a := New(opts...)
	a.sentiment = sentiment.New(
		sentiment.WithModel(ollamaClient),
		sentiment.WithLogger(a.logger),
	)
	return a
}

// Lexicon returns the shared stopword/IDF cache
func (a *Analyzer) Lexicon() *lexicon.Loader {
	return a.lexicon
}

// EnsureResources loads the lexicon if it has not been loaded yet
func (a *Analyzer) EnsureResources(ctx context.Context) {
	a.lexicon.EnsureLoaded(ctx)
}

// BatchItem is the outcome of one text in a batch
type BatchItem struct {
	Index  int            `json:"index"`
	Result *models.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Kind   ErrorKind      `json:"kind,omitempty"`
}

// RunBatch runs the same options over every text, each in its own session,
// with at most concurrency sessions in flight. A failing text does not stop
// the others. Results are returned in input order. sessionOpts are applied to
// every session after the options.
func (a *Analyzer) RunBatch(ctx context.Context, texts []string, opts models.Options, concurrency int, sessionOpts ...SessionOption) []BatchItem {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	ctx, span := a.tracer.Start(ctx, "pipeline.batch",
		trace.WithAttributes(
			attribute.Int("batch.size", len(texts)),
			attribute.Int("batch.concurrency", concurrency),
		),
	)
	defer span.End()

	// load once up front instead of once per session
	a.EnsureResources(ctx)

	items := make([]BatchItem, len(texts))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, text := range texts {
		g.Go(func() error {
			items[i] = BatchItem{Index: i}
			if err := ctx.Err(); err != nil {
				items[i].Error = err.Error()
				return nil
			}

			sopts := append([]SessionOption{WithOptions(opts.Clone())}, sessionOpts...)
			result, err := a.NewSession(text, sopts...).Run(ctx)
			if err != nil {
				items[i].Error = err.Error()
				items[i].Kind = KindOf(err)
				return nil
			}
			items[i].Result = result
			return nil
		})
	}
	_ = g.Wait()

	return items
}
