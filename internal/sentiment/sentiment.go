// Package sentiment scores text polarity by combining a word lexicon, an
// optional secondary model and a part-of-speech heuristic.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/jdkato/prose/v2"

	"github.com/zombar/textpipeline/internal/metrics"
	"github.com/zombar/textpipeline/internal/models"
)

// ErrInvalidInput is returned for blank text
var ErrInvalidInput = errors.New("sentiment: text must be a non-empty string")

const (
	// classification thresholds
	positiveThreshold = 0.1
	negativeThreshold = -0.1

	// lexicon averages are divided by this before clamping
	lexiconNormalizer = 3.0
)

var tokenPattern = regexp.MustCompile(`[a-z]+(?:'[a-z]+)?`)

// ModelScorer is a secondary sentiment model returning scores in [-1, 1]
type ModelScorer interface {
	Ping(ctx context.Context) error
	ScoreSentiment(ctx context.Context, text string) (float64, error)
}

// Availability of the secondary model
type Availability int

const (
	Unprobed Availability = iota
	Available
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unprobed"
	}
}

// Analyzer computes ensemble sentiment scores. It is safe for concurrent use.
type Analyzer struct {
	model  ModelScorer
	logger *slog.Logger

	mu           sync.Mutex
	availability Availability
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithModel attaches a secondary model. Without one the model signal is
// always excluded.
func WithModel(m ModelScorer) Option {
	return func(a *Analyzer) { a.model = m }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// New creates a sentiment Analyzer
func New(opts ...Option) *Analyzer {
	a := &Analyzer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.model == nil {
		a.availability = Unavailable
	}
	return a
}

// Availability reports the current state of the secondary model
func (a *Analyzer) Availability() Availability {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.availability
}

// Analyze scores text
func (a *Analyzer) Analyze(ctx context.Context, text string) (models.SentimentResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.SentimentResult{}, ErrInvalidInput
	}

	lexScore, totalWords := LexiconScore(text)

	heurScore, pos, neg, err := HeuristicScore(text)
	if err != nil {
		return models.SentimentResult{}, fmt.Errorf("failed to tag text: %w", err)
	}

	modelScore, modelOK := a.modelScore(ctx, text)

	var score float64
	if modelOK {
		score = 0.4*lexScore + 0.4*modelScore + 0.2*heurScore
	} else {
		score = 0.6*lexScore + 0.4*heurScore
	}

	return models.SentimentResult{
		Score:             round(score),
		PositiveWordCount: pos,
		NegativeWordCount: neg,
		TotalWords:        totalWords,
		Classification:    Classify(score),
		Signals: models.SentimentSignals{
			Lexicon:        round(lexScore),
			Model:          round(modelScore),
			Heuristic:      round(heurScore),
			ModelAvailable: modelOK,
		},
	}, nil
}

// Classify maps an ensemble score to its label
func Classify(score float64) string {
	switch {
	case score >= positiveThreshold:
		return models.SentimentPositive
	case score <= negativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// LexiconScore averages word polarities over all tokens and normalizes the
// result into [-1, 1]. A negator flips the polarity of the following word.
// It also returns the token count.
func LexiconScore(text string) (float64, int) {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return 0, 0
	}

	sum := 0
	negate := false
	for _, token := range tokens {
		if v, ok := afinn[token]; ok {
			if negate {
				v = -v
			}
			sum += v
		}
		negate = negators[token]
	}

	avg := float64(sum) / float64(len(tokens))
	return math.Max(-1, math.Min(1, avg/lexiconNormalizer)), len(tokens)
}

// HeuristicScore tags text and counts content words found in the positive
// and negative term lists. The score is (pos-neg)/(pos+neg), or 0 without hits.
func HeuristicScore(text string) (score float64, pos, neg int, err error) {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return 0, 0, 0, err
	}

	for _, tok := range doc.Tokens() {
		if !isContentTag(tok.Tag) {
			continue
		}
		word := strings.ToLower(tok.Text)
		switch {
		case positiveTerms[word]:
			pos++
		case negativeTerms[word]:
			neg++
		}
	}

	if pos+neg == 0 {
		return 0, pos, neg, nil
	}
	return float64(pos-neg) / float64(pos+neg), pos, neg, nil
}

// isContentTag accepts adjectives, adverbs, verbs, nouns and interjections
func isContentTag(tag string) bool {
	switch {
	case strings.HasPrefix(tag, "JJ"),
		strings.HasPrefix(tag, "RB"),
		strings.HasPrefix(tag, "VB"),
		strings.HasPrefix(tag, "NN"),
		tag == "UH":
		return true
	}
	return false
}

// modelScore probes the model once, then scores text with it. Any failure
// drops the signal for this call.
func (a *Analyzer) modelScore(ctx context.Context, text string) (float64, bool) {
	if a.model == nil || !a.probe(ctx) {
		return 0, false
	}

	score, err := a.model.ScoreSentiment(ctx, text)
	if err != nil {
		a.logger.Warn("secondary sentiment model failed, excluding signal", "error", err)
		return 0, false
	}
	return math.Max(-1, math.Min(1, score)), true
}

func (a *Analyzer) probe(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.availability == Unprobed {
		if err := a.model.Ping(ctx); err != nil {
			a.availability = Unavailable
			metrics.SentimentModelAvailable.Set(0)
			a.logger.Warn("secondary sentiment model unavailable", "error", err)
		} else {
			a.availability = Available
			metrics.SentimentModelAvailable.Set(1)
			a.logger.Info("secondary sentiment model available")
		}
	}
	return a.availability == Available
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
