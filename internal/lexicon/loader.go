// Package lexicon loads and caches the stopword set and the IDF table used by
// keyword extraction.
//
// Loading never fails from the caller's point of view: when a resource cannot
// be fetched or parsed the loader keeps serving the built-in stopword list and
// an empty IDF table, and retries on a later EnsureLoaded call once the retry
// interval has passed.
package lexicon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zombar/textpipeline/internal/metrics"
)

const (
	// DefaultRetryInterval is how long a failed resource is left alone
	DefaultRetryInterval = time.Minute

	// maxResourceBytes caps a single downloaded resource
	maxResourceBytes = 32 << 20

	resourceStopwords = "stopwords"
	resourceIDF       = "idf"
)

// Sources names where each resource comes from: an http(s) URL or a file
// path. An empty source leaves that resource at its fallback.
type Sources struct {
	Stopwords string `yaml:"stopwords"`
	IDF       string `yaml:"idf"`
}

// Loader is a process-wide, lazily filled cache of lexicon resources. It is
// safe for concurrent use.
type Loader struct {
	sources       Sources
	httpClient    *http.Client
	logger        *slog.Logger
	retryInterval time.Duration
	group         singleflight.Group

	mu              sync.RWMutex
	stopwords       map[string]bool
	idf             map[string]float64
	stopwordsLoaded bool
	idfLoaded       bool
	lastFailure     time.Time
}

// Option configures a Loader
type Option func(*Loader)

// WithHTTPClient sets the client used for http(s) sources
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithRetryInterval sets how long to wait before retrying a failed load
func WithRetryInterval(d time.Duration) Option {
	return func(l *Loader) { l.retryInterval = d }
}

// NewLoader creates a Loader serving fallback data until EnsureLoaded succeeds
func NewLoader(sources Sources, opts ...Option) *Loader {
	l := &Loader{
		sources:       sources,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        slog.Default(),
		retryInterval: DefaultRetryInterval,
		stopwords:     FallbackStopwords(),
		idf:           map[string]float64{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewStatic creates an already-loaded Loader from in-memory data. A nil
// stopword set keeps the fallback list.
func NewStatic(stopwords map[string]bool, idf map[string]float64) *Loader {
	l := NewLoader(Sources{})
	if stopwords != nil {
		l.stopwords = stopwords
	}
	if idf != nil {
		l.idf = idf
	}
	l.stopwordsLoaded = true
	l.idfLoaded = true
	return l
}

// EnsureLoaded fetches any resource that is configured and not yet loaded.
// Concurrent callers share a single fetch. It always returns once the attempt
// is over; failures are logged and leave the fallback data in place.
func (l *Loader) EnsureLoaded(ctx context.Context) {
	if !l.needsLoad() {
		return
	}

	_, _, _ = l.group.Do("load", func() (interface{}, error) {
		if !l.needsLoad() {
			return nil, nil
		}
		l.load(ctx)
		return nil, nil
	})
}

// Loaded reports whether every configured resource has been loaded
func (l *Loader) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return (l.sources.Stopwords == "" || l.stopwordsLoaded) && (l.sources.IDF == "" || l.idfLoaded)
}

// IsStopword reports whether word (lowercase) is in the current stopword set
func (l *Loader) IsStopword(word string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stopwords[word]
}

// Stopwords returns a copy of the current stopword set
func (l *Loader) Stopwords() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]bool, len(l.stopwords))
	for w := range l.stopwords {
		out[w] = true
	}
	return out
}

// IDF returns the inverse document frequency of term if known
func (l *Loader) IDF(term string) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.idf[term]
	return v, ok
}

// Size returns the number of stopwords and IDF entries currently served
func (l *Loader) Size() (stopwords, idf int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.stopwords), len(l.idf)
}

func (l *Loader) needsLoad() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pending := (l.sources.Stopwords != "" && !l.stopwordsLoaded) ||
		(l.sources.IDF != "" && !l.idfLoaded)
	if !pending {
		return false
	}
	return l.lastFailure.IsZero() || time.Since(l.lastFailure) >= l.retryInterval
}

func (l *Loader) load(ctx context.Context) {
	l.mu.RLock()
	wantStopwords := l.sources.Stopwords != "" && !l.stopwordsLoaded
	wantIDF := l.sources.IDF != "" && !l.idfLoaded
	l.mu.RUnlock()

	failed := false

	if wantStopwords {
		stopwords, err := l.loadStopwords(ctx)
		if err != nil {
			failed = true
			metrics.LexiconLoadsTotal.WithLabelValues(resourceStopwords, "error").Inc()
			l.logger.Warn("failed to load stopwords, using built-in list",
				"source", l.sources.Stopwords,
				"error", err,
			)
		} else {
			l.mu.Lock()
			l.stopwords = stopwords
			l.stopwordsLoaded = true
			l.mu.Unlock()
			metrics.LexiconLoadsTotal.WithLabelValues(resourceStopwords, "success").Inc()
			metrics.LexiconEntries.WithLabelValues(resourceStopwords).Set(float64(len(stopwords)))
			l.logger.Info("stopwords loaded", "source", l.sources.Stopwords, "count", len(stopwords))
		}
	}

	if wantIDF {
		idf, err := l.loadIDF(ctx)
		if err != nil {
			failed = true
			metrics.LexiconLoadsTotal.WithLabelValues(resourceIDF, "error").Inc()
			l.logger.Warn("failed to load IDF table, using default weights",
				"source", l.sources.IDF,
				"error", err,
			)
		} else {
			l.mu.Lock()
			l.idf = idf
			l.idfLoaded = true
			l.mu.Unlock()
			metrics.LexiconLoadsTotal.WithLabelValues(resourceIDF, "success").Inc()
			metrics.LexiconEntries.WithLabelValues(resourceIDF).Set(float64(len(idf)))
			l.logger.Info("IDF table loaded", "source", l.sources.IDF, "count", len(idf))
		}
	}

	l.mu.Lock()
	if failed {
		l.lastFailure = time.Now()
	} else {
		l.lastFailure = time.Time{}
	}
	l.mu.Unlock()
}

func (l *Loader) loadStopwords(ctx context.Context) (map[string]bool, error) {
	data, err := l.fetch(ctx, l.sources.Stopwords)
	if err != nil {
		return nil, err
	}
	return ParseStopwords(data)
}

func (l *Loader) loadIDF(ctx context.Context) (map[string]float64, error) {
	data, err := l.fetch(ctx, l.sources.IDF)
	if err != nil {
		return nil, err
	}
	return ParseIDF(data)
}

// fetch reads a resource from an http(s) URL or the local filesystem
func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(strings.TrimPrefix(source, "file://"))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %d", source, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return data, nil
}

// ParseStopwords accepts a JSON array of strings or one word per line.
// Blank lines and lines starting with # are ignored.
func ParseStopwords(data []byte) (map[string]bool, error) {
	trimmed := strings.TrimSpace(string(data))
	stopwords := make(map[string]bool)

	if strings.HasPrefix(trimmed, "[") {
		var words []string
		if err := json.Unmarshal([]byte(trimmed), &words); err != nil {
			return nil, fmt.Errorf("failed to parse stopwords JSON: %w", err)
		}
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				stopwords[w] = true
			}
		}
	} else {
		for _, line := range strings.Split(trimmed, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			stopwords[strings.ToLower(line)] = true
		}
	}

	if len(stopwords) == 0 {
		return nil, fmt.Errorf("stopword list is empty")
	}
	return stopwords, nil
}

// ParseIDF accepts a JSON object of term to weight, or "term<whitespace>weight"
// lines. Blank lines and lines starting with # are ignored.
func ParseIDF(data []byte) (map[string]float64, error) {
	trimmed := strings.TrimSpace(string(data))
	idf := make(map[string]float64)

	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &idf); err != nil {
			return nil, fmt.Errorf("failed to parse IDF JSON: %w", err)
		}
		lowered := make(map[string]float64, len(idf))
		for term, v := range idf {
			lowered[strings.ToLower(term)] = v
		}
		return lowered, nil
	}

	for i, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected term and weight", i+1)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid weight %q: %w", i+1, fields[1], err)
		}
		idf[strings.ToLower(fields[0])] = v
	}
	return idf, nil
}
