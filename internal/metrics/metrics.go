package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are registered with the default registry on package init and
// exposed through promhttp on /metrics.
var (
	// PipelineRunsTotal counts Session.Run calls by outcome
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textpipeline_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"},
	)

	// PipelineRunDuration measures a full pipeline run
	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "textpipeline_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	// OperationsTotal counts executed operations
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textpipeline_operations_total",
			Help: "Total number of executed pipeline operations",
		},
		[]string{"operation", "kind", "status"},
	)

	// OperationDuration measures single operations. Custom operations share
	// one label value to keep cardinality bounded.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textpipeline_operation_duration_seconds",
			Help:    "Duration of pipeline operations in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 10},
		},
		[]string{"operation", "kind"},
	)

	// UnknownOperationsTotal counts option keys that had no handler
	UnknownOperationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "textpipeline_unknown_operations_total",
			Help: "Total number of skipped option keys without a handler",
		},
	)

	// LexiconLoadsTotal counts stopword / IDF fetches by outcome
	LexiconLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textpipeline_lexicon_loads_total",
			Help: "Total number of lexicon resource loads",
		},
		[]string{"resource", "status"},
	)

	// LexiconEntries tracks the size of the loaded resources
	LexiconEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "textpipeline_lexicon_entries",
			Help: "Number of entries in the loaded lexicon resources",
		},
		[]string{"resource"},
	)

	// SentimentModelAvailable is 1 when the secondary sentiment model answered its probe
	SentimentModelAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "textpipeline_sentiment_model_available",
			Help: "Whether the secondary sentiment model is available (1) or not (0)",
		},
	)

	// HTTPRequestsTotal counts HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textpipeline_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP handlers
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textpipeline_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// JobsTotal counts asynchronous batch jobs by stage
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textpipeline_jobs_total",
			Help: "Total number of batch jobs by stage",
		},
		[]string{"stage"}, // enqueued, completed, failed
	)
)
