package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zombar/textpipeline/internal/analyzer"
	"github.com/zombar/textpipeline/internal/api"
	"github.com/zombar/textpipeline/internal/config"
	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/lexicon"
	"github.com/zombar/textpipeline/internal/ollama"
	"github.com/zombar/textpipeline/internal/queue"
	"github.com/zombar/textpipeline/internal/tracing"
	"github.com/zombar/textpipeline/pkg/logging"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "YAML config file (env: CONFIG_PATH)")
		port       = flag.String("port", "", "Server port, overrides config and PORT")
		useOllama  = flag.Bool("use-ollama", false, "Enable the Ollama sentiment model, overrides config and USE_OLLAMA")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err, "config_path", *configPath)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *useOllama {
		cfg.Ollama.Enabled = true
	}

	logger.Info("textpipeline service initializing", "service", cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracer(ctx, cfg.ServiceName)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	textAnalyzer := buildAnalyzer(cfg, logger)

	// warm the lexicon in the background; requests fall back to the
	// built-in stopwords until it is loaded
	go textAnalyzer.EnsureResources(ctx)

	var (
		jobs   api.JobQueue
		worker *queue.Worker
	)
	if cfg.Redis.Addr != "" {
		queueClient := queue.NewClient(queue.ClientConfig{RedisAddr: cfg.Redis.Addr})
		defer queueClient.Close()
		jobs = queueClient

		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:        cfg.Redis.Addr,
			Concurrency:      cfg.Redis.Concurrency,
			BatchConcurrency: cfg.Pipeline.BatchConcurrency,
		}, textAnalyzer, logger)

		go func() {
			if err := worker.Start(); err != nil {
				logger.Error("queue worker stopped", "error", err)
			}
		}()
		logger.Info("batch jobs enabled", "redis_addr", cfg.Redis.Addr)
	} else {
		logger.Info("REDIS_ADDR not set, batch jobs disabled")
	}

	apiHandler := api.NewHandler(cfg, textAnalyzer, jobs, logger)

	if *configPath != "" {
		err := config.Watch(ctx, *configPath, logger, func(updated *config.Config) {
			apiHandler.Reload(updated)
			logger.Info("pipeline defaults reloaded", "options", updated.Pipeline.Options.Keys())
		})
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		}
	}

	// tracing runs outermost so the logging middleware sees trace ids
	handler := tracing.HTTPMiddleware(cfg.ServiceName)(
		logging.HTTPLoggingMiddleware(logger)(apiHandler),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("textpipeline service starting",
			"port", cfg.Server.Port,
			"ollama_enabled", cfg.Ollama.Enabled,
			"ollama_url", cfg.Ollama.URL,
			"ollama_model", cfg.Ollama.Model,
			"default_options", cfg.Pipeline.Options.Keys(),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if worker != nil {
		worker.Shutdown()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildAnalyzer wires the lexicon loader, the language defaults and, when
// enabled, the Ollama sentiment model. A broken Ollama setup falls back to
// the rule-based ensemble.
func buildAnalyzer(cfg *config.Config, logger *slog.Logger) *analyzer.Analyzer {
	opts := []analyzer.Option{
		analyzer.WithLexicon(lexicon.NewLoader(cfg.Lexicon, lexicon.WithLogger(logger))),
		analyzer.WithClassifier(langdetect.NewLinguaClassifier()),
		analyzer.WithLanguageDefaults(cfg.Language),
		analyzer.WithLogger(logger),
	}

	if !cfg.Ollama.Enabled {
		logger.Info("Ollama disabled, using rule-based sentiment")
		return analyzer.New(opts...)
	}

	ollamaClient, err := ollama.New(cfg.Ollama.URL, cfg.Ollama.Model,
		ollama.WithTimeout(cfg.Ollama.Timeout),
		ollama.WithLogger(logger),
		ollama.WithHTTPClient(&http.Client{Timeout: cfg.Ollama.Timeout + 5*time.Second}),
	)
	if err != nil {
		logger.Warn("failed to initialize Ollama client, falling back to rule-based sentiment",
			"error", err,
			"ollama_url", cfg.Ollama.URL,
			"ollama_model", cfg.Ollama.Model,
		)
		return analyzer.New(opts...)
	}

	logger.Info("Ollama client initialized", "model", cfg.Ollama.Model, "url", cfg.Ollama.URL)
	return analyzer.NewWithOllama(ollamaClient, opts...)
}
