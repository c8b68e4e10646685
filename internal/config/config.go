// Package config loads service configuration from an optional YAML file and
// the environment, and watches the file for changes to the pipeline defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/lexicon"
	"github.com/zombar/textpipeline/internal/models"
	"github.com/zombar/textpipeline/internal/ollama"
)

// Config is the full service configuration
type Config struct {
	ServiceName string             `yaml:"service_name" validate:"required"`
	Server      ServerConfig       `yaml:"server"`
	Redis       RedisConfig        `yaml:"redis"`
	Ollama      OllamaConfig       `yaml:"ollama"`
	Lexicon     lexicon.Sources    `yaml:"lexicon"`
	Language    langdetect.Options `yaml:"language"`
	Pipeline    PipelineConfig     `yaml:"pipeline"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `yaml:"port" validate:"required,numeric"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// RedisConfig holds the asynq broker settings. Batch jobs are disabled when
// Addr is empty.
type RedisConfig struct {
	Addr        string `yaml:"addr" validate:"omitempty,hostname_port"`
	Concurrency int    `yaml:"concurrency" validate:"gte=1"`
}

// OllamaConfig holds the secondary sentiment model settings
type OllamaConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Model   string        `yaml:"model" validate:"required_if=Enabled true"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// PipelineConfig holds the defaults applied to every analysis request
type PipelineConfig struct {
	// Options are the default operation options; request options are merged
	// over them
	Options          models.Options `yaml:"options"`
	BatchConcurrency int            `yaml:"batch_concurrency" validate:"gte=1,lte=64"`
	MaxBatchSize     int            `yaml:"max_batch_size" validate:"gte=1"`
	MaxTextBytes     int            `yaml:"max_text_bytes" validate:"gte=1"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		ServiceName: "textpipeline",
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Redis: RedisConfig{
			Concurrency: 5,
		},
		Ollama: OllamaConfig{
			Enabled: false,
			URL:     ollama.DefaultURL,
			Model:   ollama.DefaultModel,
			Timeout: ollama.DefaultTimeout,
		},
		Language: langdetect.Options{
			MinLength: langdetect.DefaultMinLength,
		},
		Pipeline: PipelineConfig{
			BatchConcurrency: 4,
			MaxBatchSize:     100,
			MaxTextBytes:     1 << 20,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// path is not empty, then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("SERVICE_NAME", &c.ServiceName)
	setString("PORT", &c.Server.Port)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("OLLAMA_URL", &c.Ollama.URL)
	setString("OLLAMA_MODEL", &c.Ollama.Model)
	setString("STOPWORDS_URL", &c.Lexicon.Stopwords)
	setString("IDF_URL", &c.Lexicon.IDF)

	if v := os.Getenv("USE_OLLAMA"); v != "" {
		c.Ollama.Enabled = getEnvBool(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("LANGUAGE_WHITELIST"); v != "" {
		c.Language.Whitelist = splitList(v)
	}
	if v := os.Getenv("LANGUAGE_BLACKLIST"); v != "" {
		c.Language.Blacklist = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"LANGUAGE_MIN_LENGTH", &c.Language.MinLength},
		{"BATCH_CONCURRENCY", &c.Pipeline.BatchConcurrency},
		{"MAX_BATCH_SIZE", &c.Pipeline.MaxBatchSize},
		{"WORKER_CONCURRENCY", &c.Redis.Concurrency},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", e.key, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("OLLAMA_TIMEOUT"); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("invalid OLLAMA_TIMEOUT: %w", err)
		}
		c.Ollama.Timeout = d
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// getEnvBool accepts true, 1 and yes
func getEnvBool(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "true" || value == "1" || value == "yes"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
