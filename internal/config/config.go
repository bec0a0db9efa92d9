package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server and CLI settings. Values come from built-in defaults,
// then an optional YAML file named by DOCREV_CONFIG, then the environment.
type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Worker pool
	WorkerCount      int `yaml:"worker_count"`
	MaxQueueSize     int `yaml:"max_queue_size"`
	BatchConcurrency int `yaml:"batch_concurrency"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// Rolling window for /api/stats/latency
	LatencyWindow time.Duration `yaml:"latency_window"`

	Defaults Defaults `yaml:"defaults"`
}

// Defaults are the operation options applied when a request leaves them out.
type Defaults struct {
	IncludeContext         bool   `yaml:"include_context"`
	ContextLength          int    `yaml:"context_length"`
	IncludeSummary         bool   `yaml:"include_summary"`
	IncludeResolved        bool   `yaml:"include_resolved"`
	IncludeAuthorBreakdown bool   `yaml:"include_author_breakdown"`
	OutputName             string `yaml:"output_name"`
}

const maxContextLength = 10000

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:             "8090",
		WorkerCount:      4,
		MaxQueueSize:     100,
		BatchConcurrency: 4,
		MaxUploadBytes:   52428800, // 50MB
		JobTTL:           1 * time.Hour,
		LatencyWindow:    1 * time.Hour,
		Defaults: Defaults{
			ContextLength:   50,
			IncludeSummary:  true,
			IncludeResolved: true,
			OutputName:      "data",
		},
	}
}

// Load builds the configuration. Only a YAML file that exists but cannot be
// read or parsed is an error.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("DOCREV_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCREV_API_KEY", cfg.APIKey)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.BatchConcurrency = envInt("BATCH_CONCURRENCY", cfg.BatchConcurrency)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.LatencyWindow = envDuration("LATENCY_WINDOW", cfg.LatencyWindow)

	cfg.Defaults.IncludeContext = envBool("DEFAULT_INCLUDE_CONTEXT", cfg.Defaults.IncludeContext)
	cfg.Defaults.ContextLength = envInt("DEFAULT_CONTEXT_LENGTH", cfg.Defaults.ContextLength)
	cfg.Defaults.IncludeSummary = envBool("DEFAULT_INCLUDE_SUMMARY", cfg.Defaults.IncludeSummary)
	cfg.Defaults.IncludeResolved = envBool("DEFAULT_INCLUDE_RESOLVED", cfg.Defaults.IncludeResolved)
	cfg.Defaults.IncludeAuthorBreakdown = envBool("DEFAULT_INCLUDE_AUTHOR_BREAKDOWN", cfg.Defaults.IncludeAuthorBreakdown)
	cfg.Defaults.OutputName = envOr("DEFAULT_OUTPUT_NAME", cfg.Defaults.OutputName)

	cfg.applyFloors()
	return cfg, nil
}

// applyFloors replaces non-positive sizes with the built-in defaults.
func (c *Config) applyFloors() {
	def := Default()
	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = def.BatchConcurrency
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = def.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = def.JobTTL
	}
	if c.LatencyWindow <= 0 {
		c.LatencyWindow = def.LatencyWindow
	}
	if c.Defaults.OutputName == "" {
		c.Defaults.OutputName = def.Defaults.OutputName
	}
}

// Validate checks settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCREV_API_KEY is required")
	}
	if c.Defaults.ContextLength < 0 || c.Defaults.ContextLength > maxContextLength {
		return fmt.Errorf("DEFAULT_CONTEXT_LENGTH must be between 0 and %d", maxContextLength)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
