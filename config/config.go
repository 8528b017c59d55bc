package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/logging"
	"github.com/domgolonka/ai-investment-agent-sub001/memory"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
	"github.com/domgolonka/ai-investment-agent-sub001/routing"
)

// Config is the complete pipeline configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Memory    MemoryConfig    `yaml:"memory"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
	Runner    RunnerConfig    `yaml:"runner"`
}

// LLMConfig selects the chat provider and the models of both tiers.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic or mock
	QuickModel  string  `yaml:"quick_model"`
	DeepModel   string  `yaml:"deep_model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`

	Timeout time.Duration `yaml:"-"`
	Backoff time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
	BackoffRaw string `yaml:"backoff"`
}

// RateLimitConfig configures the process wide model call limiter.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	SafetyMargin      float64 `yaml:"safety_margin"`
	Burst             int     `yaml:"burst"`
}

// EmbeddingConfig selects the embedder shared by every memory store.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai or hash
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	CacheBytes int64  `yaml:"cache_bytes"`
}

// MemoryConfig holds the vector memory settings.
type MemoryConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Path            string `yaml:"path"` // empty keeps memory in process
	Subject         string `yaml:"subject"`
	CleanupPrevious bool   `yaml:"cleanup_previous"`
	CleanupDays     int    `yaml:"cleanup_days"`
}

// PipelineConfig holds the graph shape and run limits.
type PipelineConfig struct {
	Analysts         []string `yaml:"analysts"`
	Fallback         string   `yaml:"fallback"`
	SkipPreScreen    bool     `yaml:"skip_pre_screen"`
	MaxDebateRounds  int      `yaml:"max_debate_rounds"`
	MaxRiskRounds    int      `yaml:"max_risk_rounds"`
	StepBudget       int      `yaml:"step_budget"`
	MaxParallelTools int      `yaml:"max_parallel_tools"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// RunnerConfig bounds concurrent multi-subject runs.
type RunnerConfig struct {
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs"`
	RunTimeout        time.Duration `yaml:"-"`
	RunTimeoutRaw     string        `yaml:"run_timeout"`
}

// ValidationError names the offending field of an invalid configuration.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Default returns the configuration used when a file leaves a field unset.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			QuickModel:  "gpt-4o-mini",
			DeepModel:   "gpt-4o",
			Temperature: 0.2,
			MaxRetries:  2,
			Timeout:     2 * time.Minute,
			Backoff:     time.Second,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 60, SafetyMargin: 0.8, Burst: 2},
		Embedding: EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536, CacheBytes: 32 << 20},
		Pipeline: PipelineConfig{
			MaxDebateRounds:  core.DefaultMaxDebateRounds,
			MaxRiskRounds:    core.DefaultMaxRiskRounds,
			StepBudget:       core.DefaultStepBudget,
			MaxParallelTools: 4,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Runner:  RunnerConfig{MaxConcurrentRuns: 2, RunTimeout: 30 * time.Minute},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default, then parses durations and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarRe.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"llm.timeout", cfg.LLM.TimeoutRaw, &cfg.LLM.Timeout},
		{"llm.backoff", cfg.LLM.BackoffRaw, &cfg.LLM.Backoff},
		{"runner.run_timeout", cfg.Runner.RunTimeoutRaw, &cfg.Runner.RunTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks the configuration and returns the first failure as a
// *ValidationError.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "mock":
	default:
		return &ValidationError{Field: "llm.provider", Message: fmt.Sprintf("must be openai, anthropic or mock, got %q", c.LLM.Provider)}
	}
	if c.LLM.Provider != "mock" && c.LLM.QuickModel == "" {
		return &ValidationError{Field: "llm.quick_model", Message: "is required"}
	}
	if c.LLM.MaxRetries < 0 {
		return &ValidationError{Field: "llm.max_retries", Message: "must not be negative"}
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		return &ValidationError{Field: "rate_limit.requests_per_minute", Message: "must not be negative"}
	}
	if c.RateLimit.SafetyMargin < 0 || c.RateLimit.SafetyMargin > 1 {
		return &ValidationError{Field: "rate_limit.safety_margin", Message: "must be within [0, 1]"}
	}

	if c.Memory.Enabled {
		switch c.Embedding.Provider {
		case "openai", "hash":
		default:
			return &ValidationError{Field: "embedding.provider", Message: fmt.Sprintf("must be openai or hash, got %q", c.Embedding.Provider)}
		}
		if c.Embedding.Dimensions <= 0 {
			return &ValidationError{Field: "embedding.dimensions", Message: "must be positive"}
		}
	}
	if c.Memory.CleanupDays < 0 {
		return &ValidationError{Field: "memory.cleanup_days", Message: "must not be negative"}
	}

	if _, err := c.Analysts(); err != nil {
		return err
	}
	if c.Pipeline.Fallback != "" {
		if _, ok := routing.ParseAnalyst(c.Pipeline.Fallback); !ok {
			return &ValidationError{Field: "pipeline.fallback", Message: fmt.Sprintf("unknown analyst %q", c.Pipeline.Fallback)}
		}
	}
	if c.Pipeline.StepBudget < 0 {
		return &ValidationError{Field: "pipeline.step_budget", Message: "must not be negative"}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return &ValidationError{Field: "logging.level", Message: err.Error()}
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return &ValidationError{Field: "logging.format", Message: fmt.Sprintf("must be json or text, got %q", c.Logging.Format)}
	}

	if c.Runner.MaxConcurrentRuns < 1 {
		return &ValidationError{Field: "runner.max_concurrent_runs", Message: "must be at least 1"}
	}
	return nil
}

// Analysts returns the configured analysts in order; an empty list selects
// all four.
func (c *Config) Analysts() ([]routing.Analyst, error) {
	if len(c.Pipeline.Analysts) == 0 {
		return routing.Analysts(), nil
	}
	out := make([]routing.Analyst, 0, len(c.Pipeline.Analysts))
	for _, s := range c.Pipeline.Analysts {
		a, ok := routing.ParseAnalyst(strings.TrimSpace(s))
		if !ok {
			return nil, &ValidationError{Field: "pipeline.analysts", Message: fmt.Sprintf("unknown analyst %q", s)}
		}
		out = append(out, a)
	}
	return out, nil
}

// Fallback returns the configured tool return fallback, or "" for the
// pipeline default.
func (c *Config) Fallback() routing.Analyst {
	a, _ := routing.ParseAnalyst(c.Pipeline.Fallback)
	return a
}

// RunConfig projects the per-run settings.
func (c *Config) RunConfig() *core.RunConfig {
	return &core.RunConfig{
		MaxDebateRounds: c.Pipeline.MaxDebateRounds,
		MaxRiskRounds:   c.Pipeline.MaxRiskRounds,
		StepBudget:      c.Pipeline.StepBudget,
		EnableMemory:    c.Memory.Enabled,
		MemorySubject:   c.Memory.Subject,
		CleanupPrevious: c.Memory.CleanupPrevious,
		CleanupDays:     c.Memory.CleanupDays,
	}
}

// LoggerConfig projects the logging section.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultLoggerConfig()
	if lvl, err := logging.ParseLevel(c.Logging.Level); err == nil {
		lc.Level = lvl
	}
	lc.Format = c.Logging.Format
	lc.AddSource = c.Logging.AddSource
	return lc
}

// NewRateLimiter builds the limiter shared by both model tiers.
func (c *Config) NewRateLimiter() *model.RateLimiter {
	return model.NewRateLimiter(func(o *model.RateLimiterOptions) {
		o.RequestsPerMinute = c.RateLimit.RequestsPerMinute
		if c.RateLimit.SafetyMargin > 0 {
			o.SafetyMargin = c.RateLimit.SafetyMargin
		}
		if c.RateLimit.Burst > 0 {
			o.Burst = c.RateLimit.Burst
		}
	})
}

// GuardOptions projects the model call policy around limiter.
func (c *Config) GuardOptions(limiter *model.RateLimiter) *model.GuardOptions {
	retries := c.LLM.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return &model.GuardOptions{
		Timeout:    c.LLM.Timeout,
		MaxRetries: retries,
		Backoff:    c.LLM.Backoff,
		Limiter:    limiter,
	}
}

// NewRegistry builds the memory registry, or returns nil when memory is
// disabled. The embedder is created on first use and wrapped in a cache when
// cache_bytes is positive.
func (c *Config) NewRegistry(logger logging.Logger) *memory.Registry {
	if !c.Memory.Enabled {
		return nil
	}
	emb := c.Embedding
	return memory.NewRegistry(func(o *memory.RegistryOptions) {
		o.Path = c.Memory.Path
		o.Logger = logger
		o.EmbedderFactory = func() (memory.Embedder, error) {
			var e memory.Embedder
			if emb.Provider == "hash" {
				e = memory.NewHashEmbedder(emb.Dimensions)
			} else {
				e = memory.NewOpenAIEmbedder(func(o *memory.OpenAIEmbedderOptions) {
					o.APIKey = emb.APIKey
					o.BaseURL = emb.BaseURL
					o.Model = emb.Model
					o.Dimensions = emb.Dimensions
				})
			}
			if emb.CacheBytes <= 0 {
				return e, nil
			}
			cached, err := memory.NewCachedEmbedder(e, emb.CacheBytes)
			if err != nil {
				return nil, err
			}
			return cached, nil
		}
	})
}
