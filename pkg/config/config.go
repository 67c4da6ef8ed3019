package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/llm"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/retry"
	"github.com/ekaya-inc/ekaya-datagen/pkg/services"
	sqlvalidator "github.com/ekaya-inc/ekaya-datagen/pkg/sql"
)

// DefaultConfigFile is read when Load is given no path and the file exists.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for ekaya-datagen.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, DSNs) must only come from environment variables.
type Config struct {
	LLM        LLMConfig            `yaml:"llm"`
	Generation GenerationConfig     `yaml:"generation"`
	Cache      CacheConfig          `yaml:"cache"`
	Validation sqlvalidator.Options `yaml:"validation"`
	Datasource DatasourceConfig     `yaml:"datasource"`
	Output     OutputConfig         `yaml:"output"`
	Logging    LoggingConfig        `yaml:"logging"`
	Metrics    MetricsConfig        `yaml:"metrics"`

	Version string `yaml:"-"` // Set at load time, not from config
}

// LLMConfig selects the text-generation back-end.
type LLMConfig struct {
	Provider       string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Model          string        `yaml:"model" env:"LLM_MODEL"`
	BaseURL        string        `yaml:"base_url" env:"LLM_BASE_URL"`
	APIKey         string        `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LLM_REQUEST_TIMEOUT" env-default:"60s"`

	// TranscriptPath, when set, receives every prompt and response as JSON lines.
	TranscriptPath string `yaml:"transcript_path" env:"LLM_TRANSCRIPT_PATH"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures fail-fast behavior of the back-end.
type CircuitBreakerConfig struct {
	Enabled    bool          `yaml:"enabled" env:"LLM_CIRCUIT_BREAKER_ENABLED"`
	Threshold  int           `yaml:"threshold" env:"LLM_CIRCUIT_BREAKER_THRESHOLD" env-default:"5"`
	ResetAfter time.Duration `yaml:"reset_after" env:"LLM_CIRCUIT_BREAKER_RESET_AFTER" env-default:"30s"`
}

// GenerationConfig holds the run configuration.
type GenerationConfig struct {
	Quotas        QuotaConfig `yaml:"quotas"`
	Temperature   float64     `yaml:"temperature" env:"GEN_TEMPERATURE"`
	MaxTokens     int         `yaml:"max_tokens" env:"GEN_MAX_TOKENS" env-default:"2048"`
	StopSequences []string    `yaml:"stop_sequences" env:"GEN_STOP_SEQUENCES" env-separator:"|"`

	Parallel   bool `yaml:"parallel" env:"GEN_PARALLEL"`
	MaxWorkers int  `yaml:"max_workers" env:"GEN_MAX_WORKERS" env-default:"4"`

	TransientMax    int  `yaml:"transient_max" env:"GEN_TRANSIENT_MAX"`
	ValidationMax   int  `yaml:"validation_max" env:"GEN_VALIDATION_MAX"`
	Repair          bool `yaml:"repair" env:"GEN_REPAIR"`
	RequireValidSQL bool `yaml:"require_valid_sql" env:"GEN_REQUIRE_VALID_SQL"`
	AttemptBudget   int  `yaml:"attempt_budget" env:"GEN_ATTEMPT_BUDGET"`

	UniqueQuestions bool `yaml:"unique_questions" env:"GEN_UNIQUE_QUESTIONS"`
	UniqueRounds    int  `yaml:"unique_rounds" env:"GEN_UNIQUE_ROUNDS"`

	SeedExamplesPerPrompt int `yaml:"seed_examples_per_prompt" env:"GEN_SEED_EXAMPLES_PER_PROMPT"`

	Backoff BackoffConfig `yaml:"backoff"`
}

// QuotaConfig is the number of items requested per difficulty.
type QuotaConfig struct {
	Easy   int `yaml:"easy" env:"GEN_QUOTA_EASY"`
	Medium int `yaml:"medium" env:"GEN_QUOTA_MEDIUM"`
	Hard   int `yaml:"hard" env:"GEN_QUOTA_HARD"`
}

// BackoffConfig shapes the delay between transient retries.
type BackoffConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" env:"GEN_BACKOFF_INITIAL_DELAY" env-default:"500ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"GEN_BACKOFF_MAX_DELAY" env-default:"10s"`
	Multiplier   float64       `yaml:"multiplier" env:"GEN_BACKOFF_MULTIPLIER" env-default:"2"`
	Jitter       float64       `yaml:"jitter" env:"GEN_BACKOFF_JITTER"`
}

// CacheConfig sizes the result cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity" env:"CACHE_CAPACITY" env-default:"1024"`
}

// DatasourceConfig says where the schema and seeds come from. A schema file
// wins over live introspection.
type DatasourceConfig struct {
	SchemaFile string `yaml:"schema_file" env:"DATAGEN_SCHEMA_FILE"`
	SeedsFile  string `yaml:"seeds_file" env:"DATAGEN_SEEDS_FILE"`

	// Type and DSN enable live introspection: postgres, sqlserver or sqlite.
	Type   string `yaml:"type" env:"DATASOURCE_TYPE"`
	DSN    string `yaml:"-" env:"DATASOURCE_DSN"` // Secret - not in YAML
	Schema string `yaml:"schema" env:"DATASOURCE_SCHEMA"`
}

// OutputConfig selects where the dataset is written.
type OutputConfig struct {
	Path   string `yaml:"path" env:"DATAGEN_OUTPUT" env-default:"dataset.json"`
	Format string `yaml:"format" env:"DATAGEN_OUTPUT_FORMAT" env-default:"json"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"METRICS_LISTEN_ADDR"`
}

var (
	providers     = []string{llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderOllama, llm.ProviderOpenAICompatible}
	outputFormats = []string{"json", "csv", "parquet"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"json", "console"}
	sourceTypes   = []string{"postgres", "sqlserver", "sqlite"}
)

// Load reads configuration with environment variable overrides. A .env file
// in the working directory is loaded first when present. path may be empty,
// in which case config.yaml is used if it exists and the environment alone
// otherwise. The returned Config has passed every check except those of the
// llm section; commands that call a back-end run Validate as well.
func Load(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: load .env: %w", apperrors.ErrConfiguration, err)
	}

	cfg := newConfig(version)

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", apperrors.ErrConfiguration, path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("%w: read environment: %w", apperrors.ErrConfiguration, err)
	}

	cfg.LLM.BaseURL = ResolveURLForDocker(cfg.LLM.BaseURL)

	if err := cfg.validate(false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newConfig presets the defaults whose zero value is itself a valid setting
// (false, 0). env-default cannot express them: cleanenv applies a default to
// any zero field, which would turn an explicit "hard: 0" or "repair: false"
// in YAML back into the default.
func newConfig(version string) *Config {
	cfg := &Config{Version: version}
	cfg.LLM.CircuitBreaker.Enabled = true

	g := &cfg.Generation
	g.Quotas = QuotaConfig{Easy: 10, Medium: 10, Hard: 10}
	g.Temperature = 0.7
	g.Parallel = true
	g.TransientMax = 3
	g.ValidationMax = 1
	g.Repair = true
	g.RequireValidSQL = true
	g.UniqueRounds = 2
	g.SeedExamplesPerPrompt = 3
	g.Backoff.Jitter = 0.1
	return cfg
}

// Validate reports every invalid setting at once, wrapped in apperrors.ErrConfiguration.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(withLLM bool) error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if withLLM {
		c.validateLLM(add)
	}

	b := c.Generation.Backoff
	if b.InitialDelay <= 0 {
		add("generation.backoff.initial_delay must be > 0, got %s", b.InitialDelay)
	}
	if b.MaxDelay < b.InitialDelay {
		add("generation.backoff.max_delay (%s) must be >= initial_delay (%s)", b.MaxDelay, b.InitialDelay)
	}
	if b.Multiplier < 1 {
		add("generation.backoff.multiplier must be >= 1, got %g", b.Multiplier)
	}
	if b.Jitter < 0 || b.Jitter > 1 {
		add("generation.backoff.jitter must be within [0,1], got %g", b.Jitter)
	}

	if c.Cache.Capacity < 1 {
		add("cache.capacity must be >= 1, got %d", c.Cache.Capacity)
	}
	if !oneOf(c.Output.Format, outputFormats) {
		add("output.format %q is not one of %s", c.Output.Format, strings.Join(outputFormats, ", "))
	}
	if !oneOf(c.Logging.Level, logLevels) {
		add("logging.level %q is not one of %s", c.Logging.Level, strings.Join(logLevels, ", "))
	}
	if !oneOf(c.Logging.Format, logFormats) {
		add("logging.format %q is not one of %s", c.Logging.Format, strings.Join(logFormats, ", "))
	}
	if c.Datasource.Type != "" {
		if !oneOf(c.Datasource.Type, sourceTypes) {
			add("datasource.type %q is not one of %s", c.Datasource.Type, strings.Join(sourceTypes, ", "))
		}
		if c.Datasource.DSN == "" {
			add("DATASOURCE_DSN is required when datasource.type is set")
		}
	}

	// run settings share their checks with the generator
	if err := c.GenerationOptions().Validate(); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			result = multierror.Append(result, merr.Errors...)
		} else {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validateLLM(add func(format string, args ...any)) {
	if !oneOf(c.LLM.Provider, providers) {
		add("llm.provider %q is not one of %s", c.LLM.Provider, strings.Join(providers, ", "))
	}
	if c.LLM.Model == "" {
		add("llm.model is required")
	}
	if (c.LLM.Provider == llm.ProviderOpenAI || c.LLM.Provider == llm.ProviderAnthropic) && c.LLM.APIKey == "" {
		add("LLM_API_KEY is required for provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == llm.ProviderOpenAICompatible && c.LLM.BaseURL == "" {
		add("llm.base_url is required for provider %q", c.LLM.Provider)
	}
	if c.LLM.CircuitBreaker.Enabled && c.LLM.CircuitBreaker.Threshold < 1 {
		add("llm.circuit_breaker.threshold must be >= 1, got %d", c.LLM.CircuitBreaker.Threshold)
	}
}

// GenerationOptions converts the generation section into run options.
func (c *Config) GenerationOptions() services.GenerationOptions {
	g := c.Generation
	return services.GenerationOptions{
		Quotas: models.Quotas{
			models.DifficultyEasy:   g.Quotas.Easy,
			models.DifficultyMedium: g.Quotas.Medium,
			models.DifficultyHard:   g.Quotas.Hard,
		},
		Sampling: llm.GenerationParams{
			Temperature:   g.Temperature,
			MaxTokens:     g.MaxTokens,
			StopSequences: g.StopSequences,
		},
		RequestTimeout: c.LLM.RequestTimeout,
		Parallel:       g.Parallel,
		MaxWorkers:     g.MaxWorkers,
		Limits: retry.Limits{
			TransientMax:  g.TransientMax,
			ValidationMax: g.ValidationMax,
		},
		Backoff: &retry.Config{
			MaxRetries:   g.TransientMax,
			InitialDelay: g.Backoff.InitialDelay,
			MaxDelay:     g.Backoff.MaxDelay,
			Multiplier:   g.Backoff.Multiplier,
			JitterFactor: g.Backoff.Jitter,
		},
		Repair:                g.Repair,
		RequireValidSQL:       g.RequireValidSQL,
		AttemptBudget:         g.AttemptBudget,
		UniqueQuestions:       g.UniqueQuestions,
		UniqueRounds:          g.UniqueRounds,
		SeedExamplesPerPrompt: g.SeedExamplesPerPrompt,
	}
}

// ProviderConfig converts the llm section into back-end settings. The
// recorder is attached by the caller when a transcript is requested.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	pc := llm.ProviderConfig{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		Endpoint: c.LLM.BaseURL,
		APIKey:   c.LLM.APIKey,
	}
	if c.LLM.CircuitBreaker.Enabled {
		pc.CircuitBreaker = &llm.CircuitBreakerConfig{
			Threshold:  c.LLM.CircuitBreaker.Threshold,
			ResetAfter: c.LLM.CircuitBreaker.ResetAfter,
		}
	}
	return pc
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
