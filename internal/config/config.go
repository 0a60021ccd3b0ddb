// Package config loads application configuration with multi-source
// priority: environment variables override the config file
// (~/.casebook/config.yaml), which overrides the defaults.
//
// Validation returns sentinel errors so callers can branch with errors.Is.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/casebook-ai/casebook/internal/rag"
)

var (
	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidChunking indicates the chunk size and overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking")

	// ErrInvalidBackend indicates an unknown index backend.
	ErrInvalidBackend = errors.New("invalid index backend")

	// ErrMissingPostgresURL indicates the postgres backend was selected
	// without a connection URL.
	ErrMissingPostgresURL = errors.New("missing postgres URL")

	// ErrInvalidAgentSteps indicates the agent step budget is out of range.
	ErrInvalidAgentSteps = errors.New("invalid max agent steps")

	// ErrInvalidConfidence indicates the agent confidence threshold is out
	// of range.
	ErrInvalidConfidence = errors.New("invalid agent confidence threshold")

	// ErrMissingScrapeURL indicates no customer stories URL was configured.
	ErrMissingScrapeURL = errors.New("missing scrape base URL")
)

// Index backends.
const (
	BackendChromem  = "chromem"
	BackendPostgres = "postgres"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration.
	Provider      string `mapstructure:"provider" json:"provider"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// Retrieval and generation configuration.
	Strategy                 string  `mapstructure:"strategy" json:"strategy"`
	RetrievalMethod          string  `mapstructure:"retrieval_method" json:"retrieval_method"`
	TopK                     int     `mapstructure:"top_k" json:"top_k"`
	ChunkSize                int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap             int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	Temperature              float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens                int     `mapstructure:"max_tokens" json:"max_tokens"`
	MaxAgentSteps            int     `mapstructure:"max_agent_steps" json:"max_agent_steps"`
	AgentConfidenceThreshold float64 `mapstructure:"agent_confidence_threshold" json:"agent_confidence_threshold"`
	EnableReflection         bool    `mapstructure:"enable_reflection" json:"enable_reflection"`

	// Index backend: chromem (default, in-process) or postgres.
	Backend     string `mapstructure:"backend" json:"backend"`
	DataDir     string `mapstructure:"data_dir" json:"data_dir"`
	Collection  string `mapstructure:"collection" json:"collection"`
	PostgresURL string `mapstructure:"postgres_url" json:"postgres_url"` // SENSITIVE: not logged

	// Scraper configuration.
	ScrapeBaseURL    string  `mapstructure:"scrape_base_url" json:"scrape_base_url"`
	ScrapeRateLimit  float64 `mapstructure:"scrape_rate_limit" json:"scrape_rate_limit"`
	ScrapeMaxStories int     `mapstructure:"scrape_max_stories" json:"scrape_max_stories"`

	// Tracing configuration.
	TracingEnabled  bool   `mapstructure:"tracing_enabled" json:"tracing_enabled"`
	TracingEndpoint string `mapstructure:"tracing_endpoint" json:"tracing_endpoint"`
	ServiceName     string `mapstructure:"service_name" json:"service_name"`
	Environment     string `mapstructure:"environment" json:"environment"`

	// Logging configuration.
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load reads configuration from defaults, ~/.casebook/config.yaml and
// CASEBOOK_* environment variables, then validates it.
func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)

	v.SetEnvPrefix("CASEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the defaults carry the day.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

// Dir returns the per-user configuration and data directory, creating it
// when absent.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".casebook")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	d := rag.DefaultConfig()

	v.SetDefault("provider", "gemini")
	v.SetDefault("model_name", "googleai/gemini-2.5-flash")
	v.SetDefault("embedder_model", "text-embedding-004")
	v.SetDefault("ollama_host", "http://localhost:11434")

	v.SetDefault("strategy", string(d.Strategy))
	v.SetDefault("retrieval_method", string(d.Method))
	v.SetDefault("top_k", d.TopK)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("chunk_overlap", d.ChunkOverlap)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("max_agent_steps", d.MaxAgentSteps)
	v.SetDefault("agent_confidence_threshold", d.AgentConfidenceThreshold)
	v.SetDefault("enable_reflection", d.EnableReflection)

	v.SetDefault("backend", BackendChromem)
	v.SetDefault("data_dir", filepath.Join(configDir, "index"))
	v.SetDefault("collection", "customer_stories")

	v.SetDefault("scrape_base_url", "https://www.samsara.com/customers")
	v.SetDefault("scrape_rate_limit", 3.0)
	v.SetDefault("scrape_max_stories", 0)

	v.SetDefault("tracing_enabled", false)
	v.SetDefault("tracing_endpoint", "localhost:4318")
	v.SetDefault("service_name", "casebook")
	v.SetDefault("environment", "dev")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks configuration ranges. Returns sentinel errors usable with
// errors.Is.
func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.ChunkSize < 1 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be non-negative and below size %d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxAgentSteps < 1 || c.MaxAgentSteps > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidAgentSteps, c.MaxAgentSteps)
	}
	if c.AgentConfidenceThreshold <= 0 || c.AgentConfidenceThreshold > 1 {
		return fmt.Errorf("%w: must be in (0, 1], got %.2f", ErrInvalidConfidence, c.AgentConfidenceThreshold)
	}

	switch c.Backend {
	case BackendChromem:
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("%w: backend %q needs postgres_url", ErrMissingPostgresURL, c.Backend)
		}
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidBackend, c.Backend, BackendChromem, BackendPostgres)
	}

	if c.ScrapeBaseURL == "" {
		return fmt.Errorf("%w: scrape_base_url cannot be empty", ErrMissingScrapeURL)
	}
	return nil
}

// Retrieval converts the persisted settings into a per-query retrieval
// configuration.
func (c *Config) Retrieval() rag.Config {
	return rag.Config{
		Strategy:                 rag.ParseStrategy(c.Strategy),
		Method:                   rag.ParseMethod(c.RetrievalMethod),
		TopK:                     c.TopK,
		ChunkSize:                c.ChunkSize,
		ChunkOverlap:             c.ChunkOverlap,
		Temperature:              c.Temperature,
		MaxTokens:                c.MaxTokens,
		MaxAgentSteps:            c.MaxAgentSteps,
		AgentConfidenceThreshold: c.AgentConfidenceThreshold,
		EnableReflection:         c.EnableReflection,
	}
}
