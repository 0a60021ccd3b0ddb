package config

import (
	"errors"
	"testing"

	"github.com/casebook-ai/casebook/internal/rag"
)

func validConfig() Config {
	return Config{
		Provider:                 "gemini",
		ModelName:                "googleai/gemini-2.5-flash",
		EmbedderModel:            "text-embedding-004",
		Strategy:                 "naive",
		RetrievalMethod:          "semantic",
		TopK:                     5,
		ChunkSize:                1000,
		ChunkOverlap:             200,
		Temperature:              1.0,
		MaxTokens:                2048,
		MaxAgentSteps:            3,
		AgentConfidenceThreshold: 0.7,
		EnableReflection:         true,
		Backend:                  BackendChromem,
		ScrapeBaseURL:            "https://www.example.com/customers",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"negative temperature", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"zero top_k", func(c *Config) { c.TopK = 0 }, ErrInvalidTopK},
		{"overlap at size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, ErrInvalidChunking},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, ErrInvalidChunking},
		{"zero agent steps", func(c *Config) { c.MaxAgentSteps = 0 }, ErrInvalidAgentSteps},
		{"confidence above one", func(c *Config) { c.AgentConfidenceThreshold = 1.1 }, ErrInvalidConfidence},
		{"unknown backend", func(c *Config) { c.Backend = "redis" }, ErrInvalidBackend},
		{"postgres without url", func(c *Config) { c.Backend = BackendPostgres }, ErrMissingPostgresURL},
		{
			"postgres with url",
			func(c *Config) {
				c.Backend = BackendPostgres
				c.PostgresURL = "postgres://localhost:5432/casebook"
			},
			nil,
		},
		{"missing scrape url", func(c *Config) { c.ScrapeBaseURL = "" }, ErrMissingScrapeURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetrieval(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Strategy = "agentic"
	cfg.RetrievalMethod = "keyword"
	cfg.TopK = 8

	r := cfg.Retrieval()
	if r.Strategy != rag.StrategyAgentic || r.Method != rag.MethodKeyword || r.TopK != 8 {
		t.Errorf("Retrieval() = %+v", r)
	}
	if !r.EnableReflection {
		t.Error("reflection flag lost in conversion")
	}

	// Unknown names map to the safe defaults rather than failing.
	cfg.Strategy = "bogus"
	cfg.RetrievalMethod = "bogus"
	r = cfg.Retrieval()
	if r.Strategy != rag.StrategyNaive || r.Method != rag.MethodSemantic {
		t.Errorf("Retrieval() with unknown names = %+v", r)
	}
}
