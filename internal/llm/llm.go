// Package llm provisions the Genkit runtime: the model provider plugin, the
// embedder the index uses, and the Generator the query engine uses.
package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
)

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Defaults for the Gemini provider.
const (
	DefaultModel         = "googleai/gemini-2.5-flash"
	DefaultEmbedderModel = "text-embedding-004"
)

// Config selects the model provider and its models.
type Config struct {
	// Provider is gemini (default), ollama or openai.
	Provider string
	// Model is the generation model name, provider-prefixed for Gemini
	// (for example googleai/gemini-2.5-flash).
	Model string
	// EmbedderModel is the embedding model name.
	EmbedderModel string
	// OllamaHost is the Ollama server address, ollama provider only.
	OllamaHost string
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.EmbedderModel == "" {
		c.EmbedderModel = DefaultEmbedderModel
	}
	return c
}

// Init initializes Genkit with the configured provider plugin. Gemini and
// OpenAI read their API keys from the environment; Ollama needs explicit
// model registration.
func Init(ctx context.Context, cfg Config, logger *slog.Logger) (*genkit.Genkit, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var g *genkit.Genkit
	switch cfg.Provider {
	case ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.Model,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)

	case ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}

	default:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
	}

	logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.Model)
	return g, nil
}

// Embedder looks up the embedder the provider registered. Returns nil when
// the model is unknown to the provider.
func Embedder(g *genkit.Genkit, cfg Config) ai.Embedder {
	cfg = cfg.withDefaults()
	switch cfg.Provider {
	case ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
