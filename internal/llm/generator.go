package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// Generator produces answers through Genkit. It satisfies the query
// engine's generator contract.
type Generator struct {
	g      *genkit.Genkit
	model  string
	logger *slog.Logger
}

// NewGenerator creates a Generator bound to one model.
func NewGenerator(g *genkit.Genkit, model string, logger *slog.Logger) *Generator {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{g: g, model: model, logger: logger}
}

// Generate runs one model call and returns the text plus the total token
// count when the provider reports usage.
func (gen *Generator) Generate(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, int, error) {
	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(temperature)),
			MaxOutputTokens: int32(maxTokens),
		}),
	)
	if err != nil {
		return "", 0, fmt.Errorf("generating response: %w", err)
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	gen.logger.Debug("model response", "model", gen.model, "tokens", tokens)
	return resp.Text(), tokens, nil
}
