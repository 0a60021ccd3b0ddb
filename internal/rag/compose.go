package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/casebook-ai/casebook/internal/index"
)

const answerSystemPrompt = `You are an expert assistant answering questions about customer success stories and case studies.

Guidelines:
- Ground every claim in the provided context.
- When you mention a customer or a metric, attribute it to the story it came from.
- If the context is insufficient to answer, say so explicitly instead of guessing.
- Do not state facts about competitors beyond what the context contains.`

// compose builds the grounded prompt from the retrieved chunks and asks the
// generator for the answer. A generation failure still yields a response: an
// apologetic answer with the sources that were retrieved, and zero tokens.
func (e *Engine) compose(ctx context.Context, question string, chunks []index.Chunk, cfg Config) *Response {
	contextBlock := buildContext(chunks)
	prompt := buildPrompt(question, contextBlock)

	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, c.Source)
	}

	genCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	answer, tokens, err := e.gen.Generate(genCtx, answerSystemPrompt, prompt, cfg.Temperature, cfg.MaxTokens)
	if err != nil {
		e.logger.Error("answer generation failed", "error", err)
		return &Response{
			Answer:        "I apologize, but I encountered an error while answering your question: " + err.Error(),
			Sources:       sources,
			TokensUsed:    0,
			ContextLength: len(contextBlock),
		}
	}

	return &Response{
		Answer:        answer,
		Sources:       sources,
		TokensUsed:    tokens,
		ContextLength: len(contextBlock),
	}
}

// buildContext renders the retrieved chunks as labeled source sections. The
// labels let the model attribute claims to specific stories.
func buildContext(chunks []index.Chunk) string {
	sections := make([]string, 0, len(chunks))
	for i, c := range chunks {
		company := c.Company
		if company == "" {
			company = "Unknown Company"
		}
		industry := c.Industry
		if industry == "" {
			industry = "Unknown Industry"
		}
		source := c.Source
		if source == "" {
			source = "Unknown Source"
		}
		sections = append(sections, fmt.Sprintf(
			"--- Source %d: %s (%s) ---\nURL: %s\nContent: %s\n\n",
			i+1, company, industry, source, c.Text))
	}
	return strings.Join(sections, "\n")
}

func buildPrompt(question, contextBlock string) string {
	return fmt.Sprintf(`Based on the following customer stories, answer the user's question.

Context from customer stories:
%s

User question: %s

Provide a thorough answer based only on the provided context.`, contextBlock, question)
}
