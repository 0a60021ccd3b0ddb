package rag

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/casebook-ai/casebook/internal/index"
)

// Planner generation settings. Planning is a classification task, so it runs
// cold and short regardless of the answer-generation settings.
const (
	planTemperature = 0.2
	planMaxTokens   = 512
)

const planSystemPrompt = `You analyze questions about customer case studies and plan how to research them.
Respond with a single JSON object and nothing else:
{"complexity": "simple" or "complex", "sub_queries": ["..."], "reasoning": "..."}
A question is complex when answering it needs information from several companies, a comparison, or aggregate metrics. Sub-queries are self-contained search queries that together cover the question.`

type plan struct {
	Complexity string   `json:"complexity"`
	SubQueries []string `json:"sub_queries"`
	Reasoning  string   `json:"reasoning"`
}

type actionType int

const (
	actionRetrieveSemantic actionType = iota
	actionRetrieveParent
	actionStop
)

type agentAction struct {
	typ        actionType
	query      string
	confidence float64
}

// retrieveAgentic plans the question, then runs a bounded loop of retrieval
// steps. The plan only informs the steps; the step policy itself is
// deterministic, so a failed or malformed plan degrades the loop to broad
// semantic passes instead of aborting it.
func (e *Engine) retrieveAgentic(ctx context.Context, question string, cfg Config) []index.Chunk {
	p := e.planQuestion(ctx, question)
	e.logger.Debug("question planned",
		"complexity", p.Complexity, "sub_queries", len(p.SubQueries), "reasoning", p.Reasoning)

	seen := make(map[string]struct{})
	var docs []index.Chunk

	for step := 0; step < cfg.MaxAgentSteps; step++ {
		action := decideAction(step, p, question)
		if action.typ == actionStop {
			break
		}

		var got []index.Chunk
		switch action.typ {
		case actionRetrieveSemantic:
			got = e.searchOrEmpty(ctx, "semantic", e.index.SemanticSearch, action.query, cfg.TopK)
		case actionRetrieveParent:
			got = e.retrieveParentStep(ctx, action.query, cfg.TopK)
		}

		for _, c := range got {
			if _, ok := seen[c.Text]; ok {
				continue
			}
			seen[c.Text] = struct{}{}
			docs = append(docs, c)
		}

		if action.confidence >= cfg.AgentConfidenceThreshold {
			break
		}
	}

	if len(docs) == 0 {
		// The loop found nothing; fall back to a plain semantic pass on the
		// original question.
		fallback := cfg
		fallback.Method = MethodSemantic
		return e.retrieveNaive(ctx, question, fallback)
	}

	if cfg.EnableReflection && len(docs) > cfg.TopK*2 {
		docs = docs[:cfg.TopK*2]
	}
	return docs
}

// planQuestion asks the model to classify the question and propose
// sub-queries. Any failure, including unparseable output, yields a simple
// plan over the original question.
func (e *Engine) planQuestion(ctx context.Context, question string) plan {
	fallback := plan{
		Complexity: "simple",
		SubQueries: []string{question},
		Reasoning:  "planning unavailable",
	}

	raw, _, err := e.gen.Generate(ctx, planSystemPrompt, question, planTemperature, planMaxTokens)
	if err != nil {
		e.logger.Warn("planning degraded to simple", "error", err)
		return fallback
	}

	var p plan
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &p); err != nil {
		e.logger.Warn("unparseable plan, degrading to simple", "error", err)
		return fallback
	}

	if p.Complexity != "complex" {
		p.Complexity = "simple"
	}
	if len(p.SubQueries) == 0 {
		p.SubQueries = []string{question}
	}
	return p
}

// decideAction is the fixed step policy. The first step is always a broad
// semantic pass over the original question; a complex question earns a
// parent-document step next; from the third step on the loop stops.
func decideAction(step int, p plan, question string) agentAction {
	switch {
	case step == 0:
		return agentAction{typ: actionRetrieveSemantic, query: question, confidence: 0.5}
	case step == 1 && p.Complexity == "complex":
		return agentAction{typ: actionRetrieveParent, query: question, confidence: 0.7}
	case step >= 2:
		return agentAction{typ: actionStop, confidence: 0.9}
	default:
		return agentAction{typ: actionRetrieveSemantic, query: subQuery(p, step, question), confidence: 0.6}
	}
}

// subQuery picks the plan's sub-query for a step, falling back to the
// original question when the plan has fewer sub-queries than steps.
func subQuery(p plan, step int, question string) string {
	if step < len(p.SubQueries) && strings.TrimSpace(p.SubQueries[step]) != "" {
		return p.SubQueries[step]
	}
	return question
}

// retrieveParentStep is the agent's parent-document action: search, then
// expand the first few hits into their full stories. Unknown sources are
// skipped.
func (e *Engine) retrieveParentStep(ctx context.Context, query string, k int) []index.Chunk {
	const maxParentExpansions = 3

	hits := e.searchOrEmpty(ctx, "semantic", e.index.SemanticSearch, query, k)
	if len(hits) > maxParentExpansions {
		hits = hits[:maxParentExpansions]
	}

	var docs []index.Chunk
	for _, hit := range hits {
		doc, ok, err := e.index.FullDocument(ctx, hit.Source)
		if err != nil {
			e.logger.Warn("full document lookup failed", "source", hit.Source, "error", err)
			continue
		}
		if !ok {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// stripCodeFence unwraps a ```json ... ``` block if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
