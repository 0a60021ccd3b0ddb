package rag

import (
	"context"
	"strings"

	"github.com/casebook-ai/casebook/internal/index"
)

// jaccardDuplicateThreshold is the word-set similarity above which two
// chunks count as the same content.
const jaccardDuplicateThreshold = 0.8

// retrieveNaive searches the chunk index directly with the configured
// method. The hybrid method takes half the budget from semantic search and
// half from keyword search, then drops exact-text duplicates.
func (e *Engine) retrieveNaive(ctx context.Context, question string, cfg Config) []index.Chunk {
	switch cfg.Method {
	case MethodKeyword:
		return e.searchOrEmpty(ctx, "keyword", e.index.KeywordSearch, question, cfg.TopK)

	case MethodHybrid:
		half := cfg.TopK / 2
		sem := e.searchOrEmpty(ctx, "semantic", e.index.SemanticSearch, question, half)
		kw := e.searchOrEmpty(ctx, "keyword", e.index.KeywordSearch, question, half)

		merged := dedupeByText(append(sem, kw...))
		if len(merged) > cfg.TopK {
			merged = merged[:cfg.TopK]
		}
		return merged

	default:
		return e.searchOrEmpty(ctx, "semantic", e.index.SemanticSearch, question, cfg.TopK)
	}
}

// retrieveParentDocument finds relevant chunks, then swaps each for the full
// story it belongs to. It over-fetches chunks so that several hits landing in
// the same story still yield top_k distinct documents.
func (e *Engine) retrieveParentDocument(ctx context.Context, question string, cfg Config) []index.Chunk {
	hits := e.searchOrEmpty(ctx, "semantic", e.index.SemanticSearch, question, cfg.TopK*2)

	seen := make(map[string]struct{})
	var docs []index.Chunk
	for _, hit := range hits {
		if len(docs) >= cfg.TopK {
			break
		}
		if hit.Source == "" {
			continue
		}
		if _, ok := seen[hit.Source]; ok {
			continue
		}
		seen[hit.Source] = struct{}{}

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

// retrieveHybrid unions the naive and parent-document results, keeping the
// first of any pair of near-duplicates. Near-duplicate means word-set
// Jaccard similarity above 0.8, so a chunk and the full story containing it
// collapse to whichever came first.
func (e *Engine) retrieveHybrid(ctx context.Context, question string, cfg Config) []index.Chunk {
	naive := e.retrieveNaive(ctx, question, cfg)
	parent := e.retrieveParentDocument(ctx, question, cfg)

	var unique []index.Chunk
	for _, c := range append(naive, parent...) {
		dup := false
		for _, u := range unique {
			if jaccard(c.Text, u.Text) > jaccardDuplicateThreshold {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, c)
		}
		if len(unique) >= cfg.TopK {
			break
		}
	}
	return unique
}

type searchFunc func(ctx context.Context, query string, k int) ([]index.Chunk, error)

// searchOrEmpty runs one search and degrades a failure to an empty result.
// The query proceeds with less context rather than aborting.
func (e *Engine) searchOrEmpty(ctx context.Context, kind string, search searchFunc, query string, k int) []index.Chunk {
	chunks, err := search(ctx, query, k)
	if err != nil {
		e.logger.Warn("search degraded to empty result",
			"kind", kind, "query", query, "error", err)
		return nil
	}
	return chunks
}

// dedupeByText keeps the first chunk for each exact text, preserving order.
func dedupeByText(chunks []index.Chunk) []index.Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := chunks[:0:0]
	for _, c := range chunks {
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c)
	}
	return out
}

// jaccard computes word-set Jaccard similarity between two texts, case
// insensitive. Two empty texts are identical; one empty text matches
// nothing.
func jaccard(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
