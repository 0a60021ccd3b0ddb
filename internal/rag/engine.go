// Package rag answers questions over ingested customer case studies. It
// retrieves relevant chunks with one of four strategies, composes a grounded
// prompt, and asks a language model for the final answer.
//
// The package defines the interfaces it consumes (Index, Generator,
// Observer); internal/index, internal/llm and internal/observability provide
// the implementations.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/casebook-ai/casebook/internal/index"
)

// DefaultGenerationTimeout bounds a single answer-generation call.
const DefaultGenerationTimeout = 60 * time.Second

// Index is the document index the engine retrieves from.
type Index interface {
	// SemanticSearch returns up to k chunks nearest to the query.
	SemanticSearch(ctx context.Context, query string, k int) ([]index.Chunk, error)
	// KeywordSearch returns up to k chunks with the query terms emphasized.
	KeywordSearch(ctx context.Context, query string, k int) ([]index.Chunk, error)
	// FullDocument returns the aggregate passage for a story URL. The bool
	// reports whether the URL is known.
	FullDocument(ctx context.Context, url string) (index.Chunk, bool, error)
	// Populated reports whether the index holds any chunks.
	Populated(ctx context.Context) bool
}

// Generator produces model text. Implementations report the token count of
// the exchange when the provider exposes it, zero otherwise.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (text string, tokens int, err error)
}

// Observer receives the lifecycle of each query: StartTrace once at entry,
// then exactly one of EndTrace or LogError.
type Observer interface {
	StartTrace(question string, cfg Config) (traceID string)
	EndTrace(traceID string, resp *Response, docsRetrieved int)
	LogError(traceID string, message string)
}

type nopObserver struct{}

func (nopObserver) StartTrace(string, Config) string { return "" }
func (nopObserver) EndTrace(string, *Response, int)  {}
func (nopObserver) LogError(string, string)          {}

// Response is the result of one query.
type Response struct {
	Answer        string        `json:"answer"`
	Sources       []string      `json:"sources"`
	TokensUsed    int           `json:"tokens_used"`
	ResponseTime  time.Duration `json:"response_time"`
	ContextLength int           `json:"context_length"`
}

// Engine wires an index, a generator and an observer into the query
// pipeline.
type Engine struct {
	index      Index
	gen        Generator
	obs        Observer
	logger     *slog.Logger
	genTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver attaches a query observer.
func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		if obs != nil {
			e.obs = obs
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithGenerationTimeout overrides DefaultGenerationTimeout.
func WithGenerationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.genTimeout = d
		}
	}
}

// NewEngine creates an Engine over the given index and generator.
func NewEngine(idx Index, gen Generator, opts ...Option) *Engine {
	e := &Engine{
		index:      idx,
		gen:        gen,
		obs:        nopObserver{},
		logger:     slog.Default(),
		genTimeout: DefaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query answers a question using the configured retrieval strategy. Every
// query emits exactly one trace: EndTrace on any answer (including a
// generation-failure answer), LogError when the index is empty.
//
// A degraded search or a failed plan narrows the retrieved set, possibly to
// nothing; the query still completes with whatever context remains. Only an
// empty index aborts the query, with ErrIndexUnavailable.
func (e *Engine) Query(ctx context.Context, question string, cfg Config) (*Response, error) {
	cfg = cfg.normalized()
	traceID := e.obs.StartTrace(question, cfg)

	if !e.index.Populated(ctx) {
		err := fmt.Errorf("%w: no documents ingested", ErrIndexUnavailable)
		e.obs.LogError(traceID, err.Error())
		return nil, err
	}

	start := time.Now()
	chunks := e.retrieve(ctx, question, cfg)
	e.logger.Debug("retrieval complete",
		"strategy", cfg.Strategy, "chunks", len(chunks), "elapsed", time.Since(start))

	resp := e.compose(ctx, question, chunks, cfg)
	resp.ResponseTime = time.Since(start)

	e.obs.EndTrace(traceID, resp, len(chunks))
	return resp, nil
}

func (e *Engine) retrieve(ctx context.Context, question string, cfg Config) []index.Chunk {
	switch cfg.Strategy {
	case StrategyParentDocument:
		return e.retrieveParentDocument(ctx, question, cfg)
	case StrategyHybrid:
		return e.retrieveHybrid(ctx, question, cfg)
	case StrategyAgentic:
		return e.retrieveAgentic(ctx, question, cfg)
	default:
		return e.retrieveNaive(ctx, question, cfg)
	}
}
