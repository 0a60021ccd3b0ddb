package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casebook-ai/casebook/db"
	"github.com/casebook-ai/casebook/internal/config"
	"github.com/casebook-ai/casebook/internal/index"
	"github.com/casebook-ai/casebook/internal/index/postgres"
	"github.com/casebook-ai/casebook/internal/llm"
	"github.com/casebook-ai/casebook/internal/log"
	"github.com/casebook-ai/casebook/internal/observability"
	"github.com/casebook-ai/casebook/internal/rag"
)

// documentIndex is the full index contract the CLI needs. Both backends
// satisfy it; the query engine itself only needs the rag.Index subset.
type documentIndex interface {
	rag.Index
	Upsert(ctx context.Context, stories []index.Story) (index.UpsertSummary, error)
	Refresh(ctx context.Context, stories []index.Story) (index.UpsertSummary, error)
	Stats(ctx context.Context) (index.Stats, error)
	Clear(ctx context.Context) error
}

// app holds everything a command needs, wired from configuration.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	index   documentIndex
	tracker *observability.Tracker
	engine  *rag.Engine

	closers []func(context.Context) error
}

// newApp loads configuration and builds the provider, index backend,
// tracker and query engine. Call Close when done.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{Level: parseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	a := &app{cfg: cfg, logger: logger}

	g, err := llm.Init(ctx, llmConfig(cfg), logger.With("component", "llm"))
	if err != nil {
		return nil, fmt.Errorf("initializing model provider: %w", err)
	}
	embedder := llm.Embedder(g, llmConfig(cfg))
	if embedder == nil {
		return nil, fmt.Errorf("provider %s has no embedder %q", cfg.Provider, cfg.EmbedderModel)
	}

	switch cfg.Backend {
	case config.BackendPostgres:
		if err := db.Migrate(cfg.PostgresURL); err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		a.index = postgres.New(postgres.NewQueries(pool), embedder, postgres.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		}, logger.With("component", "index"))
	default:
		store, err := index.New(index.Config{
			Collection:   cfg.Collection,
			Dir:          cfg.DataDir,
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			Embedding:    index.NewEmbeddingFunc(embedder),
		}, logger.With("component", "index"))
		if err != nil {
			return nil, fmt.Errorf("opening index: %w", err)
		}
		a.index = store
	}

	if cfg.TracingEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.TracingEndpoint,
			Environment: cfg.Environment,
			ServiceName: cfg.ServiceName,
		}, logger.With("component", "tracing"))
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.closers = append(a.closers, shutdown)
	}
	a.tracker = observability.NewTracker()

	gen := llm.NewGenerator(g, llmConfig(cfg).Model, logger.With("component", "llm"))
	a.engine = rag.NewEngine(a.index, gen,
		rag.WithObserver(a.tracker),
		rag.WithLogger(logger.With("component", "rag")),
	)
	return a, nil
}

// Close releases the app's resources in reverse wiring order.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
}

func llmConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		Provider:      cfg.Provider,
		Model:         cfg.ModelName,
		EmbedderModel: cfg.EmbedderModel,
		OllamaHost:    cfg.OllamaHost,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
