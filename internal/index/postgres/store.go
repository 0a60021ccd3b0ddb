// Package postgres is the PostgreSQL+pgvector document index. It implements
// the same contract as the in-process index for deployments where the corpus
// must outlive or be shared across processes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/casebook-ai/casebook/internal/index"
)

// DefaultSearchTimeout bounds a single vector search, embedding included.
const DefaultSearchTimeout = 10 * time.Second

// Querier is the database surface the store needs. *Queries implements it;
// tests substitute a mock.
type Querier interface {
	UpsertChunk(ctx context.Context, arg UpsertChunkParams) error
	DeleteChunksBySource(ctx context.Context, source string) error
	SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int32) ([]SearchChunksRow, error)
	CountChunks(ctx context.Context) (int64, error)
	UpsertStory(ctx context.Context, url string, data []byte) error
	GetStory(ctx context.Context, url string) ([]byte, error)
	ListStories(ctx context.Context) ([][]byte, error)
	DeleteAll(ctx context.Context) error
}

// Config configures a Store.
type Config struct {
	ChunkSize     int
	ChunkOverlap  int
	SearchTimeout time.Duration
}

// Store is the PostgreSQL-backed document index.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	cfg      Config
	logger   *slog.Logger
}

// New creates a Store over an already-migrated database.
func New(queries Querier, embedder ai.Embedder, cfg Config, logger *slog.Logger) *Store {
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, embedder: embedder, cfg: cfg, logger: logger}
}

// Upsert derives, embeds and stores the chunks for each story, and records
// the story row for parent-document lookup. A story that fails to embed or
// store counts as a failure without aborting the batch.
func (s *Store) Upsert(ctx context.Context, stories []index.Story) (index.UpsertSummary, error) {
	var sum index.UpsertSummary
	for _, story := range stories {
		if story.URL == "" {
			s.logger.Warn("skipping story without URL", "title", story.Title)
			sum.Failures++
			continue
		}
		n, err := s.upsertStory(ctx, story)
		if err != nil {
			s.logger.Warn("failed to ingest story", "source", story.URL, "error", err)
			sum.Failures++
			continue
		}
		sum.Stories++
		sum.Chunks += n
	}

	s.logger.Info("ingested stories",
		"stories", sum.Stories, "chunks", sum.Chunks, "failures", sum.Failures)
	return sum, nil
}

func (s *Store) upsertStory(ctx context.Context, story index.Story) (int, error) {
	chunks := index.ChunksFromStory(story, s.cfg.ChunkSize, s.cfg.ChunkOverlap)

	if err := s.queries.DeleteChunksBySource(ctx, story.URL); err != nil {
		return 0, fmt.Errorf("deleting stale chunks: %w", err)
	}

	for i, c := range chunks {
		embedding, err := s.embed(ctx, c.Text)
		if err != nil {
			return 0, err
		}
		err = s.queries.UpsertChunk(ctx, UpsertChunkParams{
			ID:          index.ChunkID(story.URL, i),
			Content:     c.Text,
			Embedding:   embedding,
			Source:      c.Source,
			Title:       c.Title,
			Company:     c.Company,
			Industry:    c.Industry,
			ChunkIndex:  int32(c.ChunkIndex),
			ContentType: string(c.ContentType),
		})
		if err != nil {
			return 0, fmt.Errorf("storing chunk %d: %w", i, err)
		}
	}

	data, err := json.Marshal(story)
	if err != nil {
		return 0, fmt.Errorf("encoding story: %w", err)
	}
	if err := s.queries.UpsertStory(ctx, story.URL, data); err != nil {
		return 0, fmt.Errorf("storing story: %w", err)
	}
	return len(chunks), nil
}

// SemanticSearch embeds the query and returns the k nearest chunks by cosine
// similarity.
func (s *Store) SemanticSearch(ctx context.Context, query string, k int) ([]index.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.queries.SearchChunks(ctx, embedding, int32(k))
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	chunks := make([]index.Chunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, index.Chunk{
			Text:        r.Content,
			Source:      r.Source,
			Title:       r.Title,
			Company:     r.Company,
			Industry:    r.Industry,
			ChunkIndex:  int(r.ChunkIndex),
			ContentType: index.ContentType(r.ContentType),
		})
	}
	return chunks, nil
}

// KeywordSearch biases the search toward the query's literal terms.
func (s *Store) KeywordSearch(ctx context.Context, query string, k int) ([]index.Chunk, error) {
	return s.SemanticSearch(ctx, index.ExpandKeywordQuery(query), k)
}

// FullDocument returns the synthesized aggregate passage for a story URL.
func (s *Store) FullDocument(ctx context.Context, url string) (index.Chunk, bool, error) {
	data, err := s.queries.GetStory(ctx, url)
	if errors.Is(err, pgx.ErrNoRows) {
		return index.Chunk{}, false, nil
	}
	if err != nil {
		return index.Chunk{}, false, fmt.Errorf("loading story: %w", err)
	}

	var story index.Story
	if err := json.Unmarshal(data, &story); err != nil {
		return index.Chunk{}, false, fmt.Errorf("decoding story: %w", err)
	}
	return index.SynthesizeFullDocument(story), true, nil
}

// Stats reports the current index contents.
func (s *Store) Stats(ctx context.Context) (index.Stats, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return index.Stats{}, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.queries.ListStories(ctx)
	if err != nil {
		return index.Stats{}, fmt.Errorf("listing stories: %w", err)
	}

	companies := make(map[string]struct{})
	industrySet := make(map[string]struct{})
	for _, data := range rows {
		var story index.Story
		if err := json.Unmarshal(data, &story); err != nil {
			s.logger.Warn("skipping undecodable story row", "error", err)
			continue
		}
		if story.Company != "" {
			companies[story.Company] = struct{}{}
		}
		if story.Industry != "" {
			industrySet[story.Industry] = struct{}{}
		}
	}

	industries := make([]string, 0, len(industrySet))
	for ind := range industrySet {
		industries = append(industries, ind)
	}
	sort.Strings(industries)

	return index.Stats{
		Chunks:        int(count),
		Companies:     len(companies),
		Industries:    industries,
		FullDocuments: len(rows),
	}, nil
}

// Populated reports whether the index holds any chunks. A failed count reads
// as unpopulated.
func (s *Store) Populated(ctx context.Context) bool {
	n, err := s.queries.CountChunks(ctx)
	if err != nil {
		s.logger.Warn("failed to count chunks", "error", err)
		return false
	}
	return n > 0
}

// Clear removes all chunks and stories.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.queries.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	return nil
}

// Refresh clears the index and ingests the given stories in one step.
func (s *Store) Refresh(ctx context.Context, stories []index.Story) (index.UpsertSummary, error) {
	if err := s.Clear(ctx); err != nil {
		return index.UpsertSummary{}, err
	}
	return s.Upsert(ctx, stories)
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("no embeddings returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
