// Package index stores case-study chunks with vector embeddings and answers
// nearest-neighbor and keyword-biased searches over them. It also retains the
// full stories so parent-document retrieval can trade a narrow snippet for
// the whole case study.
//
// The primary implementation embeds chromem-go, an in-process vector store;
// internal/index/postgres provides the same contract on PostgreSQL+pgvector
// for deployments that outgrow a single process.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"
)

// DefaultCollection is the chromem collection holding story chunks.
const DefaultCollection = "customer_stories"

// DefaultSearchTimeout bounds a single vector search, embedding included.
const DefaultSearchTimeout = 10 * time.Second

const storiesFile = "stories.json"

// Config configures a Store.
type Config struct {
	// Collection names the chromem collection. Default: DefaultCollection.
	Collection string

	// Dir enables on-disk persistence when non-empty. The directory holds
	// the chromem database plus a stories.json with the raw stories used
	// for parent-document synthesis.
	Dir string

	// ChunkSize and ChunkOverlap control how story content is segmented.
	// Defaults: chunk.DefaultSize / chunk.DefaultOverlap via ChunksFromStory.
	ChunkSize    int
	ChunkOverlap int

	// SearchTimeout bounds each search call. Default: DefaultSearchTimeout.
	SearchTimeout time.Duration

	// Embedding converts text to a vector. Required.
	Embedding chromem.EmbeddingFunc
}

// Store is the in-process document index. It is safe for one concurrent
// writer (ingestion) interleaved with any number of readers (queries); the
// mutex guards only in-memory state, never an embedding or query call.
type Store struct {
	cfg    Config
	logger *slog.Logger

	db *chromem.DB

	mu      sync.RWMutex
	coll    *chromem.Collection
	stories map[string]Story
}

// New creates a Store. With cfg.Dir set, previously persisted chunks and
// stories are loaded back.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Embedding == nil {
		return nil, fmt.Errorf("index: embedding function is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Dir != "" {
		db, err = chromem.NewPersistentDB(cfg.Dir, false)
		if err != nil {
			return nil, fmt.Errorf("opening persistent index at %s: %w", cfg.Dir, err)
		}
	} else {
		db = chromem.NewDB()
	}

	coll, err := db.GetOrCreateCollection(cfg.Collection, nil, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", cfg.Collection, err)
	}

	s := &Store{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		coll:    coll,
		stories: make(map[string]Story),
	}
	if cfg.Dir != "" {
		if err := s.loadStories(); err != nil {
			// Chunks without their stories still serve naive retrieval;
			// log and continue.
			logger.Warn("failed to load persisted stories", "error", err)
		}
	}
	return s, nil
}

// Upsert derives chunks for each story, embeds and stores them, and records
// the story for parent-document lookup. Re-ingesting a URL replaces its
// chunks. A story that fails to embed or store is counted in
// UpsertSummary.Failures and does not abort the rest of the batch.
func (s *Store) Upsert(ctx context.Context, stories []Story) (UpsertSummary, error) {
	var sum UpsertSummary
	coll := s.collection()

	for _, story := range stories {
		if story.URL == "" {
			s.logger.Warn("skipping story without URL", "title", story.Title)
			sum.Failures++
			continue
		}

		chunks := ChunksFromStory(story, s.cfg.ChunkSize, s.cfg.ChunkOverlap)

		// Replace, not append: drop any chunks from a previous ingestion of
		// this URL before adding the new set.
		if err := coll.Delete(ctx, map[string]string{"source": story.URL}, nil); err != nil {
			s.logger.Warn("failed to delete stale chunks", "source", story.URL, "error", err)
		}

		docs := make([]chromem.Document, len(chunks))
		for i, c := range chunks {
			docs[i] = chromem.Document{
				ID:       ChunkID(story.URL, i),
				Content:  c.Text,
				Metadata: chunkMetadata(c),
			}
		}
		if len(docs) > 0 {
			if err := coll.AddDocuments(ctx, docs, 1); err != nil {
				s.logger.Warn("failed to store story chunks", "source", story.URL, "error", err)
				sum.Failures++
				continue
			}
		}

		s.mu.Lock()
		s.stories[story.URL] = story
		s.mu.Unlock()

		sum.Stories++
		sum.Chunks += len(docs)
	}

	if s.cfg.Dir != "" {
		if err := s.saveStories(); err != nil {
			s.logger.Warn("failed to persist stories", "error", err)
		}
	}

	s.logger.Info("ingested stories",
		"stories", sum.Stories, "chunks", sum.Chunks, "failures", sum.Failures)
	return sum, nil
}

// SemanticSearch embeds the query and returns the k nearest chunks by cosine
// similarity. k is clamped to the current chunk count; an empty index yields
// an empty result without error.
func (s *Store) SemanticSearch(ctx context.Context, query string, k int) ([]Chunk, error) {
	coll := s.collection()

	if k <= 0 {
		return nil, nil
	}
	if n := coll.Count(); n == 0 {
		return nil, nil
	} else if k > n {
		k = n
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	results, err := coll.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, chunkFromResult(r))
	}
	return chunks, nil
}

// KeywordSearch approximates keyword relevance by re-weighting the query,
// repeating every term with an emphasis marker, before delegating to the
// same nearest-neighbor mechanism. This is a soft bias toward the query's
// terms, not boolean keyword matching.
func (s *Store) KeywordSearch(ctx context.Context, query string, k int) ([]Chunk, error) {
	return s.SemanticSearch(ctx, ExpandKeywordQuery(query), k)
}

// FullDocument returns the synthesized aggregate passage for a story URL, or
// false if the URL was never ingested.
func (s *Store) FullDocument(_ context.Context, url string) (Chunk, bool, error) {
	s.mu.RLock()
	story, ok := s.stories[url]
	s.mu.RUnlock()
	if !ok {
		return Chunk{}, false, nil
	}
	return SynthesizeFullDocument(story), true, nil
}

// Stats reports the current index contents.
func (s *Store) Stats(_ context.Context) (Stats, error) {
	coll := s.collection()

	s.mu.RLock()
	companies := make(map[string]struct{})
	industrySet := make(map[string]struct{})
	for _, story := range s.stories {
		if story.Company != "" {
			companies[story.Company] = struct{}{}
		}
		if story.Industry != "" {
			industrySet[story.Industry] = struct{}{}
		}
	}
	fullDocs := len(s.stories)
	s.mu.RUnlock()

	industries := make([]string, 0, len(industrySet))
	for ind := range industrySet {
		industries = append(industries, ind)
	}
	sort.Strings(industries)

	return Stats{
		Chunks:        coll.Count(),
		Companies:     len(companies),
		Industries:    industries,
		FullDocuments: fullDocs,
	}, nil
}

// Populated reports whether the index holds any chunks.
func (s *Store) Populated(_ context.Context) bool {
	return s.collection().Count() > 0
}

// Clear removes all chunks and stories.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.cfg.Collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	coll, err := s.db.GetOrCreateCollection(s.cfg.Collection, nil, s.cfg.Embedding)
	if err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	s.coll = coll
	s.stories = make(map[string]Story)

	if s.cfg.Dir != "" {
		if err := s.saveStoriesLocked(); err != nil {
			s.logger.Warn("failed to persist cleared stories", "error", err)
		}
	}
	return nil
}

// Refresh clears the index and ingests the given stories in one step.
func (s *Store) Refresh(ctx context.Context, stories []Story) (UpsertSummary, error) {
	if err := s.Clear(ctx); err != nil {
		return UpsertSummary{}, err
	}
	return s.Upsert(ctx, stories)
}

// collection returns the current chromem collection. Clear swaps it, so all
// readers go through here instead of caching s.coll.
func (s *Store) collection() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll
}

func (s *Store) saveStories() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveStoriesLocked()
}

// saveStoriesLocked writes stories.json; callers must hold s.mu. The file
// lock serializes concurrent processes sharing the same persistence dir.
func (s *Store) saveStoriesLocked() error {
	lock := flock.New(filepath.Join(s.cfg.Dir, storiesFile+".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking stories file: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to unlock stories file", "error", err)
		}
	}()

	data, err := json.MarshalIndent(s.stories, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding stories: %w", err)
	}
	path := filepath.Join(s.cfg.Dir, storiesFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *Store) loadStories() error {
	path := filepath.Join(s.cfg.Dir, storiesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	stories := make(map[string]Story)
	if err := json.Unmarshal(data, &stories); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	s.mu.Lock()
	s.stories = stories
	s.mu.Unlock()
	return nil
}

func chunkMetadata(c Chunk) map[string]string {
	return map[string]string{
		"source":       c.Source,
		"title":        c.Title,
		"company_name": c.Company,
		"industry":     c.Industry,
		"chunk_index":  strconv.Itoa(c.ChunkIndex),
		"content_type": string(c.ContentType),
	}
}

func chunkFromResult(r chromem.Result) Chunk {
	idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
	return Chunk{
		Text:        r.Content,
		Source:      r.Metadata["source"],
		Title:       r.Metadata["title"],
		Company:     r.Metadata["company_name"],
		Industry:    r.Metadata["industry"],
		ChunkIndex:  idx,
		ContentType: ContentType(r.Metadata["content_type"]),
	}
}
