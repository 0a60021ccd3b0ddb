package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/casebook-ai/casebook/internal/index"
	"github.com/casebook-ai/casebook/internal/log"
)

// mockEmbedder implements ai.Embedder with a fixed vector.
type mockEmbedder struct {
	embedErr  error
	callCount int
}

func (m *mockEmbedder) Name() string            { return "mock-embedder" }
func (m *mockEmbedder) Register(_ api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: []float32{0.1, 0.2, 0.3}}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// mockQuerier is an in-memory Querier.
type mockQuerier struct {
	chunks  map[string]UpsertChunkParams
	stories map[string][]byte

	upsertChunkErr error
	searchErr      error
	searchRows     []SearchChunksRow
	deletedSources []string
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{
		chunks:  make(map[string]UpsertChunkParams),
		stories: make(map[string][]byte),
	}
}

func (m *mockQuerier) UpsertChunk(_ context.Context, arg UpsertChunkParams) error {
	if m.upsertChunkErr != nil {
		return m.upsertChunkErr
	}
	m.chunks[arg.ID] = arg
	return nil
}

func (m *mockQuerier) DeleteChunksBySource(_ context.Context, source string) error {
	m.deletedSources = append(m.deletedSources, source)
	for id, c := range m.chunks {
		if c.Source == source {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *mockQuerier) SearchChunks(_ context.Context, _ pgvector.Vector, limit int32) ([]SearchChunksRow, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	rows := m.searchRows
	if int32(len(rows)) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *mockQuerier) CountChunks(context.Context) (int64, error) {
	return int64(len(m.chunks)), nil
}

func (m *mockQuerier) UpsertStory(_ context.Context, url string, data []byte) error {
	m.stories[url] = data
	return nil
}

func (m *mockQuerier) GetStory(_ context.Context, url string) ([]byte, error) {
	data, ok := m.stories[url]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return data, nil
}

func (m *mockQuerier) ListStories(context.Context) ([][]byte, error) {
	out := make([][]byte, 0, len(m.stories))
	for _, data := range m.stories {
		out = append(out, data)
	}
	return out, nil
}

func (m *mockQuerier) DeleteAll(context.Context) error {
	m.chunks = make(map[string]UpsertChunkParams)
	m.stories = make(map[string][]byte)
	return nil
}

func testStory() index.Story {
	return index.Story{
		URL:        "https://example.com/acme",
		Company:    "Acme",
		Industry:   "Logistics",
		Content:    "Acme runs a trucking fleet and saved 20% on fuel costs.",
		Highlights: []string{"20% fuel savings"},
	}
}

func TestStore_Upsert(t *testing.T) {
	t.Parallel()
	q := newMockQuerier()
	s := New(q, &mockEmbedder{}, Config{}, log.NewNop())

	sum, err := s.Upsert(context.Background(), []index.Story{testStory()})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if sum.Stories != 1 || sum.Chunks != 2 || sum.Failures != 0 {
		t.Errorf("summary = %+v, want 1 story, 2 chunks", sum)
	}
	// Stale chunks for the URL are dropped before the new set lands.
	if len(q.deletedSources) != 1 || q.deletedSources[0] != "https://example.com/acme" {
		t.Errorf("deleted sources = %v", q.deletedSources)
	}
	if len(q.stories) != 1 {
		t.Errorf("stories stored = %d, want 1", len(q.stories))
	}
}

func TestStore_UpsertFailureTolerated(t *testing.T) {
	t.Parallel()
	q := newMockQuerier()
	q.upsertChunkErr = errors.New("disk full")
	s := New(q, &mockEmbedder{}, Config{}, log.NewNop())

	sum, err := s.Upsert(context.Background(), []index.Story{testStory(), {Company: "NoURL"}})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if sum.Stories != 0 || sum.Failures != 2 {
		t.Errorf("summary = %+v, want 0 stories, 2 failures", sum)
	}
}

func TestStore_SemanticSearch(t *testing.T) {
	t.Parallel()
	q := newMockQuerier()
	q.searchRows = []SearchChunksRow{
		{Content: "fuel chunk", Source: "https://example.com/acme", Company: "Acme", Industry: "Logistics", ContentType: "main_content"},
	}
	s := New(q, &mockEmbedder{}, Config{}, log.NewNop())

	chunks, err := s.SemanticSearch(context.Background(), "fuel", 5)
	if err != nil {
		t.Fatalf("SemanticSearch() error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	got := chunks[0]
	if got.Text != "fuel chunk" || got.Company != "Acme" || got.ContentType != index.ContentMain {
		t.Errorf("chunk = %+v", got)
	}
}

func TestStore_SemanticSearchZeroK(t *testing.T) {
	t.Parallel()
	emb := &mockEmbedder{}
	s := New(newMockQuerier(), emb, Config{}, log.NewNop())

	chunks, err := s.SemanticSearch(context.Background(), "q", 0)
	if err != nil || chunks != nil {
		t.Errorf("SemanticSearch(k=0) = %v, %v; want nil, nil", chunks, err)
	}
	if emb.callCount != 0 {
		t.Error("embedded a query that can return nothing")
	}
}

func TestStore_SemanticSearchEmbedError(t *testing.T) {
	t.Parallel()
	q := newMockQuerier()
	s := New(q, &mockEmbedder{embedErr: errors.New("quota")}, Config{}, log.NewNop())

	if _, err := s.SemanticSearch(context.Background(), "q", 5); err == nil {
		t.Error("expected embed failure to surface")
	}
}

func TestStore_FullDocument(t *testing.T) {
	t.Parallel()
	q := newMockQuerier()
	s := New(q, &mockEmbedder{}, Config{}, log.NewNop())
	ctx := context.Background()

	if _, err := s.Upsert(ctx, []index.Story{testStory()}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	doc, ok, err := s.FullDocument(ctx, "https://example.com/acme")
	if err != nil || !ok {
		t.Fatalf("FullDocument() = ok=%v err=%v", ok, err)
	}
	if doc.ContentType != index.ContentFullDocument {
		t.Errorf("content type = %s", doc.ContentType)
	}

	if _, ok, err := s.FullDocument(ctx, "https://example.com/missing"); err != nil || ok {
		t.Errorf("FullDocument(missing) = ok=%v err=%v, want absent without error", ok, err)
	}
}

func TestStore_StatsAndClear(t *testing.T) {
	t.Parallel()
	q := newMockQuerier()
	s := New(q, &mockEmbedder{}, Config{}, log.NewNop())
	ctx := context.Background()

	if _, err := s.Upsert(ctx, []index.Story{testStory()}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Chunks != 2 || stats.Companies != 1 || stats.FullDocuments != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !s.Populated(ctx) {
		t.Error("Populated() = false after ingest")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if s.Populated(ctx) {
		t.Error("Populated() = true after Clear")
	}
}
