package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx a Queries needs; *pgxpool.Pool and pgx.Tx both
// satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the SQL behind the store operations.
type Queries struct {
	db DBTX
}

// NewQueries wraps a connection pool or transaction.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// UpsertChunkParams carries one embedded chunk row.
type UpsertChunkParams struct {
	ID          string
	Content     string
	Embedding   pgvector.Vector
	Source      string
	Title       string
	Company     string
	Industry    string
	ChunkIndex  int32
	ContentType string
}

const upsertChunk = `
INSERT INTO story_chunks (id, content, embedding, source, title, company_name, industry, chunk_index, content_type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    source = EXCLUDED.source,
    title = EXCLUDED.title,
    company_name = EXCLUDED.company_name,
    industry = EXCLUDED.industry,
    chunk_index = EXCLUDED.chunk_index,
    content_type = EXCLUDED.content_type`

func (q *Queries) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	_, err := q.db.Exec(ctx, upsertChunk,
		arg.ID, arg.Content, arg.Embedding, arg.Source, arg.Title,
		arg.Company, arg.Industry, arg.ChunkIndex, arg.ContentType)
	return err
}

const deleteChunksBySource = `DELETE FROM story_chunks WHERE source = $1`

func (q *Queries) DeleteChunksBySource(ctx context.Context, source string) error {
	_, err := q.db.Exec(ctx, deleteChunksBySource, source)
	return err
}

// SearchChunksRow is one vector-search hit.
type SearchChunksRow struct {
	Content     string
	Source      string
	Title       string
	Company     string
	Industry    string
	ChunkIndex  int32
	ContentType string
	Similarity  float64
}

const searchChunks = `
SELECT content, source, title, company_name, industry, chunk_index, content_type,
       1 - (embedding <=> $1) AS similarity
FROM story_chunks
ORDER BY embedding <=> $1
LIMIT $2`

func (q *Queries) SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int32) ([]SearchChunksRow, error) {
	rows, err := q.db.Query(ctx, searchChunks, embedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchChunksRow
	for rows.Next() {
		var r SearchChunksRow
		if err := rows.Scan(&r.Content, &r.Source, &r.Title, &r.Company,
			&r.Industry, &r.ChunkIndex, &r.ContentType, &r.Similarity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const countChunks = `SELECT COUNT(*) FROM story_chunks`

func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countChunks).Scan(&n)
	return n, err
}

const upsertStory = `
INSERT INTO stories (url, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (url) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

func (q *Queries) UpsertStory(ctx context.Context, url string, data []byte) error {
	_, err := q.db.Exec(ctx, upsertStory, url, data)
	return err
}

const getStory = `SELECT data FROM stories WHERE url = $1`

func (q *Queries) GetStory(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := q.db.QueryRow(ctx, getStory, url).Scan(&data)
	return data, err
}

const listStories = `SELECT data FROM stories`

func (q *Queries) ListStories(ctx context.Context) ([][]byte, error) {
	rows, err := q.db.Query(ctx, listStories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

const deleteAll = `TRUNCATE story_chunks, stories`

func (q *Queries) DeleteAll(ctx context.Context) error {
	_, err := q.db.Exec(ctx, deleteAll)
	return err
}
