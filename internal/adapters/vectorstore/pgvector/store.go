// Package pgvector stores documents and their embeddings in PostgreSQL with
// the pgvector extension and ranks them by cosine distance.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/flowgraph/ragagent/internal/infrastructure/metrics"
	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
)

const DefaultTable = "documents"

var (
	ErrNilEmbedder     = errors.New("embedder is required")
	ErrInvalidIdent    = errors.New("invalid SQL identifier")
	ErrInvalidDims     = errors.New("dimensions must be positive")
	ErrEmptyDocumentID = errors.New("document ID is required")
	ErrDimension       = errors.New("embedding dimension mismatch")
)

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Options configures a Store.
type Options struct {
	Table      string  // default "documents"
	Dimensions int     // vector column size
	Threshold  float64 // minimum cosine similarity
	Lists      int     // ivfflat lists, default 100
}

// Store implements rag.Retriever and rag.Indexer on a pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	embedder rag.Embedder
	opts     Options
}

var (
	_ rag.Retriever = (*Store)(nil)
	_ rag.Indexer   = (*Store)(nil)
)

// New creates a store. It does not touch the database; call
// InitializeSchema once before use.
func New(pool *pgxpool.Pool, embedder rag.Embedder, opts Options) (*Store, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if !identRe.MatchString(opts.Table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdent, opts.Table)
	}
	if opts.Dimensions <= 0 {
		return nil, ErrInvalidDims
	}
	if opts.Lists <= 0 {
		opts.Lists = 100
	}
	return &Store{pool: pool, embedder: embedder, opts: opts}, nil
}

func (s *Store) schemaQueries() []string {
	t := s.opts.Table
	return []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	embedding vector(%d),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, t, s.opts.Dimensions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)", t, t, s.opts.Lists),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_metadata_idx ON %s USING GIN (metadata)", t, t),
	}
}

func (s *Store) upsertQuery() string {
	return fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	content = EXCLUDED.content,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding,
	updated_at = NOW()`, s.opts.Table)
}

func (s *Store) searchQuery() string {
	return fmt.Sprintf(`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM %s
WHERE 1 - (embedding <=> $1) > $2
ORDER BY embedding <=> $1
LIMIT $3`, s.opts.Table)
}

// InitializeSchema enables the extension and creates the table and indexes.
func (s *Store) InitializeSchema(ctx context.Context) error {
	for _, q := range s.schemaQueries() {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// Index embeds docs and upserts them in one batch.
func (s *Store) Index(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document %d: %w", i, ErrEmptyDocumentID)
		}
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("%w: got %d embeddings for %d documents", ErrDimension, len(vectors), len(docs))
	}

	batch := &pgx.Batch{}
	q := s.upsertQuery()
	for i, d := range docs {
		if len(vectors[i]) != s.opts.Dimensions {
			return fmt.Errorf("%w: document %s has %d, column has %d", ErrDimension, d.ID, len(vectors[i]), s.opts.Dimensions)
		}
		meta := d.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		batch.Queue(q, d.ID, d.Content, meta, pgvector.NewVector(vectors[i]))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	metrics.AddDocumentsIndexed(len(docs))
	return nil
}

// Retrieve returns up to topK documents above the similarity threshold.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]rag.Document, error) {
	if topK <= 0 {
		return nil, nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d query embeddings", ErrDimension, len(vectors))
	}

	rows, err := s.pool.Query(ctx, s.searchQuery(), pgvector.NewVector(vectors[0]), s.opts.Threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []rag.Document
	for rows.Next() {
		var d rag.Document
		if err := rows.Scan(&d.ID, &d.Content, &d.Metadata, &d.Score); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.opts.Table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Delete removes a document. Missing IDs are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.opts.Table), id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// EnsureDatabase connects to the server at adminDSN and creates dbname if it
// does not exist. It reports whether the database was created.
func EnsureDatabase(ctx context.Context, adminDSN, dbname string) (bool, error) {
	if !identRe.MatchString(dbname) {
		return false, fmt.Errorf("%w: %q", ErrInvalidIdent, dbname)
	}
	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return false, fmt.Errorf("open admin connection: %w", err)
	}
	defer db.Close()

	var exists bool
	err = db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_catalog.pg_database WHERE datname = $1)", dbname).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check database: %w", err)
	}
	if exists {
		return false, nil
	}
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbname)); err != nil {
		return false, fmt.Errorf("create database: %w", err)
	}
	return true, nil
}
