// Package postgres stores checkpoints in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	"github.com/flowgraph/ragagent/pkg/serialization"
)

// CheckpointSaver implements checkpoint.Saver interface for PostgreSQL
type CheckpointSaver struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewCheckpointSaver creates a new PostgreSQL checkpoint saver
func NewCheckpointSaver(pool *pgxpool.Pool, serializer *serialization.Serializer) *CheckpointSaver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &CheckpointSaver{
		pool:       pool,
		serializer: serializer,
		tableName:  "checkpoints",
	}
}

// PoolConfig sizes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// Connect opens a pool for url and ensures the checkpoint table exists.
func Connect(ctx context.Context, url string, pc PoolConfig, serializer *serialization.Serializer) (*CheckpointSaver, error) {
	pool, err := NewPool(ctx, url, pc)
	if err != nil {
		return nil, err
	}
	s := NewCheckpointSaver(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPool parses url, applies pc and pings the database.
func NewPool(ctx context.Context, url string, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Save stores a checkpoint, replacing any row with the same ID.
func (s *CheckpointSaver) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidCheckpointID
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}

	data, err := s.serializer.Serialize(cp.State)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint state: %w", err)
	}
	metadataJSON, err := json.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}
	tags := cp.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	next := cp.Next
	if next == nil {
		next = []string{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, graph_id, thread_id, parent_id, state, next, metadata, tags, step, timestamp, version, encoding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			state = EXCLUDED.state,
			next = EXCLUDED.next,
			metadata = EXCLUDED.metadata,
			tags = EXCLUDED.tags,
			step = EXCLUDED.step,
			timestamp = EXCLUDED.timestamp,
			encoding = EXCLUDED.encoding
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		cp.ID, cp.GraphID, cp.ThreadID, cp.ParentID, data, next, metadataJSON, tags,
		cp.Metadata.Step, cp.Timestamp, cp.Version, s.serializer.Name())
	if err != nil {
		return fmt.Errorf("%w: %w", checkpoint.ErrSaveFailed, err)
	}
	return nil
}

// Load retrieves a checkpoint by ID
func (s *CheckpointSaver) Load(ctx context.Context, id string) (*checkpoint.Checkpoint, error) {
	if id == "" {
		return nil, checkpoint.ErrInvalidCheckpointID
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", columns, s.tableName)
	cp, err := s.scan(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, checkpoint.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", checkpoint.ErrLoadFailed, err)
	}
	return cp, nil
}

// List retrieves checkpoints matching the filter, newest first
func (s *CheckpointSaver) List(ctx context.Context, filter checkpoint.Filter) ([]*checkpoint.Checkpoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return checkpoints, nil
}

// Delete removes a checkpoint by ID
func (s *CheckpointSaver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return checkpoint.ErrInvalidCheckpointID
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: %w", checkpoint.ErrDeleteFailed, err)
	}
	if result.RowsAffected() == 0 {
		return checkpoint.ErrCheckpointNotFound
	}
	return nil
}

// CreateTables creates the necessary database tables
func (s *CheckpointSaver) CreateTables(ctx context.Context) error {
	t := s.tableName
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			graph_id VARCHAR(255) NOT NULL,
			thread_id VARCHAR(255) NOT NULL,
			parent_id VARCHAR(255) NOT NULL DEFAULT '',
			state BYTEA NOT NULL,
			next TEXT[] NOT NULL DEFAULT '{}',
			metadata JSONB,
			tags TEXT[] NOT NULL DEFAULT '{}',
			step INTEGER NOT NULL DEFAULT 0,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version VARCHAR(50) NOT NULL DEFAULT '2',
			encoding VARCHAR(64) NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_%s_thread ON %s (graph_id, thread_id, timestamp DESC, step DESC);
		CREATE INDEX IF NOT EXISTS idx_%s_tags ON %s USING GIN (tags);
	`, t, t, t, t, t)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

const columns = "id, graph_id, thread_id, parent_id, state, next, metadata, timestamp, version"

func (s *CheckpointSaver) scan(row pgx.Row) (*checkpoint.Checkpoint, error) {
	var (
		cp           checkpoint.Checkpoint
		data         []byte
		metadataJSON []byte
	)
	if err := row.Scan(&cp.ID, &cp.GraphID, &cp.ThreadID, &cp.ParentID, &data, &cp.Next, &metadataJSON, &cp.Timestamp, &cp.Version); err != nil {
		return nil, err
	}
	if len(cp.Next) == 0 {
		cp.Next = nil
	}

	cp.State = make(map[string]interface{})
	if err := s.serializer.Deserialize(data, &cp.State); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint state: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &cp.Metadata); err != nil {
			return nil, fmt.Errorf("failed to deserialize metadata: %w", err)
		}
	}
	return &cp, nil
}

// buildListQuery constructs the SQL query for listing checkpoints
func (s *CheckpointSaver) buildListQuery(filter checkpoint.Filter) (string, []interface{}) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1", columns, s.tableName)
	args := make([]interface{}, 0)
	argCount := 0

	add := func(clause string, v interface{}) {
		argCount++
		query += fmt.Sprintf(clause, argCount)
		args = append(args, v)
	}

	if filter.GraphID != "" {
		add(" AND graph_id = $%d", filter.GraphID)
	}
	if filter.ThreadID != "" {
		add(" AND thread_id = $%d", filter.ThreadID)
	}
	if filter.Since != nil {
		add(" AND timestamp > $%d", *filter.Since)
	}
	if filter.Before != nil {
		add(" AND timestamp < $%d", *filter.Before)
	}
	if len(filter.Tags) > 0 {
		add(" AND tags @> $%d", filter.Tags)
	}

	query += " ORDER BY timestamp DESC, step DESC"

	if filter.Limit > 0 {
		add(" LIMIT $%d", filter.Limit)
	}
	if filter.Offset > 0 {
		add(" OFFSET $%d", filter.Offset)
	}
	return query, args
}

// Close closes the database connection pool
func (s *CheckpointSaver) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
