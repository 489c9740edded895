package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/kamillle/rag-sample/internal/models"
	"github.com/kamillle/rag-sample/pkg/index"
)

type PostgresConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PostgresStore persists an index as rows of a pgvector table plus one
// metadata row in <table>_meta. Save replaces both inside one transaction, so
// readers see either the old or the new index.
type PostgresStore struct {
	config    PostgresConfig
	pool      *pgxpool.Pool
	table     string
	metaTable string
}

var _ index.Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	if config.TableName == "" {
		config.TableName = "qa_nodes"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // Default for nomic-embed-text
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{
		config: config,
		pool:   pool,
		table:     pgx.Identifier{config.TableName}.Sanitize(),
		metaTable: pgx.Identifier{config.TableName + "_meta"}.Sanitize(),
	}

	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY,
			index_id TEXT NOT NULL,
			model TEXT NOT NULL,
			node_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			source TEXT NOT NULL,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.table, s.config.VectorDim)

	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createMeta := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			index_id TEXT NOT NULL,
			model TEXT NOT NULL,
			node_count INTEGER NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.metaTable)

	if _, err := s.pool.Exec(ctx, createMeta); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	return nil
}

func (s *PostgresStore) Save(ctx context.Context, idx *index.Index) error {
	if idx.Len() > 0 && idx.Dimension() != s.config.VectorDim {
		return fmt.Errorf("index dimension %d does not match table dimension %d", idx.Dimension(), s.config.VectorDim)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("failed to clear previous index: %w", err)
	}

	upsertMeta := fmt.Sprintf(`
		INSERT INTO %s (singleton, index_id, model, node_count, saved_at)
		VALUES (TRUE, $1, $2, $3, now())
		ON CONFLICT (singleton) DO UPDATE
		SET index_id = EXCLUDED.index_id, model = EXCLUDED.model,
			node_count = EXCLUDED.node_count, saved_at = EXCLUDED.saved_at`,
		s.metaTable)
	if _, err := tx.Exec(ctx, upsertMeta, idx.ID(), idx.Model(), idx.Len()); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (seq, index_id, model, node_id, document_id, source, position, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.table)

	for i, e := range idx.Entries() {
		_, err := tx.Exec(ctx, stmt,
			i,
			idx.ID(),
			idx.Model(),
			e.Node.ID,
			e.Node.DocumentID,
			e.Node.Source,
			e.Node.Position,
			e.Node.Text,
			pgvector.NewVector(e.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", e.Node.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*index.Index, error) {
	var (
		indexID, model string
		nodeCount      int
	)
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT index_id, model, node_count FROM %s", s.metaTable)).
		Scan(&indexID, &model, &nodeCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w in table %s", index.ErrNotFound, s.config.TableName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT index_id, model, node_id, document_id, source, position, content, embedding::text
		FROM %s
		ORDER BY seq`,
		s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query index rows: %w", err)
	}
	defer rows.Close()

	var entries []index.Entry
	for rows.Next() {
		var (
			rowID, rowModel string
			node            models.Node
			vec             pgvector.Vector
		)
		if err := rows.Scan(&rowID, &rowModel, &node.ID, &node.DocumentID, &node.Source, &node.Position, &node.Text, &vec); err != nil {
			return nil, s.corrupt("failed to scan row", err)
		}

		if rowID != indexID || rowModel != model {
			return nil, s.corrupt(fmt.Sprintf("row %d belongs to index %s, expected %s", len(entries), rowID, indexID), nil)
		}

		entries = append(entries, index.Entry{Node: node, Embedding: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index rows: %w", err)
	}

	if len(entries) != nodeCount {
		return nil, s.corrupt(fmt.Sprintf("metadata records %d nodes but table has %d", nodeCount, len(entries)), nil)
	}

	idx, err := index.Restore(indexID, model, s.config.VectorDim, entries)
	if err != nil {
		return nil, s.corrupt(err.Error(), nil)
	}
	return idx, nil
}

func (s *PostgresStore) corrupt(reason string, err error) error {
	return &index.CorruptIndexError{Path: "postgres:" + s.config.TableName, Reason: reason, Err: err}
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
