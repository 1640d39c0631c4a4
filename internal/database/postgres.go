package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/dataview/internal/core"
	"github.com/JonMunkholm/dataview/internal/schema"
)

// The schema column is JSON rather than JSONB: JSONB does not keep key order.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	schema     JSON NOT NULL,
	row_count  INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	data       JSONB NOT NULL,
	PRIMARY KEY (dataset_id, idx)
);
`

// PoolOptions configures the connection pool.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PostgresStore implements core.Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to url, verifies the connection and applies the
// schema.
func NewPostgresStore(ctx context.Context, url string, opts PoolOptions) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Save replaces the current dataset with ds.
func (s *PostgresStore) Save(ctx context.Context, ds core.Dataset) error {
	rawJSON, err := encodeSchema(ds.Schema)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Rows go with their dataset through ON DELETE CASCADE.
	if _, err := tx.Exec(ctx, `DELETE FROM datasets`); err != nil {
		return fmt.Errorf("clear datasets: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO datasets (id, name, schema, row_count, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)`,
		ds.ID, ds.Name, json.RawMessage(rawJSON), len(ds.Rows), ds.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	if err := copyRows(ctx, tx, ds.ID, ds.Rows); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func copyRows(ctx context.Context, tx pgx.Tx, id string, rows []schema.Row) error {
	encoded := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		b, err := encodeRow(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		encoded[i] = b
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"dataset_rows"},
		[]string{"dataset_id", "idx", "data"},
		pgx.CopyFromSlice(len(encoded), func(i int) ([]any, error) {
			return []any{id, int32(i), encoded[i]}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	return nil
}

// Current returns the current dataset, or core.ErrNoData.
func (s *PostgresStore) Current(ctx context.Context) (core.DatasetInfo, error) {
	var (
		info    core.DatasetInfo
		rawJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, schema::text, row_count, created_at, updated_at FROM datasets ORDER BY created_at DESC LIMIT 1`,
	).Scan(&info.ID, &info.Name, &rawJSON, &info.RowCount, &info.CreatedAt, &info.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.DatasetInfo{}, core.ErrNoData
	}
	if err != nil {
		return core.DatasetInfo{}, fmt.Errorf("query dataset: %w", err)
	}

	if info.Schema, err = decodeSchema(rawJSON); err != nil {
		return core.DatasetInfo{}, err
	}
	return info, nil
}

// Rows returns up to limit rows of dataset id starting at offset.
func (s *PostgresStore) Rows(ctx context.Context, id string, offset, limit int) ([]schema.Row, error) {
	return s.queryRows(ctx,
		`SELECT data::text FROM dataset_rows WHERE dataset_id = $1 ORDER BY idx OFFSET $2 LIMIT $3`,
		id, offset, limit,
	)
}

// AllRows returns every row of dataset id.
func (s *PostgresStore) AllRows(ctx context.Context, id string) ([]schema.Row, error) {
	return s.queryRows(ctx, `SELECT data::text FROM dataset_rows WHERE dataset_id = $1 ORDER BY idx`, id)
}

func (s *PostgresStore) queryRows(ctx context.Context, query string, args ...any) ([]schema.Row, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (schema.Row, error) {
		var data []byte
		if err := r.Scan(&data); err != nil {
			return nil, err
		}
		return decodeRow(data)
	})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if out == nil {
		out = []schema.Row{}
	}
	return out, nil
}

// UpdateSchema replaces the schema and rows of dataset id.
func (s *PostgresStore) UpdateSchema(ctx context.Context, id string, raw schema.Raw, rows []schema.Row) error {
	rawJSON, err := encodeSchema(raw)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE datasets SET schema = $1, row_count = $2, updated_at = now() WHERE id = $3`,
		json.RawMessage(rawJSON), len(rows), id,
	)
	if err != nil {
		return fmt.Errorf("update dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNoData
	}

	if _, err := tx.Exec(ctx, `DELETE FROM dataset_rows WHERE dataset_id = $1`, id); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	if err := copyRows(ctx, tx, id, rows); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
