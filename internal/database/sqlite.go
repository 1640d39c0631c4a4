package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/JonMunkholm/dataview/internal/core"
	"github.com/JonMunkholm/dataview/internal/schema"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	schema     TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id TEXT NOT NULL,
	idx        INTEGER NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (dataset_id, idx)
);
`

// SQLiteStore implements core.Store on a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway store.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite allows a single writer, and every
	// connection to ":memory:" would otherwise see its own database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save replaces the current dataset with ds.
func (s *SQLiteStore) Save(ctx context.Context, ds core.Dataset) error {
	rawJSON, err := encodeSchema(ds.Schema)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows`); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets`); err != nil {
		return fmt.Errorf("clear datasets: %w", err)
	}

	created := ds.CreatedAt.UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, schema, row_count, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, string(rawJSON), len(ds.Rows), created, created,
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	if err := insertSQLiteRows(ctx, tx, ds.ID, ds.Rows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertSQLiteRows(ctx context.Context, tx *sql.Tx, id string, rows []schema.Row) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dataset_rows (dataset_id, idx, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		b, err := encodeRow(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, id, i, string(b)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

// Current returns the current dataset, or core.ErrNoData.
func (s *SQLiteStore) Current(ctx context.Context) (core.DatasetInfo, error) {
	var (
		info             core.DatasetInfo
		rawJSON          string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, schema, row_count, created_at, updated_at FROM datasets ORDER BY created_at DESC LIMIT 1`,
	).Scan(&info.ID, &info.Name, &rawJSON, &info.RowCount, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DatasetInfo{}, core.ErrNoData
	}
	if err != nil {
		return core.DatasetInfo{}, fmt.Errorf("query dataset: %w", err)
	}

	if info.Schema, err = decodeSchema([]byte(rawJSON)); err != nil {
		return core.DatasetInfo{}, err
	}
	info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	info.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return info, nil
}

// Rows returns up to limit rows of dataset id starting at offset.
func (s *SQLiteStore) Rows(ctx context.Context, id string, offset, limit int) ([]schema.Row, error) {
	return s.queryRows(ctx,
		`SELECT data FROM dataset_rows WHERE dataset_id = ? ORDER BY idx LIMIT ? OFFSET ?`,
		id, limit, offset,
	)
}

// AllRows returns every row of dataset id.
func (s *SQLiteStore) AllRows(ctx context.Context, id string) ([]schema.Row, error) {
	return s.queryRows(ctx, `SELECT data FROM dataset_rows WHERE dataset_id = ? ORDER BY idx`, id)
}

func (s *SQLiteStore) queryRows(ctx context.Context, query string, args ...any) ([]schema.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := []schema.Row{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row, err := decodeRow([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpdateSchema replaces the schema and rows of dataset id.
func (s *SQLiteStore) UpdateSchema(ctx context.Context, id string, raw schema.Raw, rows []schema.Row) error {
	rawJSON, err := encodeSchema(raw)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE datasets SET schema = ?, row_count = ?, updated_at = ? WHERE id = ?`,
		string(rawJSON), len(rows), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update dataset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNoData
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows WHERE dataset_id = ?`, id); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	if err := insertSQLiteRows(ctx, tx, id, rows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
