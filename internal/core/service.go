package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataview/internal/logging"
	"github.com/JonMunkholm/dataview/internal/schema"
)

// Defaults for Options fields left zero.
const (
	DefaultInitialRows   = 100
	DefaultMaxPageSize   = 1000
	DefaultMaxFileSize   = 100 << 20
	DefaultUploadTimeout = 10 * time.Minute
)

// Options configures a Service.
type Options struct {
	MaxFileSize   int64         // bytes; uploads larger than this fail with ErrFileTooLarge
	InitialRows   int           // rows returned by Ingest
	MaxPageSize   int           // upper bound for Page limit
	ChunkSize     int           // rows per inference chunk
	Parallelism   int           // concurrent inference chunks, 0 for unbounded
	UploadTimeout time.Duration // wall clock limit for one Ingest
	Limiter       *UploadLimiter
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.InitialRows <= 0 {
		o.InitialRows = DefaultInitialRows
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = DefaultMaxPageSize
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = DefaultUploadTimeout
	}
	if o.Limiter == nil {
		o.Limiter = NewUploadLimiter(0, 0)
	}
	return o
}

// Service ingests files, serves pages of the current dataset and applies
// column type changes.
type Service struct {
	store    Store
	opts     Options
	inferrer Inferrer

	// writeMu serializes Save and UpdateSchema so a type change never
	// interleaves with a new upload.
	writeMu sync.Mutex
}

// NewService creates a Service over store.
func NewService(store Store, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store: store,
		opts:  opts,
		inferrer: Inferrer{
			ChunkSize:   opts.ChunkSize,
			Parallelism: opts.Parallelism,
		},
	}
}

// Limiter exposes the upload limiter for status reporting and shutdown.
func (s *Service) Limiter() *UploadLimiter { return s.opts.Limiter }

// Ingest parses an uploaded file, infers column types, stores the typed
// rows as the current dataset and returns its first rows.
func (s *Service) Ingest(ctx context.Context, name string, r io.Reader) (PageResult, error) {
	if r == nil {
		return PageResult{}, ErrNoFile
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()

	if err := s.opts.Limiter.Acquire(ctx); err != nil {
		return PageResult{}, err
	}
	defer s.opts.Limiter.Release()

	start := time.Now()
	logger := logging.WithFields(ctx, "file", name, "client_ip", ClientIPFromContext(ctx))

	table, err := ReadTable(name, r, s.opts.MaxFileSize)
	if err != nil {
		return PageResult{}, fmt.Errorf("read %s: %w", name, err)
	}

	raw, err := s.inferrer.Infer(ctx, table.Header, table.Records)
	if err != nil {
		return PageResult{}, fmt.Errorf("infer types: %w", err)
	}

	rows, coerced := typedRows(table, raw)
	if coerced > 0 {
		logger.Warn("values did not fit the inferred type and were dropped", "cells", coerced)
	}

	ds := Dataset{
		ID:        uuid.NewString(),
		Name:      name,
		Schema:    raw,
		Rows:      rows,
		CreatedAt: time.Now().UTC(),
	}

	s.writeMu.Lock()
	err = s.store.Save(ctx, ds)
	s.writeMu.Unlock()
	if err != nil {
		return PageResult{}, fmt.Errorf("save dataset: %w", err)
	}

	logger.Info("dataset ingested",
		"dataset_id", ds.ID,
		"rows", len(rows),
		"columns", raw.Len(),
		"duration", time.Since(start),
	)

	first := rows[:min(len(rows), s.opts.InitialRows)]
	return PageResult{
		DatasetID:  ds.ID,
		Schema:     raw,
		Rows:       first,
		TotalCount: len(rows),
		NextSkip:   nextSkip(0, len(first), len(rows)),
	}, nil
}

// typedRows converts every cell with its column's tag. Cells that do not
// parse (a minority after the chunk vote) become null; the count of such
// cells is returned.
func typedRows(t Table, raw schema.Raw) ([]schema.Row, int) {
	tags := make([]string, len(t.Header))
	for i, name := range t.Header {
		tags[i], _ = raw.Get(name)
	}

	coerced := 0
	rows := make([]schema.Row, len(t.Records))
	for i, rec := range t.Records {
		row := make(schema.Row, len(t.Header))
		for c, name := range t.Header {
			v, err := ConvertCell(tags[c], rec[c])
			if err != nil {
				coerced++
			}
			row[name] = v
		}
		rows[i] = row
	}
	return rows, coerced
}

// Page returns up to limit rows of the current dataset starting at skip.
// Negative skip is treated as 0; limit is clamped to [1, MaxPageSize].
func (s *Service) Page(ctx context.Context, skip, limit int) (PageResult, error) {
	skip = max(skip, 0)
	if limit <= 0 {
		limit = s.opts.InitialRows
	}
	limit = min(limit, s.opts.MaxPageSize)

	info, err := s.store.Current(ctx)
	if err != nil {
		return PageResult{}, err
	}

	rows := []schema.Row{}
	if skip < info.RowCount {
		rows, err = s.store.Rows(ctx, info.ID, skip, limit)
		if err != nil {
			return PageResult{}, fmt.Errorf("load rows: %w", err)
		}
	}

	return PageResult{
		DatasetID:  info.ID,
		Schema:     info.Schema,
		Rows:       rows,
		TotalCount: info.RowCount,
		NextSkip:   nextSkip(skip, len(rows), info.RowCount),
	}, nil
}

// UpdateColumnTypes converts the named columns of the current dataset to
// new display types and stores the result. Every column is checked before
// anything is written: one failing value rejects the whole request.
func (s *Service) UpdateColumnTypes(ctx context.Context, types map[string]schema.DisplayType) (schema.Raw, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	info, err := s.store.Current(ctx)
	if err != nil {
		return schema.Raw{}, err
	}
	for col, t := range types {
		if _, ok := info.Schema.Get(col); !ok {
			return schema.Raw{}, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		if !t.Valid() {
			return schema.Raw{}, fmt.Errorf("%w: %d", schema.ErrUnknownDisplayType, int(t))
		}
	}
	if len(types) == 0 {
		return info.Schema, nil
	}

	rows, err := s.store.AllRows(ctx, info.ID)
	if err != nil {
		return schema.Raw{}, fmt.Errorf("load rows: %w", err)
	}

	// Apply in schema order so the first reported failure is stable.
	raw := info.Schema.Clone()
	for _, col := range info.Schema.Names() {
		t, ok := types[col]
		if !ok {
			continue
		}
		for i, row := range rows {
			v, err := ConvertValue(row[col], t)
			if err != nil {
				text, _ := valueText(row[col])
				return schema.Raw{}, &ConversionError{Column: col, Type: t, Row: i, Value: text, Err: err}
			}
			row[col] = v
		}
		raw.Set(col, schema.RawTag(t))
	}

	if err := s.store.UpdateSchema(ctx, info.ID, raw, rows); err != nil {
		return schema.Raw{}, fmt.Errorf("store column types: %w", err)
	}

	logging.WithFields(ctx, "dataset_id", info.ID).Info("column types updated", "columns", len(types))
	return raw, nil
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}
