package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/dataview/internal/schema"
)

// Sentinel errors. Their text is matched by MapError, keep them stable.
var (
	ErrNoData            = errors.New("no data available")
	ErrUnknownColumn     = errors.New("column not found")
	ErrEmptyFile         = errors.New("empty file")
	ErrNoFile            = errors.New("no file provided")
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrBadRequest        = errors.New("invalid request body")
)

// ConversionError reports a value that cannot be converted to the type a
// user asked for.
type ConversionError struct {
	Column string
	Type   schema.DisplayType
	Row    int
	Value  string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert %s to %s: row %d value %q: %v", e.Column, e.Type, e.Row+1, e.Value, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Dataset is an uploaded table with its typed rows.
type Dataset struct {
	ID        string
	Name      string
	Schema    schema.Raw
	Rows      []schema.Row
	CreatedAt time.Time
}

// DatasetInfo describes the stored dataset without its rows.
type DatasetInfo struct {
	ID        string
	Name      string
	Schema    schema.Raw
	RowCount  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists the current dataset. There is at most one current dataset;
// Save replaces it.
type Store interface {
	Save(ctx context.Context, ds Dataset) error
	// Current returns ErrNoData when nothing has been saved.
	Current(ctx context.Context) (DatasetInfo, error)
	Rows(ctx context.Context, id string, offset, limit int) ([]schema.Row, error)
	AllRows(ctx context.Context, id string) ([]schema.Row, error)
	// UpdateSchema replaces the schema and every row of dataset id.
	UpdateSchema(ctx context.Context, id string, raw schema.Raw, rows []schema.Row) error
	Close() error
}

// PageResult is a window of the current dataset as served by the API.
type PageResult struct {
	DatasetID  string       `json:"dataset_id,omitempty"`
	Schema     schema.Raw   `json:"inferred_types"`
	Rows       []schema.Row `json:"data"`
	TotalCount int          `json:"total_count"`
	NextSkip   *int         `json:"next_skip"`
}

// nextSkip returns the offset following a window, or nil at the end.
func nextSkip(skip, returned, total int) *int {
	next := skip + returned
	if returned == 0 || next >= total {
		return nil
	}
	return &next
}
