// Package database holds the core.Store implementations: SQLite for a
// single-process deployment and PostgreSQL for a shared one.
//
// Both keep one current dataset. The schema is stored as ordered JSON text so
// column order survives a round trip; each row is a JSON object keyed by
// column name. Numbers come back as json.Number.
package database

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/dataview/internal/schema"
)

func encodeSchema(raw schema.Raw) ([]byte, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return b, nil
}

func decodeSchema(b []byte) (schema.Raw, error) {
	var raw schema.Raw
	if err := json.Unmarshal(b, &raw); err != nil {
		return schema.Raw{}, fmt.Errorf("decode schema: %w", err)
	}
	return raw, nil
}

func encodeRow(row schema.Row) ([]byte, error) {
	if row == nil {
		row = schema.Row{}
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return b, nil
}

func decodeRow(b []byte) (schema.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	row := schema.Row{}
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}
