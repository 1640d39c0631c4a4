package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Column is one entry of an ordered schema.
type Column[T any] struct {
	Name string
	Type T
}

// ordered is an insertion-ordered map from column name to T.
// Its JSON form is an object whose keys keep that order.
type ordered[T any] struct {
	cols  []Column[T]
	index map[string]int
}

func (o *ordered[T]) set(name string, v T) {
	if o.index == nil {
		o.index = make(map[string]int)
	}
	if i, ok := o.index[name]; ok {
		o.cols[i].Type = v
		return
	}
	o.index[name] = len(o.cols)
	o.cols = append(o.cols, Column[T]{Name: name, Type: v})
}

func (o ordered[T]) get(name string) (T, bool) {
	i, ok := o.index[name]
	if !ok {
		var zero T
		return zero, false
	}
	return o.cols[i].Type, true
}

func (o ordered[T]) names() []string {
	out := make([]string, len(o.cols))
	for i, c := range o.cols {
		out[i] = c.Name
	}
	return out
}

func (o ordered[T]) clone() ordered[T] {
	if len(o.cols) == 0 {
		return ordered[T]{}
	}
	c := ordered[T]{
		cols:  make([]Column[T], len(o.cols)),
		index: make(map[string]int, len(o.cols)),
	}
	copy(c.cols, o.cols)
	for k, v := range o.index {
		c.index[k] = v
	}
	return c
}

func (o ordered[T]) marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range o.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *ordered[T]) unmarshal(data []byte) error {
	*o = ordered[T]{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("schema: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("schema: expected column name, got %v", tok)
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("schema: column %q: %w", name, err)
		}
		o.set(name, v)
	}

	_, err = dec.Token()
	return err
}

// Raw is the backend's ordered column -> type tag mapping.
type Raw struct{ ordered[string] }

// NewRaw builds a Raw schema from columns in order.
func NewRaw(cols ...Column[string]) Raw {
	var r Raw
	for _, c := range cols {
		r.set(c.Name, c.Type)
	}
	return r
}

// Set assigns a tag to a column, appending it if new.
func (r *Raw) Set(name, tag string) { r.set(name, tag) }

// Get returns the tag of a column.
func (r Raw) Get(name string) (string, bool) { return r.get(name) }

// Names returns column names in order.
func (r Raw) Names() []string { return r.names() }

// Columns returns a copy of the columns in order.
func (r Raw) Columns() []Column[string] { return append([]Column[string](nil), r.cols...) }

// Len returns the number of columns.
func (r Raw) Len() int { return len(r.cols) }

// Clone returns an independent copy.
func (r Raw) Clone() Raw { return Raw{r.clone()} }

// Map applies MapRawType to every column.
func (r Raw) Map() Schema {
	var s Schema
	for _, c := range r.cols {
		s.set(c.Name, MapRawType(c.Type))
	}
	return s
}

func (r Raw) MarshalJSON() ([]byte, error)      { return r.marshal() }
func (r *Raw) UnmarshalJSON(data []byte) error { return r.unmarshal(data) }

// Schema is an ordered column -> display type mapping.
type Schema struct{ ordered[DisplayType] }

// NewSchema builds a Schema from columns in order.
func NewSchema(cols ...Column[DisplayType]) Schema {
	var s Schema
	for _, c := range cols {
		s.set(c.Name, c.Type)
	}
	return s
}

// Set assigns a display type to a column, appending it if new.
func (s *Schema) Set(name string, t DisplayType) { s.set(name, t) }

// Get returns the display type of a column.
func (s Schema) Get(name string) (DisplayType, bool) { return s.get(name) }

// Has reports whether the column exists.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns column names in order.
func (s Schema) Names() []string { return s.names() }

// Columns returns a copy of the columns in order.
func (s Schema) Columns() []Column[DisplayType] {
	return append([]Column[DisplayType](nil), s.cols...)
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.cols) }

// Clone returns an independent copy.
func (s Schema) Clone() Schema { return Schema{s.clone()} }

// Merge appends the columns of other that s does not have yet.
// Existing entries are never overwritten.
func (s *Schema) Merge(other Schema) {
	for _, c := range other.cols {
		if !s.Has(c.Name) {
			s.set(c.Name, c.Type)
		}
	}
}

// CoverRows appends any column present in rows but missing from s as Text.
// New columns are added in sorted order so the result is deterministic.
func (s *Schema) CoverRows(rows []Row) {
	var missing []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			if !s.Has(k) && !seen[k] {
				seen[k] = true
				missing = append(missing, k)
			}
		}
	}
	sort.Strings(missing)
	for _, k := range missing {
		s.set(k, Text)
	}
}

func (s Schema) MarshalJSON() ([]byte, error)      { return s.marshal() }
func (s *Schema) UnmarshalJSON(data []byte) error { return s.unmarshal(data) }
