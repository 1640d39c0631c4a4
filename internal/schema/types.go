// Package schema defines the column type vocabulary shared by the backend and
// the viewer: the closed set of display types, the mapping from backend
// type tags, and insertion-ordered column schemas.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DisplayType is the user-facing type of a column.
// The set is closed; Text is the zero value.
type DisplayType int

const (
	Text DisplayType = iota
	Float
	Integer
	Date
	TimeDelta
	Boolean
	Category
	Complex

	numDisplayTypes
)

// ErrUnknownDisplayType is returned when a label does not name a display type.
var ErrUnknownDisplayType = errors.New("unknown display type")

var displayLabels = [numDisplayTypes]string{
	Text:      "Text",
	Float:     "Float",
	Integer:   "Integer",
	Date:      "Date",
	TimeDelta: "TimeDelta",
	Boolean:   "Boolean",
	Category:  "Category",
	Complex:   "Complex",
}

// rawTags is the inverse of MapRawType, used when an override is applied
// to stored data.
var rawTags = [numDisplayTypes]string{
	Text:      "object",
	Float:     "float64",
	Integer:   "int64",
	Date:      "datetime64[ns]",
	TimeDelta: "timedelta64[ns]",
	Boolean:   "bool",
	Category:  "category",
	Complex:   "complex128",
}

// AllDisplayTypes returns every display type in menu order.
func AllDisplayTypes() []DisplayType {
	out := make([]DisplayType, 0, numDisplayTypes)
	for t := Text; t < numDisplayTypes; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is one of the eight display types.
func (t DisplayType) Valid() bool {
	return t >= Text && t < numDisplayTypes
}

// String returns the display label.
func (t DisplayType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("DisplayType(%d)", int(t))
	}
	return displayLabels[t]
}

// Next returns the following display type, wrapping after Complex.
func (t DisplayType) Next() DisplayType {
	if !t.Valid() {
		return Text
	}
	return (t + 1) % numDisplayTypes
}

// ParseDisplayType parses a display label. Matching is case-insensitive and
// ignores spaces, so "Time Delta" parses as TimeDelta.
func ParseDisplayType(label string) (DisplayType, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(label), " ", ""))
	for t := Text; t < numDisplayTypes; t++ {
		if strings.ToLower(displayLabels[t]) == key {
			return t, nil
		}
	}
	return Text, fmt.Errorf("%w: %q", ErrUnknownDisplayType, label)
}

// MarshalJSON encodes the type as its label.
func (t DisplayType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDisplayType, int(t))
	}
	return json.Marshal(displayLabels[t])
}

// UnmarshalJSON decodes a label.
func (t *DisplayType) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseDisplayType(label)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MapRawType maps a backend type tag to its display type.
// Unrecognized tags, including the empty string, map to Text.
func MapRawType(tag string) DisplayType {
	switch tag {
	case "object":
		return Text
	case "float32", "float64":
		return Float
	case "int8", "int16", "int32", "int64":
		return Integer
	case "datetime64[ns]":
		return Date
	case "timedelta[ns]", "timedelta64[ns]":
		return TimeDelta
	case "bool":
		return Boolean
	case "category":
		return Category
	case "complex128":
		return Complex
	default:
		return Text
	}
}

// RawTag returns the canonical backend tag for a display type.
func RawTag(t DisplayType) string {
	if !t.Valid() {
		return rawTags[Text]
	}
	return rawTags[t]
}

// Row is one data record keyed by column name. Values are scalars:
// string, json.Number, float64, int64, bool or nil.
type Row map[string]any
