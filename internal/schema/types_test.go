package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestMapRawType(t *testing.T) {
	tests := []struct {
		tag  string
		want DisplayType
	}{
		{"object", Text},
		{"float32", Float},
		{"float64", Float},
		{"int8", Integer},
		{"int16", Integer},
		{"int32", Integer},
		{"int64", Integer},
		{"datetime64[ns]", Date},
		{"timedelta[ns]", TimeDelta},
		{"timedelta64[ns]", TimeDelta},
		{"bool", Boolean},
		{"category", Category},
		{"complex128", Complex},

		// Unknown input is policy-mapped, not an error
		{"", Text},
		{"Int64", Text},
		{"uint8", Text},
		{"datetime64[ns, UTC]", Text},
		{"\x00garbled", Text},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			if got := MapRawType(tt.tag); got != tt.want {
				t.Errorf("MapRawType(%q) = %v, want %v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestRawTag_RoundTrip(t *testing.T) {
	for _, dt := range AllDisplayTypes() {
		if got := MapRawType(RawTag(dt)); got != dt {
			t.Errorf("MapRawType(RawTag(%v)) = %v", dt, got)
		}
	}
}

func TestAllDisplayTypes(t *testing.T) {
	got := AllDisplayTypes()
	want := []string{"Text", "Float", "Integer", "Date", "TimeDelta", "Boolean", "Category", "Complex"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, dt := range got {
		if dt.String() != want[i] {
			t.Errorf("AllDisplayTypes()[%d] = %q, want %q", i, dt, want[i])
		}
	}
}

func TestParseDisplayType(t *testing.T) {
	tests := []struct {
		input   string
		want    DisplayType
		wantErr bool
	}{
		{"Text", Text, false},
		{"float", Float, false},
		{"INTEGER", Integer, false},
		{"Time Delta", TimeDelta, false},
		{" Boolean ", Boolean, false},
		{"Complex", Complex, false},
		{"int64", Text, true},
		{"", Text, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDisplayType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDisplayType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownDisplayType) {
				t.Errorf("error should wrap ErrUnknownDisplayType: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDisplayType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDisplayType_Next(t *testing.T) {
	if got := Text.Next(); got != Float {
		t.Errorf("Text.Next() = %v, want Float", got)
	}
	if got := Complex.Next(); got != Text {
		t.Errorf("Complex.Next() = %v, want Text", got)
	}
	if got := DisplayType(42).Next(); got != Text {
		t.Errorf("invalid.Next() = %v, want Text", got)
	}
}

func TestDisplayType_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]DisplayType{"age": Float})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `{"age":"Float"}` {
		t.Errorf("Marshal = %s", data)
	}

	if _, err := json.Marshal(DisplayType(99)); err == nil {
		t.Error("Marshal of invalid display type should fail")
	}

	var dt DisplayType
	if err := json.Unmarshal([]byte(`"Integer"`), &dt); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if dt != Integer {
		t.Errorf("Unmarshal = %v, want Integer", dt)
	}
	if err := json.Unmarshal([]byte(`"int64"`), &dt); err == nil {
		t.Error("Unmarshal of raw tag should fail")
	}
}

func TestRaw_PreservesWireOrder(t *testing.T) {
	input := `{"zeta":"int64","alpha":"object","mid":"float64"}`

	var raw Raw
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	names := strings.Join(raw.Names(), ",")
	if names != "zeta,alpha,mid" {
		t.Errorf("Names() = %s, want zeta,alpha,mid", names)
	}

	out, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(out) != input {
		t.Errorf("Marshal = %s, want %s", out, input)
	}
}

func TestRaw_UnmarshalRejectsNonObject(t *testing.T) {
	var raw Raw
	if err := json.Unmarshal([]byte(`["a"]`), &raw); err == nil {
		t.Error("expected error for array input")
	}
	if err := json.Unmarshal([]byte(`null`), &raw); err != nil {
		t.Errorf("null should decode to empty schema: %v", err)
	}
	if raw.Len() != 0 {
		t.Errorf("Len() = %d, want 0", raw.Len())
	}
}

func TestRaw_Map(t *testing.T) {
	raw := NewRaw(
		Column[string]{Name: "age", Type: "int64"},
		Column[string]{Name: "name", Type: "object"},
		Column[string]{Name: "odd", Type: "mystery"},
	)

	s := raw.Map()
	want := []struct {
		name string
		typ  DisplayType
	}{
		{"age", Integer},
		{"name", Text},
		{"odd", Text},
	}
	if s.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", s.Len(), len(want))
	}
	for i, c := range s.Columns() {
		if c.Name != want[i].name || c.Type != want[i].typ {
			t.Errorf("column %d = %s:%v, want %s:%v", i, c.Name, c.Type, want[i].name, want[i].typ)
		}
	}
}

func TestSchema_SetOverridesInPlace(t *testing.T) {
	s := NewSchema(
		Column[DisplayType]{Name: "a", Type: Integer},
		Column[DisplayType]{Name: "b", Type: Text},
	)
	s.Set("a", Float)
	s.Set("c", Date)

	if got := strings.Join(s.Names(), ","); got != "a,b,c" {
		t.Errorf("Names() = %s, want a,b,c", got)
	}
	if got, _ := s.Get("a"); got != Float {
		t.Errorf("Get(a) = %v, want Float", got)
	}
}

func TestSchema_CloneIsIndependent(t *testing.T) {
	orig := NewSchema(Column[DisplayType]{Name: "a", Type: Integer})
	c := orig.Clone()
	c.Set("a", Boolean)
	c.Set("b", Text)

	if got, _ := orig.Get("a"); got != Integer {
		t.Errorf("original modified: Get(a) = %v", got)
	}
	if orig.Has("b") {
		t.Error("original gained column b")
	}
}

func TestSchema_MergeKeepsExisting(t *testing.T) {
	s := NewSchema(Column[DisplayType]{Name: "age", Type: Float})
	s.Merge(NewSchema(
		Column[DisplayType]{Name: "age", Type: Integer},
		Column[DisplayType]{Name: "city", Type: Category},
	))

	if got, _ := s.Get("age"); got != Float {
		t.Errorf("Merge overwrote age: %v", got)
	}
	if got, _ := s.Get("city"); got != Category {
		t.Errorf("Get(city) = %v, want Category", got)
	}
}

func TestSchema_CoverRows(t *testing.T) {
	s := NewSchema(Column[DisplayType]{Name: "a", Type: Integer})
	s.CoverRows([]Row{
		{"a": 1, "z": "x"},
		{"a": 2, "b": nil},
	})

	if got := strings.Join(s.Names(), ","); got != "a,b,z" {
		t.Errorf("Names() = %s, want a,b,z", got)
	}
	if got, _ := s.Get("z"); got != Text {
		t.Errorf("Get(z) = %v, want Text", got)
	}
}

func TestSchema_JSONRoundTrip(t *testing.T) {
	s := NewSchema(
		Column[DisplayType]{Name: "name", Type: Text},
		Column[DisplayType]{Name: "age", Type: Integer},
	)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `{"name":"Text","age":"Integer"}` {
		t.Errorf("Marshal = %s", data)
	}

	var back Schema
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if got := strings.Join(back.Names(), ","); got != "name,age" {
		t.Errorf("Names() = %s", got)
	}
}
