package core

// convert.go turns raw cell text into typed values for each backend type tag.
//
// Cells come from user files, so parsing is forgiving: currency symbols,
// thousands separators and accounting negatives are accepted for numbers,
// many date layouts are tried, and Excel formula wrappers are stripped.
// Parsed values are JSON-friendly: int64, float64, bool, and strings for
// dates, durations, complex numbers and text.

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/dataview/internal/schema"
)

// numericRegex matches integers, decimals and scientific notation after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// clockRegex matches "[N day[s][,]] HH:MM:SS[.fff]".
var clockRegex = regexp.MustCompile(`^(?:([+-]?\d+)\s+days?,?\s*)?(\d{1,2}):(\d{2}):(\d{2})(\.\d+)?$`)

// daysRegex matches "N day[s]".
var daysRegex = regexp.MustCompile(`^([+-]?\d+)\s+days?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		"20060102",
	}
	dateTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
	}
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, Excel formula wrappers (="...") and quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// normalizeNumber strips currency symbols and thousands separators and
// handles accounting negatives "(123.45)". It reports whether the result is
// a plain decimal literal.
func normalizeNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	return s, numericRegex.MatchString(s)
}

// ParseInt parses an integer cell. Whole floats such as "30.0" are accepted.
func ParseInt(s string) (int64, bool) {
	n, ok := normalizeNumber(s)
	if !ok {
		return 0, false
	}
	if i, err := strconv.ParseInt(n, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// ParseFloat parses a decimal cell.
func ParseFloat(s string) (float64, bool) {
	n, ok := normalizeNumber(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// ParseDate parses dates and timestamps in the common layouts.
// Two-digit years are resolved with TwoDigitYearPivot.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// FormatDate renders a date as YYYY-MM-DD when it has no time of day and
// as RFC 3339 otherwise.
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

// ParseTimeDelta parses durations written as Go durations ("1h30m"),
// clock time ("01:30:00"), "N days" or "N days HH:MM:SS".
func ParseTimeDelta(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if m := daysRegex.FindStringSubmatch(s); m != nil {
		days, _ := strconv.Atoi(m[1])
		return time.Duration(days) * 24 * time.Hour, true
	}

	if m := clockRegex.FindStringSubmatch(s); m != nil {
		var days int
		if m[1] != "" {
			days, _ = strconv.Atoi(m[1])
		}
		h, _ := strconv.Atoi(m[2])
		mins, _ := strconv.Atoi(m[3])
		sec, _ := strconv.Atoi(m[4])
		if mins > 59 || sec > 59 {
			return 0, false
		}
		d := time.Duration(days)*24*time.Hour +
			time.Duration(h)*time.Hour +
			time.Duration(mins)*time.Minute +
			time.Duration(sec)*time.Second
		if m[5] != "" {
			frac, _ := strconv.ParseFloat("0"+m[5], 64)
			d += time.Duration(frac * float64(time.Second))
		}
		return d, true
	}

	// Bare numbers are not durations; time.ParseDuration accepts "0".
	if _, isNum := normalizeNumber(s); isNum {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

// ParseComplex parses complex numbers written with i or j, e.g. "1+2j".
func ParseComplex(s string) (complex128, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, "j", "i"), "J", "i")
	c, err := strconv.ParseComplex(s, 128)
	if err != nil || math.IsInf(real(c), 0) || math.IsInf(imag(c), 0) ||
		math.IsNaN(real(c)) || math.IsNaN(imag(c)) {
		return 0, false
	}
	return c, true
}

// ConvertCell converts cleaned cell text to the value stored for tag.
// Empty cells become nil.
func ConvertCell(tag, cell string) (any, error) {
	if cell == "" {
		return nil, nil
	}

	switch tag {
	case "int8", "int16", "int32", "int64":
		if v, ok := ParseInt(cell); ok {
			return v, nil
		}
		return nil, fmt.Errorf("invalid number %q", cell)
	case "float32", "float64":
		if v, ok := ParseFloat(cell); ok {
			return v, nil
		}
		return nil, fmt.Errorf("invalid number %q", cell)
	case "bool":
		if v, ok := ParseBool(cell); ok {
			return v, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", cell)
	case "datetime64[ns]":
		if v, ok := ParseDate(cell); ok {
			return FormatDate(v), nil
		}
		return nil, fmt.Errorf("invalid date %q", cell)
	case "timedelta[ns]", "timedelta64[ns]":
		if v, ok := ParseTimeDelta(cell); ok {
			return v.String(), nil
		}
		return nil, fmt.Errorf("invalid duration %q", cell)
	case "complex128":
		if v, ok := ParseComplex(cell); ok {
			return strconv.FormatComplex(v, 'g', -1, 128), nil
		}
		return nil, fmt.Errorf("invalid complex number %q", cell)
	default:
		return cell, nil
	}
}

// ConvertValue converts a stored value to display type t.
func ConvertValue(v any, t schema.DisplayType) (any, error) {
	text, ok := valueText(v)
	if !ok {
		return nil, nil
	}
	if text == "" && t != schema.Text && t != schema.Category {
		return nil, nil
	}
	if text == "" {
		return "", nil
	}
	return ConvertCell(schema.RawTag(t), text)
}

// valueText renders a stored value as cell text. It reports false for nil.
func valueText(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprint(v), true
	}
}
