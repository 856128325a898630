// Package normalize coerces spreadsheet cell text into the canonical property
// values uploaded to the CRM.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MissingValue replaces the literal NULL sentinel. It is numeric so it can be
// stored in numeric association fields downstream.
const MissingValue = -1

// TimestampLayout is the UTC form every recognised date is rewritten to
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// RawRow is one spreadsheet row keyed by header name
type RawRow map[string]string

// Row is a normalized row. Values are string, float64, or int.
type Row map[string]interface{}

var (
	leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

	// decimalOnly matches what is treated as a plain number rather than a date
	decimalOnly = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

	dateLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
		"2006-01",
		"01/02/2006 15:04:05",
		"01/02/2006 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"01/02/2006",
		"1/2/2006",
		"01-02-2006",
		"1-2-2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"January 2, 2006",
		"January 2 2006",
		"2 Jan 2006",
		"2 January 2006",
		"02-Jan-2006",
		"2-Jan-2006",
		"Mon Jan 2 2006",
		"Mon Jan 02 2006 15:04:05",
		// two-digit years, as spreadsheet date formats display them
		"01-02-06",
		"1-2-06",
		"01/02/06",
		"1/2/06",
		"01-02-06 15:04",
		"1/2/06 15:04",
		"1/2/06 15:04:05",
		"2-Jan-06",
		"02-Jan-06",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC850,
		time.ANSIC,
		time.UnixDate,
	}
)

// Record converts every textual value in raw. Keys are preserved.
func Record(raw RawRow) Row {
	out := make(Row, len(raw))
	for key, value := range raw {
		out[key] = Value(value)
	}
	return out
}

// Values normalizes a row whose values are not all strings. Non-string values
// pass through unchanged.
func Values(raw map[string]interface{}) Row {
	out := make(Row, len(raw))
	for key, value := range raw {
		if s, ok := value.(string); ok {
			out[key] = Value(s)
			continue
		}
		out[key] = value
	}
	return out
}

// Value applies the first matching rule: percent, date, number, NULL.
func Value(value string) interface{} {
	value = unquote(value)

	if strings.Contains(value, "%") {
		if fraction, ok := Percent(value); ok {
			return fraction
		}
		return value
	}

	numeric := IsNumeric(value)
	if !numeric {
		if ts, ok := Timestamp(value); ok {
			return ts
		}
	}

	if numeric {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return FormatNumber(f)
		}
	}

	if value == "NULL" {
		return MissingValue
	}

	return value
}

// unquote turns escaped \" into " and then drops one enclosing pair of quotes
func unquote(value string) string {
	value = strings.ReplaceAll(value, `\"`, `"`)
	value = strings.TrimPrefix(value, `"`)
	value = strings.TrimSuffix(value, `"`)
	return value
}

// Percent parses the leading number of a percent string and returns it rounded
// to two places and then divided by 100. "45.5%" yields 0.455.
func Percent(value string) (float64, bool) {
	text := strings.TrimSpace(strings.Replace(value, "%", "", 1))
	match := leadingNumber.FindString(text)
	if match == "" {
		return 0, false
	}

	p, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsInf(p, 0) {
		return 0, false
	}

	// Halves round away from zero.
	rounded := math.Round(p*100) / 100

	return rounded / 100, true
}

// IsNumeric reports whether value is a finite decimal number, allowing
// surrounding whitespace.
func IsNumeric(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || !decimalOnly.MatchString(trimmed) {
		return false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Timestamp parses value as a calendar date and renders it in UTC with
// millisecond precision. Dates without a zone are read as UTC.
func Timestamp(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t.UTC().Format(TimestampLayout), true
		}
	}

	return "", false
}

// FormatNumber renders f in its shortest round-trip form. Magnitudes at or
// above 1e21 or below 1e-6 use exponent notation.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		mantissa, exponent, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
		sign, digits := exponent[:1], strings.TrimLeft(exponent[1:], "0")
		return mantissa + "e" + sign + digits
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}
