// Package coerce converts raw spreadsheet cell values into the semantic
// types required by destination fields. Coercion is best effort: values
// that cannot be interpreted degrade to nil, never to an error, so
// identical inputs always yield identical outputs.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/sheetimport/internal/domain"
)

// serialEpochOffset converts a spreadsheet serial day to days since the
// Unix epoch. Day 1 is 1899-12-31; the constant bakes in the historical
// 1900 leap-year bug.
const serialEpochOffset = 25569

const millisPerDay = 86_400_000

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
}

// Value coerces one raw cell into the given target type. Nil, empty and
// all-whitespace inputs coerce to nil for every target type; whether a
// nil value is fatal for a required field is the caller's decision.
func Value(raw any, target domain.FieldType) any {
	if IsNull(raw) {
		return nil
	}

	switch target {
	case domain.FieldTypeInteger:
		f, ok := toNumber(raw)
		if !ok {
			return nil
		}
		return int64(math.Round(f))
	case domain.FieldTypeDecimal:
		f, ok := toNumber(raw)
		if !ok {
			return nil
		}
		// Round to 2 fractional digits before storage to avoid
		// floating-point drift.
		return math.Round(f*100) / 100
	case domain.FieldTypeDate, domain.FieldTypeDateTime:
		t, ok := toTime(raw)
		if !ok {
			return nil
		}
		return t
	case domain.FieldTypeString:
		return toString(raw)
	default:
		return toString(raw)
	}
}

// IsNull reports whether a raw cell carries no value.
func IsNull(raw any) bool {
	if raw == nil {
		return true
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// SerialDate decodes a spreadsheet serial-day number into a UTC time.
func SerialDate(serial float64) time.Time {
	ms := int64(math.Round((serial - serialEpochOffset) * millisPerDay))
	return time.UnixMilli(ms).UTC()
}

func toNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return parseNumericString(v)
	default:
		return 0, false
	}
}

// parseNumericString strips everything but digits and separators, then
// normalizes a trailing locale comma ("1.234,56") into a decimal point.
func parseNumericString(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(cleaned, ",")
	if lastComma >= 0 && lastComma > strings.LastIndex(cleaned, ".") {
		// Comma is the decimal separator; dots are thousands grouping.
		cleaned = strings.ReplaceAll(cleaned[:lastComma], ".", "") + "." + strings.ReplaceAll(cleaned[lastComma+1:], ",", "")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func toTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case float64:
		return SerialDate(v), true
	case int:
		return SerialDate(float64(v)), true
	case int64:
		return SerialDate(float64(v)), true
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t, true
			}
		}
		// Fall back to serial-day parsing before giving up.
		if serial, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return SerialDate(serial), true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func toString(raw any) any {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		s = v.UTC().Format(time.RFC3339)
	default:
		s = fmt.Sprintf("%v", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
