package coerce

import (
	"testing"
	"time"

	"github.com/rpattn/sheetimport/internal/domain"
)

func TestNullInputsCoerceToNilForEveryType(t *testing.T) {
	types := []domain.FieldType{
		domain.FieldTypeString,
		domain.FieldTypeInteger,
		domain.FieldTypeDecimal,
		domain.FieldTypeDate,
		domain.FieldTypeDateTime,
	}
	for _, target := range types {
		for _, raw := range []any{nil, "", "   "} {
			if got := Value(raw, target); got != nil {
				t.Fatalf("expected nil for %v -> %s, got %v", raw, target, got)
			}
		}
	}
}

func TestIntegerCoercion(t *testing.T) {
	if got := Value("10", domain.FieldTypeInteger); got != int64(10) {
		t.Fatalf("expected 10, got %v (%T)", got, got)
	}
	if got := Value(float64(42), domain.FieldTypeInteger); got != int64(42) {
		t.Fatalf("expected 42, got %v", got)
	}
	if got := Value(" 1.234 pz", domain.FieldTypeInteger); got != int64(1) {
		// junk stripped, "1.234" parsed, rounded
		t.Fatalf("expected 1, got %v", got)
	}
	if got := Value("abc", domain.FieldTypeInteger); got != nil {
		t.Fatalf("expected nil for unparseable integer, got %v", got)
	}
}

func TestDecimalCoercionRoundsToTwoPlaces(t *testing.T) {
	if got := Value("12.346", domain.FieldTypeDecimal); got != 12.35 {
		t.Fatalf("expected 12.35, got %v", got)
	}
	if got := Value(3.14159, domain.FieldTypeDecimal); got != 3.14 {
		t.Fatalf("expected 3.14, got %v", got)
	}
}

func TestDecimalCoercionNormalizesLocaleComma(t *testing.T) {
	if got := Value("1.234,56", domain.FieldTypeDecimal); got != 1234.56 {
		t.Fatalf("expected 1234.56, got %v", got)
	}
	if got := Value("€ 12,5", domain.FieldTypeDecimal); got != 12.5 {
		t.Fatalf("expected 12.5, got %v", got)
	}
	if got := Value("1,234.56", domain.FieldTypeDecimal); got != 1234.56 {
		t.Fatalf("expected 1234.56 for comma grouping, got %v", got)
	}
}

func TestSerialDateDecoding(t *testing.T) {
	// Serial day 1 is 1899-12-31 per the 25569 epoch offset.
	if got := SerialDate(1).Format("2006-01-02"); got != "1899-12-31" {
		t.Fatalf("serial 1: expected 1899-12-31, got %s", got)
	}
	if got := SerialDate(25569).Format("2006-01-02"); got != "1970-01-01" {
		t.Fatalf("serial 25569: expected 1970-01-01, got %s", got)
	}
	if got := SerialDate(45000).Format("2006-01-02"); got != "2023-03-15" {
		t.Fatalf("serial 45000: expected 2023-03-15, got %s", got)
	}
}

func TestDateCoercionAcceptsAllEncodings(t *testing.T) {
	structured := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := Value(structured, domain.FieldTypeDate); got != structured {
		t.Fatalf("expected structured date passthrough, got %v", got)
	}

	got := Value("2023-03-15", domain.FieldTypeDate)
	parsed, ok := got.(time.Time)
	if !ok || parsed.Format("2006-01-02") != "2023-03-15" {
		t.Fatalf("expected ISO string to parse, got %v", got)
	}

	got = Value(float64(45000), domain.FieldTypeDate)
	parsed, ok = got.(time.Time)
	if !ok || parsed.Format("2006-01-02") != "2023-03-15" {
		t.Fatalf("expected serial number to decode, got %v", got)
	}

	// Numeric string falls back to serial parsing after layouts fail.
	got = Value("45000", domain.FieldTypeDate)
	parsed, ok = got.(time.Time)
	if !ok || parsed.Format("2006-01-02") != "2023-03-15" {
		t.Fatalf("expected serial string fallback, got %v", got)
	}

	if got := Value("not a date", domain.FieldTypeDate); got != nil {
		t.Fatalf("expected nil for unparseable date, got %v", got)
	}
}

func TestStringCoercionTrims(t *testing.T) {
	if got := Value("  Alice  ", domain.FieldTypeString); got != "Alice" {
		t.Fatalf("expected trimmed string, got %q", got)
	}
	if got := Value(float64(12.5), domain.FieldTypeString); got != "12.5" {
		t.Fatalf("expected stringified number, got %v", got)
	}
}

func TestCoercionIsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := Value("1.234,56", domain.FieldTypeDecimal); got != 1234.56 {
			t.Fatalf("coercion not stable on attempt %d: %v", i, got)
		}
	}
}
