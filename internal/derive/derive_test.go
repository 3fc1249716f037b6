package derive

import (
	"testing"
	"time"
)

func TestCalendarFields(t *testing.T) {
	anchor := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)

	fields := NewCalendar(nil).Fields(&anchor)

	if fields[FieldMonth] != 3 {
		t.Fatalf("expected month 3, got %v", fields[FieldMonth])
	}
	if fields[FieldQuarter] != 1 {
		t.Fatalf("expected quarter 1, got %v", fields[FieldQuarter])
	}
	// 2023-03-15 is day 74 and January 1st 2023 is a Sunday.
	if fields[FieldWeek] != 11 {
		t.Fatalf("expected week 11, got %v", fields[FieldWeek])
	}
	if fields[FieldWeekday] != "Wednesday" {
		t.Fatalf("expected Wednesday, got %v", fields[FieldWeekday])
	}
}

func TestCalendarFieldsWithoutAnchor(t *testing.T) {
	fields := NewCalendar(nil).Fields(nil)

	for _, key := range []string{FieldMonth, FieldWeek, FieldQuarter, FieldWeekday} {
		value, ok := fields[key]
		if !ok {
			t.Fatalf("expected key %q to be present", key)
		}
		if value != nil {
			t.Fatalf("expected %q to be nil without an anchor, got %v", key, value)
		}
	}
}

func TestCalendarCustomWeekdayLabels(t *testing.T) {
	labels := []string{"dom", "lun", "mar", "mer", "gio", "ven", "sab"}
	anchor := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)

	fields := NewCalendar(labels).Fields(&anchor)
	if fields[FieldWeekday] != "mer" {
		t.Fatalf("expected mer, got %v", fields[FieldWeekday])
	}

	// Malformed label sets fall back to the English defaults.
	fields = NewCalendar([]string{"only", "three", "labels"}).Fields(&anchor)
	if fields[FieldWeekday] != "Wednesday" {
		t.Fatalf("expected fallback Wednesday, got %v", fields[FieldWeekday])
	}
}

func TestWeekOfYearStartsAtOne(t *testing.T) {
	if got := WeekOfYear(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)); got != 1 {
		t.Fatalf("expected week 1 for January 1st, got %d", got)
	}
}

func TestFilenamePeriod(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	period, ok := FilenamePeriod("deliveries_2024-03.csv", nil, now)
	if !ok || period != (Period{Month: 3, Year: 2024}) {
		t.Fatalf("expected 2024-03, got %+v ok=%v", period, ok)
	}

	period, ok = FilenamePeriod("deliveries_03-2024.csv", nil, now)
	if !ok || period != (Period{Month: 3, Year: 2024}) {
		t.Fatalf("expected 2024-03 from month-year order, got %+v ok=%v", period, ok)
	}
}

func TestFilenamePeriodFromMonthName(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	anchor := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)

	period, ok := FilenamePeriod("march_sales.xlsx", &anchor, now)
	if !ok || period != (Period{Month: 3, Year: 2022}) {
		t.Fatalf("expected anchor year 2022, got %+v ok=%v", period, ok)
	}

	period, ok = FilenamePeriod("march_sales.xlsx", nil, now)
	if !ok || period != (Period{Month: 3, Year: 2024}) {
		t.Fatalf("expected current year fallback, got %+v ok=%v", period, ok)
	}
}

func TestFilenamePeriodRejectsUnrecognizedNames(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := FilenamePeriod("deliveries.csv", nil, now); ok {
		t.Fatal("expected no period for a name without hints")
	}
	if _, ok := FilenamePeriod("batch_99-2024.csv", nil, now); ok {
		t.Fatal("expected out-of-range month to be rejected")
	}
}
