// Package derive computes calendar attributes from a resolved anchor
// date and period hints embedded in source file names.
package derive

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Derived field keys attached to destination records.
const (
	FieldMonth   = "month"
	FieldWeek    = "week"
	FieldQuarter = "quarter"
	FieldWeekday = "weekday"
)

// DefaultWeekdays is the Sunday-first label set used when no locale
// specific labels are configured.
var DefaultWeekdays = []string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

// Calendar derives month, week-of-year, quarter and weekday labels.
type Calendar struct {
	weekdays []string
}

// NewCalendar builds a calculator with the given Sunday-first weekday
// labels; any list that is not exactly 7 entries falls back to the default.
func NewCalendar(weekdays []string) *Calendar {
	if len(weekdays) != 7 {
		weekdays = DefaultWeekdays
	}
	return &Calendar{weekdays: weekdays}
}

// Fields computes every derived attribute from the anchor date. A nil
// anchor resolves every derived field to nil; derived fields are never
// independently required.
func (c *Calendar) Fields(anchor *time.Time) map[string]any {
	if anchor == nil {
		return map[string]any{
			FieldMonth:   nil,
			FieldWeek:    nil,
			FieldQuarter: nil,
			FieldWeekday: nil,
		}
	}

	t := *anchor
	month := int(t.Month())
	return map[string]any{
		FieldMonth:   month,
		FieldWeek:    WeekOfYear(t),
		FieldQuarter: (month + 2) / 3,
		FieldWeekday: c.weekdays[int(t.Weekday())],
	}
}

// WeekOfYear computes the week number as day-of-year plus the weekday
// offset of January 1st, divided by 7, rounded up.
func WeekOfYear(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	offset := int(jan1.Weekday())
	return int(math.Ceil(float64(t.YearDay()+offset) / 7))
}

// Period is a month/year pair derived from a source file name.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

var (
	monthYearPattern = regexp.MustCompile(`(\d{1,2})[-_./](\d{4})`)
	yearMonthPattern = regexp.MustCompile(`(\d{4})[-_./](\d{1,2})`)
)

// Ordered longest-form first so full names win over abbreviations.
var monthNames = []struct {
	token string
	month int
}{
	{"january", 1}, {"february", 2}, {"march", 3}, {"april", 4},
	{"may", 5}, {"june", 6}, {"july", 7}, {"august", 8},
	{"september", 9}, {"october", 10}, {"november", 11}, {"december", 12},
	{"jan", 1}, {"feb", 2}, {"mar", 3}, {"apr", 4}, {"jun", 6},
	{"jul", 7}, {"aug", 8}, {"sep", 9}, {"oct", 10}, {"nov", 11}, {"dec", 12},
}

// FilenamePeriod resolves the batch period from the source identity.
// An explicit month/year embedded in the name takes precedence; failing
// that, a month name is matched and the year is taken from the anchor
// date when present, else from now.
func FilenamePeriod(sourceName string, anchor *time.Time, now time.Time) (Period, bool) {
	name := strings.ToLower(sourceName)

	if m := yearMonthPattern.FindStringSubmatch(name); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return Period{Month: month, Year: year}, true
		}
	}
	if m := monthYearPattern.FindStringSubmatch(name); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return Period{Month: month, Year: year}, true
		}
	}

	for _, entry := range monthNames {
		if strings.Contains(name, entry.token) {
			year := now.Year()
			if anchor != nil {
				year = anchor.Year()
			}
			return Period{Month: entry.month, Year: year}, true
		}
	}

	return Period{}, false
}
