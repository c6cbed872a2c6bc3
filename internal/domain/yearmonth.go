package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// YearMonth identifies one calendar month, the unit of harvesting work.
// The zero value is invalid; use ParseYearMonth or YearMonthOf.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf builds a YearMonth from explicit year and month values.
func YearMonthOf(year int, month time.Month) YearMonth {
	return YearMonth{Year: year, Month: month}
}

// YearMonthFromTime truncates a point in time to its calendar month (UTC).
func YearMonthFromTime(t time.Time) YearMonth {
	u := t.UTC()
	return YearMonth{Year: u.Year(), Month: u.Month()}
}

// ParseYearMonth parses the ISO "YYYY-MM" form used on the wire.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year-month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// String renders the ISO "YYYY-MM" form.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// IsZero reports whether ym is the zero value.
func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

// FirstDay returns midnight UTC on the first day of the month.
func (ym YearMonth) FirstDay() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// LastDay returns midnight UTC on the last day of the month.
// Leap years are handled by the time package.
func (ym YearMonth) LastDay() time.Time {
	return ym.FirstDay().AddDate(0, 1, -1)
}

// Next returns the following calendar month.
func (ym YearMonth) Next() YearMonth {
	t := ym.FirstDay().AddDate(0, 1, 0)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// After reports whether ym is strictly later than other.
func (ym YearMonth) After(other YearMonth) bool {
	return other.Before(ym)
}

// MarshalJSON encodes the month as its "YYYY-MM" string. The zero value
// encodes as null so optional window bounds round-trip cleanly.
func (ym YearMonth) MarshalJSON() ([]byte, error) {
	if ym.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ym.String())
}

// UnmarshalJSON decodes the "YYYY-MM" string form. null and the empty
// string decode to the zero value.
func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*ym = YearMonth{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*ym = YearMonth{}
		return nil
	}
	parsed, err := ParseYearMonth(s)
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// MonthsBetween expands the inclusive range [start, end] into individual
// months in ascending order. An inverted range yields nil.
func MonthsBetween(start, end YearMonth) []YearMonth {
	if end.Before(start) {
		return nil
	}
	var months []YearMonth
	for ym := start; !ym.After(end); ym = ym.Next() {
		months = append(months, ym)
	}
	return months
}
