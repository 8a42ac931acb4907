/*
Package calendar provides the working-day arithmetic behind absence requests.

PURPOSE:
  Absences are expressed as a start date plus a duration in working days.
  Rendering them on the calendar (and deciding which cells carry a marker)
  needs three things: a date type without a time component, the Italian
  public holiday calendar, and a range expander that walks forward over
  working days only.

KEY TYPES:
  Date:            Calendar date, always normalised to UTC midnight
  Holiday:         A named public holiday in a given year
  HolidayCalendar: Lookup interface (IsHoliday), Italian implementation
  DayKind:         (weekend, holiday, working day) classification

INPUT NORMALISATION:
  Clients send dates in several shapes ("2025-01-02", RFC3339 timestamps
  from the PWA, "02/01/2025" typed by hand). ParseDate accepts all of
  them and drops any time component.

SEE ALSO:
  - holidays.go: Holiday computation (fixed + Easter)
  - workdays.go: Classification and range expansion
*/
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a string cannot be interpreted as a date.
var ErrInvalidDate = errors.New("invalid date")

// =============================================================================
// DATE - Calendar date without time component
// =============================================================================

// Date is a calendar day. The zero value is the zero time and reports IsZero.
// Dates built by this package are comparable with ==.
type Date struct {
	t time.Time
}

const layoutISO = "2006-01-02"

// NewDate returns the date for year/month/day, normalising overflow the way
// time.Date does (Feb 30 becomes Mar 2).
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime keeps only the calendar day of t, as seen in t's own location.
func FromTime(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current local calendar day.
func Today() Date { return FromTime(time.Now()) }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// DaysUntil returns the number of calendar days from d to other (negative if
// other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(layoutISO)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null for the zero date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts every layout ParseDate understands.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Layouts tried in order. Timestamps keep the calendar day written in the
// string, never the day after conversion to UTC.
var dateLayouts = []string{
	layoutISO,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
}

// ParseDate normalises the date formats clients send into a Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// MustParseDate is ParseDate for literals in tests and seed data.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
