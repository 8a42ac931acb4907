package calendar

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// HOLIDAYS - Italian public holidays
// =============================================================================

// Holiday is a public holiday on a specific date.
type Holiday struct {
	Date   Date   `json:"date"`
	Name   string `json:"name"`
	Moving bool   `json:"moving"` // Easter-based
}

type fixedHoliday struct {
	month time.Month
	day   int
	name  string
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1, "Capodanno"},
	{time.January, 6, "Epifania"},
	{time.April, 25, "Festa della Liberazione"},
	{time.May, 1, "Festa del Lavoro"},
	{time.June, 2, "Festa della Repubblica"},
	{time.August, 15, "Ferragosto"},
	{time.November, 1, "Ognissanti"},
	{time.December, 8, "Immacolata Concezione"},
	{time.December, 25, "Natale"},
	{time.December, 26, "Santo Stefano"},
}

// Easter returns Easter Sunday of the given Gregorian year (Meeus/Jones/Butcher).
// Integer arithmetic only.
func Easter(year int) Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return NewDate(year, time.Month(month), day)
}

// Holidays returns the twelve public holidays of year sorted by date. When
// Easter Monday falls on April 25 both entries are kept.
func Holidays(year int) []Holiday {
	out := make([]Holiday, 0, len(fixedHolidays)+2)
	for _, fh := range fixedHolidays {
		out = append(out, Holiday{Date: NewDate(year, fh.month, fh.day), Name: fh.name})
	}
	easter := Easter(year)
	out = append(out,
		Holiday{Date: easter, Name: "Pasqua", Moving: true},
		Holiday{Date: easter.AddDays(1), Name: "Lunedì dell'Angelo", Moving: true},
	)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// IsHoliday reports whether d is a public holiday. Fixed holidays match on
// month and day; Easter dates are computed for d's year.
func IsHoliday(d Date) bool {
	if d.IsZero() {
		return false
	}
	for _, fh := range fixedHolidays {
		if d.Month() == fh.month && d.Day() == fh.day {
			return true
		}
	}
	easter := Easter(d.Year())
	return d == easter || d == easter.AddDays(1)
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// HolidayCalendar provides holiday lookup for working-day computations.
type HolidayCalendar interface {
	IsHoliday(d Date) bool
}

// maxCachedYears caps the per-year cache of Italian. Years beyond the cap are
// computed on every lookup.
const maxCachedYears = 64

// Italian is a HolidayCalendar that caches the holiday set per year. Safe for
// concurrent use.
type Italian struct {
	mu    sync.RWMutex
	years map[int]map[Date]string
}

// NewItalian creates an empty Italian calendar.
func NewItalian() *Italian {
	return &Italian{years: make(map[int]map[Date]string)}
}

func (c *Italian) set(year int) map[Date]string {
	c.mu.RLock()
	s, ok := c.years[year]
	c.mu.RUnlock()
	if ok {
		return s
	}

	s = make(map[Date]string, 12)
	for _, h := range Holidays(year) {
		if _, dup := s[h.Date]; !dup {
			s[h.Date] = h.Name
		}
	}

	c.mu.Lock()
	if len(c.years) < maxCachedYears {
		c.years[year] = s
	}
	c.mu.Unlock()
	return s
}

// IsHoliday implements HolidayCalendar.
func (c *Italian) IsHoliday(d Date) bool {
	if d.IsZero() {
		return false
	}
	_, ok := c.set(d.Year())[d]
	return ok
}

// HolidayName returns the holiday name for d, or "" on ordinary days.
func (c *Italian) HolidayName(d Date) string {
	if d.IsZero() {
		return ""
	}
	return c.set(d.Year())[d]
}

// Holidays returns the holidays of year (see the package-level Holidays).
func (c *Italian) Holidays(year int) []Holiday {
	return Holidays(year)
}

// Between returns the holidays with from <= date <= to.
func (c *Italian) Between(from, to Date) []Holiday {
	var out []Holiday
	for y := from.Year(); y <= to.Year(); y++ {
		for _, h := range Holidays(y) {
			if h.Date.Before(from) || h.Date.After(to) {
				continue
			}
			out = append(out, h)
		}
	}
	return out
}
