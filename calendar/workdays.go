package calendar

import (
	"errors"
	"time"
)

// ErrNonPositiveDuration is returned by ExpandRange for durations <= 0.
var ErrNonPositiveDuration = errors.New("duration must be positive")

// DayKind classifies a calendar day.
type DayKind struct {
	IsWeekend    bool `json:"isWeekend"`
	IsHoliday    bool `json:"isHoliday"`
	IsWorkingDay bool `json:"isWorkingDay"`
}

// IsWeekend reports Saturday or Sunday.
func IsWeekend(d Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Classify returns the weekend/holiday/working-day triple for d. A nil
// calendar falls back to the package-level Italian holidays.
func Classify(cal HolidayCalendar, d Date) DayKind {
	weekend := IsWeekend(d)
	var holiday bool
	if cal != nil {
		holiday = cal.IsHoliday(d)
	} else {
		holiday = IsHoliday(d)
	}
	return DayKind{
		IsWeekend:    weekend,
		IsHoliday:    holiday,
		IsWorkingDay: !weekend && !holiday,
	}
}

// IsWorkingDay is shorthand for Classify(cal, d).IsWorkingDay.
func IsWorkingDay(cal HolidayCalendar, d Date) bool {
	return Classify(cal, d).IsWorkingDay
}

// MaxRangeDays bounds the walk of ExpandRange. A range that would run longer
// is reported as ending MaxRangeDays after its start.
const MaxRangeDays = 3660

// ExpandRange returns the inclusive end date of an absence that starts on
// start and lasts workingDays working days.
//
// The walk starts the day before start and advances one day at a time,
// counting only working days. A start on a weekend or holiday is not moved:
// the non-working days are simply skipped and the range grows past them.
func ExpandRange(cal HolidayCalendar, start Date, workingDays int) (Date, error) {
	end, _, err := ExpandRangeUntil(cal, start, workingDays, start.AddDays(MaxRangeDays))
	return end, err
}

// ExpandRangeUntil is ExpandRange with the walk stopped at limit. reached is
// false when the range runs past limit, and end is then limit itself.
func ExpandRangeUntil(cal HolidayCalendar, start Date, workingDays int, limit Date) (end Date, reached bool, err error) {
	if workingDays <= 0 {
		return Date{}, false, ErrNonPositiveDuration
	}
	cursor := start.AddDays(-1)
	for counted := 0; counted < workingDays; {
		if !cursor.Before(limit) {
			return limit, false, nil
		}
		cursor = cursor.AddDays(1)
		if IsWorkingDay(cal, cursor) {
			counted++
		}
	}
	return cursor, true, nil
}

// WorkingDaysBetween counts working days in [from, to]. Returns 0 when to is
// before from.
func WorkingDaysBetween(cal HolidayCalendar, from, to Date) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDays(1) {
		if IsWorkingDay(cal, d) {
			n++
		}
	}
	return n
}

// Covers reports whether d lies within [start, end].
func Covers(start, end, d Date) bool {
	return !d.Before(start) && !d.After(end)
}

// Overlaps reports whether [aStart, aEnd] and [bStart, bEnd] intersect.
func Overlaps(aStart, aEnd, bStart, bEnd Date) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// Days lists every date in [from, to].
func Days(from, to Date) []Date {
	if to.Before(from) {
		return nil
	}
	out := make([]Date, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
