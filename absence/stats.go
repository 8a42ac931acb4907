package absence

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artsia/hr-portal/calendar"
)

// HoursPerDay converts permit hours into day equivalents.
var HoursPerDay = decimal.NewFromInt(8)

// TypeTotal aggregates the approved requests of one type.
type TypeTotal struct {
	Count int             `json:"count"`
	Unit  Unit            `json:"unit"`
	Total int             `json:"total"` // in Unit
	Days  decimal.Decimal `json:"days"`  // day equivalent
}

// Stats is the yearly summary shown on the dashboard.
type Stats struct {
	Year      int                `json:"year"`
	ByType    map[Type]TypeTotal `json:"byType"`
	TotalDays decimal.Decimal    `json:"totalDays"`
	Pending   int                `json:"pending"`
}

// Stats aggregates the actor's approved requests starting in year. Pending
// requests are only counted.
func (s *Service) Stats(ctx context.Context, actor Employee, year int) (Stats, error) {
	if year == 0 {
		year = s.now().Year()
	}
	from := calendar.NewDate(year, time.January, 1)
	to := calendar.NewDate(year, time.December, 31)
	id := actor.ID

	rows, err := s.store.FindAbsences(ctx, Filter{
		EmployeeID: &id,
		Statuses:   []Status{StatusApproved, StatusPending},
		From:       &from,
		To:         &to,
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to find absences: %w", err)
	}
	return Summarize(year, rows), nil
}

// Summarize folds requests into Stats. Only approved requests contribute to
// totals.
func Summarize(year int, rows []Request) Stats {
	st := Stats{Year: year, ByType: make(map[Type]TypeTotal), TotalDays: decimal.Zero}
	for _, r := range rows {
		if r.Status == StatusPending {
			st.Pending++
			continue
		}
		if r.Status != StatusApproved {
			continue
		}

		tt := st.ByType[r.Type]
		tt.Count++
		tt.Unit = r.Unit()
		tt.Total += r.Duration

		amount := decimal.NewFromInt(int64(r.Duration))
		if r.Unit() == UnitHours {
			amount = amount.Div(HoursPerDay)
		}
		tt.Days = tt.Days.Add(amount)
		st.ByType[r.Type] = tt
		st.TotalDays = st.TotalDays.Add(amount)
	}
	return st
}
