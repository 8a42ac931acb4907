/*
seed.go - Demo data for development and demonstrations

PURPOSE:
  Populates an empty database with one admin, a manager per team, a few
  employees and a handful of absence requests spread around the current
  month, so the PWA has something to show on first start.

HOW SEEDING WORKS:
 1. Skip when any employee already exists
 2. Create employees with DemoPassword
 3. Submit requests through the absence service, so statuses, approvers
    and admin notifications follow the normal rules
 4. Decide some of them as the admin

USAGE:
  ./server -seed

NOTE:
  Only use in development/demo environments; every account shares the
  same password.

SEE ALSO:
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"fmt"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/calendar"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "artsia-demo"

// =============================================================================
// SEED DEFINITIONS
// =============================================================================

type seedEmployee struct {
	Name  string
	Email string
	Team  absence.Team
	Role  absence.Role
}

var seedEmployees = []seedEmployee{
	{"Giulia Rossi", "giulia.rossi@artsia.it", absence.TeamAmministrazione, absence.RoleAdmin},
	{"Marco Bianchi", "marco.bianchi@artsia.it", absence.TeamSviluppo, absence.RoleManager},
	{"Luca Verdi", "luca.verdi@artsia.it", absence.TeamSviluppo, absence.RoleEmployee},
	{"Sara Neri", "sara.neri@artsia.it", absence.TeamSviluppo, absence.RoleEmployee},
	{"Elena Gallo", "elena.gallo@artsia.it", absence.TeamDigital, absence.RoleManager},
	{"Paolo Conti", "paolo.conti@artsia.it", absence.TeamDigital, absence.RoleEmployee},
	{"Chiara Costa", "chiara.costa@artsia.it", absence.TeamCommerciale, absence.RoleEmployee},
}

type seedAbsence struct {
	Email    string
	Type     absence.Type
	Offset   int // days from the first of the month
	Duration int
	Reason   string
	Decision absence.Status // empty: leave as submitted
}

var seedAbsences = []seedAbsence{
	{"luca.verdi@artsia.it", absence.TypeFerie, 3, 5, "Vacanza", absence.StatusApproved},
	{"luca.verdi@artsia.it", absence.TypePermesso, 14, 3, "Visita medica", ""},
	{"sara.neri@artsia.it", absence.TypeSmartworking, 7, 2, "", ""},
	{"sara.neri@artsia.it", absence.TypeFerie, 20, 3, "Matrimonio", ""},
	{"paolo.conti@artsia.it", absence.TypeMalattia, 9, 2, "", ""},
	{"paolo.conti@artsia.it", absence.TypeTrasferta, 16, 2, "Cliente Milano", absence.StatusRejected},
	{"chiara.costa@artsia.it", absence.TypeFerie, 24, 4, "", ""},
	{"marco.bianchi@artsia.it", absence.TypeCongedoParentale, 10, 5, "", absence.StatusApproved},
}

// =============================================================================
// SEED LOADER
// =============================================================================

// Seed loads the demo data when the database has no employees. It reports
// whether anything was created.
func (h *Handler) Seed(ctx context.Context) (bool, error) {
	existing, err := h.Store.ListEmployees(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list employees: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	hash, err := h.Auth.HashPassword(DemoPassword)
	if err != nil {
		return false, err
	}

	byEmail := make(map[string]absence.Employee, len(seedEmployees))
	var admin absence.Employee
	for _, se := range seedEmployees {
		emp, err := h.Store.CreateEmployee(ctx, absence.Employee{
			Name:         se.Name,
			Email:        se.Email,
			Team:         se.Team,
			Role:         se.Role,
			PasswordHash: hash,
		})
		if err != nil {
			return false, fmt.Errorf("failed to create %s: %w", se.Email, err)
		}
		byEmail[se.Email] = emp
		if emp.IsAdmin() && admin.ID == 0 {
			admin = emp
		}
	}

	today := calendar.FromTime(h.now())
	first := calendar.NewDate(today.Year(), today.Month(), 1)
	for _, sa := range seedAbsences {
		owner := byEmail[sa.Email]
		req, err := h.Absences.Submit(ctx, owner, absence.NewRequest{
			Type:      sa.Type,
			StartDate: nextWorkingDay(h.Calendar, first.AddDays(sa.Offset)),
			Duration:  sa.Duration,
			Reason:    sa.Reason,
		})
		if err != nil {
			return false, fmt.Errorf("failed to submit %s for %s: %w", sa.Type, sa.Email, err)
		}
		if sa.Decision == "" || req.Status != absence.StatusPending {
			continue
		}
		if _, err := h.Absences.Decide(ctx, admin, req.ID, sa.Decision); err != nil {
			return false, fmt.Errorf("failed to decide request %d: %w", req.ID, err)
		}
	}
	return true, nil
}

func nextWorkingDay(cal calendar.HolidayCalendar, d calendar.Date) calendar.Date {
	for i := 0; i < 14 && !calendar.IsWorkingDay(cal, d); i++ {
		d = d.AddDays(1)
	}
	return d
}
