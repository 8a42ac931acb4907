package absence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/artsia/hr-portal/calendar"
)

// =============================================================================
// SERVICE - Orchestrates the request lifecycle
// =============================================================================

// Deps are the collaborators of a Service. Calendar, Logger, Metrics and Now
// have defaults when left zero.
type Deps struct {
	Store    Store
	Notifier Notifier
	Calendar calendar.HolidayCalendar
	Logger   *zerolog.Logger
	Metrics  Recorder
	Now      func() time.Time
}

// Service is the single entry point for absence operations. Every method
// takes the authenticated actor and applies the rule tables from rules.go.
type Service struct {
	store    Store
	notifier Notifier
	cal      calendar.HolidayCalendar
	log      zerolog.Logger
	metrics  Recorder
	now      func() time.Time
}

// NewService wires a Service from its dependencies.
func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		notifier: d.Notifier,
		cal:      d.Calendar,
		log:      log.Logger,
		metrics:  d.Metrics,
		now:      d.Now,
	}
	if d.Logger != nil {
		s.log = *d.Logger
	}
	if s.cal == nil {
		s.cal = calendar.NewItalian()
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Submit validates and stores a new request for the actor, or for another
// employee when the actor is an admin. Types that start pending notify every
// admin; notification failures are logged and do not fail the submission.
func (s *Service) Submit(ctx context.Context, actor Employee, in NewRequest) (Request, error) {
	if err := Validate(in); err != nil {
		return Request{}, err
	}

	owner := actor
	if in.EmployeeID != 0 && in.EmployeeID != actor.ID {
		if !actor.IsAdmin() {
			return Request{}, fmt.Errorf("%w: only admins can file for another employee", ErrForbidden)
		}
		emp, err := s.store.GetEmployee(ctx, in.EmployeeID)
		if err != nil {
			return Request{}, fmt.Errorf("failed to load employee: %w", err)
		}
		if emp == nil {
			return Request{}, fmt.Errorf("employee %d: %w", in.EmployeeID, ErrNotFound)
		}
		owner = *emp
	}

	now := s.now()
	r := Request{
		EmployeeID:    owner.ID,
		Type:          in.Type,
		StartDate:     in.StartDate,
		Duration:      in.Duration,
		Reason:        strings.TrimSpace(in.Reason),
		Status:        InitialStatus(in.Type),
		RequesterName: owner.Name,
		Team:          owner.Team,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if r.Status == StatusApproved {
		approver := actor.ID
		r.ApproverID = &approver
	}

	created, err := s.store.CreateAbsence(ctx, r)
	if err != nil {
		return Request{}, fmt.Errorf("failed to create absence: %w", err)
	}
	s.metrics.AbsenceSubmitted(created.Type, created.Status)

	s.log.Info().
		Int64("absence_id", created.ID).
		Int64("employee_id", created.EmployeeID).
		Str("type", string(created.Type)).
		Str("status", string(created.Status)).
		Msg("absence submitted")

	if NotifiesAdmins(created.Type) {
		s.notifyAdmins(ctx, created)
	}
	return created, nil
}

func (s *Service) notifyAdmins(ctx context.Context, r Request) {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		s.log.Warn().Err(err).Int64("absence_id", r.ID).Msg("could not load admins for notification")
		return
	}
	for _, admin := range admins {
		if _, err := s.notifier.Send(ctx, RequestMessage(r, admin.ID)); err != nil {
			s.log.Warn().Err(err).
				Int64("absence_id", r.ID).
				Int64("admin_id", admin.ID).
				Msg("admin notification failed")
		}
	}
}

// Decide approves or rejects a pending request. The write is conditional on
// the request still being pending, so of two concurrent decisions exactly one
// succeeds and the other gets ErrConflict. The owner is notified best-effort.
func (s *Service) Decide(ctx context.Context, actor Employee, id int64, to Status) (Request, error) {
	if to != StatusApproved && to != StatusRejected {
		ve := &ValidationError{}
		ve.Add("status", fmt.Sprintf("stato non valido: %q", to))
		return Request{}, ve
	}
	if !MayDecide(actor) {
		return Request{}, fmt.Errorf("%w: %s cannot decide requests", ErrForbidden, actor.Role)
	}

	r, err := s.store.GetAbsence(ctx, id)
	if err != nil {
		return Request{}, fmt.Errorf("failed to load absence: %w", err)
	}
	if r == nil {
		return Request{}, fmt.Errorf("absence %d: %w", id, ErrNotFound)
	}
	if err := Transition(r.Status, to); err != nil {
		return Request{}, err
	}
	if !CanApprove(actor, r.Owner(), *r) {
		return Request{}, fmt.Errorf("%w: %s cannot decide %s of employee %d",
			ErrForbidden, actor.Role, r.Type, r.EmployeeID)
	}

	now := s.now()
	ok, err := s.store.UpdateAbsenceStatus(ctx, id, StatusPending, to, actor.ID, now)
	if err != nil {
		return Request{}, fmt.Errorf("failed to update absence: %w", err)
	}
	if !ok {
		return Request{}, fmt.Errorf("absence %d: %w", id, ErrConflict)
	}

	approver := actor.ID
	r.Status = to
	r.ApproverID = &approver
	r.UpdatedAt = now
	s.metrics.AbsenceDecided(r.Type, to)

	s.log.Info().
		Int64("absence_id", id).
		Int64("approver_id", actor.ID).
		Str("status", string(to)).
		Msg("absence decided")

	if _, err := s.notifier.Send(ctx, DecisionMessage(*r)); err != nil {
		s.log.Warn().Err(err).Int64("absence_id", id).Msg("owner notification failed")
	}
	return *r, nil
}

// Cancel deletes a request owned by the actor while it is still pending.
// Requests of other employees are reported as not found.
func (s *Service) Cancel(ctx context.Context, actor Employee, id int64) error {
	r, err := s.store.GetAbsence(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load absence: %w", err)
	}
	if r == nil || r.EmployeeID != actor.ID {
		return fmt.Errorf("absence %d: %w", id, ErrNotFound)
	}
	if r.Status != StatusPending {
		return fmt.Errorf("%w: cannot cancel a %s request", ErrInvalidTransition, r.Status)
	}

	ok, err := s.store.DeleteAbsence(ctx, id, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to delete absence: %w", err)
	}
	if !ok {
		return fmt.Errorf("absence %d: %w", id, ErrConflict)
	}
	return nil
}

// Get returns a single request if the actor may list it.
func (s *Service) Get(ctx context.Context, actor Employee, id int64) (Request, error) {
	r, err := s.store.GetAbsence(ctx, id)
	if err != nil {
		return Request{}, fmt.Errorf("failed to load absence: %w", err)
	}
	if r == nil || !CanList(actor, r.Owner(), *r) {
		return Request{}, fmt.Errorf("absence %d: %w", id, ErrNotFound)
	}
	return *r, nil
}

// List returns the requests the actor may see in list views, narrowed by f.
func (s *Service) List(ctx context.Context, actor Employee, f Filter) ([]Request, error) {
	if !actor.IsAdmin() {
		ids, err := s.teamIDs(ctx, actor)
		if err != nil {
			return nil, err
		}
		f.EmployeeIDs = ids
	}

	rows, err := s.store.FindAbsences(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to find absences: %w", err)
	}

	out := make([]Request, 0, len(rows))
	for _, r := range rows {
		if CanList(actor, r.Owner(), r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Pending returns the approval queue of the actor: pending requests it is
// allowed to decide. Regular employees get an empty queue.
func (s *Service) Pending(ctx context.Context, actor Employee) ([]Request, error) {
	pending := StatusPending
	f := Filter{Status: &pending}

	switch actor.Role {
	case RoleAdmin:
	case RoleManager:
		ids, err := s.teamIDs(ctx, actor)
		if err != nil {
			return nil, err
		}
		smart := TypeSmartworking
		f.EmployeeIDs = ids
		f.Type = &smart
	default:
		return []Request{}, nil
	}

	rows, err := s.store.FindAbsences(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to find absences: %w", err)
	}
	out := make([]Request, 0, len(rows))
	for _, r := range rows {
		if CanApprove(actor, r.Owner(), r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) teamIDs(ctx context.Context, actor Employee) ([]int64, error) {
	team, err := s.store.ListTeam(ctx, actor.Team)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	ids := []int64{actor.ID}
	for _, e := range team {
		if e.ID != actor.ID {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// =============================================================================
// CALENDAR VIEW
// =============================================================================

// CalendarEntry is a visible request with its expanded range. Days lists the
// dates inside the requested window that the range covers.
type CalendarEntry struct {
	Request
	EndDate calendar.Date   `json:"endDate"`
	Days    []calendar.Date `json:"days"`
}

// Calendar returns the pending and approved requests overlapping [from, to]
// that the actor may see.
func (s *Service) Calendar(ctx context.Context, actor Employee, from, to calendar.Date) ([]CalendarEntry, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		ve := &ValidationError{}
		ve.Add("to", "intervallo di date non valido")
		return nil, ve
	}

	rows, err := s.store.FindAbsences(ctx, Filter{
		Statuses: []Status{StatusPending, StatusApproved},
		To:       &to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find absences: %w", err)
	}

	out := make([]CalendarEntry, 0, len(rows))
	for _, r := range rows {
		if !OnCalendar(r) || !CanView(actor, r.Owner(), r) {
			continue
		}
		hi, reached := r.EndDateWithin(s.cal, to)
		if !calendar.Overlaps(r.StartDate, hi, from, to) {
			continue
		}
		end := hi
		if !reached {
			end = r.EndDate(s.cal)
		}
		lo := r.StartDate
		if lo.Before(from) {
			lo = from
		}
		out = append(out, CalendarEntry{Request: r, EndDate: end, Days: calendar.Days(lo, hi)})
	}
	return out, nil
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportRow is one line of the admin spreadsheet export.
type ExportRow struct {
	Request
	EndDate calendar.Date `json:"endDate"`
}

// Export returns the requests matching f with their end dates. Admin only.
func (s *Service) Export(ctx context.Context, actor Employee, f Filter) ([]ExportRow, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: export requires admin", ErrForbidden)
	}
	rows, err := s.store.FindAbsences(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to find absences: %w", err)
	}
	out := make([]ExportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ExportRow{Request: r, EndDate: r.EndDate(s.cal)})
	}
	return out, nil
}
