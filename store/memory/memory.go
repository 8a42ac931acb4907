// Package memory provides an in-memory implementation of the absence and
// notification stores, for tests and local experiments.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artsia/hr-portal/absence"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	nextID        int64
	employees     map[int64]absence.Employee
	absences      map[int64]absence.Request
	notifications map[int64]absence.Notification
	subscriptions map[int64]absence.PushSubscription
}

func NewMemory() *Memory {
	return &Memory{
		employees:     make(map[int64]absence.Employee),
		absences:      make(map[int64]absence.Request),
		notifications: make(map[int64]absence.Notification),
		subscriptions: make(map[int64]absence.PushSubscription),
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// CreateEmployee stores e with a fresh ID. Emails are lower-cased.
func (m *Memory) CreateEmployee(_ context.Context, e absence.Employee) (absence.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.id()
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.employees[e.ID] = e
	return e, nil
}

func (m *Memory) GetEmployee(_ context.Context, id int64) (*absence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) ListAdmins(_ context.Context) ([]absence.Employee, error) {
	return m.employeesWhere(func(e absence.Employee) bool { return e.Role == absence.RoleAdmin }), nil
}

func (m *Memory) ListTeam(_ context.Context, team absence.Team) ([]absence.Employee, error) {
	return m.employeesWhere(func(e absence.Employee) bool { return e.Team == team }), nil
}

func (m *Memory) employeesWhere(keep func(absence.Employee) bool) []absence.Employee {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []absence.Employee
	for _, e := range m.employees {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// ABSENCES (absence.Store)
// =============================================================================

func (m *Memory) CreateAbsence(_ context.Context, r absence.Request) (absence.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.id()
	if owner, ok := m.employees[r.EmployeeID]; ok {
		r.RequesterName = owner.Name
		r.Team = owner.Team
	}
	m.absences[r.ID] = r
	return r, nil
}

func (m *Memory) GetAbsence(_ context.Context, id int64) (*absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.absences[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// FindAbsences returns matching requests, latest start date first.
func (m *Memory) FindAbsences(_ context.Context, f absence.Filter) ([]absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []absence.Request{}
	for _, r := range m.absences {
		if matches(f, r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(f absence.Filter, r absence.Request) bool {
	if f.EmployeeID != nil && r.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.EmployeeIDs != nil && !slices.Contains(f.EmployeeIDs, r.EmployeeID) {
		return false
	}
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.From != nil && r.StartDate.Before(*f.From) {
		return false
	}
	if f.To != nil && r.StartDate.After(*f.To) {
		return false
	}
	return true
}

func (m *Memory) UpdateAbsenceStatus(_ context.Context, id int64, from, to absence.Status, approverID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.absences[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.ApproverID = &approverID
	r.UpdatedAt = at
	m.absences[id] = r
	return true, nil
}

func (m *Memory) DeleteAbsence(_ context.Context, id, ownerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.absences[id]
	if !ok || r.EmployeeID != ownerID || r.Status != absence.StatusPending {
		return false, nil
	}
	delete(m.absences, id)
	return true, nil
}

// =============================================================================
// NOTIFICATIONS AND SUBSCRIPTIONS (notify.Store)
// =============================================================================

func (m *Memory) CreateNotification(_ context.Context, n absence.Notification) (absence.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n.ID = m.id()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.notifications[n.ID] = n
	return n, nil
}

// Notifications returns every notification of userID, oldest first.
func (m *Memory) Notifications(userID int64) []absence.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []absence.Notification
	for _, n := range m.notifications {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpsertSubscription stores s keyed by (employee, endpoint).
func (m *Memory) UpsertSubscription(_ context.Context, s absence.PushSubscription) (absence.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.subscriptions {
		if existing.EmployeeID == s.EmployeeID && existing.Endpoint == s.Endpoint {
			s.ID = id
			s.CreatedAt = existing.CreatedAt
			m.subscriptions[id] = s
			return s, nil
		}
	}
	s.ID = m.id()
	m.subscriptions[s.ID] = s
	return s, nil
}

func (m *Memory) ListSubscriptions(_ context.Context, userID int64) ([]absence.PushSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []absence.PushSubscription
	for _, s := range m.subscriptions {
		if s.EmployeeID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TouchSubscription(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.subscriptions[id]; ok {
		s.LastUsedAt = at
		m.subscriptions[id] = s
	}
	return nil
}

func (m *Memory) DeleteSubscription(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subscriptions, id)
	return nil
}
