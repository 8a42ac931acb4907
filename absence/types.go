/*
Package absence holds the leave request model and the rules that govern it.

PURPOSE:
  Every request an employee files (vacation, permit, remote work, sickness...)
  is an absence Request. This package defines the closed value sets, the
  visibility and approval rule tables, the pending -> approved|rejected state
  machine and the Service that orchestrates submission, decisions and
  listing on top of a Store and a Notifier.

KEY TYPES:
  Type:     Closed set of absence kinds (Italian wire values)
  Status:   pending, approved, rejected
  Request:  A stored absence request
  Employee: A staff member with role and team
  Filter:   Typed query for FindAbsences
  Service:  The single entry point used by the HTTP layer

UNITS:
  Duration is counted in working days for every type except "permesso",
  which is counted in hours. The displayed date range of a day-based
  request is computed by calendar.ExpandRange.

SEE ALSO:
  - rules.go:   Visibility, approval authority, state machine
  - service.go: Submit, Decide, Cancel, List, Calendar
  - store.go:   Persistence and delivery interfaces
*/
package absence

import (
	"strings"
	"time"

	"github.com/artsia/hr-portal/calendar"
)

// =============================================================================
// TYPE - Closed set of absence kinds
// =============================================================================

// Type identifies the kind of absence. Values are the Italian wire names the
// frontend sends and stores.
type Type string

const (
	TypeFerie            Type = "ferie"             // vacation
	TypePermesso         Type = "permesso"          // permit, measured in hours
	TypeSmartworking     Type = "smartworking"      // remote work
	TypeMalattia         Type = "malattia"          // sickness
	TypeFestivita        Type = "festivita"         // holiday adjustment
	TypeTrasferta        Type = "trasferta"         // off-site
	TypeCongedoParentale Type = "congedo_parentale" // parental leave
)

// AllTypes lists every recognised type in display order.
var AllTypes = []Type{
	TypeFerie, TypePermesso, TypeSmartworking, TypeMalattia,
	TypeFestivita, TypeTrasferta, TypeCongedoParentale,
}

var typeAliases = map[string]Type{
	"vacation":       TypeFerie,
	"permit":         TypePermesso,
	"remote-work":    TypeSmartworking,
	"remote_work":    TypeSmartworking,
	"smart-working":  TypeSmartworking,
	"smart_working":  TypeSmartworking,
	"sickness":       TypeMalattia,
	"holiday":        TypeFestivita,
	"festività":      TypeFestivita,
	"off-site":       TypeTrasferta,
	"offsite":        TypeTrasferta,
	"parental-leave": TypeCongedoParentale,
	"parental_leave": TypeCongedoParentale,
}

var typeLabels = map[Type]string{
	TypeFerie:            "Ferie",
	TypePermesso:         "Permesso",
	TypeSmartworking:     "Smart working",
	TypeMalattia:         "Malattia",
	TypeFestivita:        "Festività",
	TypeTrasferta:        "Trasferta",
	TypeCongedoParentale: "Congedo parentale",
}

// ParseType accepts the Italian wire value or an English alias.
func ParseType(s string) (Type, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	t := Type(key)
	if t.Valid() {
		return t, true
	}
	t, ok := typeAliases[key]
	return t, ok
}

// Valid reports whether t is one of the recognised types.
func (t Type) Valid() bool {
	_, ok := typeLabels[t]
	return ok
}

// Label is the human-readable Italian name.
func (t Type) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Unit returns the unit Duration is measured in for this type.
func (t Type) Unit() Unit {
	if t == TypePermesso {
		return UnitHours
	}
	return UnitDays
}

// Unit of a request duration.
type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

// Italian returns the unit name used in notification bodies.
func (u Unit) Italian(n int) string {
	switch {
	case u == UnitHours && n == 1:
		return "ora"
	case u == UnitHours:
		return "ore"
	case n == 1:
		return "giorno"
	default:
		return "giorni"
	}
}

// =============================================================================
// STATUS
// =============================================================================

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var statusAliases = map[string]Status{
	"in_attesa": StatusPending,
	"in attesa": StatusPending,
	"approvata": StatusApproved,
	"approvato": StatusApproved,
	"approve":   StatusApproved,
	"rifiutata": StatusRejected,
	"rifiutato": StatusRejected,
	"reject":    StatusRejected,
	"respinta":  StatusRejected,
}

// ParseStatus accepts the canonical value or an Italian alias.
func ParseStatus(s string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch st := Status(key); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	}
	st, ok := statusAliases[key]
	return st, ok
}

// =============================================================================
// EMPLOYEE
// =============================================================================

// Role determines authorization scope.
type Role string

const (
	RoleEmployee Role = "dipendente"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts the stored value or "employee" for RoleEmployee.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dipendente", "employee", "":
		return RoleEmployee, true
	case "manager", "responsabile":
		return RoleManager, true
	case "admin", "amministratore":
		return RoleAdmin, true
	}
	return "", false
}

// Team is one of the company's departments.
type Team string

const (
	TeamSviluppo        Team = "Sviluppo"
	TeamDigital         Team = "Digital"
	TeamAmministrazione Team = "Amministrazione"
	TeamCommerciale     Team = "Commerciale"
)

// AllTeams lists the teams in display order.
var AllTeams = []Team{TeamSviluppo, TeamDigital, TeamAmministrazione, TeamCommerciale}

// ParseTeam matches a team name case-insensitively.
func ParseTeam(s string) (Team, bool) {
	s = strings.TrimSpace(s)
	for _, t := range AllTeams {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return "", false
}

// Employee is a staff member.
type Employee struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Team         Team      `json:"team"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (e Employee) IsAdmin() bool   { return e.Role == RoleAdmin }
func (e Employee) IsManager() bool { return e.Role == RoleManager }

// =============================================================================
// REQUEST
// =============================================================================

// Request is one absence request. RequesterName and Team describe the owner
// and are filled from the employees table on read.
type Request struct {
	ID            int64         `json:"id"`
	EmployeeID    int64         `json:"employeeId"`
	Type          Type          `json:"type"`
	StartDate     calendar.Date `json:"startDate"`
	Duration      int           `json:"duration"`
	Reason        string        `json:"reason,omitempty"`
	Status        Status        `json:"status"`
	ApproverID    *int64        `json:"approverId,omitempty"`
	RequesterName string        `json:"requesterName"`
	Team          Team          `json:"team,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Unit of r.Duration.
func (r Request) Unit() Unit { return r.Type.Unit() }

// Owner is the employee the request belongs to, as far as the request row
// knows it (id, name, team).
func (r Request) Owner() Employee {
	return Employee{ID: r.EmployeeID, Name: r.RequesterName, Team: r.Team}
}

// EndDate is the inclusive last day of the displayed range. Permits are
// measured in hours and never leave their start day.
func (r Request) EndDate(cal calendar.HolidayCalendar) calendar.Date {
	if r.Unit() == UnitHours {
		return r.StartDate
	}
	end, err := calendar.ExpandRange(cal, r.StartDate, r.Duration)
	if err != nil {
		return r.StartDate
	}
	return end
}

// EndDateWithin is EndDate with the walk stopped at limit. reached is false
// when the range runs past limit; the returned date is then limit.
func (r Request) EndDateWithin(cal calendar.HolidayCalendar, limit calendar.Date) (calendar.Date, bool) {
	if r.Unit() == UnitHours {
		return r.StartDate, true
	}
	end, reached, err := calendar.ExpandRangeUntil(cal, r.StartDate, r.Duration, limit)
	if err != nil {
		return r.StartDate, true
	}
	return end, reached
}

// NewRequest is the input to Service.Submit. EmployeeID is zero when the
// actor files for themselves.
type NewRequest struct {
	EmployeeID int64
	Type       Type
	StartDate  calendar.Date
	Duration   int
	Reason     string
}

// Filter selects absence requests. Nil or empty fields do not constrain the
// query, except EmployeeIDs: a non-nil empty slice matches nothing. From and
// To bound the start date, inclusive.
type Filter struct {
	EmployeeID  *int64
	EmployeeIDs []int64
	Type        *Type
	Status      *Status
	Statuses    []Status
	From        *calendar.Date
	To          *calendar.Date
	Limit       int
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// NotificationType crosses the event (request, approved, rejected) with the
// leave family (ferie for day-based types, permesso for hours).
type NotificationType string

const (
	NotifyFerieRequest     NotificationType = "ferie_request"
	NotifyFerieApproved    NotificationType = "ferie_approved"
	NotifyFerieRejected    NotificationType = "ferie_rejected"
	NotifyPermessoRequest  NotificationType = "permesso_request"
	NotifyPermessoApproved NotificationType = "permesso_approved"
	NotifyPermessoRejected NotificationType = "permesso_rejected"
)

// Valid reports whether t is one of the six known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyFerieRequest, NotifyFerieApproved, NotifyFerieRejected,
		NotifyPermessoRequest, NotifyPermessoApproved, NotifyPermessoRejected:
		return true
	}
	return false
}

// Notification is a user-facing message, optionally tied to a request.
type Notification struct {
	ID               int64            `json:"id"`
	RecipientID      int64            `json:"recipientId"`
	Type             NotificationType `json:"type"`
	Title            string           `json:"title"`
	Body             string           `json:"body"`
	RelatedRequestID *int64           `json:"relatedRequestId,omitempty"`
	URL              string           `json:"url,omitempty"`
	Read             bool             `json:"read"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Platform of a push subscription.
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// ParsePlatform defaults to web for unknown values.
func ParsePlatform(s string) Platform {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformAndroid:
		return PlatformAndroid
	case PlatformIOS:
		return PlatformIOS
	}
	return PlatformWeb
}

// PushSubscription is a device endpoint, unique per (employee, endpoint).
type PushSubscription struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employeeId"`
	Endpoint   string    `json:"endpoint"`
	P256dh     string    `json:"p256dh"`
	Auth       string    `json:"auth"`
	Platform   Platform  `json:"platform"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Message is what the service asks the notifier to deliver.
type Message struct {
	UserID           int64
	Type             NotificationType
	Title            string
	Body             string
	RelatedRequestID *int64
	URL              string
}

// Delivery reports the outcome of sending a Message. Success means the
// notification was persisted; PushSent counts delivered pushes.
type Delivery struct {
	Success  bool `json:"success"`
	PushSent int  `json:"pushSent"`
}
