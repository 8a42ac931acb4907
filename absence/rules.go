package absence

import (
	"fmt"
	"strings"
)

// =============================================================================
// VISIBILITY - Who may see a request on the calendar
// =============================================================================

// CanView decides calendar visibility of r for viewer. First match wins:
//
//	1. admin viewer                      -> visible
//	2. smartworking                      -> visible to everyone
//	3. ferie, malattia, permesso         -> owner, or manager of the owner's team
//	4. anything else                     -> visible
func CanView(viewer, owner Employee, r Request) bool {
	switch {
	case viewer.IsAdmin():
		return true
	case r.Type == TypeSmartworking:
		return true
	case r.Type == TypeFerie, r.Type == TypeMalattia, r.Type == TypePermesso:
		return viewer.ID == owner.ID || (viewer.IsManager() && viewer.Team == owner.Team)
	default:
		return true
	}
}

// OnCalendar reports whether r is rendered on the calendar at all. Rejected
// requests only show up in the owner's list.
func OnCalendar(r Request) bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// CanList decides whether r appears in viewer's request list. Admins see
// everything and managers see their team. Regular employees see their own
// requests plus the approved remote work of their team.
func CanList(viewer, owner Employee, r Request) bool {
	switch {
	case viewer.IsAdmin():
		return true
	case viewer.ID == owner.ID:
		return true
	case viewer.IsManager():
		return viewer.Team == owner.Team
	default:
		return r.Type == TypeSmartworking && r.Status == StatusApproved && viewer.Team == owner.Team
	}
}

// =============================================================================
// APPROVAL AUTHORITY
// =============================================================================

// MayDecide reports whether actor holds a role that can decide any request
// at all. Checked before the request is loaded.
func MayDecide(actor Employee) bool {
	return actor.Role == RoleAdmin || actor.Role == RoleManager
}

// CanApprove decides whether actor may approve or reject r. Only pending
// requests can be decided. Admins decide anything; managers decide remote work
// of their own team; regular employees never.
func CanApprove(actor, owner Employee, r Request) bool {
	if r.Status != StatusPending {
		return false
	}
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleManager:
		return r.Type == TypeSmartworking && actor.Team == owner.Team
	default:
		return false
	}
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// InitialStatus is the status a new request of type t is created in.
func InitialStatus(t Type) Status {
	switch t {
	case TypeSmartworking, TypeFestivita:
		return StatusApproved
	default:
		return StatusPending
	}
}

// NotifiesAdmins reports whether creating a request of type t sends a
// notification to every admin. True exactly when the request needs approval.
func NotifiesAdmins(t Type) bool {
	return InitialStatus(t) == StatusPending
}

// Transition validates a status change. Nothing leads back to pending and
// decided requests are final.
func Transition(from, to Status) error {
	if from == StatusPending && (to == StatusApproved || to == StatusRejected) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Validate checks a NewRequest before anything is persisted.
func Validate(in NewRequest) error {
	ve := &ValidationError{}
	if !in.Type.Valid() {
		ve.Add("type", fmt.Sprintf("tipo non riconosciuto: %q", in.Type))
	}
	if in.StartDate.IsZero() {
		ve.Add("startDate", "data di inizio obbligatoria")
	}
	if in.Duration <= 0 {
		ve.Add("duration", "la durata deve essere maggiore di zero")
	}
	return ve.OrNil()
}

// =============================================================================
// NOTIFICATION CONTENT
// =============================================================================

// Event is what happened to a request.
type Event string

const (
	EventRequested Event = "request"
	EventApproved  Event = "approved"
	EventRejected  Event = "rejected"
)

// EventFor maps a decision status to its event.
func EventFor(s Status) Event {
	if s == StatusApproved {
		return EventApproved
	}
	return EventRejected
}

// NotificationTypeFor picks the notification type: permits use the
// permesso_* family, every other type ferie_*.
func NotificationTypeFor(t Type, e Event) NotificationType {
	family := "ferie"
	if t == TypePermesso {
		family = "permesso"
	}
	return NotificationType(family + "_" + string(e))
}

// RequestMessage builds the admin notification for a newly pending request.
func RequestMessage(r Request, adminID int64) Message {
	id := r.ID
	return Message{
		UserID: adminID,
		Type:   NotificationTypeFor(r.Type, EventRequested),
		Title:  "Nuova richiesta: " + r.Type.Label(),
		Body: fmt.Sprintf("%s ha richiesto %d %s di %s dal %s",
			r.RequesterName, r.Duration, r.Unit().Italian(r.Duration),
			strings.ToLower(r.Type.Label()), italianDate(r)),
		RelatedRequestID: &id,
		URL:              "/approvazioni",
	}
}

// DecisionMessage builds the owner notification once r is decided.
func DecisionMessage(r Request) Message {
	id := r.ID
	verb, title := "approvata", "Richiesta approvata"
	if r.Status == StatusRejected {
		verb, title = "rifiutata", "Richiesta rifiutata"
	}
	return Message{
		UserID: r.EmployeeID,
		Type:   NotificationTypeFor(r.Type, EventFor(r.Status)),
		Title:  title,
		Body: fmt.Sprintf("La tua richiesta di %s dal %s (%d %s) è stata %s",
			strings.ToLower(r.Type.Label()), italianDate(r),
			r.Duration, r.Unit().Italian(r.Duration), verb),
		RelatedRequestID: &id,
		URL:              "/assenze",
	}
}

func italianDate(r Request) string {
	if r.StartDate.IsZero() {
		return ""
	}
	return r.StartDate.Time().Format("02/01/2006")
}
