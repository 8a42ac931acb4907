/*
store.go - Interfaces the absence service depends on

PURPOSE:
  The service never talks to the database or the push transport directly.
  It consumes three small interfaces, implemented by store/sqlite and the
  notify package, and faked in tests.

KEY INTERFACES:
  Store:    Absence and employee persistence
  Notifier: Persist a notification and fan it out to the user's devices
  Recorder: Optional metrics hooks

CONDITIONAL WRITES:
  UpdateAbsenceStatus only succeeds while the row still has the expected
  status. Two managers deciding the same request at once cannot both win:
  the loser gets false and the service reports ErrConflict.

NOT FOUND:
  Get* methods return (nil, nil) when the row does not exist.

SEE ALSO:
  - store/sqlite/sqlite.go: Concrete implementation
  - notify/service.go:      Notifier implementation
*/
package absence

import (
	"context"
	"time"
)

// Store persists absence requests and reads employees.
type Store interface {
	FindAbsences(ctx context.Context, f Filter) ([]Request, error)
	GetAbsence(ctx context.Context, id int64) (*Request, error)
	CreateAbsence(ctx context.Context, r Request) (Request, error)

	// UpdateAbsenceStatus moves id from -> to, recording approver and time.
	// Returns false when the row was not in status from.
	UpdateAbsenceStatus(ctx context.Context, id int64, from, to Status, approverID int64, at time.Time) (bool, error)

	// DeleteAbsence removes id when it belongs to ownerID and is still pending.
	DeleteAbsence(ctx context.Context, id, ownerID int64) (bool, error)

	GetEmployee(ctx context.Context, id int64) (*Employee, error)
	ListAdmins(ctx context.Context) ([]Employee, error)
	ListTeam(ctx context.Context, team Team) ([]Employee, error)
}

// Notifier persists a notification and delivers it best-effort.
type Notifier interface {
	Send(ctx context.Context, msg Message) (Delivery, error)
}

// Recorder receives domain counters. Implemented by the metrics package.
type Recorder interface {
	AbsenceSubmitted(t Type, s Status)
	AbsenceDecided(t Type, s Status)
}

type nopRecorder struct{}

func (nopRecorder) AbsenceSubmitted(Type, Status) {}
func (nopRecorder) AbsenceDecided(Type, Status)   {}
