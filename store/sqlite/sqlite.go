/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the portal using SQLite:
  absence.Store (requests, employees), notify.Store (notifications, push
  subscriptions) and auth.Store (sessions).

INTERFACES IMPLEMENTED:
  absence.Store: Absence requests and employee lookups
  notify.Store:  Notifications and push subscriptions
  auth.Store:    Sessions and credential lookups

CONDITIONAL WRITES:
  Status changes and cancellations carry the expected state in the WHERE
  clause (status = 'pending'). The affected row count tells the caller
  whether it won; there is no read-modify-write window.

KEY TABLES:
  employees:          Staff, unique lower-cased email
  absences:           Requests; start_date stored as YYYY-MM-DD
  notifications:      In-app messages with read flag
  push_subscriptions: Devices, unique per (employee_id, endpoint)
  sessions:           Opaque tokens with expiry

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. An in-memory database is limited to
  one connection, since every new connection would open an empty database.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/artsia.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - absence/store.go: Interface definitions
  - store/memory:     In-memory implementation for unit tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/auth"
	"github.com/artsia/hr-portal/calendar"
)

// ErrDuplicateEmail is returned when an employee email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ absence.Store = (*Store)(nil)
	_ auth.Store    = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		team TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'dipendente',
		password_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_team ON employees(team);
	CREATE INDEX IF NOT EXISTS idx_employees_role ON employees(role);

	-- Absence requests
	CREATE TABLE IF NOT EXISTS absences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		duration INTEGER NOT NULL CHECK (duration > 0),
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		approver_id INTEGER REFERENCES employees(id) ON DELETE SET NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absences_employee
		ON absences(employee_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_absences_status
		ON absences(status);
	CREATE INDEX IF NOT EXISTS idx_absences_start_date
		ON absences(start_date);

	-- Notifications
	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipient_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		related_request_id INTEGER,
		url TEXT NOT NULL DEFAULT '',
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_id, read, created_at DESC);

	-- Push subscriptions
	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		endpoint TEXT NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT 'web',
		last_used_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, endpoint)
	);

	CREATE INDEX IF NOT EXISTS idx_push_subscriptions_last_used
		ON push_subscriptions(last_used_at);

	-- Sessions
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		employee_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, email, team, role, password_hash, created_at`

// CreateEmployee inserts e and returns it with its ID. The email is stored
// lower-cased; a duplicate yields ErrDuplicateEmail.
func (s *Store) CreateEmployee(ctx context.Context, e absence.Employee) (absence.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (name, email, team, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Name, e.Email, e.Team, e.Role, e.PasswordHash, formatTime(e.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return absence.Employee{}, ErrDuplicateEmail
		}
		return absence.Employee{}, fmt.Errorf("failed to create employee: %w", err)
	}

	e.ID, err = res.LastInsertId()
	return e, err
}

// UpdatePassword replaces the stored hash of an employee.
func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "UPDATE employees SET password_hash = ? WHERE id = ?", hash, id)
	return err
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id int64) (*absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	return scanEmployeeRow(row)
}

// GetEmployeeByEmail retrieves an employee by email, case-insensitively.
func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	)
	return scanEmployeeRow(row)
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]absence.Employee, error) {
	return s.queryEmployees(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY name")
}

// ListAdmins returns every admin.
func (s *Store) ListAdmins(ctx context.Context) ([]absence.Employee, error) {
	return s.queryEmployees(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE role = ? ORDER BY id", absence.RoleAdmin)
}

// ListTeam returns the members of team.
func (s *Store) ListTeam(ctx context.Context, team absence.Team) ([]absence.Employee, error) {
	return s.queryEmployees(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE team = ? ORDER BY name", team)
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	employees := []absence.Employee{}
	for rows.Next() {
		var e absence.Employee
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Team, &e.Role, &e.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func scanEmployeeRow(row *sql.Row) (*absence.Employee, error) {
	var e absence.Employee
	var createdAt string
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Team, &e.Role, &e.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

// =============================================================================
// ABSENCES (absence.Store interface)
// =============================================================================

const absenceSelect = `
	SELECT a.id, a.employee_id, a.type, a.start_date, a.duration, a.reason, a.status,
	       a.approver_id, e.name, e.team, a.created_at, a.updated_at
	FROM absences a
	JOIN employees e ON e.id = a.employee_id
`

// CreateAbsence inserts r and returns it with ID and owner details.
func (s *Store) CreateAbsence(ctx context.Context, r absence.Request) (absence.Request, error) {
	s.mu.Lock()

	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO absences (employee_id, type, start_date, duration, reason, status,
			approver_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.EmployeeID, r.Type, r.StartDate.String(), r.Duration, r.Reason, r.Status,
		r.ApproverID, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		s.mu.Unlock()
		return absence.Request{}, fmt.Errorf("failed to insert absence: %w", err)
	}
	id, err := res.LastInsertId()
	s.mu.Unlock()
	if err != nil {
		return absence.Request{}, err
	}

	created, err := s.GetAbsence(ctx, id)
	if err != nil {
		return absence.Request{}, err
	}
	if created == nil {
		return absence.Request{}, fmt.Errorf("absence %d vanished after insert", id)
	}
	return *created, nil
}

// GetAbsence retrieves a request by ID.
func (s *Store) GetAbsence(ctx context.Context, id int64) (*absence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, absenceSelect+" WHERE a.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query absence: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanAbsence(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FindAbsences returns the requests matching f, latest start date first.
func (s *Store) FindAbsences(ctx context.Context, f absence.Filter) ([]absence.Request, error) {
	if f.EmployeeIDs != nil && len(f.EmployeeIDs) == 0 {
		return []absence.Request{}, nil
	}

	var (
		where []string
		args  []any
	)
	if f.EmployeeID != nil {
		where = append(where, "a.employee_id = ?")
		args = append(args, *f.EmployeeID)
	}
	if len(f.EmployeeIDs) > 0 {
		where = append(where, "a.employee_id IN ("+placeholders(len(f.EmployeeIDs))+")")
		for _, id := range f.EmployeeIDs {
			args = append(args, id)
		}
	}
	if f.Type != nil {
		where = append(where, "a.type = ?")
		args = append(args, *f.Type)
	}
	if f.Status != nil {
		where = append(where, "a.status = ?")
		args = append(args, *f.Status)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "a.status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.From != nil {
		where = append(where, "a.start_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "a.start_date <= ?")
		args = append(args, f.To.String())
	}

	query := absenceSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.start_date DESC, a.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	requests := []absence.Request{}
	for rows.Next() {
		r, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// UpdateAbsenceStatus moves a request from -> to only if it is still in from.
func (s *Store) UpdateAbsenceStatus(ctx context.Context, id int64, from, to absence.Status, approverID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE absences
		SET status = ?, approver_id = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, to, approverID, formatTime(at), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update absence: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteAbsence removes a pending request owned by ownerID.
func (s *Store) DeleteAbsence(ctx context.Context, id, ownerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM absences WHERE id = ? AND employee_id = ? AND status = ?",
		id, ownerID, absence.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete absence: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func scanAbsence(rows *sql.Rows) (absence.Request, error) {
	var (
		r          absence.Request
		startDate  string
		approverID sql.NullInt64
		createdAt  string
		updatedAt  string
	)
	err := rows.Scan(
		&r.ID, &r.EmployeeID, &r.Type, &startDate, &r.Duration, &r.Reason, &r.Status,
		&approverID, &r.RequesterName, &r.Team, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan absence: %w", err)
	}

	r.StartDate, err = calendar.ParseDate(startDate)
	if err != nil {
		return r, fmt.Errorf("absence %d: %w", r.ID, err)
	}
	if approverID.Valid {
		id := approverID.Int64
		r.ApproverID = &id
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// CreateNotification inserts n and returns it with its ID.
func (s *Store) CreateNotification(ctx context.Context, n absence.Notification) (absence.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (recipient_id, type, title, body, related_request_id, url, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.RecipientID, n.Type, n.Title, n.Body, n.RelatedRequestID, n.URL, n.Read, formatTime(n.CreatedAt))
	if err != nil {
		return absence.Notification{}, fmt.Errorf("failed to insert notification: %w", err)
	}
	n.ID, err = res.LastInsertId()
	return n, err
}

// ListNotifications returns the notifications of userID, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]absence.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, recipient_id, type, title, body, related_request_id, url, read, created_at
		FROM notifications
		WHERE recipient_id = ?
	`
	args := []any{userID}
	if unreadOnly {
		query += " AND read = FALSE"
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	out := []absence.Notification{}
	for rows.Next() {
		var (
			n         absence.Notification
			related   sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Body,
			&related, &n.URL, &n.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if related.Valid {
			id := related.Int64
			n.RelatedRequestID = &id
		}
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns how many unread notifications userID has.
func (s *Store) CountUnread(ctx context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND read = FALSE", userID,
	).Scan(&n)
	return n, err
}

// MarkRead flags a notification of userID as read. Marking an already read
// notification succeeds; the result is false only when no such notification
// belongs to userID.
func (s *Store) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE id = ? AND recipient_id = ?", id, userID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = ? AND recipient_id = ?", id, userID)
	return err == nil, err
}

// MarkAllRead flags every notification of userID as read.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE recipient_id = ? AND read = FALSE", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNotification removes a notification of userID.
func (s *Store) DeleteNotification(ctx context.Context, userID, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND recipient_id = ?", id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// =============================================================================
// PUSH SUBSCRIPTIONS
// =============================================================================

// UpsertSubscription stores a device keyed by (employee_id, endpoint).
// Re-subscribing refreshes the keys, platform and last_used_at.
func (s *Store) UpsertSubscription(ctx context.Context, sub absence.PushSubscription) (absence.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if sub.LastUsedAt.IsZero() {
		sub.LastUsedAt = now
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.Platform == "" {
		sub.Platform = absence.PlatformWeb
	}

	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO push_subscriptions (employee_id, endpoint, p256dh, auth, platform, last_used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			platform = excluded.platform,
			last_used_at = excluded.last_used_at
		RETURNING id, created_at
	`, sub.EmployeeID, sub.Endpoint, sub.P256dh, sub.Auth, sub.Platform,
		formatTime(sub.LastUsedAt), formatTime(sub.CreatedAt),
	).Scan(&sub.ID, &createdAt)
	if err != nil {
		return absence.PushSubscription{}, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	sub.CreatedAt = parseTime(createdAt)
	return sub, nil
}

// ListSubscriptions returns the devices of userID.
func (s *Store) ListSubscriptions(ctx context.Context, userID int64) ([]absence.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, endpoint, p256dh, auth, platform, last_used_at, created_at
		FROM push_subscriptions
		WHERE employee_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	out := []absence.PushSubscription{}
	for rows.Next() {
		var sub absence.PushSubscription
		var lastUsed, createdAt string
		if err := rows.Scan(&sub.ID, &sub.EmployeeID, &sub.Endpoint, &sub.P256dh, &sub.Auth,
			&sub.Platform, &lastUsed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		sub.LastUsedAt = parseTime(lastUsed)
		sub.CreatedAt = parseTime(createdAt)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// TouchSubscription records a successful delivery.
func (s *Store) TouchSubscription(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE push_subscriptions SET last_used_at = ? WHERE id = ?", formatTime(at), id)
	return err
}

// DeleteSubscription removes a subscription by ID.
func (s *Store) DeleteSubscription(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE id = ?", id)
	return err
}

// DeleteSubscriptionByEndpoint removes the device of userID with endpoint.
func (s *Store) DeleteSubscriptionByEndpoint(ctx context.Context, userID int64, endpoint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE employee_id = ? AND endpoint = ?", userID, endpoint)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteStaleSubscriptions removes subscriptions not used since before.
func (s *Store) DeleteStaleSubscriptions(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE last_used_at < ?", formatTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =============================================================================
// SESSIONS (auth.Store interface)
// =============================================================================

// CreateSession stores a new token.
func (s *Store) CreateSession(ctx context.Context, sess auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, employee_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, sess.Token, sess.EmployeeID, formatTime(sess.ExpiresAt), formatTime(sess.CreatedAt))
	return err
}

// GetSession retrieves a session by token.
func (s *Store) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sess auth.Session
	var expiresAt, createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT token, employee_id, expires_at, created_at FROM sessions WHERE token = ?", token,
	).Scan(&sess.Token, &sess.EmployeeID, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = parseTime(expiresAt)
	sess.CreatedAt = parseTime(createdAt)
	return &sess, nil
}

// DeleteSession revokes a token.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteExpiredSessions removes sessions that expired before now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Helper functions

// Timestamps are stored as fixed-width UTC strings so that lexical order
// matches time order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
