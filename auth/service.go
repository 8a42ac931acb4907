/*
Package auth issues and verifies session tokens.

PURPOSE:
  Every API call except login carries an opaque token, either as
  "Authorization: Bearer <token>" or in the artsia_token cookie set by the
  PWA. Verify turns the token into the acting absence.Employee; the HTTP
  layer stores it in the request context.

TOKENS:
  Random UUIDv4 strings stored in the sessions table with an expiry. Expired
  sessions are rejected on use and removed by the maintenance scheduler.

PASSWORDS:
  argon2id, encoded with their parameters (see password.go). A hash made
  with other parameters is replaced on the next successful login.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artsia/hr-portal/absence"
)

var (
	// ErrUnauthenticated is returned for missing, unknown or expired tokens.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// CookieName is the cookie the PWA stores the token in.
const CookieName = "artsia_token"

// DefaultSessionTTL is used when the service is built with a zero TTL.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is an issued token.
type Session struct {
	Token      string    `json:"token"`
	EmployeeID int64     `json:"employeeId"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is the persistence auth needs.
type Store interface {
	GetEmployee(ctx context.Context, id int64) (*absence.Employee, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*absence.Employee, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Service implements login, token verification and logout.
type Service struct {
	store  Store
	ttl    time.Duration
	params Argon2idParams
	now    func() time.Time
}

func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		store:  store,
		ttl:    ttl,
		params: DefaultArgon2idParams,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithParams overrides the hashing parameters used by HashPassword.
func (s *Service) WithParams(p Argon2idParams) *Service {
	s.params = p
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HashPassword hashes with the service parameters.
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.params)
}

// Login checks credentials and issues a new session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, absence.Employee, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, absence.Employee{}, ErrInvalidCredentials
	}

	emp, err := s.store.GetEmployeeByEmail(ctx, email)
	if err != nil {
		return Session{}, absence.Employee{}, fmt.Errorf("failed to load employee: %w", err)
	}
	if emp == nil || emp.PasswordHash == "" {
		return Session{}, absence.Employee{}, ErrInvalidCredentials
	}
	if err := CheckPassword(emp.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return Session{}, absence.Employee{}, ErrInvalidCredentials
		}
		return Session{}, absence.Employee{}, fmt.Errorf("failed to check password: %w", err)
	}
	s.upgradeHash(ctx, emp, password)

	now := s.now()
	sess := Session{
		Token:      uuid.NewString(),
		EmployeeID: emp.ID,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return Session{}, absence.Employee{}, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, *emp, nil
}

// upgradeHash re-hashes the password of emp with the current parameters when
// the stored hash was made with different ones. Failures only get logged; the
// old hash keeps working.
func (s *Service) upgradeHash(ctx context.Context, emp *absence.Employee, password string) {
	if !NeedsRehash(emp.PasswordHash, s.params) {
		return
	}
	hash, err := s.HashPassword(password)
	if err == nil {
		err = s.store.UpdatePassword(ctx, emp.ID, hash)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("employee_id", emp.ID).Msg("password hash upgrade failed")
		return
	}
	emp.PasswordHash = hash
}

// Verify resolves a token into the employee it belongs to.
func (s *Service) Verify(ctx context.Context, token string) (absence.Employee, error) {
	if _, err := uuid.Parse(token); err != nil {
		return absence.Employee{}, ErrUnauthenticated
	}

	sess, err := s.store.GetSession(ctx, token)
	if err != nil {
		return absence.Employee{}, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil || !sess.ExpiresAt.After(s.now()) {
		return absence.Employee{}, ErrUnauthenticated
	}

	emp, err := s.store.GetEmployee(ctx, sess.EmployeeID)
	if err != nil {
		return absence.Employee{}, fmt.Errorf("failed to load employee: %w", err)
	}
	if emp == nil {
		return absence.Employee{}, ErrUnauthenticated
	}
	return *emp, nil
}

// Logout revokes the token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// TokenFromRequest extracts the bearer token or, failing that, the cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
