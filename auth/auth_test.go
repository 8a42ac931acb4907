package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/auth"
	"github.com/artsia/hr-portal/store/sqlite"
)

// Cheap parameters keep the suite fast.
var testParams = auth.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func setup(t *testing.T) (*auth.Service, *sqlite.Store, *clock, absence.Employee) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := auth.NewService(store, 24*time.Hour).WithParams(testParams).WithClock(clk.Now)

	hash, err := svc.HashPassword("Segreta!2025")
	require.NoError(t, err)
	emp, err := store.CreateEmployee(context.Background(), absence.Employee{
		Name: "Giulia Bianchi", Email: "giulia@artsia.it", Team: absence.TeamSviluppo,
		Role: absence.RoleManager, PasswordHash: hash,
	})
	require.NoError(t, err)
	return svc, store, clk, emp
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := auth.HashPassword("correct horse", testParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	other, err := auth.HashPassword("correct horse", testParams)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salt is random")

	assert.NoError(t, auth.CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, auth.CheckPassword(hash, "battery staple"), auth.ErrInvalidCredentials)
}

func TestPassword_MalformedHash(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    error
	}{
		{"empty", "", auth.ErrInvalidPasswordHash},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv", auth.ErrInvalidPasswordHash},
		{"wrong version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA", auth.ErrIncompatiblePasswordVersion},
		{"bad params", "$argon2id$v=19$m=x$c2FsdA$aGFzaA", auth.ErrInvalidPasswordHash},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$***$aGFzaA", auth.ErrInvalidPasswordHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, auth.CheckPassword(tt.encoded, "x"), tt.want)
		})
	}
}

func TestPassword_NeedsRehash(t *testing.T) {
	hash, err := auth.HashPassword("correct horse", testParams)
	require.NoError(t, err)

	stronger := testParams
	stronger.Iterations = 2

	assert.False(t, auth.NeedsRehash(hash, testParams))
	assert.True(t, auth.NeedsRehash(hash, stronger))
	assert.True(t, auth.NeedsRehash("$2a$10$abcdefghijklmnopqrstuv", testParams), "foreign formats are replaced")
}

func TestLogin_UpgradesOutdatedHash(t *testing.T) {
	// GIVEN: an employee whose hash predates the current parameters
	svc, store, _, emp := setup(t)
	ctx := context.Background()
	stronger := testParams
	stronger.Iterations = 2
	svc.WithParams(stronger)

	// WHEN
	_, got, err := svc.Login(ctx, emp.Email, "Segreta!2025")

	// THEN: the stored hash now uses the new parameters and still verifies
	require.NoError(t, err)
	stored, err := store.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.NotEqual(t, emp.PasswordHash, stored.PasswordHash)
	assert.Equal(t, stored.PasswordHash, got.PasswordHash)
	assert.Contains(t, stored.PasswordHash, "$m=1024,t=2,p=1$")
	assert.False(t, auth.NeedsRehash(stored.PasswordHash, stronger))
	assert.NoError(t, auth.CheckPassword(stored.PasswordHash, "Segreta!2025"))
}

func TestLogin_Success(t *testing.T) {
	svc, _, clk, emp := setup(t)

	// WHEN: logging in with a differently cased email
	sess, got, err := svc.Login(context.Background(), "  Giulia@Artsia.it", "Segreta!2025")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, emp.ID, got.ID)
	assert.Equal(t, emp.ID, sess.EmployeeID)
	assert.Equal(t, clk.now.Add(24*time.Hour), sess.ExpiresAt)
	_, err = uuid.Parse(sess.Token)
	assert.NoError(t, err)
}

func TestLogin_Failures(t *testing.T) {
	svc, store, _, _ := setup(t)
	ctx := context.Background()

	_, err := store.CreateEmployee(ctx, absence.Employee{
		Name: "Senza Password", Email: "nopw@artsia.it", Team: absence.TeamDigital, Role: absence.RoleEmployee,
	})
	require.NoError(t, err)

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "giulia@artsia.it", "sbagliata"},
		{"unknown email", "nessuno@artsia.it", "Segreta!2025"},
		{"empty password", "giulia@artsia.it", ""},
		{"empty email", "", "Segreta!2025"},
		{"no password set", "nopw@artsia.it", "qualcosa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}

func TestVerify(t *testing.T) {
	svc, _, clk, emp := setup(t)
	ctx := context.Background()

	sess, _, err := svc.Login(ctx, "giulia@artsia.it", "Segreta!2025")
	require.NoError(t, err)

	// GIVEN: a fresh token
	got, err := svc.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, got.ID)
	assert.Equal(t, absence.RoleManager, got.Role)

	// THEN: malformed and unknown tokens are rejected
	_, err = svc.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	_, err = svc.Verify(ctx, uuid.NewString())
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	// WHEN: the session expires
	clk.now = sess.ExpiresAt
	_, err = svc.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestLogout(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	sess, _, err := svc.Login(ctx, "giulia@artsia.it", "Segreta!2025")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.Token))
	_, err = svc.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	assert.NoError(t, svc.Logout(ctx, ""), "logging out twice is harmless")
	assert.NoError(t, svc.Logout(ctx, sess.Token))
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/assenze", nil)
	assert.Equal(t, "", auth.TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", auth.TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", auth.TokenFromRequest(r), "header wins over cookie")

	r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	assert.Equal(t, "from-cookie", auth.TokenFromRequest(r))
}
