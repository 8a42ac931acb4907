package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/auth"
	"github.com/artsia/hr-portal/logging"
)

type ctxKey int

const actorKey ctxKey = iota

// Authenticator resolves a token into the acting employee.
type Authenticator interface {
	Verify(ctx context.Context, token string) (absence.Employee, error)
}

// RequireAuth rejects requests without a valid token and stores the
// employee in the request context.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				writeError(w, r, auth.ErrUnauthenticated)
				return
			}
			emp, err := a.Verify(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}

			l := hlog.FromRequest(r).With().Int64("employee_id", emp.ID).Logger()
			ctx := context.WithValue(l.WithContext(r.Context()), actorKey, emp)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// actorFrom returns the employee stored by RequireAuth.
func actorFrom(ctx context.Context) absence.Employee {
	emp, _ := ctx.Value(actorKey).(absence.Employee)
	return emp
}

// requestLogger attaches a request-scoped zerolog logger carrying chi's
// request ID and, when tracing is active, the trace and span IDs.
func requestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			ctx := logging.EnrichContextWithLogger(l.WithContext(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
