/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, echoed in logs
  2. RealIP:        Client address behind the reverse proxy
  3. requestLogger: zerolog logger in the context (request and trace IDs)
  4. AccessHandler: One access log line per request (hlog)
  5. Recoverer:     Panic recovery (500 instead of crash)
  6. CORS:          Cross-origin requests for the PWA dev server
  7. Metrics:       Prometheus request counters, labelled by route pattern

  NewServerHandler wraps the router in otelhttp so every request gets a span
  before any of the above runs.

ROUTE GROUPS:
  /healthz              Database liveness (public)
  /metrics              Prometheus scrape endpoint (public)
  /api/auth/login       Public
  /api/*                Everything else requires a session token
  /*                    Static files (frontend)

STATIC FILE SERVING:
  In production, serves the built PWA from web/dist/.
  Falls back to index.html for client-side routing.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authentication and request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/artsia/hr-portal/metrics"
)

// RouterConfig carries the knobs of NewRouter that do not belong to Handler.
type RouterConfig struct {
	Logger      zerolog.Logger
	CORSOrigins []string
	Metrics     *metrics.Metrics
	StaticDir   string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", h.Healthz)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(h.Auth))

			r.Route("/auth", func(r chi.Router) {
				r.Post("/logout", h.Logout)
				r.Get("/me", h.Me)
			})

			// Absence routes
			r.Route("/absences", func(r chi.Router) {
				r.Get("/", h.ListAbsences)
				r.Post("/", h.SubmitAbsence)
				r.Patch("/", h.DecideAbsence)
				r.Get("/pending", h.PendingAbsences)
				r.Get("/export", h.ExportAbsences)
				r.Get("/{id}", h.GetAbsence)
				r.Patch("/{id}", h.DecideAbsenceByID)
				r.Delete("/{id}", h.CancelAbsence)
			})

			r.Get("/calendar", h.CalendarView)
			r.Get("/holidays", h.Holidays)
			r.Get("/stats", h.Stats)

			// Employee routes
			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Post("/", h.CreateEmployee)
			})

			// Notification routes
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.ListNotifications)
				r.Post("/", h.SendNotification)
				r.Patch("/", h.MarkNotificationsRead)
				r.Get("/vapid-key", h.VAPIDKey)
				r.Post("/subscribe", h.Subscribe)
				r.Delete("/subscribe", h.Unsubscribe)
				r.Delete("/{id}", h.DeleteNotification)
			})
		})
	})

	mountStatic(r, cfg.StaticDir)
	return r
}

// NewServerHandler wraps the router with OpenTelemetry request spans.
func NewServerHandler(router http.Handler) http.Handler {
	return otelhttp.NewHandler(router, "artsia-hr")
}

// mountStatic serves the built PWA. First try dir (or ./web/dist), then the
// directory next to the executable.
func mountStatic(r chi.Router, dir string) {
	staticDir := dir
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err != nil {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<!DOCTYPE html>
<html lang="it">
<head><title>Artsia HR</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Artsia HR API</h1>
<p>Il frontend non è stato compilato. Eseguire <code>cd web && npm install && npm run build</code></p>
<ul>
<li><a href="/healthz">/healthz</a></li>
<li><code>POST /api/auth/login</code></li>
</ul>
</body>
</html>`))
		})
		return
	}

	fileServer := http.FileServer(http.Dir(staticDir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		fullPath := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			// SPA routing: serve index.html
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
