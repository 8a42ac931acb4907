package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/metrics"
	"github.com/artsia/hr-portal/notify"
)

func TestRecorders(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	m.AbsenceSubmitted(absence.TypeFerie, absence.StatusPending)
	m.AbsenceSubmitted(absence.TypeFerie, absence.StatusPending)
	m.AbsenceDecided(absence.TypeFerie, absence.StatusApproved)
	m.NotificationPersisted(absence.NotifyFerieRequest)
	m.PushDelivered(notify.OutcomeGone)

	assert.InDelta(t, 2, testutil.ToFloat64(m.AbsencesSubmitted.WithLabelValues("ferie", "pending")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AbsenceTransitions.WithLabelValues("ferie", "approved")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.NotificationsPersisted.WithLabelValues("ferie_request")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PushDeliveries.WithLabelValues("gone")), 0)
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/absences/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, path := range []string{"/api/absences/1", "/api/absences/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/absences/{id}", "GET", "404")), 0)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "artsia_http_requests_total")
}
