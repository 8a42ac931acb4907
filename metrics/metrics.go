package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/notify"
)

// Metrics holds the Prometheus collectors of the portal. It implements
// absence.Recorder and notify.Recorder.
type Metrics struct {
	HTTPRequests           *prometheus.CounterVec   // requests by route, method and status
	HTTPDuration           *prometheus.HistogramVec // latency by route and method
	AbsencesSubmitted      *prometheus.CounterVec   // submissions by type and initial status
	AbsenceTransitions     *prometheus.CounterVec   // decisions by type and resulting status
	NotificationsPersisted *prometheus.CounterVec   // stored notifications by type
	PushDeliveries         *prometheus.CounterVec   // push attempts by outcome: sent, gone, failed

	gatherer prometheus.Gatherer
}

var (
	_ absence.Recorder = (*Metrics)(nil)
	_ notify.Recorder  = (*Metrics)(nil)
)

// NewMetrics registers the collectors with reg. When reg is also a Gatherer
// (a *prometheus.Registry), Handler serves it; otherwise the default
// gatherer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "artsia_http_requests_total",
			Help: "HTTP requests handled.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "artsia_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		AbsencesSubmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "artsia_absences_submitted_total",
			Help: "Absence requests submitted.",
		}, []string{"type", "status"}), // status: pending, approved (auto)
		AbsenceTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "artsia_absence_transitions_total",
			Help: "Absence requests approved or rejected.",
		}, []string{"type", "status"}),
		NotificationsPersisted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "artsia_notifications_total",
			Help: "Notifications stored.",
		}, []string{"type"}),
		PushDeliveries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "artsia_push_deliveries_total",
			Help: "Web push delivery attempts.",
		}, []string{"outcome"}),
		gatherer: prometheus.DefaultGatherer,
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func (m *Metrics) AbsenceSubmitted(t absence.Type, s absence.Status) {
	m.AbsencesSubmitted.WithLabelValues(string(t), string(s)).Inc()
}

func (m *Metrics) AbsenceDecided(t absence.Type, s absence.Status) {
	m.AbsenceTransitions.WithLabelValues(string(t), string(s)).Inc()
}

func (m *Metrics) NotificationPersisted(t absence.NotificationType) {
	m.NotificationsPersisted.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) PushDelivered(outcome string) {
	m.PushDeliveries.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency, labelled by the chi route
// pattern so that path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
