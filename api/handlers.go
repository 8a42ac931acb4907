/*
handlers.go - HTTP API handlers for the Artsia HR portal

PURPOSE:
  Exposes absence requests, the team calendar, notifications and employee
  management over a JSON API. Handlers parse and decode, call the domain
  services and encode the result in the response envelope.

ENDPOINTS:
  Auth:
    POST   /api/auth/login             Issue a session token (and cookie)
    POST   /api/auth/logout            Revoke the current token
    GET    /api/auth/me                Current employee

  Absences:
    GET    /api/absences               Role-scoped list (status, type, employeeId, from, to, limit)
    POST   /api/absences               Submit (admins may pass employeeId)
    PATCH  /api/absences               Approve/reject, id in body
    GET    /api/absences/pending       Approval queue of the caller
    GET    /api/absences/export        Admin xlsx export
    GET    /api/absences/{id}          Single request
    PATCH  /api/absences/{id}          Approve/reject
    DELETE /api/absences/{id}          Owner cancels a pending request

  Calendar:
    GET    /api/calendar               Visible entries, day markers and holidays
    GET    /api/holidays               Public holidays of a year
    GET    /api/stats                  Approved totals by type for the caller

  Employees:
    GET    /api/employees              Admin: all; others: own team
    POST   /api/employees              Admin creates an employee

  Notifications:
    GET    /api/notifications          Own notifications (unread=true, limit)
    POST   /api/notifications          Admin sends a notification
    PATCH  /api/notifications          Mark one ({id}) or all ({all:true}) read
    DELETE /api/notifications/{id}     Delete own notification
    GET    /api/notifications/vapid-key   VAPID public key for the PWA
    POST   /api/notifications/subscribe   Register a push subscription
    DELETE /api/notifications/subscribe   Remove a push subscription

ERROR HANDLING:
  Handlers return errors through writeError, which maps them once:
  - 400: Validation errors, malformed body or query
  - 401: Missing/invalid token, wrong credentials
  - 403: Insufficient role or team scope
  - 404: Absent or not owned
  - 409: Already decided, concurrent decision, duplicate email
  - 500: Internal errors (logged)

SEE ALSO:
  - dto.go:        Request/response data structures
  - respond.go:    Envelope and error mapping
  - server.go:     Router setup and middleware
  - absence/service.go: Domain operations
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/auth"
	"github.com/artsia/hr-portal/calendar"
	"github.com/artsia/hr-portal/notify"
	"github.com/artsia/hr-portal/report"
	"github.com/artsia/hr-portal/store/sqlite"
)

// maxCalendarDays bounds the calendar window.
const maxCalendarDays = 370

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Absences *absence.Service
	Auth     *auth.Service
	Notifier *notify.Service
	Calendar *calendar.Italian

	// VAPIDPublicKey is handed to the PWA; empty disables push subscription.
	VAPIDPublicKey string
	// SecureCookies marks the session cookie Secure (HTTPS deployments).
	SecureCookies bool

	now func() time.Time
}

// NewHandler creates a handler. The absence service must share cal.
func NewHandler(store *sqlite.Store, absences *absence.Service, authSvc *auth.Service, notifier *notify.Service, cal *calendar.Italian) *Handler {
	return &Handler{
		Store:    store,
		Absences: absences,
		Auth:     authSvc,
		Notifier: notifier,
		Calendar: cal,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// ABSENCE HANDLERS
// =============================================================================

// ListAbsences returns the requests visible to the caller.
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.Absences.List(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toAbsenceDTOs(rows, h.Calendar))
}

// GetAbsence returns one request.
func (h *Handler) GetAbsence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.Absences.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toAbsenceDTO(req, h.Calendar))
}

// SubmitAbsence creates a request for the caller, or for employeeId when
// the caller is an admin.
func (h *Handler) SubmitAbsence(w http.ResponseWriter, r *http.Request) {
	var body SubmitAbsenceRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := body.ToNewRequest()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.Absences.Submit(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toAbsenceDTO(created, h.Calendar))
}

// DecideAbsence approves or rejects the request named in the body.
func (h *Handler) DecideAbsence(w http.ResponseWriter, r *http.Request) {
	var body DecideRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if !body.ID.Set || body.ID.Value <= 0 {
		writeError(w, r, errBadRequest("id mancante"))
		return
	}
	h.decide(w, r, body.ID.Value, body.Status)
}

// DecideAbsenceByID approves or rejects /api/absences/{id}.
func (h *Handler) DecideAbsenceByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body DecideRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	h.decide(w, r, id, body.Status)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, id int64, rawStatus string) {
	status, ok := absence.ParseStatus(rawStatus)
	if !ok {
		status = absence.Status(rawStatus)
	}
	updated, err := h.Absences.Decide(r.Context(), actorFrom(r.Context()), id, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toAbsenceDTO(updated, h.Calendar))
}

// CancelAbsence deletes the caller's pending request.
func (h *Handler) CancelAbsence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Absences.Cancel(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"id": id})
}

// PendingAbsences returns the caller's approval queue.
func (h *Handler) PendingAbsences(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Absences.Pending(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toAbsenceDTOs(rows, h.Calendar))
}

// ExportAbsences streams an xlsx workbook of the filtered requests.
func (h *Handler) ExportAbsences(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.Absences.Export(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	buf, err := report.GenerateExcelReport(rows)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("assenze-%s.xlsx", h.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// CalendarView returns the visible entries overlapping the window, one
// marker per day and the holidays inside the window. The window is either
// from/to or year/month; it defaults to the current month.
func (h *Handler) CalendarView(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.calendarWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.Absences.Calendar(r.Context(), actorFrom(r.Context()), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}

	byDay := make(map[calendar.Date][]int64)
	for _, e := range entries {
		for _, d := range e.Days {
			byDay[d] = append(byDay[d], e.ID)
		}
	}

	days := make([]CalendarDayDTO, 0, from.DaysUntil(to)+1)
	for _, d := range calendar.Days(from, to) {
		ids := byDay[d]
		if ids == nil {
			ids = []int64{}
		}
		days = append(days, CalendarDayDTO{
			Date:        d,
			HolidayName: h.Calendar.HolidayName(d),
			DayKind:     calendar.Classify(h.Calendar, d),
			AbsenceIDs:  ids,
		})
	}

	holidays := h.Calendar.Between(from, to)
	if holidays == nil {
		holidays = []calendar.Holiday{}
	}
	writeData(w, http.StatusOK, CalendarResponse{
		From:     from,
		To:       to,
		Entries:  entries,
		Days:     days,
		Holidays: holidays,
	})
}

func (h *Handler) calendarWindow(r *http.Request) (calendar.Date, calendar.Date, error) {
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := calendar.ParseDate(q.Get("from"))
		if err != nil {
			return calendar.Date{}, calendar.Date{}, errBadRequest("from non valido")
		}
		to, err := calendar.ParseDate(q.Get("to"))
		if err != nil {
			return calendar.Date{}, calendar.Date{}, errBadRequest("to non valido")
		}
		if to.Before(from) {
			return calendar.Date{}, calendar.Date{}, errBadRequest("to precede from")
		}
		if from.DaysUntil(to) >= maxCalendarDays {
			return calendar.Date{}, calendar.Date{}, errBadRequest("intervallo troppo ampio")
		}
		return from, to, nil
	}

	today := calendar.FromTime(h.now())
	year, month := today.Year(), today.Month()
	if s := q.Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1900 || y > 2300 {
			return calendar.Date{}, calendar.Date{}, errBadRequest("anno non valido")
		}
		year = y
	}
	if s := q.Get("month"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil || m < 1 || m > 12 {
			return calendar.Date{}, calendar.Date{}, errBadRequest("mese non valido")
		}
		month = time.Month(m)
	}
	from := calendar.NewDate(year, month, 1)
	to := calendar.NewDate(year, month+1, 1).AddDays(-1)
	return from, to, nil
}

// Holidays lists the public holidays of ?year (default: current year).
func (h *Handler) Holidays(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r, h.now().Year())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, HolidaysResponse{
		Year:     year,
		Easter:   calendar.Easter(year),
		Holidays: h.Calendar.Holidays(year),
	})
}

// Stats returns approved totals by type for the caller.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.Absences.Stats(r.Context(), actorFrom(r.Context()), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequest("corpo della richiesta vuoto")
		}
		return errBadRequest("JSON non valido: " + err.Error())
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest("id non valido")
	}
	return id, nil
}

func queryYear(r *http.Request, def int) (int, error) {
	s := r.URL.Query().Get("year")
	if s == "" {
		return def, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1900 || y > 2300 {
		return 0, errBadRequest("anno non valido")
	}
	return y, nil
}

// parseFilter reads the list filters. Unknown values are rejected rather
// than ignored so that a typo does not silently widen the result.
func parseFilter(r *http.Request) (absence.Filter, error) {
	q := r.URL.Query()
	var f absence.Filter

	if s := firstString(q.Get("status"), q.Get("stato")); s != "" {
		st, ok := absence.ParseStatus(s)
		if !ok {
			return f, errBadRequest("stato non valido")
		}
		f.Status = &st
	}
	if s := firstString(q.Get("type"), q.Get("tipo")); s != "" {
		t, ok := absence.ParseType(s)
		if !ok {
			return f, errBadRequest("tipo non valido")
		}
		f.Type = &t
	}
	if s := firstString(q.Get("employeeId"), q.Get("dipendenteId")); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, errBadRequest("employeeId non valido")
		}
		f.EmployeeID = &id
	}
	for key, dst := range map[string]**calendar.Date{"from": &f.From, "to": &f.To} {
		s := q.Get(key)
		if s == "" {
			continue
		}
		d, err := calendar.ParseDate(s)
		if err != nil {
			return f, errBadRequest(key + " non valido")
		}
		*dst = &d
	}
	if s := strings.TrimSpace(q.Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, errBadRequest("limit non valido")
		}
		f.Limit = n
	}
	return f, nil
}
