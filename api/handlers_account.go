package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/auth"
)

// minPasswordLength applies to passwords set through the API.
const minPasswordLength = 8

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login issues a session token and mirrors it in an HttpOnly cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	sess, emp, err := h.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeData(w, http.StatusOK, LoginResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
		Employee:  emp,
	})
}

// Logout revokes the caller's token and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeData(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

// Me returns the authenticated employee.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, actorFrom(r.Context()))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns everyone to admins, the full team records to
// managers and a reduced team directory to regular employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	var (
		emps []absence.Employee
		err  error
	)
	if actor.IsAdmin() {
		emps, err = h.Store.ListEmployees(r.Context())
	} else {
		emps, err = h.Store.ListTeam(r.Context(), actor.Team)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]EmployeeDTO, len(emps))
	for i, e := range emps {
		out[i] = EmployeeDTO{ID: e.ID, Name: e.Name, Team: e.Team}
		if actor.IsAdmin() || actor.IsManager() {
			out[i].Email = e.Email
			out[i].Role = e.Role
		}
	}
	writeData(w, http.StatusOK, out)
}

// CreateEmployee adds an employee. Admin only.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r.Context()).IsAdmin() {
		writeError(w, r, absence.ErrForbidden)
		return
	}
	var body CreateEmployeeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	verr := &absence.ValidationError{}
	if strings.TrimSpace(body.Name) == "" {
		verr.Add("name", "Nome obbligatorio")
	}
	if !strings.Contains(body.Email, "@") {
		verr.Add("email", "Email non valida")
	}
	team, ok := absence.ParseTeam(body.Team)
	if !ok {
		verr.Add("team", "Team non valido")
	}
	role, ok := absence.ParseRole(body.Role)
	if !ok {
		verr.Add("role", "Ruolo non valido")
	}
	if len(body.Password) < minPasswordLength {
		verr.Add("password", "La password deve avere almeno 8 caratteri")
	}
	if err := verr.OrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := h.Auth.HashPassword(body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	emp, err := h.Store.CreateEmployee(r.Context(), absence.Employee{
		Name:         strings.TrimSpace(body.Name),
		Email:        body.Email,
		Team:         team,
		Role:         role,
		PasswordHash: hash,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, emp)
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns the caller's notifications, newest first, with
// the unread count.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	q := r.URL.Query()

	unreadOnly := q.Get("unread") == "true" || q.Get("unread") == "1"
	limit := 50
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, r, errBadRequest("limit non valido"))
			return
		}
		limit = n
	}

	list, err := h.Store.ListNotifications(r.Context(), actor.ID, unreadOnly, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := h.Store.CountUnread(r.Context(), actor.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []absence.Notification{}
	}
	writeData(w, http.StatusOK, NotificationsResponse{Notifications: list, Unread: unread})
}

// MarkNotificationsRead marks one notification ({"id":..}) or all of them
// ({"all":true}) as read.
func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	var body MarkReadRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	switch {
	case body.All:
		n, err := h.Store.MarkAllRead(r.Context(), actor.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]int64{"updated": n})
	case body.ID.Set:
		ok, err := h.Store.MarkRead(r.Context(), actor.ID, body.ID.Value)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, absence.ErrNotFound)
			return
		}
		writeData(w, http.StatusOK, map[string]int64{"id": body.ID.Value})
	default:
		writeError(w, r, errBadRequest("specificare id oppure all"))
	}
}

// DeleteNotification removes one of the caller's notifications.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := h.Store.DeleteNotification(r.Context(), actorFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, absence.ErrNotFound)
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"id": id})
}

// SendNotification lets an admin persist and push a notification to any
// employee.
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r.Context()).IsAdmin() {
		writeError(w, r, absence.ErrForbidden)
		return
	}
	var body SendNotificationRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	verr := &absence.ValidationError{}
	if !body.UserID.Set || body.UserID.Value <= 0 {
		verr.Add("userId", "Destinatario obbligatorio")
	}
	nt := absence.NotificationType(body.Type)
	if !nt.Valid() {
		verr.Add("type", "Tipo di notifica non valido")
	}
	if strings.TrimSpace(body.Title) == "" {
		verr.Add("title", "Titolo obbligatorio")
	}
	if err := verr.OrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	recipient, err := h.Store.GetEmployee(r.Context(), body.UserID.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recipient == nil {
		writeError(w, r, absence.ErrNotFound)
		return
	}

	delivery, err := h.Notifier.Send(r.Context(), absence.Message{
		UserID:           recipient.ID,
		Type:             nt,
		Title:            strings.TrimSpace(body.Title),
		Body:             body.Body,
		URL:              body.URL,
		RelatedRequestID: body.RelatedRequestID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, delivery)
}

// VAPIDKey returns the public key the service worker subscribes with.
func (h *Handler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, VAPIDKeyResponse{
		PublicKey: h.VAPIDPublicKey,
		Enabled:   h.VAPIDPublicKey != "",
	})
}

// Subscribe registers (or refreshes) a push subscription for the caller.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var body SubscribeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	body = body.Normalize()

	verr := &absence.ValidationError{}
	if !strings.HasPrefix(body.Endpoint, "https://") {
		verr.Add("endpoint", "Endpoint non valido")
	}
	if body.Keys.P256dh == "" || body.Keys.Auth == "" {
		verr.Add("keys", "Chiavi mancanti")
	}
	if err := verr.OrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.Store.UpsertSubscription(r.Context(), absence.PushSubscription{
		EmployeeID: actorFrom(r.Context()).ID,
		Endpoint:   body.Endpoint,
		P256dh:     body.Keys.P256dh,
		Auth:       body.Keys.Auth,
		Platform:   absence.ParsePlatform(body.Platform),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, sub)
}

// Unsubscribe removes the caller's subscription for an endpoint.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var body UnsubscribeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Endpoint == "" {
		writeError(w, r, errBadRequest("endpoint mancante"))
		return
	}
	ok, err := h.Store.DeleteSubscriptionByEndpoint(r.Context(), actorFrom(r.Context()).ID, body.Endpoint)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, absence.ErrNotFound)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"endpoint": body.Endpoint})
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports whether the database answers.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{Success: false, Error: "database non raggiungibile"})
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
