package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/auth"
	"github.com/artsia/hr-portal/report"
	"github.com/artsia/hr-portal/store/sqlite"
)

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

// Envelope wraps every JSON response.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// badRequest is a malformed body or query parameter.
type badRequest struct {
	msg string
}

func (e badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return badRequest{msg: msg} }

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// writeError maps domain errors onto HTTP statuses. Only server faults are
// logged, at error level, with the underlying cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	resp := Envelope{Success: false, Error: msg}

	var ve *absence.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}

	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.msg
	case absence.IsValidation(err):
		return http.StatusBadRequest, "Dati non validi"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Email o password non corretti"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "Autenticazione richiesta"
	case errors.Is(err, absence.ErrForbidden):
		return http.StatusForbidden, "Operazione non consentita"
	case errors.Is(err, absence.ErrNotFound):
		return http.StatusNotFound, "Non trovato"
	case errors.Is(err, report.ErrNoRows):
		return http.StatusNotFound, "Nessuna assenza da esportare"
	case errors.Is(err, absence.ErrInvalidTransition):
		return http.StatusConflict, "La richiesta è già stata gestita"
	case errors.Is(err, absence.ErrConflict):
		return http.StatusConflict, "La richiesta è stata modificata da un altro utente"
	case errors.Is(err, sqlite.ErrDuplicateEmail):
		return http.StatusConflict, "Email già registrata"
	default:
		return http.StatusInternalServerError, "Errore interno"
	}
}
