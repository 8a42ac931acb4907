/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request bodies accept
  the canonical English field names and, as aliases, the Italian names the
  older frontend sends (tipo, dataInizio/data, durata, motivo, stato,
  dipendenteId, nome, ruolo). Responses always use the English names.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *DTO:      Response types returned to clients
  - *Response: Composite response wrappers

VALIDATION:
  DTOs only decode. Domain validation happens in absence.Validate; the
  handlers reject bodies that cannot be decoded at all.

SEE ALSO:
  - handlers.go: Uses these types
  - respond.go:  Envelope and error mapping
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/calendar"
)

// =============================================================================
// DECODING HELPERS
// =============================================================================

// flexInt decodes a JSON number or a numeric string ("3").
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		f.Value, f.Set = n, true
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f.Value, f.Set = n, true
	return nil
}

// flexID decodes an ID given as number or numeric string.
type flexID struct {
	Value int64
	Set   bool
}

func (f *flexID) UnmarshalJSON(b []byte) error {
	var n flexInt
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	f.Value, f.Set = int64(n.Value), n.Set
	return nil
}

func firstString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt string           `json:"expiresAt"`
	Employee  absence.Employee `json:"employee"`
}

// =============================================================================
// ABSENCES
// =============================================================================

// SubmitAbsenceRequest is the body of POST /api/absences.
type SubmitAbsenceRequest struct {
	Type       string
	StartDate  string
	Duration   flexInt
	Reason     string
	EmployeeID flexID
}

func (s *SubmitAbsenceRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type         string  `json:"type"`
		Tipo         string  `json:"tipo"`
		StartDate    string  `json:"startDate"`
		DataInizio   string  `json:"dataInizio"`
		Data         string  `json:"data"`
		Duration     flexInt `json:"duration"`
		Durata       flexInt `json:"durata"`
		Reason       string  `json:"reason"`
		Motivo       string  `json:"motivo"`
		EmployeeID   flexID  `json:"employeeId"`
		DipendenteID flexID  `json:"dipendenteId"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Type = firstString(raw.Type, raw.Tipo)
	s.StartDate = firstString(raw.StartDate, raw.DataInizio, raw.Data)
	s.Duration = raw.Duration
	if !s.Duration.Set {
		s.Duration = raw.Durata
	}
	s.Reason = firstString(raw.Reason, raw.Motivo)
	s.EmployeeID = raw.EmployeeID
	if !s.EmployeeID.Set {
		s.EmployeeID = raw.DipendenteID
	}
	return nil
}

// ToNewRequest converts the body into the service input. Unparseable type,
// date or duration are reported as field errors.
func (s SubmitAbsenceRequest) ToNewRequest() (absence.NewRequest, error) {
	verr := &absence.ValidationError{}
	in := absence.NewRequest{Reason: s.Reason, EmployeeID: s.EmployeeID.Value, Duration: s.Duration.Value}

	if s.Type != "" {
		t, ok := absence.ParseType(s.Type)
		if !ok {
			verr.Add("type", "Tipo di assenza non valido")
		}
		in.Type = t
	}
	if s.StartDate != "" {
		d, err := calendar.ParseDate(s.StartDate)
		if err != nil {
			verr.Add("startDate", "Data non valida")
		}
		in.StartDate = d
	}
	if err := verr.OrNil(); err != nil {
		return in, err
	}
	return in, nil
}

// DecideRequest is the body of PATCH /api/absences and
// PATCH /api/absences/{id}. ID is ignored on the latter.
type DecideRequest struct {
	ID     flexID
	Status string
}

func (d *DecideRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID     flexID `json:"id"`
		Status string `json:"status"`
		Stato  string `json:"stato"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.ID = raw.ID
	d.Status = firstString(raw.Status, raw.Stato, raw.Action)
	return nil
}

// AbsenceDTO is a request with its computed range.
type AbsenceDTO struct {
	absence.Request
	EndDate calendar.Date `json:"endDate"`
	Unit    absence.Unit  `json:"unit"`
}

func toAbsenceDTO(r absence.Request, cal calendar.HolidayCalendar) AbsenceDTO {
	return AbsenceDTO{Request: r, EndDate: r.EndDate(cal), Unit: r.Unit()}
}

func toAbsenceDTOs(rows []absence.Request, cal calendar.HolidayCalendar) []AbsenceDTO {
	out := make([]AbsenceDTO, len(rows))
	for i, r := range rows {
		out[i] = toAbsenceDTO(r, cal)
	}
	return out
}

// =============================================================================
// CALENDAR
// =============================================================================

// CalendarDayDTO marks one day of the window.
type CalendarDayDTO struct {
	Date        calendar.Date `json:"date"`
	HolidayName string        `json:"holidayName,omitempty"`
	calendar.DayKind
	AbsenceIDs []int64 `json:"absenceIds"`
}

type CalendarResponse struct {
	From     calendar.Date           `json:"from"`
	To       calendar.Date           `json:"to"`
	Entries  []absence.CalendarEntry `json:"entries"`
	Days     []CalendarDayDTO        `json:"days"`
	Holidays []calendar.Holiday      `json:"holidays"`
}

type HolidaysResponse struct {
	Year     int                `json:"year"`
	Easter   calendar.Date      `json:"easter"`
	Holidays []calendar.Holiday `json:"holidays"`
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// CreateEmployeeRequest is the body of POST /api/employees.
type CreateEmployeeRequest struct {
	Name     string
	Email    string
	Team     string
	Role     string
	Password string
}

func (c *CreateEmployeeRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name     string `json:"name"`
		Nome     string `json:"nome"`
		Email    string `json:"email"`
		Team     string `json:"team"`
		Role     string `json:"role"`
		Ruolo    string `json:"ruolo"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.Name = firstString(raw.Name, raw.Nome)
	c.Email = strings.TrimSpace(raw.Email)
	c.Team = strings.TrimSpace(raw.Team)
	c.Role = firstString(raw.Role, raw.Ruolo)
	c.Password = raw.Password
	return nil
}

// EmployeeDTO is the public view of an employee. Regular employees listing
// their team only get ID, name and team.
type EmployeeDTO struct {
	ID    int64        `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email,omitempty"`
	Team  absence.Team `json:"team"`
	Role  absence.Role `json:"role,omitempty"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationsResponse struct {
	Notifications []absence.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

// MarkReadRequest is the body of PATCH /api/notifications: either one id or
// all=true.
type MarkReadRequest struct {
	ID  flexID `json:"id"`
	All bool   `json:"all"`
}

// SendNotificationRequest is the body of POST /api/notifications (admin).
type SendNotificationRequest struct {
	UserID           flexID `json:"userId"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	Body             string `json:"body"`
	URL              string `json:"url"`
	RelatedRequestID *int64 `json:"relatedRequestId"`
}

// SubscribeRequest accepts the browser's PushSubscription.toJSON() either
// at the top level or under "subscription".
type SubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	Platform     string            `json:"platform"`
	Subscription *SubscribeRequest `json:"subscription"`
}

// Normalize flattens the nested form.
func (s SubscribeRequest) Normalize() SubscribeRequest {
	if s.Subscription == nil {
		return s
	}
	out := *s.Subscription
	out.Subscription = nil
	if out.Platform == "" {
		out.Platform = s.Platform
	}
	return out
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

type VAPIDKeyResponse struct {
	PublicKey string `json:"publicKey"`
	Enabled   bool   `json:"enabled"`
}
