package absence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a request does not exist or is not owned
	// by the caller where ownership is required.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor lacks the role or team scope
	// for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned for any status change other than
	// pending -> approved|rejected, and for cancelling a decided request.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict is returned when a conditional write finds the request no
	// longer pending (a concurrent decision won).
	ErrConflict = errors.New("request was modified concurrently")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError lists invalid input fields with a message per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field message, creating the map on first use.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// OrNil returns e when at least one field was recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsClientError returns true if the error is due to the caller's input or
// permissions rather than a server fault.
func IsClientError(err error) bool {
	return IsValidation(err) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConflict)
}
