package errs

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"gorm.io/gorm"

	"Forecast_Hub/internal/permission"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("authentication credentials were not provided")
	ErrBadRequest   = errors.New("bad request")
)

// ValidationError carries either a single message or per-field messages.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	if e.Message != "" {
		return e.Message + ": " + strings.Join(parts, "; ")
	}
	return strings.Join(parts, "; ")
}

func Validation(msg string) error {
	return &ValidationError{Message: msg}
}

func FieldErrors(fields map[string]string) error {
	return &ValidationError{Message: "validation failed", Fields: fields}
}

// StatusCode maps domain errors onto HTTP status codes.
func StatusCode(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, permission.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
