package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport wraps network-level failures (dial, timeout, reset).
	ErrTransport = errors.New("backend: transport failure")
	// ErrMalformed is returned when a success response has an unusable body.
	ErrMalformed = errors.New("backend: malformed response")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s %s: status %d", e.Method, e.Path, e.Code)
}

// Unauthorized reports whether the backend rejected the credential.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsUnauthorized reports whether err is a StatusError rejecting the credential.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Unauthorized()
}

// Cause names the error class for logs and metrics.
func Cause(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}
