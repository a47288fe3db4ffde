package ponapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for the vendor client.
var (
	// ErrTransport covers every failure where no usable HTTP response was
	// obtained: connection errors, timeouts, unreadable or undecodable bodies.
	ErrTransport = errors.New("vendor api transport error")

	// ErrUnknownPath is returned for paths other than the fixed vendor routes.
	ErrUnknownPath = errors.New("unknown vendor api path")
)

// maxBodyExcerpt bounds APIError.Body, in characters.
const maxBodyExcerpt = 500

// APIError is returned when the vendor answers with a status of 400 or more.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	// Body holds at most the first 500 characters of the response body.
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vendor api %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from an error chain containing an
// *APIError.
func StatusCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// excerpt returns the first n characters (not bytes) of s.
func excerpt(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
