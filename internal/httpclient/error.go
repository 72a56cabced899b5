package httpclient

import (
	"fmt"

	ierr "github.com/flexprice/billing-engine/internal/errors"
)

// Error is returned for every non-2xx response
type Error struct {
	StatusCode int
	Response   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("http client error: status %d", e.StatusCode)
}

// NewError wraps a non-2xx response so callers can still classify it with
// ierr.IsHTTPClient
func NewError(statusCode int, response []byte) error {
	return ierr.WithError(&Error{StatusCode: statusCode, Response: response}).
		WithHintf("Remote endpoint responded with status %d", statusCode).
		WithReportableDetails(map[string]any{
			"status_code": statusCode,
		}).
		Mark(ierr.ErrHTTPClient)
}

// IsHTTPError checks if an error is an HTTP client error
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if ierr.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
