package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry is returned for non-finite coordinates, a radius <= 0
	// or a ring that is not closed.
	ErrInvalidGeometry = errors.New("invalid geometry input")
	// ErrInvalidPoint is a local validation error for a point of interest.
	ErrInvalidPoint = errors.New("invalid point of interest")
	// ErrInvalidRadius is a local validation error for an analysis radius.
	ErrInvalidRadius = errors.New("invalid analysis radius")
	// ErrNotConfigured means the risk backend address is missing.
	// It is unrecoverable for the lifetime of the process.
	ErrNotConfigured = errors.New("risk backend address is not configured")
	// ErrTransport covers network failures and non-2xx responses.
	ErrTransport = errors.New("risk backend request failed")
	// ErrMalformedResponse means the backend body could not be turned into a RiskResult.
	ErrMalformedResponse = errors.New("malformed risk response")
	// ErrSessionClosed is returned by a coordinator after teardown.
	ErrSessionClosed = errors.New("session closed")
)

// TransportError carries diagnostics for a failed backend round trip.
// StatusCode is 0 when no HTTP response was received.
type TransportError struct {
	StatusCode int
	URL        string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	msg := fmt.Sprintf("status %d from %s", e.StatusCode, e.URL)
	if e.Body != "" {
		msg += " - " + e.Body
	}
	return msg
}

// Is makes errors.Is(err, ErrTransport) true for every TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a user-triggered retry can succeed.
// Malformed responses are treated like transport failures.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrMalformedResponse)
}

// ErrorKind classifies an error for logs, metrics and API codes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrInvalidGeometry):
		return "invalid_geometry"
	case errors.Is(err, ErrInvalidPoint), errors.Is(err, ErrInvalidRadius):
		return "invalid_input"
	case errors.Is(err, ErrSessionClosed):
		return "closed"
	default:
		return "internal"
	}
}
