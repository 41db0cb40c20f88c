// Package resilience classifies failures from the pipeline's upstream
// services and retries the transient ones with exponential backoff.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a failure worth retrying: throttling, overload
// shedding, or a network interruption. Callers that know the HTTP status of
// an upstream failure attach it here.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// transientTexts are failure signatures from the three upstreams the pipeline
// talks to: the places search API, the Anthropic API, and candidate websites
// reached during verification and crawling. Matched case-insensitively
// against the full error chain's message.
var transientTexts = []string{
	// places: quota bursts and brief unavailability surface as gRPC-style
	// status strings in the JSON error body.
	"resource_exhausted",
	"unavailable",
	// anthropic: overload shedding (529) carries this error type.
	"overloaded_error",
	// candidate sites and both APIs: connection-level flakes from the HTTP
	// client and resolver.
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
}

// IsTransient reports whether the error is safe to retry: an explicit
// TransientError anywhere in the chain, a network timeout, a torn-down
// connection, or an upstream failure signature from transientTexts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range transientTexts {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// server-side condition that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests: places quota, anthropic rate limit
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504, // Gateway Timeout
		529: // Overloaded: anthropic under load
		return true
	default:
		return false
	}
}
