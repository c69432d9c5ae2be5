// Package resilience classifies CRM delivery failures. Every failure is
// retried by the sync scheduler up to its attempt limit; the classification
// only labels logs and metrics.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Failure kinds reported by Kind.
const (
	KindTransient = "transient"
	KindTerminal  = "terminal"
)

// TransientError wraps an error that is likely to succeed on a later attempt
// (429, 5xx, network timeout).
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

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
	"client.timeout exceeded",
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, a network timeout, a deadline, or matches common transient
// connection error text.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
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
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a CRM response status is worth
// retrying: request timeout, rate limiting, or any server error.
func IsTransientHTTPStatus(statusCode int) bool {
	return statusCode == 408 || statusCode == 429 || (statusCode >= 500 && statusCode <= 599)
}

// Kind returns KindTransient or KindTerminal for a non-nil error, and "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTransient(err):
		return KindTransient
	default:
		return KindTerminal
	}
}
