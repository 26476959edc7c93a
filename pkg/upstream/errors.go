package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthRequired signals a 401 from the collection itself: the content is
// visitor-gated and only a fetch carrying the visitor's own credentials can
// succeed. Never retried.
var ErrAuthRequired = errors.New("upstream requires visitor authentication")

// AuthRequiredError carries the URL that answered 401.
type AuthRequiredError struct {
	URL string
}

// Error implements the error interface.
func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("upstream 401 on %s", e.URL)
}

// Unwrap makes errors.Is(err, ErrAuthRequired) match.
func (e *AuthRequiredError) Unwrap() error {
	return ErrAuthRequired
}

// TransientError is a retryable upstream failure whose retry budget has
// been exhausted: a 429/5xx status, or a timed-out or failed attempt.
type TransientError struct {
	StatusCode int // 0 for network and timeout failures
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream transient failure on %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upstream %d on %s", e.StatusCode, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError is a non-retryable upstream failure: an unexpected status or a
// payload that does not parse.
type FatalError struct {
	StatusCode int
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream fatal failure on %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %d on %s", e.StatusCode, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// retryable reports whether a status is worth another attempt.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
