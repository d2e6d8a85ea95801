package spapi

import (
	"errors"
	"fmt"
)

// Client errors the fetch pipeline dispatches on.
var (
	// ErrThrottled signals an upstream rate limit (HTTP 429). Retryable
	// with backoff.
	ErrThrottled = errors.New("request throttled")

	// ErrForbidden signals missing permissions (HTTP 403). Not retryable.
	ErrForbidden = errors.New("permission denied")
)

// APIError is a non-2xx response that is neither a throttle nor a
// permission failure.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string // bounded
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Operation, e.StatusCode, e.Body)
}
