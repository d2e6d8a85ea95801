package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNonRetryable marks failures that retrying cannot fix; callers can
// test with errors.Is.
var ErrNonRetryable = errors.New("non-retryable")

// RateLimitedError is returned when the upstream throttle persisted past
// the backoff policy's attempt budget.
type RateLimitedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: still throttled after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// PermissionDeniedError is a non-retryable authorization failure. The
// report options are carried for diagnosability: option typos are the
// usual cause of 403s on report creation.
type PermissionDeniedError struct {
	Operation string
	Options   map[string]string
	Err       error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: permission denied (options=%v): %v", e.Operation, e.Options, e.Err)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

func (e *PermissionDeniedError) Is(target error) bool { return target == ErrNonRetryable }

// UpstreamProcessingFailedError reports a FATAL or CANCELLED report. The
// last status payload is retained verbatim.
type UpstreamProcessingFailedError struct {
	ReportID string
	Status   string
	Payload  json.RawMessage
}

func (e *UpstreamProcessingFailedError) Error() string {
	return fmt.Sprintf("report %s failed upstream: status=%s payload=%s", e.ReportID, e.Status, string(e.Payload))
}

func (e *UpstreamProcessingFailedError) Is(target error) bool { return target == ErrNonRetryable }

// TimeoutError reports an exhausted polling wall-clock budget.
type TimeoutError struct {
	ReportID string
	Budget   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for report %s after %s", e.ReportID, e.Budget)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrNonRetryable }

// DecodeError reports a decryption, decompression or deserialization
// failure, with a bounded preview of the offending content.
type DecodeError struct {
	Stage   string // "decrypt" | "decompress" | "json"
	Preview string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode report document (%s): %v; preview: %q", e.Stage, e.Err, e.Preview)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrNonRetryable }

// SchemaError reports a well-formed payload whose expected row container
// is absent or of the wrong type. An empty container is NOT this error.
type SchemaError struct {
	Container string
	TopKeys   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("report payload missing %s or wrong type; top-level keys: %v", e.Container, e.TopKeys)
}

func (e *SchemaError) Is(target error) bool { return target == ErrNonRetryable }
