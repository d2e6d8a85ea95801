package fetch

import (
	"context"
	"time"
)

// Clock abstracts wall-clock reads so deadline handling is testable.
type Clock interface {
	Now() time.Time
}

// Sleeper abstracts delay waits so backoff is testable without real time.
type Sleeper interface {
	// Sleep blocks for d or until ctx is cancelled, returning ctx.Err()
	// in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// SystemSleeper waits in real time.
type SystemSleeper struct{}

// Sleep blocks for d or until ctx is cancelled.
func (SystemSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffPolicy is a bounded linear-scaled backoff: attempt n waits
// min(Base*n, Cap), for at most MaxAttempts attempts.
type BackoffPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// Delay returns the wait before retrying after the given 1-based attempt.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * p.Base
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	return d
}

// Default policies, matching observed upstream throttle windows.
var (
	// DefaultCreateBackoff governs report-creation throttle retries.
	DefaultCreateBackoff = BackoffPolicy{Base: 30 * time.Second, Cap: 180 * time.Second, MaxAttempts: 8}

	// DefaultPollBackoff governs throttle retries inside the polling loop.
	DefaultPollBackoff = BackoffPolicy{Base: 20 * time.Second, Cap: 120 * time.Second}
)
