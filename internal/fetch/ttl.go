package fetch

import "time"

// TTL policy defaults. Recent windows refresh quickly because upstream is
// still finalizing them; historical windows are immutable.
const (
	DefaultShortTTL    = 6 * time.Hour
	DefaultLongTTL     = 30 * 24 * time.Hour
	DefaultErrorTTL    = 15 * time.Minute
	DefaultRecencyDays = 1
)

// TTLPolicy decides how long a cached window result stays valid.
type TTLPolicy struct {
	Short       time.Duration // windows still being finalized upstream
	Long        time.Duration // immutable historical windows
	RecencyDays int           // window ends within this many days of today -> Short
}

// DefaultTTLPolicy returns the standard policy.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{Short: DefaultShortTTL, Long: DefaultLongTTL, RecencyDays: DefaultRecencyDays}
}

// For returns the TTL for a window ending on end, evaluated at now.
func (p TTLPolicy) For(end, now time.Time) time.Duration {
	today := now.UTC().Truncate(24 * time.Hour)
	threshold := today.AddDate(0, 0, -p.RecencyDays)
	if !end.UTC().Truncate(24 * time.Hour).Before(threshold) {
		return p.Short
	}
	return p.Long
}
