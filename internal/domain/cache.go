package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used throughout the cache schema.
const DateLayout = "2006-01-02"

// CacheStatus is the terminal state of a cached report pull.
type CacheStatus string

const (
	CacheStatusOK    CacheStatus = "OK"
	CacheStatusError CacheStatus = "ERROR"
)

// CacheKey identifies one cached report pull.
// Corresponds to the primary key of the spapi_report_cache table.
// Keys are value-equal: two keys with the same fields address the same entry.
type CacheKey struct {
	ReportType    string
	MarketplaceID string
	DataStartDate string // YYYY-MM-DD
	DataEndDate   string // YYYY-MM-DD
	OptionsJSON   string // canonical fingerprint, see FingerprintOptions
}

// NewCacheKey builds a cache key for a report window. The option map is
// canonicalized so insertion order never changes the key.
func NewCacheKey(reportType, marketplaceID string, start, end time.Time, options map[string]string) CacheKey {
	return CacheKey{
		ReportType:    reportType,
		MarketplaceID: marketplaceID,
		DataStartDate: start.UTC().Format(DateLayout),
		DataEndDate:   end.UTC().Format(DateLayout),
		OptionsJSON:   FingerprintOptions(options),
	}
}

// FingerprintOptions serializes an option map to compact JSON with
// lexicographically sorted keys. Two maps with equal key/value pairs
// produce byte-identical fingerprints regardless of insertion order.
func FingerprintOptions(options map[string]string) string {
	if options == nil {
		options = map[string]string{}
	}
	// encoding/json sorts map keys and emits no whitespace.
	data, err := json.Marshal(options)
	if err != nil {
		// map[string]string cannot fail to marshal
		panic(fmt.Sprintf("fingerprint options: %v", err))
	}
	return string(data)
}

// CacheEntry is one row of the report cache. Exactly one entry exists per
// CacheKey at any time; writes replace the whole row.
type CacheEntry struct {
	Key          CacheKey
	Status       CacheStatus
	ParsedJSON   string  // compact JSON payload; minimal diagnostic object on ERROR
	ErrorMessage *string // set when Status == ERROR, truncated to 2000 chars
	CreatedAtUTC time.Time
	PulledAtUTC  *time.Time // when the upstream pull started; may differ from CreatedAtUTC
	ExpiresAtUTC *time.Time // nil = never expires
	ReportID     *string
	DocumentID   *string
	PayloadHash  *string // sha256 hex of raw downloaded bytes (OK rows)
	RowCount     *int64
}

// CacheStatusInfo is entry metadata without the payload.
type CacheStatusInfo struct {
	Status       CacheStatus
	ErrorMessage *string
	CreatedAtUTC time.Time
	PulledAtUTC  *time.Time
	ExpiresAtUTC *time.Time
	IsExpired    bool // computed against the read-time clock
	ReportID     *string
	DocumentID   *string
	PayloadHash  *string
	RowCount     *int64
}

// ReportPayload is the parsed object stored for OK entries.
type ReportPayload struct {
	Rows []SalesRow `json:"rows"`
}
