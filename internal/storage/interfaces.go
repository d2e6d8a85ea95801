package storage

import (
	"context"
	"time"

	"seller-report-lab/internal/domain"
)

// PutMeta carries optional upstream correlation metadata for cache writes.
type PutMeta struct {
	// TTL controls expiry. Nil means: never expire for PutOK, the default
	// error TTL (15 minutes) for PutError.
	TTL *time.Duration

	PulledAt   *time.Time // when the upstream pull started
	ReportID   string
	DocumentID string
	RawBytes   []byte // raw downloaded document; hashed for OK rows
	RowCount   *int64
}

// ReportCacheStore is the durable report-pull cache. One entry exists per
// CacheKey at any time; writes replace the whole row. Implementations must
// keep per-key writes atomic and resolve concurrent writers to the same key
// last-write-wins.
type ReportCacheStore interface {
	// Initialize creates the schema if absent and additively migrates older
	// schemas (missing columns are added, legacy rows get status OK).
	// Idempotent; safe to call before every other operation.
	Initialize(ctx context.Context) error

	// GetStatus returns entry metadata without the payload, including
	// whether the entry is expired as of now. Returns ErrNotFound if no
	// entry exists. Never mutates state.
	GetStatus(ctx context.Context, key domain.CacheKey) (*domain.CacheStatusInfo, error)

	// GetCachedPayload returns the parsed payload only for a live OK entry
	// with a non-empty payload. Missing, ERROR, expired, empty and
	// undecodable entries all return ErrNotFound: callers must treat every
	// one of those as a plain cache miss.
	GetCachedPayload(ctx context.Context, key domain.CacheKey) (*domain.ReportPayload, error)

	// PutOK upserts a replacement OK entry for the key.
	PutOK(ctx context.Context, key domain.CacheKey, payload *domain.ReportPayload, meta PutMeta) error

	// PutError upserts a replacement ERROR entry for the key. The message
	// is truncated to 2000 characters and row_count forced to 0.
	PutError(ctx context.Context, key domain.CacheKey, message string, meta PutMeta) error

	// SweepExpired deletes every entry whose expiry is set and at or before
	// now, returning the number of rows removed.
	SweepExpired(ctx context.Context) (int64, error)
}

// DefaultErrorTTL applies to PutError calls that do not set a TTL, so a
// failing key is retried soon instead of being cached indefinitely.
const DefaultErrorTTL = 15 * time.Minute

// MaxErrorMessageLen bounds stored error messages.
const MaxErrorMessageLen = 2000
