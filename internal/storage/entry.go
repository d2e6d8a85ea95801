package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"seller-report-lab/internal/domain"
)

// NewOKEntry builds the full replacement row for a successful pull.
func NewOKEntry(key domain.CacheKey, payload *domain.ReportPayload, meta PutMeta, now time.Time) (*domain.CacheEntry, error) {
	if payload == nil {
		return nil, ErrInvalidInput
	}

	parsed, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	entry := &domain.CacheEntry{
		Key:          key,
		Status:       domain.CacheStatusOK,
		ParsedJSON:   string(parsed),
		CreatedAtUTC: now,
		PulledAtUTC:  meta.PulledAt,
		ExpiresAtUTC: expiryFor(meta.TTL, nil, now),
		ReportID:     optional(meta.ReportID),
		DocumentID:   optional(meta.DocumentID),
		RowCount:     meta.RowCount,
	}
	if meta.RawBytes != nil {
		entry.PayloadHash = ptr(sha256Hex(meta.RawBytes))
	}
	return entry, nil
}

// NewErrorEntry builds the full replacement row for a failed pull. A minimal
// diagnostic payload derived from the key is stored so the payload column
// stays non-null and self-describing.
func NewErrorEntry(key domain.CacheKey, message string, meta PutMeta, now time.Time) *domain.CacheEntry {
	if len(message) > MaxErrorMessageLen {
		message = message[:MaxErrorMessageLen]
	}

	diag := map[string]string{
		"error":           message,
		"report_type":     key.ReportType,
		"marketplace_id":  key.MarketplaceID,
		"data_start_date": key.DataStartDate,
		"data_end_date":   key.DataEndDate,
	}
	parsed, _ := json.Marshal(diag) // map[string]string cannot fail

	defaultTTL := DefaultErrorTTL
	zero := int64(0)

	return &domain.CacheEntry{
		Key:          key,
		Status:       domain.CacheStatusError,
		ParsedJSON:   string(parsed),
		ErrorMessage: ptr(message),
		CreatedAtUTC: now,
		PulledAtUTC:  meta.PulledAt,
		ExpiresAtUTC: expiryFor(meta.TTL, &defaultTTL, now),
		ReportID:     optional(meta.ReportID),
		DocumentID:   optional(meta.DocumentID),
		PayloadHash:  ptr(sha256Hex(parsed)),
		RowCount:     &zero,
	}
}

// Expired reports whether an entry with the given expiry is past it.
// Nil expiry never expires.
func Expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && !now.Before(*expiresAt)
}

func expiryFor(ttl, fallback *time.Duration, now time.Time) *time.Time {
	if ttl == nil {
		ttl = fallback
	}
	if ttl == nil {
		return nil
	}
	t := now.Add(*ttl)
	return &t
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr[T any](v T) *T {
	return &v
}
