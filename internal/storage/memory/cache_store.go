// Package memory provides an in-memory report cache store for tests and
// dry runs.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/storage"
)

// CacheStore is an in-memory implementation of storage.ReportCacheStore.
// Safe for concurrent use; same-key writers resolve last-write-wins.
type CacheStore struct {
	mu   sync.RWMutex
	data map[domain.CacheKey]*domain.CacheEntry
	now  func() time.Time
}

// Option configures CacheStore.
type Option func(*CacheStore)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *CacheStore) {
		s.now = now
	}
}

// NewCacheStore creates a new in-memory cache store.
func NewCacheStore(opts ...Option) *CacheStore {
	s := &CacheStore{
		data: make(map[domain.CacheKey]*domain.CacheEntry),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.ReportCacheStore = (*CacheStore)(nil)

// Initialize is a no-op for the in-memory store.
func (s *CacheStore) Initialize(_ context.Context) error {
	return nil
}

// GetStatus returns entry metadata without the payload.
func (s *CacheStore) GetStatus(_ context.Context, key domain.CacheKey) (*domain.CacheStatusInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &domain.CacheStatusInfo{
		Status:       entry.Status,
		ErrorMessage: entry.ErrorMessage,
		CreatedAtUTC: entry.CreatedAtUTC,
		PulledAtUTC:  entry.PulledAtUTC,
		ExpiresAtUTC: entry.ExpiresAtUTC,
		IsExpired:    storage.Expired(entry.ExpiresAtUTC, s.now()),
		ReportID:     entry.ReportID,
		DocumentID:   entry.DocumentID,
		PayloadHash:  entry.PayloadHash,
		RowCount:     entry.RowCount,
	}, nil
}

// GetCachedPayload returns the payload for a live OK entry, or ErrNotFound
// for every miss condition.
func (s *CacheStore) GetCachedPayload(_ context.Context, key domain.CacheKey) (*domain.ReportPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if entry.Status != domain.CacheStatusOK {
		return nil, storage.ErrNotFound
	}
	if storage.Expired(entry.ExpiresAtUTC, s.now()) {
		return nil, storage.ErrNotFound
	}
	if entry.ParsedJSON == "" {
		return nil, storage.ErrNotFound
	}

	var payload domain.ReportPayload
	if err := json.Unmarshal([]byte(entry.ParsedJSON), &payload); err != nil {
		return nil, storage.ErrNotFound
	}
	if len(payload.Rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return &payload, nil
}

// PutOK upserts a replacement OK entry.
func (s *CacheStore) PutOK(_ context.Context, key domain.CacheKey, payload *domain.ReportPayload, meta storage.PutMeta) error {
	entry, err := storage.NewOKEntry(key, payload, meta, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry
	return nil
}

// PutError upserts a replacement ERROR entry.
func (s *CacheStore) PutError(_ context.Context, key domain.CacheKey, message string, meta storage.PutMeta) error {
	entry := storage.NewErrorEntry(key, message, meta, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry
	return nil
}

// SweepExpired deletes every entry past its expiry and returns the count.
func (s *CacheStore) SweepExpired(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, entry := range s.data {
		if storage.Expired(entry.ExpiresAtUTC, now) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries, expired or not.
func (s *CacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
