package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/storage"
)

const tableName = "spapi_report_cache"

// timeLayout matches the sqlite backend: RFC 3339 UTC at second precision,
// fixed width so text comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05Z07:00"

// CacheStore implements storage.ReportCacheStore using PostgreSQL.
type CacheStore struct {
	pool *Pool
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

// NewCacheStore creates a new Postgres-backed cache store.
func NewCacheStore(pool *Pool, opts ...Option) *CacheStore {
	s := &CacheStore{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.ReportCacheStore = (*CacheStore)(nil)

var migratableColumns = [][2]string{
	{"status", "TEXT"},
	{"parsed_json", "TEXT"},
	{"error_message", "TEXT"},
	{"created_at_utc", "TEXT"},
	{"pulled_at_utc", "TEXT"},
	{"expires_at_utc", "TEXT"},
	{"report_id", "TEXT"},
	{"document_id", "TEXT"},
	{"payload_hash", "TEXT"},
	{"row_count", "BIGINT"},
}

// Initialize creates the schema if absent and additively migrates older
// schemas. Idempotent; must run before concurrent read/write traffic.
func (s *CacheStore) Initialize(ctx context.Context) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			report_type TEXT NOT NULL,
			marketplace_id TEXT NOT NULL,
			data_start_date TEXT NOT NULL,
			data_end_date TEXT NOT NULL,
			report_options_json TEXT NOT NULL,

			status TEXT NOT NULL,
			parsed_json TEXT,
			error_message TEXT,

			created_at_utc TEXT NOT NULL,
			pulled_at_utc TEXT,
			expires_at_utc TEXT,

			report_id TEXT,
			document_id TEXT,
			payload_hash TEXT,
			row_count BIGINT,

			PRIMARY KEY (report_type, marketplace_id, data_start_date, data_end_date, report_options_json)
		)
	`
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}

	for _, col := range migratableColumns {
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", tableName, col[0], col[1])
		if _, err := s.pool.Exec(ctx, alter); err != nil {
			return fmt.Errorf("add column %s: %w", col[0], err)
		}
	}

	backfill := "UPDATE " + tableName + " SET status = 'OK' WHERE status IS NULL OR status = ''"
	if _, err := s.pool.Exec(ctx, backfill); err != nil {
		return fmt.Errorf("backfill status: %w", err)
	}

	for _, idx := range []string{
		"CREATE INDEX IF NOT EXISTS idx_" + tableName + "_created_at ON " + tableName + "(created_at_utc)",
		"CREATE INDEX IF NOT EXISTS idx_" + tableName + "_expires_at ON " + tableName + "(expires_at_utc)",
	} {
		if _, err := s.pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// GetStatus returns entry metadata without materializing the payload.
func (s *CacheStore) GetStatus(ctx context.Context, key domain.CacheKey) (*domain.CacheStatusInfo, error) {
	query := `
		SELECT status, error_message, created_at_utc, pulled_at_utc, expires_at_utc,
		       report_id, document_id, payload_hash, row_count
		FROM ` + tableName + `
		WHERE report_type = $1 AND marketplace_id = $2 AND data_start_date = $3
		  AND data_end_date = $4 AND report_options_json = $5
	`
	row := s.pool.QueryRow(ctx, query,
		key.ReportType, key.MarketplaceID, key.DataStartDate, key.DataEndDate, key.OptionsJSON)

	var (
		status                          string
		errMsg, createdAt, pulledAt     sql.NullString
		expiresAt, reportID, documentID sql.NullString
		payloadHash                     sql.NullString
		rowCount                        sql.NullInt64
	)
	err := row.Scan(&status, &errMsg, &createdAt, &pulledAt, &expiresAt,
		&reportID, &documentID, &payloadHash, &rowCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache status: %w", err)
	}

	info := &domain.CacheStatusInfo{
		Status:       domain.CacheStatus(status),
		ErrorMessage: nullableString(errMsg),
		CreatedAtUTC: parseTimeOrZero(createdAt.String),
		PulledAtUTC:  nullableTime(pulledAt),
		ReportID:     nullableString(reportID),
		DocumentID:   nullableString(documentID),
		PayloadHash:  nullableString(payloadHash),
	}
	if rowCount.Valid {
		info.RowCount = &rowCount.Int64
	}
	info.ExpiresAtUTC, info.IsExpired = expiryState(expiresAt, s.now())
	return info, nil
}

// GetCachedPayload returns the payload for a live OK entry, or ErrNotFound
// for every miss condition.
func (s *CacheStore) GetCachedPayload(ctx context.Context, key domain.CacheKey) (*domain.ReportPayload, error) {
	query := `
		SELECT status, parsed_json, expires_at_utc
		FROM ` + tableName + `
		WHERE report_type = $1 AND marketplace_id = $2 AND data_start_date = $3
		  AND data_end_date = $4 AND report_options_json = $5
	`
	row := s.pool.QueryRow(ctx, query,
		key.ReportType, key.MarketplaceID, key.DataStartDate, key.DataEndDate, key.OptionsJSON)

	var (
		status                string
		parsedJSON, expiresAt sql.NullString
	)
	err := row.Scan(&status, &parsedJSON, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached payload: %w", err)
	}

	if domain.CacheStatus(status) != domain.CacheStatusOK {
		return nil, storage.ErrNotFound
	}
	if _, expired := expiryState(expiresAt, s.now()); expired {
		return nil, storage.ErrNotFound
	}
	if !parsedJSON.Valid || parsedJSON.String == "" {
		return nil, storage.ErrNotFound
	}

	var payload domain.ReportPayload
	if err := json.Unmarshal([]byte(parsedJSON.String), &payload); err != nil {
		return nil, storage.ErrNotFound
	}
	if len(payload.Rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return &payload, nil
}

// PutOK upserts a replacement OK entry.
func (s *CacheStore) PutOK(ctx context.Context, key domain.CacheKey, payload *domain.ReportPayload, meta storage.PutMeta) error {
	entry, err := storage.NewOKEntry(key, payload, meta, s.now())
	if err != nil {
		return err
	}
	return s.upsert(ctx, entry)
}

// PutError upserts a replacement ERROR entry.
func (s *CacheStore) PutError(ctx context.Context, key domain.CacheKey, message string, meta storage.PutMeta) error {
	return s.upsert(ctx, storage.NewErrorEntry(key, message, meta, s.now()))
}

func (s *CacheStore) upsert(ctx context.Context, entry *domain.CacheEntry) error {
	query := `
		INSERT INTO ` + tableName + ` (
			report_type, marketplace_id, data_start_date, data_end_date, report_options_json,
			status, parsed_json, error_message,
			created_at_utc, pulled_at_utc, expires_at_utc,
			report_id, document_id, payload_hash, row_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (report_type, marketplace_id, data_start_date, data_end_date, report_options_json)
		DO UPDATE SET
			status = EXCLUDED.status,
			parsed_json = EXCLUDED.parsed_json,
			error_message = EXCLUDED.error_message,
			created_at_utc = EXCLUDED.created_at_utc,
			pulled_at_utc = EXCLUDED.pulled_at_utc,
			expires_at_utc = EXCLUDED.expires_at_utc,
			report_id = EXCLUDED.report_id,
			document_id = EXCLUDED.document_id,
			payload_hash = EXCLUDED.payload_hash,
			row_count = EXCLUDED.row_count
	`
	_, err := s.pool.Exec(ctx, query,
		entry.Key.ReportType,
		entry.Key.MarketplaceID,
		entry.Key.DataStartDate,
		entry.Key.DataEndDate,
		entry.Key.OptionsJSON,
		string(entry.Status),
		entry.ParsedJSON,
		entry.ErrorMessage,
		formatTime(entry.CreatedAtUTC),
		formatTimePtr(entry.PulledAtUTC),
		formatTimePtr(entry.ExpiresAtUTC),
		entry.ReportID,
		entry.DocumentID,
		entry.PayloadHash,
		entry.RowCount,
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// SweepExpired deletes every entry past its expiry and returns the count.
func (s *CacheStore) SweepExpired(ctx context.Context) (int64, error) {
	query := "DELETE FROM " + tableName + " WHERE expires_at_utc IS NOT NULL AND expires_at_utc <= $1"
	tag, err := s.pool.Exec(ctx, query, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("sweep expired entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTimeOrZero(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	return &v.String
}

func nullableTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func expiryState(v sql.NullString, now time.Time) (*time.Time, bool) {
	if !v.Valid || v.String == "" {
		return nil, false
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, true
	}
	return &t, storage.Expired(&t, now)
}
