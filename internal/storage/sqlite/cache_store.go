package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/storage"
)

const tableName = "spapi_report_cache"

// timeLayout is RFC 3339 UTC at second precision. Fixed width, so
// lexicographic comparison in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05Z07:00"

// CacheStore implements storage.ReportCacheStore using SQLite.
type CacheStore struct {
	db  *DB
	now func() time.Time
}

// Option configures CacheStore.
type Option func(*CacheStore)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *CacheStore) {
		s.now = now
	}
}

// NewCacheStore creates a new SQLite-backed cache store.
func NewCacheStore(db *DB, opts ...Option) *CacheStore {
	s := &CacheStore{db: db, now: utcNow}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.ReportCacheStore = (*CacheStore)(nil)

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// migratableColumns are every non-key column with its SQLite definition.
// Initialize adds any of these missing from an existing table, so older
// cache files keep working without a destructive rebuild.
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
	{"row_count", "INTEGER"},
}

// Initialize creates the schema if absent and additively migrates older
// schemas. Idempotent.
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
			row_count INTEGER,

			PRIMARY KEY (report_type, marketplace_id, data_start_date, data_end_date, report_options_json)
		)
	`
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}

	existing, err := s.columnNames(ctx)
	if err != nil {
		return err
	}

	for _, col := range migratableColumns {
		if existing[col[0]] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tableName, col[0], col[1])
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s: %w", col[0], err)
		}
	}

	// Legacy rows written before the status column existed are OK rows.
	backfill := "UPDATE " + tableName + " SET status = 'OK' WHERE status IS NULL OR status = ''"
	if _, err := s.db.ExecContext(ctx, backfill); err != nil {
		return fmt.Errorf("backfill status: %w", err)
	}

	for _, idx := range []string{
		"CREATE INDEX IF NOT EXISTS idx_" + tableName + "_created_at ON " + tableName + "(created_at_utc)",
		"CREATE INDEX IF NOT EXISTS idx_" + tableName + "_expires_at ON " + tableName + "(expires_at_utc)",
	} {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

func (s *CacheStore) columnNames(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+tableName+")")
	if err != nil {
		return nil, fmt.Errorf("read table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return cols, nil
}

// GetStatus returns entry metadata without materializing the payload.
func (s *CacheStore) GetStatus(ctx context.Context, key domain.CacheKey) (*domain.CacheStatusInfo, error) {
	query := `
		SELECT status, error_message, created_at_utc, pulled_at_utc, expires_at_utc,
		       report_id, document_id, payload_hash, row_count
		FROM ` + tableName + `
		WHERE report_type = ? AND marketplace_id = ? AND data_start_date = ?
		  AND data_end_date = ? AND report_options_json = ?
	`
	row := s.db.QueryRowContext(ctx, query,
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
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache status: %w", err)
	}

	now := s.now()
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
	info.ExpiresAtUTC, info.IsExpired = expiryState(expiresAt, now)
	return info, nil
}

// GetCachedPayload returns the parsed payload for a live OK entry, or
// ErrNotFound for every miss condition.
func (s *CacheStore) GetCachedPayload(ctx context.Context, key domain.CacheKey) (*domain.ReportPayload, error) {
	query := `
		SELECT status, parsed_json, expires_at_utc
		FROM ` + tableName + `
		WHERE report_type = ? AND marketplace_id = ? AND data_start_date = ?
		  AND data_end_date = ? AND report_options_json = ?
	`
	row := s.db.QueryRowContext(ctx, query,
		key.ReportType, key.MarketplaceID, key.DataStartDate, key.DataEndDate, key.OptionsJSON)

	var (
		status                string
		parsedJSON, expiresAt sql.NullString
	)
	err := row.Scan(&status, &parsedJSON, &expiresAt)
	if err == sql.ErrNoRows {
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
		// Defensive decode: corrupt payloads read as misses, not failures.
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
		INSERT OR REPLACE INTO ` + tableName + ` (
			report_type, marketplace_id, data_start_date, data_end_date, report_options_json,
			status, parsed_json, error_message,
			created_at_utc, pulled_at_utc, expires_at_utc,
			report_id, document_id, payload_hash, row_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
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
	query := "DELETE FROM " + tableName + " WHERE expires_at_utc IS NOT NULL AND expires_at_utc <= ?"
	res, err := s.db.ExecContext(ctx, query, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("sweep expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count swept entries: %w", err)
	}
	return n, nil
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

// expiryState parses the stored expiry and evaluates it against now.
// An unparsable expiry counts as expired rather than immortal.
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
