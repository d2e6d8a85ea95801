package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/storage"
)

func testKey(start, end string) domain.CacheKey {
	return domain.CacheKey{
		ReportType:    "GET_SALES_AND_TRAFFIC_REPORT",
		MarketplaceID: "ATVPDKIKX0DER",
		DataStartDate: start,
		DataEndDate:   end,
		OptionsJSON:   `{"dateGranularity":"DAY"}`,
	}
}

func testPayload(units float64) *domain.ReportPayload {
	return &domain.ReportPayload{Rows: []domain.SalesRow{
		{ChildASIN: "B001", MarketplaceSKU: "SKU-1", Units: units},
	}}
}

func TestCacheStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	store := NewCacheStore(pool, WithClock(func() time.Time { return now }))

	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Initialize(ctx), "initialize must be idempotent")

	t.Run("miss on absent key", func(t *testing.T) {
		_, err := store.GetCachedPayload(ctx, testKey("2025-01-01", "2025-01-07"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.GetStatus(ctx, testKey("2025-01-01", "2025-01-07"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("put ok and read back", func(t *testing.T) {
		key := testKey("2025-08-01", "2025-08-07")
		ttl := 6 * time.Hour
		rowCount := int64(1)
		require.NoError(t, store.PutOK(ctx, key, testPayload(5), storage.PutMeta{
			TTL:        &ttl,
			ReportID:   "report-1",
			DocumentID: "doc-1",
			RawBytes:   []byte("raw"),
			RowCount:   &rowCount,
		}))

		payload, err := store.GetCachedPayload(ctx, key)
		require.NoError(t, err)
		require.Len(t, payload.Rows, 1)
		assert.Equal(t, 5.0, payload.Rows[0].Units)

		info, err := store.GetStatus(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.CacheStatusOK, info.Status)
		assert.False(t, info.IsExpired)
		assert.Equal(t, "report-1", *info.ReportID)
		require.NotNil(t, info.ExpiresAtUTC)
		assert.Equal(t, now.Add(ttl), *info.ExpiresAtUTC)
	})

	t.Run("error entry replaces and reads as miss", func(t *testing.T) {
		key := testKey("2025-08-01", "2025-08-07")
		require.NoError(t, store.PutError(ctx, key, "upstream fatal", storage.PutMeta{}))

		_, err := store.GetCachedPayload(ctx, key)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		info, err := store.GetStatus(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.CacheStatusError, info.Status)
		assert.Equal(t, "upstream fatal", *info.ErrorMessage)
		assert.Equal(t, int64(0), *info.RowCount)
	})

	t.Run("ok entry replaces error entry", func(t *testing.T) {
		key := testKey("2025-08-01", "2025-08-07")
		require.NoError(t, store.PutOK(ctx, key, testPayload(9), storage.PutMeta{}))

		payload, err := store.GetCachedPayload(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 9.0, payload.Rows[0].Units)

		info, err := store.GetStatus(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, info.ErrorMessage)
	})

	t.Run("expiry and sweep", func(t *testing.T) {
		shortTTL := time.Minute
		key := testKey("2025-07-01", "2025-07-07")
		require.NoError(t, store.PutOK(ctx, key, testPayload(2), storage.PutMeta{TTL: &shortTTL}))

		now = now.Add(time.Hour)
		_, err := store.GetCachedPayload(ctx, key)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		deleted, err := store.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		// Never-expiring entries survive the sweep.
		_, err = store.GetCachedPayload(ctx, testKey("2025-08-01", "2025-08-07"))
		assert.NoError(t, err)
	})
}
