package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-report-lab/internal/domain"
)

var testKey = domain.CacheKey{
	ReportType:    "GET_SALES_AND_TRAFFIC_REPORT",
	MarketplaceID: "ATVPDKIKX0DER",
	DataStartDate: "2025-08-01",
	DataEndDate:   "2025-08-07",
	OptionsJSON:   "{}",
}

func TestNewOKEntry(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	pulled := now.Add(-2 * time.Minute)
	ttl := 6 * time.Hour
	rowCount := int64(2)

	payload := &domain.ReportPayload{Rows: []domain.SalesRow{
		{ChildASIN: "B001", MarketplaceSKU: "SKU-1", Units: 3},
		{ChildASIN: "B002", MarketplaceSKU: "SKU-2", Units: 1},
	}}
	raw := []byte(`{"salesAndTrafficByAsin":[]}`)

	entry, err := NewOKEntry(testKey, payload, PutMeta{
		TTL:        &ttl,
		PulledAt:   &pulled,
		ReportID:   "report-1",
		DocumentID: "doc-1",
		RawBytes:   raw,
		RowCount:   &rowCount,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, domain.CacheStatusOK, entry.Status)
	assert.JSONEq(t, `{"rows":[
		{"child_asin":"B001","amazon_sku":"SKU-1","units":3},
		{"child_asin":"B002","amazon_sku":"SKU-2","units":1}]}`, entry.ParsedJSON)
	assert.Nil(t, entry.ErrorMessage)
	require.NotNil(t, entry.ExpiresAtUTC)
	assert.Equal(t, now.Add(ttl), *entry.ExpiresAtUTC)
	require.NotNil(t, entry.PayloadHash)
	sum := sha256.Sum256(raw)
	assert.Equal(t, hex.EncodeToString(sum[:]), *entry.PayloadHash)
	assert.Equal(t, int64(2), *entry.RowCount)
}

func TestNewOKEntryNilPayload(t *testing.T) {
	_, err := NewOKEntry(testKey, nil, PutMeta{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewOKEntryNoTTLNeverExpires(t *testing.T) {
	entry, err := NewOKEntry(testKey, &domain.ReportPayload{}, PutMeta{}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, entry.ExpiresAtUTC)
}

func TestNewErrorEntry(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

	entry := NewErrorEntry(testKey, "create report: permission denied", PutMeta{}, now)

	assert.Equal(t, domain.CacheStatusError, entry.Status)
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, "create report: permission denied", *entry.ErrorMessage)

	// Diagnostic payload derives from the key and message.
	assert.JSONEq(t, `{
		"error":"create report: permission denied",
		"report_type":"GET_SALES_AND_TRAFFIC_REPORT",
		"marketplace_id":"ATVPDKIKX0DER",
		"data_start_date":"2025-08-01",
		"data_end_date":"2025-08-07"}`, entry.ParsedJSON)

	// Hash covers the diagnostic JSON; row count forced to zero.
	sum := sha256.Sum256([]byte(entry.ParsedJSON))
	require.NotNil(t, entry.PayloadHash)
	assert.Equal(t, hex.EncodeToString(sum[:]), *entry.PayloadHash)
	require.NotNil(t, entry.RowCount)
	assert.Equal(t, int64(0), *entry.RowCount)

	// Default error TTL applies when meta leaves it unset.
	require.NotNil(t, entry.ExpiresAtUTC)
	assert.Equal(t, now.Add(DefaultErrorTTL), *entry.ExpiresAtUTC)
}

func TestNewErrorEntryTruncatesMessage(t *testing.T) {
	long := strings.Repeat("x", MaxErrorMessageLen+500)
	entry := NewErrorEntry(testKey, long, PutMeta{}, time.Now())
	assert.Len(t, *entry.ErrorMessage, MaxErrorMessageLen)
}

func TestNewErrorEntryExplicitTTL(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	ttl := time.Minute
	entry := NewErrorEntry(testKey, "boom", PutMeta{TTL: &ttl}, now)
	require.NotNil(t, entry.ExpiresAtUTC)
	assert.Equal(t, now.Add(time.Minute), *entry.ExpiresAtUTC)
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.False(t, Expired(nil, now), "nil expiry never expires")
	assert.True(t, Expired(&past, now))
	assert.True(t, Expired(&now, now), "expiry boundary counts as expired")
	assert.False(t, Expired(&future, now))
}
