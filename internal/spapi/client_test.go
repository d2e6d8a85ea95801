package spapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an httptest server covering the LWA token endpoint and the
// reporting API paths.
type fakeAPI struct {
	t              *testing.T
	tokenExchanges int
	createStatus   int // 0 means success
	reportStatus   string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/o2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenExchanges++
		require.NoError(f.t, r.ParseForm())
		require.Equal(f.t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(f.t, "refresh-1", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "access-1", "expires_in": 3600})
	})
	mux.HandleFunc("/reports/2021-06-30/reports", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(f.t, "access-1", r.Header.Get("x-amz-access-token"))
		if f.createStatus != 0 {
			w.WriteHeader(f.createStatus)
			return
		}

		var body struct {
			ReportType     string            `json:"reportType"`
			MarketplaceIDs []string          `json:"marketplaceIds"`
			DataStartTime  string            `json:"dataStartTime"`
			DataEndTime    string            `json:"dataEndTime"`
			ReportOptions  map[string]string `json:"reportOptions"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(f.t, "GET_SALES_AND_TRAFFIC_REPORT", body.ReportType)
		require.Equal(f.t, "2025-08-01T00:00:00Z", body.DataStartTime)
		require.Equal(f.t, "2025-08-07T23:59:59Z", body.DataEndTime)

		json.NewEncoder(w).Encode(map[string]string{"reportId": "report-7"})
	})
	mux.HandleFunc("/reports/2021-06-30/reports/report-7", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"reportId":         "report-7",
			"processingStatus": f.reportStatus,
			"reportDocumentId": "doc-7",
		})
	})
	mux.HandleFunc("/reports/2021-06-30/documents/doc-7", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"reportDocumentId":     "doc-7",
			"url":                  "https://signed.example.com/doc-7",
			"compressionAlgorithm": "GZIP",
			"encryptionDetails": map[string]string{
				"standard":             "AES",
				"key":                  "a2V5",
				"initializationVector": "aXY=",
			},
		})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(Credentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "refresh-1"},
		WithEndpoint(srv.URL),
		WithAuthEndpoint(srv.URL+"/auth/o2/token"))
}

func testSpec() CreateReportSpec {
	return CreateReportSpec{
		ReportType:     "GET_SALES_AND_TRAFFIC_REPORT",
		MarketplaceIDs: []string{"ATVPDKIKX0DER"},
		DataStartTime:  time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		DataEndTime:    time.Date(2025, 8, 7, 23, 59, 59, 0, time.UTC),
	}
}

func TestCreateReport(t *testing.T) {
	f := &fakeAPI{t: t}
	client := newTestClient(t, f)
	ctx := context.Background()

	reportID, err := client.CreateReport(ctx, testSpec())
	require.NoError(t, err)
	assert.Equal(t, "report-7", reportID)

	// Access token cached: a second call does not re-exchange.
	_, err = client.CreateReport(ctx, testSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, f.tokenExchanges)
}

func TestCreateReportThrottled(t *testing.T) {
	client := newTestClient(t, &fakeAPI{t: t, createStatus: http.StatusTooManyRequests})
	_, err := client.CreateReport(context.Background(), testSpec())
	assert.ErrorIs(t, err, ErrThrottled)
}

func TestCreateReportForbidden(t *testing.T) {
	client := newTestClient(t, &fakeAPI{t: t, createStatus: http.StatusForbidden})
	_, err := client.CreateReport(context.Background(), testSpec())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateReportServerError(t *testing.T) {
	client := newTestClient(t, &fakeAPI{t: t, createStatus: http.StatusInternalServerError})
	_, err := client.CreateReport(context.Background(), testSpec())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestGetReport(t *testing.T) {
	client := newTestClient(t, &fakeAPI{t: t, reportStatus: StatusDone})

	status, err := client.GetReport(context.Background(), "report-7")
	require.NoError(t, err)
	assert.Equal(t, "report-7", status.ReportID)
	assert.Equal(t, StatusDone, status.ProcessingStatus)
	assert.Equal(t, "doc-7", status.DocumentID)
	assert.True(t, status.Terminal())
	assert.NotEmpty(t, status.Raw, "raw status payload retained")
}

func TestGetReportDocument(t *testing.T) {
	client := newTestClient(t, &fakeAPI{t: t})

	doc, err := client.GetReportDocument(context.Background(), "doc-7")
	require.NoError(t, err)
	assert.Equal(t, "doc-7", doc.DocumentID)
	assert.Equal(t, "https://signed.example.com/doc-7", doc.URL)
	assert.Equal(t, "GZIP", doc.CompressionAlgorithm)
	require.NotNil(t, doc.EncryptionDetails)
	assert.Equal(t, "AES", doc.EncryptionDetails.Standard)
}

func TestDownloadDocument(t *testing.T) {
	payload := []byte("report bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Presigned URLs carry their own auth; no token header expected.
		assert.Empty(t, r.Header.Get("x-amz-access-token"))
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Credentials{})
	got, err := client.DownloadDocument(context.Background(), &ReportDocument{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReportStatusTerminal(t *testing.T) {
	assert.True(t, (&ReportStatus{ProcessingStatus: StatusDone}).Terminal())
	assert.True(t, (&ReportStatus{ProcessingStatus: StatusFatal}).Terminal())
	assert.True(t, (&ReportStatus{ProcessingStatus: StatusCancelled}).Terminal())
	assert.False(t, (&ReportStatus{ProcessingStatus: "IN_PROGRESS"}).Terminal())
}
