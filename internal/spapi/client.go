package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Default configuration values.
const (
	DefaultEndpoint     = "https://sellingpartnerapi-na.amazon.com"
	DefaultAuthEndpoint = "https://api.amazon.com/auth/o2/token"
	DefaultTimeout      = 30 * time.Second
	reportsAPIPath      = "/reports/2021-06-30"

	// tokenRefreshMargin renews the access token slightly before expiry so
	// in-flight calls never carry a token about to lapse.
	tokenRefreshMargin = 60 * time.Second

	maxErrorBodyLen = 512
)

// Credentials are the LWA secrets needed for authenticated calls.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Client implements ReportsService against the live reporting API. It is
// explicitly constructed and owned by its caller; there is no ambient
// shared instance.
type Client struct {
	endpoint     string
	authEndpoint string
	creds        Credentials
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithEndpoint sets the regional API endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithAuthEndpoint sets the LWA token endpoint.
func WithAuthEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.authEndpoint = endpoint
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// NewClient creates a reporting API client.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:     DefaultEndpoint,
		authEndpoint: DefaultAuthEndpoint,
		creds:        creds,
		client:       &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ ReportsService = (*Client)(nil)

// accessTokenFor returns a live access token, exchanging the refresh
// token when none is cached or the cached one is near expiry.
func (c *Client) accessTokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRefreshMargin)) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.creds.RefreshToken},
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange refresh token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Operation: "token exchange", StatusCode: resp.StatusCode, Body: boundedBody(resp.Body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// CreateReport requests generation of a report and returns its id.
func (c *Client) CreateReport(ctx context.Context, spec CreateReportSpec) (string, error) {
	body := map[string]any{
		"reportType":     spec.ReportType,
		"marketplaceIds": spec.MarketplaceIDs,
		"dataStartTime":  spec.DataStartTime.UTC().Truncate(time.Second).Format(time.RFC3339),
		"dataEndTime":    spec.DataEndTime.UTC().Truncate(time.Second).Format(time.RFC3339),
	}
	if len(spec.ReportOptions) > 0 {
		body["reportOptions"] = spec.ReportOptions
	}

	var payload struct {
		ReportID string `json:"reportId"`
	}
	if err := c.call(ctx, http.MethodPost, reportsAPIPath+"/reports", body, &payload); err != nil {
		return "", err
	}
	if payload.ReportID == "" {
		return "", fmt.Errorf("create report: response missing reportId")
	}
	return payload.ReportID, nil
}

// GetReport retrieves the current processing status for a report.
func (c *Client) GetReport(ctx context.Context, reportID string) (*ReportStatus, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, reportsAPIPath+"/reports/"+url.PathEscape(reportID), nil, &raw); err != nil {
		return nil, err
	}

	var payload struct {
		ReportID         string `json:"reportId"`
		ProcessingStatus string `json:"processingStatus"`
		DocumentID       string `json:"reportDocumentId"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode report status: %w", err)
	}

	return &ReportStatus{
		ReportID:         payload.ReportID,
		ProcessingStatus: payload.ProcessingStatus,
		DocumentID:       payload.DocumentID,
		Raw:              raw,
	}, nil
}

// GetReportDocument resolves a finished report's document location.
func (c *Client) GetReportDocument(ctx context.Context, documentID string) (*ReportDocument, error) {
	var payload struct {
		DocumentID           string `json:"reportDocumentId"`
		URL                  string `json:"url"`
		CompressionAlgorithm string `json:"compressionAlgorithm"`
		EncryptionDetails    *struct {
			Standard             string `json:"standard"`
			Key                  string `json:"key"`
			InitializationVector string `json:"initializationVector"`
		} `json:"encryptionDetails"`
	}
	if err := c.call(ctx, http.MethodGet, reportsAPIPath+"/documents/"+url.PathEscape(documentID), nil, &payload); err != nil {
		return nil, err
	}
	if payload.URL == "" {
		return nil, fmt.Errorf("report document %s missing url", documentID)
	}

	doc := &ReportDocument{
		DocumentID:           payload.DocumentID,
		URL:                  payload.URL,
		CompressionAlgorithm: payload.CompressionAlgorithm,
	}
	if payload.EncryptionDetails != nil {
		doc.EncryptionDetails = &EncryptionDetails{
			Standard:             payload.EncryptionDetails.Standard,
			Key:                  payload.EncryptionDetails.Key,
			InitializationVector: payload.EncryptionDetails.InitializationVector,
		}
	}
	return doc, nil
}

// DownloadDocument fetches raw bytes from the document's presigned URL.
// The URL is pre-authorized, so no access token is attached.
func (c *Client) DownloadDocument(ctx context.Context, doc *ReportDocument) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download report document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Operation: "download document", StatusCode: resp.StatusCode, Body: boundedBody(resp.Body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read report document: %w", err)
	}
	return data, nil
}

// call performs one authenticated JSON request against the reporting API.
func (c *Client) call(ctx context.Context, method, path string, body any, result any) error {
	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-amz-access-token", token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", method, path, ErrThrottled)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrForbidden)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{Operation: method + " " + path, StatusCode: resp.StatusCode, Body: boundedBody(resp.Body)}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func boundedBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyLen))
	return string(data)
}
