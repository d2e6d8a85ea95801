// Package warehouse pulls available inventory quantities from the
// warehouse-management REST API via a saved inventory view.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultPageSize = 500

	maxErrorBodyLen = 512
)

// Credentials authenticate against the warehouse API token endpoint.
type Credentials struct {
	Username string
	Password string
}

// ViewQuery selects a saved inventory view and how to read it.
type ViewQuery struct {
	ViewID    int
	PageSize  int
	QtyField  string   // payload field holding the available quantity
	SKUFields []string // candidate fields naming the product SKU, first non-blank wins
	// ExcludeZero drops products whose summed quantity is zero.
	ExcludeZero bool
}

// Quantities maps a trimmed product SKU to its summed available quantity.
type Quantities map[string]float64

// InventoryService fetches warehouse quantities.
type InventoryService interface {
	Quantities(ctx context.Context, q ViewQuery) (Quantities, error)
}

// APIError is a non-2xx warehouse API response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("warehouse %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Client implements InventoryService over HTTP with bearer-token auth.
// Explicitly constructed; the token is cached for the client's lifetime.
type Client struct {
	endpoint string
	creds    Credentials
	client   *http.Client

	mu    sync.Mutex
	token string
}

// ClientOption configures Client.
type ClientOption func(*Client)

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

// NewClient creates a warehouse API client rooted at the given endpoint.
func NewClient(endpoint string, creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		creds:    creds,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ InventoryService = (*Client)(nil)

// tokenFor logs in on first use and returns the cached bearer token.
func (c *Client) tokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"Username": c.creds.Username,
		"Password": c.creds.Password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("warehouse login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Operation: "login", StatusCode: resp.StatusCode, Body: boundedBody(resp.Body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("login response missing access_token")
	}

	c.token = payload.AccessToken
	return c.token, nil
}

// Quantities pages through the saved view and folds rows into per-SKU
// quantity totals. Duplicate SKUs across pages are summed.
func (c *Client) Quantities(ctx context.Context, q ViewQuery) (Quantities, error) {
	if q.QtyField == "" {
		return nil, fmt.Errorf("view query missing quantity field")
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	out := make(Quantities)
	for page := 1; ; page++ {
		rows, err := c.fetchPage(ctx, q.ViewID, page, pageSize)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			sku := extractSKU(row, q.SKUFields)
			if sku == "" {
				continue
			}
			out[sku] += extractQty(row, q.QtyField)
		}

		if len(rows) < pageSize {
			break
		}
	}

	if q.ExcludeZero {
		for sku, qty := range out {
			if qty == 0 {
				delete(out, sku)
			}
		}
	}
	return out, nil
}

// fetchPage retrieves one page of the saved view.
func (c *Client) fetchPage(ctx context.Context, viewID, page, pageSize int) ([]map[string]json.RawMessage, error) {
	token, err := c.tokenFor(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/Inventory/GetAllByView?viewID=%d&pageNumber=%d&pageSize=%d",
		c.endpoint, viewID, page, pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build inventory request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Operation: "inventory page", StatusCode: resp.StatusCode, Body: boundedBody(resp.Body)}
	}

	// The endpoint answers either a bare array or {"Items": [...]}.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read inventory page %d: %w", page, err)
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}
	var wrapped struct {
		Items []map[string]json.RawMessage `json:"Items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode inventory page %d: %w", page, err)
	}
	return wrapped.Items, nil
}

// extractSKU returns the first non-blank candidate field, trimmed.
func extractSKU(row map[string]json.RawMessage, fields []string) string {
	for _, field := range fields {
		raw, ok := row[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// extractQty reads the quantity field as a number, tolerating string
// encodings; anything unreadable counts as zero.
func extractQty(row map[string]json.RawMessage, field string) float64 {
	raw, ok := row[field]
	if !ok {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return n
}

func boundedBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyLen))
	return string(data)
}
