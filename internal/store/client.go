package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ourresearch/openalex-api-analytics/internal/metrics"
)

const queryPath = "/api/v1/query"

// QueryError is a store-side query failure carrying the store's status
// and message. Nothing here is retried: a failed query fails the whole
// aggregation for the request.
type QueryError struct {
	Status  int
	Message string
}

func (e QueryError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store query failed with status %d", e.Status)
	}
	return fmt.Sprintf("store query failed (%d): %s", e.Status, e.Message)
}

// Client issues query expressions against the sampled telemetry store.
type Client struct {
	baseURL    string
	token      string
	dataset    string
	maxGroups  int
	maxSamples int
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken sets the bearer token sent to the store.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithRowCaps overrides the per-query row caps.
func WithRowCaps(maxGroups, maxSamples int) Option {
	return func(c *Client) {
		if maxGroups > 0 {
			c.maxGroups = maxGroups
		}
		if maxSamples > 0 {
			c.maxSamples = maxSamples
		}
	}
}

// WithTimeout replaces the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client for the given store base URL and dataset.
func New(base, dataset string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("empty store base url")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid store base url: %w", err)
	}
	if strings.TrimSpace(dataset) == "" {
		return nil, fmt.Errorf("empty store dataset")
	}
	c := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		dataset:    strings.TrimSpace(dataset),
		maxGroups:  10000,
		maxSamples: 50000,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Execute runs a query expression and returns the raw loosely-typed rows.
// An empty row set is a valid result, not an error.
func (c *Client) Execute(ctx context.Context, q Query) ([]map[string]any, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform store query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, QueryError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	var body struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, QueryError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	return body.Rows, nil
}

// GroupedUsage queries usage grouped by (key, status) since the given time
// and coerces the rows. The optional filter narrows to one key or to a
// half-open key range.
func (c *Client) GroupedUsage(ctx context.Context, since time.Time, filter *KeyFilter) ([]metrics.GroupRow, error) {
	raw, err := c.Execute(ctx, c.groupedQuery(since, filter))
	if err != nil {
		return nil, err
	}
	rows := make([]metrics.GroupRow, 0, len(raw))
	for _, record := range raw {
		row, err := coerceGroupRow(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Samples fetches raw weighted samples since the given time for timeline
// construction.
func (c *Client) Samples(ctx context.Context, since time.Time, filter *KeyFilter) ([]metrics.Sample, error) {
	raw, err := c.Execute(ctx, c.samplesQuery(since, filter))
	if err != nil {
		return nil, err
	}
	samples := make([]metrics.Sample, 0, len(raw))
	for _, record := range raw {
		sample, err := coerceSampleRow(record)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// Ping probes store availability for health checks.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return QueryError{Status: resp.StatusCode, Message: "store health check failed"}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
