package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RESTClient implements TableStore against the hosted store's PostgREST-style
// HTTP API: offset pagination via Range headers, merge upserts via the
// on_conflict query parameter, and filtered deletes via column operators in
// the query string.
type RESTClient struct {
	baseURL    string
	apiKey     string
	authToken  string
	httpClient *http.Client
}

// RESTClientConfig holds connection settings for the hosted data store
type RESTClientConfig struct {
	BaseURL   string
	APIKey    string
	AuthToken string
	Timeout   time.Duration
}

// NewRESTClient creates a new REST table store client
func NewRESTClient(config RESTClientConfig) (*RESTClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("store base URL is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("store API key is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	authToken := config.AuthToken
	if authToken == "" {
		authToken = config.APIKey
	}

	return &RESTClient{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Select returns rows in the inclusive offset range [from, to]
func (c *RESTClient) Select(ctx context.Context, table string, from, to int) ([]Row, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?select=*", c.baseURL, url.PathEscape(table))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build select request: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Range-Unit", "items")
	req.Header.Set("Range", fmt.Sprintf("%d-%d", from, to))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var rows []Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("failed to decode select response: %v", err)}
	}

	return rows, nil
}

// Upsert writes rows, resolving conflicts on conflictKey by merge
func (c *RESTClient) Upsert(ctx context.Context, table string, rows []Row, conflictKey string) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?on_conflict=%s",
		c.baseURL, url.PathEscape(table), url.QueryEscape(conflictKey))
	return c.write(ctx, endpoint, rows, "resolution=merge-duplicates,return=minimal")
}

// Insert writes rows without conflict resolution
func (c *RESTClient) Insert(ctx context.Context, table string, rows []Row) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(table))
	return c.write(ctx, endpoint, rows, "return=minimal")
}

// Delete removes all rows matching the filter
func (c *RESTClient) Delete(ctx context.Context, table string, filter Filter) error {
	if filter.Column == "" || filter.Operator == "" {
		return &APIError{Message: "delete requires a filter"}
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s=%s.%s",
		c.baseURL, url.PathEscape(table),
		url.QueryEscape(filter.Column), filter.Operator, url.QueryEscape(filter.Value))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}

// write POSTs a row batch with the given Prefer directives
func (c *RESTClient) write(ctx context.Context, endpoint string, rows []Row, prefer string) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build write request: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}

func (c *RESTClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

// checkResponse converts non-2xx responses into APIError, preserving the
// store's message text so callers can classify it.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		apiErr.Message = resp.Status
		return apiErr
	}

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Message != "" {
		apiErr.Message = parsed.Message
	} else if len(data) > 0 {
		apiErr.Message = string(data)
	} else {
		apiErr.Message = resp.Status
	}

	return apiErr
}
