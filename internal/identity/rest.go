package identity

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

// RESTClient implements AdminClient against the hosted auth service's admin
// HTTP API.
type RESTClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// RESTClientConfig holds connection settings for the identity provider
type RESTClientConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

// NewRESTClient creates a new identity admin client
func NewRESTClient(config RESTClientConfig) (*RESTClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("identity base URL is required")
	}
	if config.ServiceKey == "" {
		return nil, fmt.Errorf("identity service key is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RESTClient{
		baseURL:    config.BaseURL,
		serviceKey: config.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// CreateUser creates an account with the email pre-confirmed
func (c *RESTClient) CreateUser(ctx context.Context, email, password string) (*Account, error) {
	payload := map[string]interface{}{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode create user request: %w", err)
	}

	endpoint := c.baseURL + "/auth/v1/admin/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build create user request: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("failed to decode create user response: %v", err)}
	}

	return &account, nil
}

// ListUsers returns one page of accounts
func (c *RESTClient) ListUsers(ctx context.Context, page, perPage int) ([]Account, error) {
	endpoint := fmt.Sprintf("%s/auth/v1/admin/users?page=%d&per_page=%d", c.baseURL, page, perPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list users request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var parsed struct {
		Users []Account `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("failed to decode list users response: %v", err)}
	}

	return parsed.Users, nil
}

// DeleteUser removes an account by ID
func (c *RESTClient) DeleteUser(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/auth/v1/admin/users/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete user request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}

func (c *RESTClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
}

// checkResponse converts non-2xx responses into APIError. The auth service
// reports errors under several keys depending on the endpoint, so all are
// tried before falling back to the raw body.
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
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		switch {
		case parsed.Msg != "":
			apiErr.Message = parsed.Msg
		case parsed.Message != "":
			apiErr.Message = parsed.Message
		case parsed.ErrorDescription != "":
			apiErr.Message = parsed.ErrorDescription
		}
	}
	if apiErr.Message == "" {
		if len(data) > 0 {
			apiErr.Message = string(data)
		} else {
			apiErr.Message = resp.Status
		}
	}

	return apiErr
}
