package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the main NFlow API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	language   string
	token      string // access token for authenticated requests
}

// Config holds the client configuration
type Config struct {
	BaseURL    string        // API base URL (e.g., "https://api.nflow.app")
	Language   string        // Optional Accept-Language for localized messages
	Timeout    time.Duration // HTTP client timeout (default: 60s)
	HTTPClient *http.Client  // Optional custom HTTP client
}

// NewClient creates a new NFlow API client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		// assistant replies can take a while
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		language:   cfg.Language,
	}
}

// SetToken sets the access token for authenticated requests
func (c *Client) SetToken(token string) {
	c.token = token
}

// GetToken returns the current access token
func (c *Client) GetToken() string {
	return c.token
}

// envelope is the success wrapper most endpoints respond with
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// doRequest performs an HTTP request and decodes the payload into result.
// Enveloped responses are unwrapped; flat responses are decoded as is.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// Perform request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response body
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for errors
	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err == nil && env.Success != nil {
		if len(env.Data) == 0 {
			return nil
		}
		respBody = env.Data
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// Auth returns the session service
func (c *Client) Auth() *AuthService {
	return &AuthService{client: c}
}

// Chat returns the assistant chat service
func (c *Client) Chat() *ChatService {
	return &ChatService{client: c}
}

// Billing returns the subscription service
func (c *Client) Billing() *BillingService {
	return &BillingService{client: c}
}

// Admin returns the administration service
func (c *Client) Admin() *AdminService {
	return &AdminService{client: c}
}
