package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client provides HTTP client functionality to communicate with an observr daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8601/observr",
		Timeout: 10 * time.Second,
	}
}

// New creates a new observr API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8601/observr"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/observers", nil)
	if err != nil {
		c.logger.Debug("failed to create request for reachability check", "error", err)
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	reachable := resp.StatusCode != http.StatusNotFound
	c.logger.Debug("daemon reachability check", "reachable", reachable, "status", resp.StatusCode)
	return reachable
}

// Observers lists the status of every registered observer
func (c *Client) Observers(ctx context.Context) ([]ObserverStatus, error) {
	var out []ObserverStatus
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/observers", nil, &out)
	return out, err
}

// CreateObserver registers a new observer for a path
func (c *Client) CreateObserver(ctx context.Context, req CreateObserverRequest) (ObserverStatus, error) {
	c.logger.Debug("creating observer", "path", req.Path, "name", req.Name)
	data, err := json.Marshal(req)
	if err != nil {
		return ObserverStatus{}, fmt.Errorf("marshal request: %w", err)
	}
	var out ObserverStatus
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/observers", data, &out); err != nil {
		return ObserverStatus{}, err
	}
	return out, nil
}

// ObserverStatus returns the status of one observer
func (c *Client) ObserverStatus(ctx context.Context, name string) (ObserverStatus, error) {
	var out ObserverStatus
	err := c.doRequest(ctx, http.MethodGet, c.buildURL("/observers/status", url.Values{"name": {name}}), nil, &out)
	return out, err
}

// StartObserver begins watching. A positive duration stops the observer
// again after it elapses; zero watches until stopped.
func (c *Client) StartObserver(ctx context.Context, name string, duration time.Duration) error {
	q := url.Values{"name": {name}}
	if duration > 0 {
		q.Set("duration", duration.String())
	}
	return c.doRequest(ctx, http.MethodPost, c.buildURL("/observers/start", q), nil, nil)
}

// StopObserver halts a running observer
func (c *Client) StopObserver(ctx context.Context, name string) error {
	return c.doRequest(ctx, http.MethodPost, c.buildURL("/observers/stop", url.Values{"name": {name}}), nil, nil)
}

// DeleteObserver stops and unregisters an observer
func (c *Client) DeleteObserver(ctx context.Context, name string) error {
	return c.doRequest(ctx, http.MethodDelete, c.buildURL("/observers", url.Values{"name": {name}}), nil, nil)
}

// Services lists the defined watch services
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	var out []Service
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/services", nil, &out)
	return out, err
}

// DefineService writes a launcher artifact for a path
func (c *Client) DefineService(ctx context.Context, req DefineServiceRequest) (Service, error) {
	c.logger.Debug("defining service", "path", req.Path, "name", req.Name)
	data, err := json.Marshal(req)
	if err != nil {
		return Service{}, fmt.Errorf("marshal request: %w", err)
	}
	var out Service
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/services", data, &out); err != nil {
		return Service{}, err
	}
	return out, nil
}

// DiscoverServices registers services found in the daemon's service directory
func (c *Client) DiscoverServices(ctx context.Context) ([]Service, error) {
	var out []Service
	err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/services/discover", nil, &out)
	return out, err
}

// LaunchService starts a defined service detached from the daemon
func (c *Client) LaunchService(ctx context.Context, name, output string) error {
	q := url.Values{"name": {name}}
	if output != "" {
		q.Set("output", output)
	}
	return c.doRequest(ctx, http.MethodPost, c.buildURL("/services/launch", q), nil, nil)
}

// StopService kills a running service process
func (c *Client) StopService(ctx context.Context, name string) error {
	return c.doRequest(ctx, http.MethodPost, c.buildURL("/services/stop", url.Values{"name": {name}}), nil, nil)
}

// SignalService sends a named signal to a service process
func (c *Client) SignalService(ctx context.Context, name, signal string) error {
	q := url.Values{"name": {name}, "signal": {signal}}
	return c.doRequest(ctx, http.MethodPost, c.buildURL("/services/signal", q), nil, nil)
}

// ServicePID returns the pid of a running service
func (c *Client) ServicePID(ctx context.Context, name string) (int32, error) {
	var out PIDResponse
	if err := c.doRequest(ctx, http.MethodGet, c.buildURL("/services/pid", url.Values{"name": {name}}), nil, &out); err != nil {
		return 0, err
	}
	return out.PID, nil
}

// RemoveService deletes a service definition and its files
func (c *Client) RemoveService(ctx context.Context, name string) error {
	return c.doRequest(ctx, http.MethodDelete, c.buildURL("/services", url.Values{"name": {name}}), nil, nil)
}

// Changes returns the full change log document
func (c *Client) Changes(ctx context.Context) (ChangeDocument, error) {
	var out ChangeDocument
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/changes", nil, &out)
	return out, err
}

// ChangesByType returns every path recorded under one event type
func (c *Client) ChangesByType(ctx context.Context, eventType string) ([]string, error) {
	var out []string
	err := c.doRequest(ctx, http.MethodGet, c.buildURL("/changes", url.Values{"type": {eventType}}), nil, &out)
	return out, err
}

// ChangesByObserver returns one observer's records grouped by event type
func (c *Client) ChangesByObserver(ctx context.Context, observer string) (map[string][]string, error) {
	var out map[string][]string
	err := c.doRequest(ctx, http.MethodGet, c.buildURL("/changes", url.Values{"observer": {observer}}), nil, &out)
	return out, err
}

// SearchChanges returns every recorded path containing the query
func (c *Client) SearchChanges(ctx context.Context, query string) ([]string, error) {
	var out []string
	err := c.doRequest(ctx, http.MethodGet, c.buildURL("/changes", url.Values{"search": {query}}), nil, &out)
	return out, err
}

// ServiceResources returns the latest resource sample for every tracked service
func (c *Client) ServiceResources(ctx context.Context) (map[string]ResourceSample, error) {
	var out map[string]ResourceSample
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/services/resources", nil, &out)
	return out, err
}

// ServiceResource returns the latest resource sample for one service
func (c *Client) ServiceResource(ctx context.Context, name string) (ResourceSample, error) {
	var out ResourceSample
	err := c.doRequest(ctx, http.MethodGet, c.buildURL("/services/resources", url.Values{"name": {name}}), nil, &out)
	return out, err
}

// buildURL appends escaped query parameters to an endpoint path
func (c *Client) buildURL(path string, q url.Values) string {
	return c.baseURL + path + "?" + q.Encode()
}

// doRequest performs an HTTP request with common error handling and
// decodes the response into out when it is non-nil
func (c *Client) doRequest(ctx context.Context, method, requestURL string, body []byte, out any) error {
	var bodyReader *bytes.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	var req *http.Request
	var err error
	if bodyReader != nil {
		req, err = http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, requestURL, nil)
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", requestURL)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Error("failed to decode error response", "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Error("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}
