// Package hubclient is a Go client for the hub's HTTP surface: the WebSub endpoints,
// the health check and the admin API.
package hubclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

// APIError is returned for responses with a status of 400 or above
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hub error (%d): %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status of an *APIError anywhere in err's chain, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client provides HTTP client for the hub
type Client struct {
	config     Config
	httpClient *http.Client
	baseURL    *url.URL
}

// NewClient creates a new hub client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}

	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}
	if !baseURL.IsAbs() {
		return nil, fmt.Errorf("invalid ServerURL: %q is not absolute", config.ServerURL)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    baseURL,
	}, nil
}

// Subscribe asks the hub to verify and store a subscription.
// Success means the request was accepted; verification happens afterwards.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) error {
	form := url.Values{
		"hub.mode":     {"subscribe"},
		"hub.topic":    {req.Topic},
		"hub.callback": {req.Callback},
	}
	if req.Secret != "" {
		form.Set("hub.secret", req.Secret)
	}
	if req.LeaseSeconds > 0 {
		form.Set("hub.lease_seconds", strconv.FormatInt(req.LeaseSeconds, 10))
	}

	if err := c.doRequest(ctx, http.MethodPost, "/", nil, form, nil); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// Unsubscribe asks the hub to verify and remove a subscription
func (c *Client) Unsubscribe(ctx context.Context, topic, callback string) error {
	form := url.Values{
		"hub.mode":     {"unsubscribe"},
		"hub.topic":    {topic},
		"hub.callback": {callback},
	}

	if err := c.doRequest(ctx, http.MethodPost, "/", nil, form, nil); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// Publish notifies the hub that topics have new content
func (c *Client) Publish(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}

	form := url.Values{
		"hub.mode": {"publish"},
		"hub.url":  topics,
	}

	if err := c.doRequest(ctx, http.MethodPost, "/publish", nil, form, nil); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// GetHealth returns the health status of the hub. An unhealthy hub answers 503;
// its status is still decoded and returned along with the error.
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doOnce(ctx, http.MethodGet, "/health", nil, nil, &resp, http.StatusServiceUnavailable)
	if err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}
	if !resp.Healthy {
		return &resp, &APIError{StatusCode: http.StatusServiceUnavailable, Message: resp.Message}
	}
	return &resp, nil
}

// Admin Methods (require admin token)

// ListSubscriptions returns stored subscriptions, all of them when topic is empty
func (c *Client) ListSubscriptions(ctx context.Context, topic string) (*SubscriptionsResponse, error) {
	query := url.Values{}
	if topic != "" {
		query.Set("topic", topic)
	}

	var resp SubscriptionsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/admin/subscriptions", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return &resp, nil
}

// GetStats returns hub statistics
func (c *Client) GetStats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/admin/stats", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &resp, nil
}

// ListDeliveries returns recorded deliveries of topic, or the most recent overall
func (c *Client) ListDeliveries(ctx context.Context, topic string, limit int) (*DeliveriesResponse, error) {
	query := url.Values{}
	if topic != "" {
		query.Set("topic", topic)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp DeliveriesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/admin/deliveries", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return &resp, nil
}

// doRequest performs a request, retrying transport errors and 503 responses with
// exponential backoff up to MaxRetries times.
func (c *Client) doRequest(ctx context.Context, method, path string, query, form url.Values, respBody interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.config.MaxRetries, 0))), ctx)

	return backoff.Retry(func() error {
		err := c.doOnce(ctx, method, path, query, form, respBody)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// transportError marks a failure to reach the hub at all
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	return StatusCode(err) == http.StatusServiceUnavailable
}

// doOnce performs a single request. Statuses listed in accept are decoded like successes.
func (c *Client) doOnce(ctx context.Context, method, path string, query, form url.Values, respBody interface{}, accept ...int) error {
	u := &url.URL{Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	fullURL := c.baseURL.ResolveReference(u)

	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: fmt.Errorf("failed to read response body: %w", err)}
	}

	accepted := false
	for _, code := range accept {
		accepted = accepted || resp.StatusCode == code
	}

	if resp.StatusCode >= 400 && !accepted {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp, bodyBytes)}
	}

	if respBody != nil {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts the reason from a JSON or plain text error body
func errorMessage(resp *http.Response, body []byte) string {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			return errResp.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
