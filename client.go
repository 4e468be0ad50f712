package devicecloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultBaseURL is the device cloud API base URL.
	DefaultBaseURL = "https://api.us-east-1.devicecloud.io"

	// DefaultTimeout is the default HTTP request timeout. Long-poll requests
	// block server-side for up to 30 seconds, so the timeout must exceed that.
	DefaultTimeout = 50 * time.Second

	// DefaultPollInterval is the default delay between long-poll requests.
	DefaultPollInterval = 500 * time.Millisecond
)

// RetryConfig configures automatic retry behavior for transient failures.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	MaxRetries int
	// InitialBackoff is the initial backoff duration (default: 100ms).
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration (default: 5s).
	MaxBackoff time.Duration
	// Multiplier is the backoff multiplier (default: 2.0).
	Multiplier float64
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// RateLimitInfo contains rate limit information from API response headers.
type RateLimitInfo struct {
	Limit     int       // Maximum requests allowed in the window
	Remaining int       // Requests remaining in current window
	Reset     time.Time // When the rate limit window resets
}

// RateLimitCallback is called when rate limit headers are received.
// Can be used for monitoring or preemptive throttling.
type RateLimitCallback func(RateLimitInfo)

// Client is a device cloud API client.
//
// One Client owns one notification channel: the pending async-response
// registry, the per-resource subscription registry and the polling loop all
// belong to the instance and are reachable only through its methods.
type Client struct {
	baseURL           string
	apiKey            string
	httpClient        *http.Client
	retryConfig       *RetryConfig
	logger            *slog.Logger
	rateLimitCallback RateLimitCallback
	lastRateLimit     *RateLimitInfo
	rateLimitMu       sync.RWMutex

	// Notification channel lifecycle (see notifications.go).
	channelMu         sync.Mutex
	channelState      channelState
	pollCancel        context.CancelFunc
	pollDone          chan struct{}
	handleNotif       atomic.Bool
	failPendingOnStop bool

	// dispatchMu serializes Notify so each envelope is processed to
	// completion before the next begins, regardless of source.
	dispatchMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan asyncResult

	subsMu        sync.RWMutex
	subscriptions map[string]NotificationFunc

	listenerMu        sync.RWMutex
	notificationFns   []NotificationFunc
	registrationFns   []DeviceEventFunc
	reregistrationFns []DeviceEventFunc
	deregistrationFns []DeviceEventFunc
	expiredFns        []DeviceEventFunc
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP request timeout.
// This option can be applied in any order relative to other options.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithRetry enables automatic retry with the given configuration.
// Retries are attempted on rate limits (429), server errors (5xx), and timeouts.
func WithRetry(config *RetryConfig) Option {
	return func(c *Client) {
		c.retryConfig = config
	}
}

// WithRateLimitCallback sets a callback that is invoked when rate limit headers are received.
// This can be used for monitoring, logging, or preemptive throttling.
func WithRateLimitCallback(callback RateLimitCallback) Option {
	return func(c *Client) {
		c.rateLimitCallback = callback
	}
}

// WithFailPendingOnStop makes StopNotifications complete every outstanding
// async resource operation with ErrChannelStopped instead of leaving it
// waiting forever. The default preserves the remote protocol's behavior:
// pending operations stay unresolved until their caller's context expires.
func WithFailPendingOnStop() Option {
	return func(c *Client) {
		c.failPendingOnStop = true
	}
}

// NewClient creates a new device cloud API client.
// Returns ErrEmptyAPIKey if apiKey is empty.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DisableKeepAlives:   false,
			},
		},
		pending:       make(map[string]chan asyncResult),
		subscriptions: make(map[string]NotificationFunc),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// apiResponse is the raw outcome of one successful HTTP round trip.
type apiResponse struct {
	status      int
	contentType string
	body        []byte
}

// do performs an HTTP request and returns the raw response.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*apiResponse, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	c.logRequest(ctx, method, path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logError(ctx, method, path, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.parseRateLimitHeaders(resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logResponse(ctx, method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		return nil, c.handleError(resp.StatusCode, respBody, resp.Header.Get("Retry-After"))
	}

	return &apiResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        respBody,
	}, nil
}

// parseRateLimitHeaders extracts rate limit information from response headers.
func (c *Client) parseRateLimitHeaders(header http.Header) {
	limit := header.Get("X-RateLimit-Limit")
	remaining := header.Get("X-RateLimit-Remaining")
	reset := header.Get("X-RateLimit-Reset")

	// Only process if at least one header is present
	if limit == "" && remaining == "" && reset == "" {
		return
	}

	info := RateLimitInfo{}

	if limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			info.Limit = v
		}
	}

	if remaining != "" {
		if v, err := strconv.Atoi(remaining); err == nil {
			info.Remaining = v
		}
	}

	if reset != "" {
		if v, err := strconv.ParseInt(reset, 10, 64); err == nil {
			info.Reset = time.Unix(v, 0)
		}
	}

	c.rateLimitMu.Lock()
	c.lastRateLimit = &info
	c.rateLimitMu.Unlock()

	if c.rateLimitCallback != nil {
		c.rateLimitCallback(info)
	}
}

// handleError converts HTTP error responses to appropriate errors.
func (c *Client) handleError(statusCode int, body []byte, retryAfter string) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return &RateLimitError{
			RetryAfter: parseRetryAfter(retryAfter),
			Info:       c.RateLimitInfo(),
		}
	default:
		// Try to extract the structured error body
		var errResp struct {
			Code      int    `json:"code"`
			Type      string `json:"type"`
			Message   string `json:"message"`
			RequestID string `json:"request_id"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			return &APIError{
				StatusCode: statusCode,
				Type:       errResp.Type,
				Message:    errResp.Message,
				RequestID:  errResp.RequestID,
			}
		}
		return &APIError{
			StatusCode: statusCode,
			Message:    string(body),
		}
	}
}

// SetAPIKey updates the client's API key.
func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = apiKey
}

// RateLimitInfo returns the most recent rate limit information from API responses.
// Returns nil if no rate limit headers have been received yet.
func (c *Client) RateLimitInfo() *RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	if c.lastRateLimit == nil {
		return nil
	}
	// Return a copy to prevent race conditions
	info := *c.lastRateLimit
	return &info
}

// get performs a GET request and returns the response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// post performs a POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, http.MethodPost, path, "", data)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// put performs a PUT request with a JSON body.
func (c *Client) put(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, http.MethodPut, path, "", data)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// delete performs a DELETE request.
func (c *Client) delete(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.doWithRetry(ctx, http.MethodDelete, path, "", nil)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// marshalBody serializes a JSON request body, passing nil through.
func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}

// doWithRetry performs a request with automatic retry on transient failures.
func (c *Client) doWithRetry(ctx context.Context, method, path, contentType string, body []byte) (*apiResponse, error) {
	if c.retryConfig == nil {
		return c.do(ctx, method, path, contentType, body)
	}

	var lastErr error
	backoff := c.retryConfig.InitialBackoff

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		resp, err := c.do(ctx, method, path, contentType, body)
		if err == nil {
			return resp, nil
		}

		// Only retry on transient errors
		if !c.isRetryable(err) {
			return nil, err
		}

		lastErr = err

		if attempt < c.retryConfig.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * c.retryConfig.Multiplier)
				if backoff > c.retryConfig.MaxBackoff {
					backoff = c.retryConfig.MaxBackoff
				}
			}
		}
	}

	return nil, lastErr
}

// isRetryable returns true if the error is a transient failure worth retrying.
func (c *Client) isRetryable(err error) bool {
	if IsRateLimited(err) {
		return true
	}
	if IsTimeout(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// Retry on 5xx server errors
		return apiErr.StatusCode >= 500 && apiErr.StatusCode < 600
	}
	return false
}
