package plantapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"plant-telemetry-pipeline/internal/metrics"
	"plant-telemetry-pipeline/internal/models"
)

const (
	DefaultBaseURL      = "https://tools.sigmalabs.co.uk/api"
	DefaultTimeout      = 5 * time.Second
	DefaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
	maxErrorBody        = 4096
)

// Client is a plant telemetry API client
type Client struct {
	httpClient   *http.Client
	baseURL      string
	logger       *slog.Logger
	limiter      *RateLimiter
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit caps outgoing requests per second across all callers.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.limiter = NewRateLimiter(perSecond) }
}

// WithRetries sets how many times a retryable request is re-sent
func WithRetries(n int) Option {
	return func(c *Client) { c.maxRetries = max(n, 0) }
}

// WithBackoff sets the initial and maximum delay between retries
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.initialDelay = initial
		c.maxDelay = maxDelay
	}
}

// NewClient creates a new plant telemetry API client
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       slog.Default(),
		limiter:      NewRateLimiter(0),
		maxRetries:   DefaultMaxRetries,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPlant retrieves the record for one plant ID.
//
// Soft errors reported by the API ("plant not found", sensor faults, ...)
// come back as a record with Error set, not as a Go error. A 404 without
// a JSON error body is reported the same way as "plant not found".
func (c *Client) FetchPlant(ctx context.Context, id int) (*models.RawRecord, error) {
	path := "/plants/" + strconv.Itoa(id)

	resp, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Path: path, Attempts: 1, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var record models.RawRecord
	if err := json.Unmarshal(body, &record); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return notFound(id), nil
		}
		return nil, fmt.Errorf("failed to decode plant %d: %w", id, err)
	}

	if resp.StatusCode == http.StatusNotFound && record.Error == "" {
		return notFound(id), nil
	}
	if record.PlantID == nil {
		record.PlantID = &id
	}

	return &record, nil
}

func notFound(id int) *models.RawRecord {
	return &models.RawRecord{PlantID: &id, Error: models.ErrorPlantNotFound}
}

// doRequest performs an HTTP request with retries on rate limiting,
// server errors and transport failures. The returned response has a
// status of 200 or 404; its body must be closed by the caller.
func (c *Client) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	var lastErr error
	delay := c.initialDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.PlantAPIRetriesTotal.Inc()
			c.logger.Debug("retrying request", "path", path, "attempt", attempt, "delay_ms", delay.Milliseconds())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, c.maxDelay)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			metrics.PlantAPIRequestsTotal.WithLabelValues(metrics.OpFetchPlant, "error").Inc()
			c.logger.Warn("request failed", "method", method, "path", path, "error", err, "attempt", attempt)
			continue
		}

		statusStr := strconv.Itoa(resp.StatusCode)
		metrics.PlantAPIRequestsTotal.WithLabelValues(metrics.OpFetchPlant, statusStr).Inc()
		metrics.PlantAPIRequestDuration.WithLabelValues(metrics.OpFetchPlant, statusStr).Observe(duration.Seconds())

		c.logger.Debug("plant_api_request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

		switch {
		case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNotFound:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			if retryAfter := parseRetryAfter(resp.Header); retryAfter > 0 {
				delay = retryAfter
				c.limiter.Throttle(retryAfter)
			}
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error (%d)", resp.StatusCode)
			continue
		default:
			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
		}
	}

	return nil, &TransportError{Path: path, Attempts: c.maxRetries + 1, Err: lastErr}
}

// parseRetryAfter extracts retry delay from Retry-After header
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	seconds, err := strconv.Atoi(retryAfter)
	if err != nil {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
