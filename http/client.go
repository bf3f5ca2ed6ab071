// Package http is the registry's HTTP transport: a client with retries,
// Retry-After support, per-host rate limiting and HTTP/2 or HTTP/3.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "origami-build-service/3"
)

// Client sends registry requests. Retryable failures are retried with
// backoff; the caller only sees the final response or error.
type Client struct {
	httpClient *http.Client
	userAgent  string
	retry      RetryConfig
	limiter    *HostLimiter
	logger     observability.Logger
}

// Config holds HTTP client configuration
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Retry     RetryConfig

	// RequestsPerSecond limits requests per host (0 disables limiting)
	RequestsPerSecond float64
	Burst             int

	Transport     TransportConfig
	Logger        observability.Logger
	EnableTracing bool
}

// DefaultConfig returns a client configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		Retry:     DefaultRetryConfig(),
		Transport: DefaultTransportConfig(),
	}
}

// NewClient creates a client from cfg. Zero fields take their defaults.
func NewClient(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	transport := NewTransport(cfg.Transport)
	if cfg.EnableTracing {
		transport = observability.NewHTTPTracingTransport(transport, "github.com/adambraimbridge/origami-build-service-v3/http")
	}

	c := &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		retry:      cfg.Retry,
		logger:     observability.OrNull(cfg.Logger),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	return c
}

// Get performs a GET request with retries.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(ctx, req)
}

// Do executes req, retrying network errors and retryable status codes.
// The request must have no body or a body that GetBody can replay.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	var lastErr error
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, host); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := c.send(ctx, req)
		if err == nil && !IsRetriableStatus(resp.StatusCode) {
			c.logger.DebugContext(ctx, "HTTP {Method} {URL} {StatusCode} over {Protocol}",
				req.Method, req.URL.String(), resp.StatusCode, ProtocolVersion(resp))
			if attempt > 0 {
				c.logger.InfoContext(ctx, "HTTP {Method} {URL} succeeded after {Attempt} retries",
					req.Method, req.URL.String(), attempt)
			}
			return resp, nil
		}
		if err != nil && !IsRetriable(err) {
			return nil, err
		}
		if attempt >= c.retry.MaxRetries {
			if err != nil {
				c.logger.ErrorContext(ctx, "HTTP {Method} {URL} failed after {MaxRetries} retries: {Error}",
					req.Method, req.URL.String(), c.retry.MaxRetries, err)
				return nil, fmt.Errorf("after %d retries: %w", c.retry.MaxRetries, err)
			}
			return resp, nil
		}

		lastErr = err
		wait := c.retry.Backoff(attempt)
		if resp != nil {
			if after := ParseRetryAfter(resp.Header.Get("Retry-After")); after > 0 {
				wait = after
			}
			_ = resp.Body.Close()
		}

		c.logger.DebugContext(ctx, "HTTP {Method} {URL} retry {Attempt}/{MaxRetries} in {Backoff}ms (last error: {Error})",
			req.Method, req.URL.String(), attempt+1, c.retry.MaxRetries, wait.Milliseconds(), lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	attempt := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		attempt.Body = body
	}
	if attempt.Header.Get("User-Agent") == "" {
		attempt.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(attempt)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnContext(ctx, "HTTP {Method} {URL} failed after {Duration}ms: {Error}",
			req.Method, req.URL.String(), duration.Milliseconds(), err)
		observability.RegistryRequestsTotal.WithLabelValues(req.Method, "error", req.URL.Host).Inc()
		return nil, err
	}

	c.logger.DebugContext(ctx, "HTTP {Method} {URL} → {StatusCode} ({Duration}ms)",
		req.Method, req.URL.String(), resp.StatusCode, duration.Milliseconds())
	observability.RegistryRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode), req.URL.Host).Inc()
	observability.RegistryRequestDuration.WithLabelValues(req.Method, req.URL.Host).Observe(duration.Seconds())
	return resp, nil
}
