package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"furniture-dashboard/pkg/apierror"
)

// Config holds upstream transport configuration.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxConnsPerHost int

	// Breaker trips after FailureRatio of at least MinRequests calls failed
	// (network errors and 5xx) and stays open for BreakerTimeout.
	BreakerMinRequests uint32
	BreakerFailure     float64
	BreakerTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:            "http://localhost:3000",
		Timeout:            30 * time.Second,
		MaxConnsPerHost:    100,
		BreakerMinRequests: 5,
		BreakerFailure:     0.5,
		BreakerTimeout:     30 * time.Second,
	}
}

// NewTransport builds the shared connection pool. Workspaces each get their
// own Client (and cookie jar) on top of it.
func NewTransport(cfg Config) http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Client talks JSON to the upstream API. It carries the upstream session
// cookie in its own jar and reports every 401 to its observers.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *slog.Logger

	mu             sync.RWMutex
	onUnauthorized []func(path string)
}

// upstreamFailure carries a 5xx answer out of the breaker so it counts as a
// failure while its body still reaches the caller.
type upstreamFailure struct {
	status int
	body   []byte
}

func (e *upstreamFailure) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

func New(cfg Config, transport http.RoundTripper, breaker *gobreaker.CircuitBreaker[*http.Response], logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse API base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("API base URL %q must be absolute", cfg.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if transport == nil {
		transport = NewTransport(cfg)
	}
	if breaker == nil {
		breaker = NewBreaker("upstream", cfg, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			Jar:       jar,
		},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// OnUnauthorized registers fn to run after any request answered 401.
func (c *Client) OnUnauthorized(fn func(path string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

// Do sends body as JSON to path and decodes the answer into out (when
// non-nil). Every failure comes back as an *apierror.APIError.
func (c *Client) Do(ctx context.Context, method string, path string, body any, out any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apierror.Validation("INVALID_INPUT", "request body could not be encoded", nil)
		}
		payload = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), payload)
	if err != nil {
		return apierror.Network(fmt.Errorf("create %s request: %w", method, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			return nil, &upstreamFailure{status: resp.StatusCode, body: data}
		}
		return resp, nil
	})

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	var failure *upstreamFailure
	if errors.As(err, &failure) {
		status = failure.status
	}
	upstreamRequests.WithLabelValues(method, routeLabel(path), statusLabel(status, err)).Inc()
	upstreamDuration.WithLabelValues(method, routeLabel(path)).Observe(time.Since(started).Seconds())

	if err != nil {
		if failure != nil {
			return apierror.Server(failure.status, extractMessage(failure.body))
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.WarnContext(ctx, "upstream circuit open", "method", method, "path", path)
		} else {
			c.logger.WarnContext(ctx, "upstream request failed", "method", method, "path", path, "error", err)
		}
		return apierror.Network(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return apierror.Network(fmt.Errorf("read %s %s response: %w", method, path, err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.notifyUnauthorized(path)
		return apierror.Unauthorized(extractMessage(data))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierror.Server(resp.StatusCode, extractMessage(data))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.ErrorContext(ctx, "undecodable upstream response", "method", method, "path", path, "error", err)
		return apierror.Server(http.StatusBadGateway, "")
	}

	return nil
}

func (c *Client) notifyUnauthorized(path string) {
	c.mu.RLock()
	observers := append([]func(string){}, c.onUnauthorized...)
	c.mu.RUnlock()

	for _, fn := range observers {
		fn(path)
	}
}

// extractMessage pulls the human-readable message out of an error body. The
// upstream sends {"message": ...}; the {"error": {"message": ...}} shape is
// accepted as well.
func extractMessage(body []byte) string {
	var parsed struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}

	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
		return nested.Message
	}

	var plain string
	if json.Unmarshal(parsed.Error, &plain) == nil {
		return plain
	}
	return ""
}

// routeLabel keeps metric cardinality bounded: "/suppliers/abc" -> "/suppliers/:id".
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 1 && parts[0] != "auth" && parts[0] != "users" {
		return "/" + parts[0] + "/:id"
	}
	return "/" + strings.Join(parts, "/")
}

func statusLabel(status int, err error) string {
	if status == 0 && err != nil {
		return "error"
	}
	return strconv.Itoa(status)
}
