// Package rest provides the HTTP plumbing shared by the broker REST adapters.
package rest

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

	"github.com/aristath/sipcopy/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single broker call
	DefaultTimeout = 15 * time.Second

	// maxErrorBody is how much of a failed response body is kept in errors
	maxErrorBody = 500
)

// Options configures a Client
type Options struct {
	BaseURL   string
	Timeout   time.Duration // per-call timeout, DefaultTimeout when zero
	RateLimit float64       // requests per second, 0 = unlimited
	Component string        // logger component name
}

// Client is a small JSON/form REST client with per-call timeouts and a token bucket limiter.
// One Client belongs to one adapter instance (and therefore one account).
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	headers    http.Header
	log        zerolog.Logger
}

// NewClient creates a new REST client
func NewClient(opts Options, log zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	component := opts.Component
	if component == "" {
		component = "rest"
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{},
		limiter:    limiter,
		timeout:    timeout,
		headers:    make(http.Header),
		log:        log.With().Str("client", component).Logger(),
	}
}

// SetHeader sets a header sent with every subsequent request
func (c *Client) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one call. At most one of JSON, Form and RawBody is used.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	JSON    interface{}
	Form    url.Values
	RawBody string
	Headers map[string]string
}

// HTTPError is returned for non-2xx responses
type HTTPError struct {
	StatusCode int
	Body       string // truncated
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Do executes the request and returns the raw response body
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestURL := c.baseURL + r.Path
	if len(r.Query) > 0 {
		requestURL += "?" + r.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.JSON != nil:
		payload, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.RawBody != "":
		body = strings.NewReader(r.RawBody)
		contentType = "text/plain"
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().
			Err(err).
			Str("method", method).
			Str("path", r.Path).
			Msg("Request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := utils.Truncate(string(respBody), maxErrorBody)
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("path", r.Path).
			Str("body", bodyStr).
			Msg("Broker returned error status")
		return respBody, &HTTPError{StatusCode: resp.StatusCode, Body: bodyStr}
	}

	return respBody, nil
}

// DoJSON executes the request and decodes a JSON response into out
func (c *Client) DoJSON(ctx context.Context, r Request, out interface{}) error {
	body, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w (body: %s)", err, utils.Truncate(string(body), maxErrorBody))
	}
	return nil
}
