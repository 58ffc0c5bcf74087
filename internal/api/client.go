// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Configuration constants for the backend client.
const (
	// DefaultBaseURL is the hosted backend.
	DefaultBaseURL = "https://midm-chatbot-api.ap-northeast-2.arkain.site/api"

	// DefaultTimeout bounds plain (non-streaming) requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is how many times an idempotent request is tried.
	DefaultMaxRetries = 3

	// DefaultRateLimit is the sustained request rate per second.
	DefaultRateLimit = 10

	// DefaultRateBurst is the request burst allowed above the rate.
	DefaultRateBurst = 20

	// MaxResponseSize caps how much of a plain response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// retryBaseDelay is the first backoff delay; it doubles per attempt.
	retryBaseDelay = 500 * time.Millisecond

	userAgent = "ragchat/0.1"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no timeout; streams are bounded by the context.
	streamClient *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	retryDelay   time.Duration
	logger       *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for plain requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStreamClient replaces the client used for streamed requests.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) { c.streamClient = hc }
}

// WithTimeout sets the timeout for plain requests. A client passed to
// WithHTTPClient is copied first and left unchanged.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithRateLimit sets the request rate and burst. A non-positive rate
// disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxRetries sets how many attempts idempotent requests get.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.maxRetries = n
	}
}

// WithRetryDelay sets the first backoff delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend at baseURL. An empty baseURL
// selects DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Transport: transport, Timeout: DefaultTimeout},
		streamClient: &http.Client{Transport: transport},
		limiter:      rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateBurst),
		maxRetries:   DefaultMaxRetries,
		retryDelay:   retryBaseDelay,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newJSONRequest builds a request with an optional JSON body.
func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// send performs one request through the limiter and returns the response
// when its status is 2xx. Any other outcome is a *TransportError.
func (c *Client) send(hc *http.Client, op string, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("op", op), zap.String("path", req.URL.Path), zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}
	c.logger.Debug("request",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: errorBody(data)}
	}
	return resp, nil
}

// doJSON sends a JSON request and decodes a JSON response into out. GET
// and DELETE requests are retried with exponential backoff on temporary
// failures.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	attempts := 1
	if method == http.MethodGet || method == http.MethodDelete {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying request", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return &TransportError{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		req, err := c.newJSONRequest(ctx, method, path, body)
		if err != nil {
			return err
		}
		resp, err := c.send(c.httpClient, op, req)
		if err != nil {
			lastErr = err
			var te *TransportError
			if errors.As(err, &te) && te.Temporary() && ctx.Err() == nil {
				continue
			}
			return err
		}
		return decodeResponse(op, resp, out)
	}
	return lastErr
}

// decodeResponse reads a bounded JSON body into out and closes it.
func decodeResponse(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if len(data) > MaxResponseSize {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", MaxResponseSize)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
