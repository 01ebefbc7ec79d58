// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultTimeout bounds unary requests. Streaming requests are exempt.
	DefaultTimeout = 30 * time.Second

	// Retry policy for idempotent GETs.
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 10 * time.Second

	// errorBodyLimit caps how much of an error response we read.
	errorBodyLimit = 4 * 1024
)

// =============================================================================
// ERRORS
// =============================================================================

// Sentinel errors for branching with errors.Is.
var (
	ErrUnauthorized    = errors.New("authentication required or token expired")
	ErrPaymentRequired = errors.New("insufficient tokens for this request")
	ErrNotFound        = errors.New("resource not found")
	ErrRateLimited     = errors.New("rate limited by backend")
	ErrServer          = errors.New("backend server error")
	ErrNetwork         = errors.New("network error")
)

// ErrorType classifies an APIError.
type ErrorType int

const (
	ErrorTypeNetwork ErrorType = iota
	ErrorTypeAuth
	ErrorTypePayment
	ErrorTypeNotFound
	ErrorTypeRateLimit
	ErrorTypeServer
	ErrorTypeInvalid
)

// APIError carries the classification, a human-readable message, and the
// underlying cause (usually one of the sentinels above).
type APIError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsAuthError reports whether err represents a 401 from the backend.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable reports whether a request that failed with err is worth
// retrying. Auth, payment, and validation failures never are.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServer)
}

// =============================================================================
// TOKEN SOURCE
// =============================================================================

// TokenSource supplies the bearer token for authenticated calls. An empty
// token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed-token TokenSource, used by the CLI and tests.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// =============================================================================
// SHARED HTTP CLIENTS
// =============================================================================

// PERFORMANCE: two shared pooled clients for the whole process. The unary
// client enforces a timeout; the stream client must not, because a slow
// model can legitimately stream for minutes. Stream lifetime is bounded by
// the request context instead.
var (
	sharedTransport = &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	unaryClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: sharedTransport,
	}

	streamClient = &http.Client{
		Transport: sharedTransport,
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the multichat backend.
type Client struct {
	baseURL string
	tokens  TokenSource
	unary   *http.Client
	stream  *http.Client

	// limiter paces outgoing requests so a misbehaving loop cannot burn
	// through the account's token quota.
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the unary request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		client := *unaryClient
		client.Timeout = d
		c.unary = &client
	}
}

// WithRateLimit sets the outgoing request rate (requests per second, with
// the given burst). Zero rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClients replaces both transports. Tests use this to point at
// httptest servers with custom behavior.
func WithHTTPClients(unary, stream *http.Client) Option {
	return func(c *Client) {
		c.unary = unary
		c.stream = stream
	}
}

// NewClient creates a backend client. tokens may be nil for endpoints that
// never authenticate (login, signup).
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		unary:   unaryClient,
		stream:  streamClient,
		limiter: rate.NewLimiter(rate.Limit(8), 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newRequest builds a request with auth and content-type headers set.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &APIError{Type: ErrorTypeInvalid, Message: "failed to build request", Cause: err}
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
}

// wait applies the client-side rate limit.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Type: ErrorTypeNetwork, Message: "request canceled while rate limited", Cause: err}
	}
	return nil
}

// doJSON performs a unary request and decodes the JSON response into out
// (which may be nil for ack-only endpoints).
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return &APIError{Type: ErrorTypeInvalid, Message: "failed to encode request", Cause: err}
		}
	}

	if err := c.wait(ctx); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.unary.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp)
	}

	if out == nil {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Type: ErrorTypeServer, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// getJSONRetry performs a GET with exponential backoff. Only used for
// idempotent reads (catalog, history); writes and streams never retry.
func (c *Client) getJSONRetry(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			select {
			case <-ctx.Done():
				return wrapTransportError(ctx.Err())
			case <-time.After(delay):
			}
		}
		lastErr = c.doJSON(ctx, http.MethodGet, path, nil, out)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// =============================================================================
// ERROR RESPONSE HANDLING
// =============================================================================

// errorBody is the backend's error envelope. FastAPI-style backends put the
// message under "detail"; others use "error" or "message".
type errorBody struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	switch {
	case b.Detail != "":
		return b.Detail
	case b.Error != "":
		return b.Error
	default:
		return b.Message
	}
}

// handleErrorResponse maps a non-2xx response onto the error taxonomy.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var body errorBody
	json.Unmarshal(raw, &body)

	msg := body.text()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &APIError{Type: ErrorTypeAuth, Message: msg, Cause: ErrUnauthorized}
	case resp.StatusCode == http.StatusPaymentRequired:
		return &APIError{Type: ErrorTypePayment, Message: msg, Cause: ErrPaymentRequired}
	case resp.StatusCode == http.StatusNotFound:
		return &APIError{Type: ErrorTypeNotFound, Message: msg, Cause: ErrNotFound}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &APIError{Type: ErrorTypeRateLimit, Message: msg, Cause: ErrRateLimited}
	case resp.StatusCode >= 500:
		return &APIError{Type: ErrorTypeServer, Message: msg, Cause: ErrServer}
	default:
		return &APIError{Type: ErrorTypeInvalid, Message: msg}
	}
}

// encodeJSON marshals a request payload, mapping failures onto the taxonomy.
func encodeJSON(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Type: ErrorTypeInvalid, Message: "failed to encode request", Cause: err}
	}
	return body, nil
}

// wrapTransportError classifies connection-level failures.
func wrapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Type: ErrorTypeNetwork, Message: "request timed out", Cause: ErrNetwork}
	}
	if errors.Is(err, context.Canceled) {
		return &APIError{Type: ErrorTypeNetwork, Message: "request canceled", Cause: err}
	}
	return &APIError{Type: ErrorTypeNetwork, Message: "request failed", Cause: fmt.Errorf("%w: %v", ErrNetwork, err)}
}
