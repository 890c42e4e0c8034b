// Package api is the HTTP client for the matching backend.
//
// Two entry points exist. DoServer takes the bearer token from the viewer's session value and is used while
// rendering pages. DoClient takes an explicit token and is used by background deliveries that outlive the request.
// Neither retries nor caches; that policy belongs to the query layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/pkg/logger"
	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

const maxErrorBody = 64 << 10

// Credentials yields the backend bearer token of a viewer. An empty token sends no Authorization header.
type Credentials interface {
	BearerToken() string
}

// Token is an explicit bearer token.
type Token string

// BearerToken implements Credentials.
func (t Token) BearerToken() string { return string(t) }

// Client performs JSON calls against the configured base URL.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreaker routes every call through cb.
func WithBreaker(cb *apperrors.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithLogger sets the logger used for call tracing.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DoServer performs a call on behalf of the session owner.
func (c *Client) DoServer(ctx context.Context, creds Credentials, method, path string, body, out any) error {
	token := ""
	if creds != nil {
		token = creds.BearerToken()
	}

	return c.do(ctx, call{method: method, path: path, token: token, body: body, out: out})
}

// DoClient performs a call with an explicit token.
func (c *Client) DoClient(ctx context.Context, token, method, path string, body, out any) error {
	return c.do(ctx, call{method: method, path: path, token: token, body: body, out: out})
}

type call struct {
	method string
	path   string
	// route is the templated path used as a metrics label, e.g. "/matches/{id}".
	route string
	token string
	body  any
	out   any
}

func (c *Client) do(ctx context.Context, cl call) error {
	if cl.route == "" {
		cl.route = cl.path
		if i := strings.IndexByte(cl.route, '?'); i >= 0 {
			cl.route = cl.route[:i]
		}
	}

	if c.breaker == nil {
		return c.roundTrip(ctx, cl)
	}

	return c.breaker.Call(func() error {
		return c.roundTrip(ctx, cl)
	})
}

func (c *Client) roundTrip(ctx context.Context, cl call) error {
	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", cl.method, cl.route, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", cl.method, cl.route, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(logger.HeaderRequestID, id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	endpoint := cl.method + " " + cl.route
	if err != nil {
		metrics.RecordBackendRequest(endpoint, 0, time.Since(start))
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.RecordBackendRequest(endpoint, resp.StatusCode, time.Since(start))
	c.log.DebugContext(ctx, "backend call",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Body: string(raw), Endpoint: endpoint}
	}

	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}

	return nil
}
