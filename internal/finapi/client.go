// Package finapi is the REST client for the finance backend.
//
// Every call is authenticated with a bearer token supplied by the caller.
// Non-2xx responses are returned as *StatusError so callers can tell
// authentication failures apart from other errors.
package finapi

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
	"net/url"
	"strings"
	"time"
)

const (
	connectionsPath  = "/connections"
	transactionsPath = "/transactions"

	// TransactionsLimit is the page size requested for manual transactions.
	TransactionsLimit = 300

	maxErrorBody = 512
)

var ErrMissingToken = errors.New("finapi: missing bearer token")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsAuthFailure reports whether err carries a 401 or 403 response.
func IsAuthFailure(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for baseURL. Paths are appended to the base path, so
// "https://host/api/v1" yields "https://host/api/v1/connections".
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	c := &Client{
		baseURL: u,
		http:    newHTTPClientWithPooling(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling,
// proper timeouts, and keep-alive settings
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// ListConnections fetches every linked connection including its sync payload.
func (c *Client) ListConnections(ctx context.Context, token string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("include_transactions", "true")
	return c.getList(ctx, token, connectionsPath, q)
}

// ListTransactions fetches the most recent manual transactions.
func (c *Client) ListTransactions(ctx context.Context, token string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(TransactionsLimit))
	return c.getList(ctx, token, transactionsPath, q)
}

func (c *Client) getList(ctx context.Context, token, path string, query url.Values) ([]json.RawMessage, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	slog.DebugContext(ctx, "Backend request completed",
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode, Body: snippet}
	}

	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return items, nil
}

// decodeList accepts a bare JSON array or an envelope {"data": [...]}.
// An empty body or null is an empty list.
func decodeList(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []json.RawMessage{}, nil
	}

	if body[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		if len(envelope.Data) == 0 {
			return nil, errors.New("object response without data field")
		}
		return decodeList(envelope.Data)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}
