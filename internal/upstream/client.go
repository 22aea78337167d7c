// Package upstream talks to the third-party cloud asset service: a credentialed
// HTTP client, normalization of the service's error bodies, and polling of its
// long-running operations.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	apiKeyHeader       = "x-api-key"
	defaultHTTPTimeout = 60 * time.Second
)

// maxResponseBytes bounds every response body read, decoded content included.
const maxResponseBytes int64 = 256 << 20

// Config holds configuration for creating a Client.
type Config struct {
	// APIKey is sent on every request in the x-api-key header. Required.
	APIKey string

	// HTTPClient defaults to a client with a 60s timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client issues credentialed requests against the asset service.
type Client struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Request describes one upstream call. URL is absolute.
type Request struct {
	Method      string
	URL         string
	Body        io.Reader
	ContentType string
	Header      http.Header

	// Binary skips JSON handling and decodes any declared Content-Encoding.
	Binary bool
}

// Response is a successful (2xx) upstream response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("upstream: api key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{apiKey: apiKey, httpClient: httpClient, logger: logger}, nil
}

// Do sends req and returns the response when the status is 2xx. Other
// statuses yield a *StatusError carrying the normalized error body; requests
// that never got a response yield a *TransportError.
//
// Do panics if the URL path ends with "/".
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	mustNotEndWithSeparator(req.URL)

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, req.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	for name, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := readBounded(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: req.URL, Err: err}
	}
	c.logger.Debug("upstream request", "method", method, "url", req.URL, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp, body)
	}

	if req.Binary {
		decoded, err := decodeContent(body, resp.Header.Values("Content-Encoding"))
		if err != nil {
			return nil, fmt.Errorf("upstream: %s %s: %w", method, req.URL, err)
		}
		body = decoded
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// DoJSON sends req and decodes the successful response body into T.
func DoJSON[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	req.Binary = false
	resp, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("upstream: decode %s response: %w", req.URL, err)
	}
	return out, nil
}

func newStatusError(resp *http.Response, body []byte) *StatusError {
	message, ok := NormalizeJSON(body)
	if !ok || strings.TrimSpace(message) == "" {
		message = statusText(resp)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: message}
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func readBounded(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}
	return data, nil
}

// mustNotEndWithSeparator enforces that request paths never carry a trailing
// "/"; the service treats such paths as different resources.
func mustNotEndWithSeparator(rawURL string) {
	if endsWithSeparator(rawURL) {
		panic(fmt.Sprintf("upstream: request path must not end with '/': %q", rawURL))
	}
}

func endsWithSeparator(rawURL string) bool {
	path := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		path = parsed.Path
	} else if idx := strings.IndexAny(rawURL, "?#"); idx >= 0 {
		path = rawURL[:idx]
	}
	return strings.HasSuffix(path, "/")
}

func mustEndWithSeparator(base string) {
	if !strings.HasSuffix(base, "/") {
		panic(fmt.Sprintf("upstream: operation base path must end with '/': %q", base))
	}
}
