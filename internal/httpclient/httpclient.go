// Package httpclient defines the HTTP client abstraction the api_call
// strategy uses for relative endpoints, plus a default implementation backed
// by a shared net/http client.
//
// Absolute URLs are not routed through this interface; the dispatcher calls
// them directly. The injected client exists so a hosting application can
// point relative endpoints at its own backend and inject auth or tracing.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestConfig carries the per-call headers and query parameters.
type RequestConfig struct {
	Headers map[string]string
	Query   map[string]string
}

// Response is the transport-level result of a call, captured regardless of
// status code.
type Response struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Body       []byte
}

// Client is the injected collaborator for relative endpoints. Non-GET
// methods go through Post; the collaborator surface is deliberately small.
type Client interface {
	Get(ctx context.Context, endpoint string, cfg RequestConfig) (*Response, error)
	Post(ctx context.Context, endpoint string, body []byte, cfg RequestConfig) (*Response, error)
}

// BaseClient resolves relative endpoints against a base URL using one shared
// net/http client.
type BaseClient struct {
	baseURL string
	client  *http.Client
}

// New creates a BaseClient. An empty timeout string defaults to 30s.
func New(baseURL, timeout string) (*BaseClient, error) {
	d := 30 * time.Second
	if timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid http client timeout %q: %w", timeout, err)
		}
		d = parsed
	}

	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: d,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Get performs a GET against base+endpoint.
func (c *BaseClient) Get(ctx context.Context, endpoint string, cfg RequestConfig) (*Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil, cfg)
}

// Post performs a POST against base+endpoint.
func (c *BaseClient) Post(ctx context.Context, endpoint string, body []byte, cfg RequestConfig) (*Response, error) {
	return c.do(ctx, http.MethodPost, endpoint, body, cfg)
}

func (c *BaseClient) do(ctx context.Context, method, endpoint string, body []byte, cfg RequestConfig) (*Response, error) {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	applyConfig(req, cfg)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	return FromHTTPResponse(resp)
}

func applyConfig(req *http.Request, cfg RequestConfig) {
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if len(cfg.Query) > 0 {
		q := req.URL.Query()
		for k, v := range cfg.Query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
}

// FromHTTPResponse drains a net/http response into the transport-agnostic
// Response shape.
func FromHTTPResponse(resp *http.Response) (*Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    headers,
		Body:       body,
	}, nil
}

// IsAbsoluteURL reports whether raw parses as a URL with an http(s) scheme.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
