// Package client provides the HTTP transports used by request controllers:
// a network client and an in-process client that serves requests through
// an http.Handler.
package client

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

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// Client implements fetchstate.Transport over net/http.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
}

// Option configures a Client using the functional options pattern.
type Option func(*Client)

// WithTimeout bounds every request. Zero, the default, leaves requests
// bounded only by the caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithBaseURL sets the URL relative request paths are resolved against.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHandler serves every request in process through handler instead of
// the network.
func WithHandler(handler http.Handler) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Transport: &handlerRoundTripper{handler: handler}}
	}
}

// WithHeader sets a header sent with every request. Request headers win.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// New creates a client. Without options it uses http.DefaultClient and
// expects absolute request paths.
func New(opts ...Option) *Client {
	client := &Client{
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do performs the request. A non-2xx response is returned as is; only a
// failure to obtain a response is an error, always a *fetchstate.TransportError.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func (c *Client) Do(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, fetchstate.NewTransportError(req, fmt.Errorf("building HTTP request: %w", err))
	}

	resp, err := c.executeHTTPRequest(httpReq)
	if err != nil {
		return nil, fetchstate.NewTransportError(req, fmt.Errorf("executing HTTP request: %w", err))
	}

	return resp, nil
}

// buildHTTPRequest constructs an *http.Request from fetchstate.Request.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func (c *Client) buildHTTPRequest(ctx context.Context, req fetchstate.Request) (*http.Request, error) {
	target, err := c.buildRequestURL(req)
	if err != nil {
		return nil, err
	}

	body, contentType, err := buildJSONBody(req.Body)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// buildRequestURL substitutes path parameters, appends the query string
// and resolves the result against the base URL.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func (c *Client) buildRequestURL(req fetchstate.Request) (string, error) {
	path := req.Path
	for key, value := range req.PathParams {
		placeholder := "{" + key + "}"
		path = strings.ReplaceAll(path, placeholder, url.PathEscape(value))
	}

	parsed, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing request path %q: %w", path, err)
	}

	if !parsed.IsAbs() {
		if c.baseURL == "" {
			return "", fmt.Errorf("relative path %q without base URL", path)
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		parsed, err = url.Parse(c.baseURL + path)
		if err != nil {
			return "", fmt.Errorf("parsing request URL: %w", err)
		}
	}

	if len(req.QueryParams) > 0 {
		values := parsed.Query()
		for key, value := range req.QueryParams {
			values.Set(key, value)
		}
		parsed.RawQuery = values.Encode()
	}

	return parsed.String(), nil
}

// buildJSONBody creates a JSON request body.
func buildJSONBody(body interface{}) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling request body to JSON: %w", err)
	}

	return bytes.NewReader(jsonData), "application/json", nil
}

// executeHTTPRequest executes the request and reads the whole body.
func (c *Client) executeHTTPRequest(req *http.Request) (*fetchstate.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &fetchstate.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Raw:        body,
	}, nil
}
