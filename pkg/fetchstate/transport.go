package fetchstate

import (
	"context"
	"maps"
	"net/http"
)

// Request describes one outbound HTTP call.
// Path is resolved against the transport's base URL unless it is absolute.
type Request struct {
	Method      string
	Path        string
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     map[string]string
	// Body is encoded as JSON when non-nil.
	Body interface{}
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

//nolint:gocritic // Request struct size is acceptable for this usage
func (r Request) clone() Request {
	r.PathParams = maps.Clone(r.PathParams)
	r.QueryParams = maps.Clone(r.QueryParams)
	r.Headers = maps.Clone(r.Headers)

	return r
}

// Response is the raw result of a Request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Raw        []byte
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Transport performs requests. Implementations return a *TransportError
// when no response was received; non-2xx responses are not errors.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req Request) (*Response, error)

// Do calls f(ctx, req).
//
//nolint:gocritic // Request struct size is acceptable for this usage
func (f TransportFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Transport with cross-cutting behavior.
type Middleware func(Transport) Transport

// Chain wraps transport with middleware so that the first middleware is
// the outermost.
func Chain(transport Transport, middleware ...Middleware) Transport {
	for i := len(middleware) - 1; i >= 0; i-- {
		transport = middleware[i](transport)
	}

	return transport
}
