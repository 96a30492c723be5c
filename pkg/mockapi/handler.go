// Package mockapi is an in-memory backend for the lesson endpoints: the
// films catalog, the realtime-database collections and the accounts API.
// Handlers are typed: requests are decoded and validated before the
// business logic runs and responses are encoded as JSON.
package mockapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
)

// Handler is the business logic of one endpoint.
type Handler[TRequest, TResponse any] interface {
	Handle(ctx context.Context, req TRequest) (TResponse, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[TRequest, TResponse any] func(ctx context.Context, req TRequest) (TResponse, error)

// Handle calls f(ctx, req).
func (f HandlerFunc[TRequest, TResponse]) Handle(ctx context.Context, req TRequest) (TResponse, error) {
	return f(ctx, req)
}

// ErrorMapper maps handler errors to HTTP status codes and response bodies.
type ErrorMapper interface {
	MapError(err error) (statusCode int, response interface{})
}

// Middleware is standard HTTP middleware.
type Middleware func(http.Handler) http.Handler

// HandlerOption configures a handler at registration.
type HandlerOption func(*HandlerConfig)

// HandlerConfig holds the per-route settings.
type HandlerConfig struct {
	ErrorMapper ErrorMapper
	Middleware  []Middleware
	StatusCode  int
	Summary     string
	Tags        []string
	Security    []string
}

// WithErrorMapper sets how handler errors are written.
func WithErrorMapper(mapper ErrorMapper) HandlerOption {
	return func(c *HandlerConfig) {
		c.ErrorMapper = mapper
	}
}

// WithMiddleware adds middleware around this route only.
func WithMiddleware(middleware ...Middleware) HandlerOption {
	return func(c *HandlerConfig) {
		c.Middleware = append(c.Middleware, middleware...)
	}
}

// WithStatusCode sets the status of successful responses.
func WithStatusCode(statusCode int) HandlerOption {
	return func(c *HandlerConfig) {
		c.StatusCode = statusCode
	}
}

// WithSummary sets the operation summary in the API description.
func WithSummary(summary string) HandlerOption {
	return func(c *HandlerConfig) {
		c.Summary = summary
	}
}

// WithTags groups the operation in the API description.
func WithTags(tags ...string) HandlerOption {
	return func(c *HandlerConfig) {
		c.Tags = append(c.Tags, tags...)
	}
}

// WithSecurity names the security schemes the route requires.
func WithSecurity(schemes ...string) HandlerOption {
	return func(c *HandlerConfig) {
		c.Security = append(c.Security, schemes...)
	}
}

// HTTPHandler serves a typed handler over HTTP.
type HTTPHandler[TRequest, TResponse any] struct {
	handler     Handler[TRequest, TResponse]
	decoder     *Decoder[TRequest]
	errorMapper ErrorMapper
	middleware  []Middleware
	statusCode  int
	logger      *slog.Logger
}

// ServeHTTP decodes the request, runs the handler and encodes the result.
func (h *HTTPHandler[TRequest, TResponse]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decoder.Decode(r)
		if err != nil {
			h.handleError(w, r, err)
			return
		}

		resp, err := h.handler.Handle(r.Context(), req)
		if err != nil {
			h.handleError(w, r, err)
			return
		}

		statusCode := h.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
			if r.Method == http.MethodPost {
				statusCode = http.StatusCreated
			}
		}

		if err := writeJSON(w, statusCode, resp); err != nil {
			h.logger.ErrorContext(r.Context(), "Encoding response failed", "path", r.URL.Path, "error", err)
		}
	})

	var finalHandler http.Handler = handler
	for i := len(h.middleware) - 1; i >= 0; i-- {
		finalHandler = h.middleware[i](finalHandler)
	}

	finalHandler.ServeHTTP(w, r)
}

func (h *HTTPHandler[TRequest, TResponse]) handleError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, response := h.errorMapper.MapError(err)
	if statusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Handler failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	if encodeErr := writeJSON(w, statusCode, response); encodeErr != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// NewHTTPHandler wraps handler. Errors are written by DatabaseErrors
// unless another mapper is configured.
func NewHTTPHandler[TRequest, TResponse any](
	handler Handler[TRequest, TResponse],
	decoder *Decoder[TRequest],
	logger *slog.Logger,
	opts ...HandlerOption,
) *HTTPHandler[TRequest, TResponse] {
	config := &HandlerConfig{}
	for _, opt := range opts {
		opt(config)
	}

	h := &HTTPHandler[TRequest, TResponse]{
		handler:     handler,
		decoder:     decoder,
		errorMapper: config.ErrorMapper,
		middleware:  config.Middleware,
		statusCode:  config.StatusCode,
		logger:      logger,
	}
	if h.errorMapper == nil {
		h.errorMapper = DatabaseErrors{}
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return h
}
