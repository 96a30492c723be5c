// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicRecoveryConfig holds panic recovery configuration
type PanicRecoveryConfig struct {
	Logger            *slog.Logger
	IncludeStackTrace bool
	StatusCode        int
	// Body is encoded as the JSON response of a recovered request.
	Body interface{}
}

// PanicRecoveryMiddleware recovers panics of the wrapped handler.
type PanicRecoveryMiddleware struct {
	config PanicRecoveryConfig
}

// PanicRecoveryOption configures panic recovery middleware
type PanicRecoveryOption func(*PanicRecoveryConfig)

// WithLogger sets the logger recovered panics are reported to
func WithLogger(logger *slog.Logger) PanicRecoveryOption {
	return func(c *PanicRecoveryConfig) {
		c.Logger = logger
	}
}

// WithStackTrace enables or disables stack trace logging
func WithStackTrace(enabled bool) PanicRecoveryOption {
	return func(c *PanicRecoveryConfig) {
		c.IncludeStackTrace = enabled
	}
}

// WithRecoveryStatusCode sets the HTTP status code for recovered panics
func WithRecoveryStatusCode(statusCode int) PanicRecoveryOption {
	return func(c *PanicRecoveryConfig) {
		c.StatusCode = statusCode
	}
}

// WithResponseBody sets the JSON body sent for recovered panics
func WithResponseBody(body interface{}) PanicRecoveryOption {
	return func(c *PanicRecoveryConfig) {
		c.Body = body
	}
}

// NewPanicRecoveryMiddleware creates a new panic recovery middleware
func NewPanicRecoveryMiddleware(opts ...PanicRecoveryOption) *PanicRecoveryMiddleware {
	config := PanicRecoveryConfig{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		IncludeStackTrace: true,
		StatusCode:        http.StatusInternalServerError,
		Body:              map[string]string{"error": "Internal server error"},
	}

	for _, opt := range opts {
		opt(&config)
	}

	return &PanicRecoveryMiddleware{
		config: config,
	}
}

// GetConfig returns the panic recovery configuration
func (m *PanicRecoveryMiddleware) GetConfig() PanicRecoveryConfig {
	return m.config
}

// HTTPMiddleware returns HTTP middleware function
func (m *PanicRecoveryMiddleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if panicValue := recover(); panicValue != nil {
					if panicValue == http.ErrAbortHandler {
						panic(panicValue)
					}
					m.handlePanic(w, r, panicValue)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// handlePanic handles a recovered panic
func (m *PanicRecoveryMiddleware) handlePanic(w http.ResponseWriter, r *http.Request, panicValue interface{}) {
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("panic", fmt.Sprint(panicValue)),
	}
	if m.config.IncludeStackTrace {
		attrs = append(attrs, slog.String("stack", string(debug.Stack())))
	}
	m.config.Logger.ErrorContext(r.Context(), "panic recovered", attrs...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(m.config.StatusCode)
	_ = json.NewEncoder(w).Encode(m.config.Body)
}
