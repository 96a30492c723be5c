package observability

import (
	"log/slog"
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPLogging returns server middleware that logs every handled request.
// Responses with a 5xx status are logged at error level.
func HTTPLogging(logger *slog.Logger, opts ...LoggingOption) func(http.Handler) http.Handler {
	config := LoggingConfig{
		LogResponses: true,
		Level:        slog.LevelInfo,
		Fields:       make(map[string]interface{}),
	}

	for _, opt := range opts {
		opt(&config)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			if !config.LogResponses {
				return
			}

			level := config.Level
			if rw.statusCode >= http.StatusInternalServerError {
				level = max(level, slog.LevelError)
			}

			attrs := []slog.Attr{
				slog.String("event", "request_handled"),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", rw.statusCode),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			for k, v := range config.Fields {
				attrs = append(attrs, slog.Any(k, v))
			}

			logger.LogAttrs(r.Context(), level, "HTTP request handled", attrs...)
		})
	}
}
