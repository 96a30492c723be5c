package recovery

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPanicRecoveryMiddleware_Configuration(t *testing.T) {
	t.Run("default_configuration", func(t *testing.T) {
		config := NewPanicRecoveryMiddleware().GetConfig()
		assert.True(t, config.IncludeStackTrace)
		assert.Equal(t, http.StatusInternalServerError, config.StatusCode)
		assert.Equal(t, map[string]string{"error": "Internal server error"}, config.Body)
	})

	t.Run("custom_configuration", func(t *testing.T) {
		config := NewPanicRecoveryMiddleware(
			WithStackTrace(false),
			WithRecoveryStatusCode(http.StatusServiceUnavailable),
			WithResponseBody(map[string]string{"detail": "Server error"}),
		).GetConfig()

		assert.False(t, config.IncludeStackTrace)
		assert.Equal(t, http.StatusServiceUnavailable, config.StatusCode)
		assert.Equal(t, map[string]string{"detail": "Server error"}, config.Body)
	})
}

func TestPanicRecoveryMiddleware_HTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	middleware := NewPanicRecoveryMiddleware(WithLogger(logger), WithStackTrace(false))

	t.Run("recovers_panic", func(t *testing.T) {
		handler := middleware.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes.json", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
		assert.Contains(t, buf.String(), `"panic":"boom"`)
		assert.Contains(t, buf.String(), `"path":"/quotes.json"`)
		assert.NotContains(t, buf.String(), `"stack"`)
	})

	t.Run("passes_through", func(t *testing.T) {
		handler := middleware.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("abort_handler_repanics", func(t *testing.T) {
		handler := middleware.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}
