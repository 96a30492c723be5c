// Package compression gzips HTTP responses for clients that accept it.
package compression

import (
	"bufio"
	"net"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Defaults of a new Middleware.
const (
	DefaultLevel   = gzip.DefaultCompression
	DefaultMinSize = 1024
)

// Config holds the compression configuration
type Config struct {
	Level   int
	Types   []string
	MinSize int
}

// Middleware compresses responses of the configured content types once the
// first write reaches MinSize bytes.
type Middleware struct {
	config Config
}

// Option configures compression middleware
type Option func(*Config)

// WithLevel sets the gzip compression level.
func WithLevel(level int) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithTypes sets the content types to compress, matched as prefixes of the
// Content-Type header.
func WithTypes(types ...string) Option {
	return func(c *Config) {
		c.Types = types
	}
}

// WithMinSize sets the smallest first write that gets compressed.
func WithMinSize(size int) Option {
	return func(c *Config) {
		c.MinSize = size
	}
}

// New creates a compression middleware for JSON, YAML and text responses.
func New(opts ...Option) *Middleware {
	config := Config{
		Level:   DefaultLevel,
		Types:   []string{"application/json", "application/yaml", "text/"},
		MinSize: DefaultMinSize,
	}

	for _, opt := range opts {
		opt(&config)
	}

	return &Middleware{config: config}
}

// GetConfig returns the compression configuration
func (m *Middleware) GetConfig() Config {
	return m.config
}

// HTTPMiddleware returns HTTP middleware function
func (m *Middleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Encoding")
			if !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			cw := &compressionWriter{ResponseWriter: w, config: &m.config, status: http.StatusOK}
			defer cw.Close()

			next.ServeHTTP(cw, r)
		})
	}
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}

// compressionWriter holds back the status line until the first write
// decides whether the body is compressed.
type compressionWriter struct {
	http.ResponseWriter
	config      *Config
	status      int
	wroteHeader bool
	decided     bool
	gz          *gzip.Writer
}

func (cw *compressionWriter) WriteHeader(statusCode int) {
	if cw.wroteHeader {
		return
	}
	cw.wroteHeader = true
	cw.status = statusCode
}

func (cw *compressionWriter) Write(data []byte) (int, error) {
	if !cw.decided {
		cw.decide(len(data))
	}
	if cw.gz != nil {
		return cw.gz.Write(data)
	}
	return cw.ResponseWriter.Write(data)
}

func (cw *compressionWriter) decide(size int) {
	cw.decided = true

	if cw.shouldCompress(size) {
		h := cw.Header()
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")

		gz, err := gzip.NewWriterLevel(cw.ResponseWriter, cw.config.Level)
		if err == nil {
			cw.gz = gz
		} else {
			h.Del("Content-Encoding")
		}
	}

	cw.ResponseWriter.WriteHeader(cw.status)
}

func (cw *compressionWriter) shouldCompress(size int) bool {
	if size < cw.config.MinSize || cw.Header().Get("Content-Encoding") != "" {
		return false
	}
	if cw.status < http.StatusOK || cw.status == http.StatusNoContent || cw.status == http.StatusNotModified {
		return false
	}

	contentType := cw.Header().Get("Content-Type")
	for _, t := range cw.config.Types {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}

	return false
}

// Close flushes the gzip stream, or the held status of an empty body.
func (cw *compressionWriter) Close() {
	if !cw.decided {
		cw.decided = true
		if cw.wroteHeader {
			cw.ResponseWriter.WriteHeader(cw.status)
		}
	}
	if cw.gz != nil {
		_ = cw.gz.Close()
	}
}

// Flush implements http.Flusher.
func (cw *compressionWriter) Flush() {
	if !cw.decided {
		cw.decide(0)
	}
	if cw.gz != nil {
		_ = cw.gz.Flush()
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker.
func (cw *compressionWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := cw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
