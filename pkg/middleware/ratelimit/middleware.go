package ratelimit

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pavelpascari/fetchstate/pkg/middleware/ratelimit"

// Middleware rejects requests over the limit with 429 Too Many Requests.
type Middleware struct {
	limiter  RateLimiter
	key      func(*http.Request) string
	body     interface{}
	provider metric.MeterProvider
	checked  metric.Int64Counter
}

// Option configures rate limit middleware
type Option func(*Middleware)

// WithKeyFunc sets how requests are grouped. The default is ClientIP.
func WithKeyFunc(key func(*http.Request) string) Option {
	return func(m *Middleware) {
		m.key = key
	}
}

// WithDeniedBody sets the JSON body of rejected responses.
func WithDeniedBody(body interface{}) Option {
	return func(m *Middleware) {
		m.body = body
	}
}

// WithMeterProvider records allowed and denied requests with provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(m *Middleware) {
		m.provider = provider
	}
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter RateLimiter, opts ...Option) (*Middleware, error) {
	m := &Middleware{
		limiter: limiter,
		key:     ClientIP,
		body:    map[string]string{"error": "rate limit exceeded"},
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.provider != nil {
		counter, err := m.provider.Meter(instrumentationName).Int64Counter(
			"fetchstate.ratelimit.requests",
			metric.WithDescription("Requests checked against the rate limit"),
			metric.WithUnit("{requests}"),
		)
		if err != nil {
			return nil, err
		}
		m.checked = counter
	}

	return m, nil
}

// HTTPMiddleware returns HTTP middleware function
func (m *Middleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := m.limiter.Allow(m.key(r))

			if m.checked != nil {
				outcome := "allowed"
				if !allowed {
					outcome = "denied"
				}
				m.checked.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
			}

			if !allowed {
				m.writeRateLimitError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) writeRateLimitError(w http.ResponseWriter) {
	if after := retryAfter(m.limiter); after != "" {
		w.Header().Set("Retry-After", after)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(m.body)
}
