// Package observability provides logging, metrics and tracing middleware
// for request transports, and request logging for HTTP servers.
package observability

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/pavelpascari/fetchstate/pkg/middleware/observability"

// LoggingConfig holds logging middleware configuration
type LoggingConfig struct {
	LogRequests  bool
	LogResponses bool
	LogBodies    bool
	Level        slog.Level
	Fields       map[string]interface{}
}

// LoggingOption configures logging middleware
type LoggingOption func(*LoggingConfig)

// WithLogLevel sets the logging level
func WithLogLevel(level slog.Level) LoggingOption {
	return func(c *LoggingConfig) {
		c.Level = level
	}
}

// WithBodyLogging enables logging of request and response bodies
func WithBodyLogging(enabled bool) LoggingOption {
	return func(c *LoggingConfig) {
		c.LogBodies = enabled
	}
}

// WithRequestLogging toggles the entry logged before each request
func WithRequestLogging(enabled bool) LoggingOption {
	return func(c *LoggingConfig) {
		c.LogRequests = enabled
	}
}

// WithLogFields sets additional fields to include in all log entries
func WithLogFields(fields map[string]interface{}) LoggingOption {
	return func(c *LoggingConfig) {
		c.Fields = fields
	}
}

// Logging returns middleware that logs every request and its outcome.
// Failed requests are logged at warn level or above.
func Logging(logger *slog.Logger, opts ...LoggingOption) fetchstate.Middleware {
	config := LoggingConfig{
		LogRequests:  true,
		LogResponses: true,
		Level:        slog.LevelInfo,
		Fields:       make(map[string]interface{}),
	}

	for _, opt := range opts {
		opt(&config)
	}

	return func(next fetchstate.Transport) fetchstate.Transport {
		return fetchstate.TransportFunc(func(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
			start := time.Now()

			if config.LogRequests {
				attrs := requestAttrs("request_sent", req, config.Fields)
				if config.LogBodies && req.Body != nil {
					attrs = append(attrs, slog.Any("body", req.Body))
				}
				logger.LogAttrs(ctx, config.Level, "HTTP request sent", attrs...)
			}

			resp, err := next.Do(ctx, req)

			if config.LogResponses {
				attrs := requestAttrs("request_completed", req, config.Fields)
				attrs = append(attrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))

				level := config.Level
				switch {
				case err != nil:
					level = max(level, slog.LevelError)
					attrs = append(attrs, slog.String("error", err.Error()))
				case !resp.OK():
					level = max(level, slog.LevelWarn)
					attrs = append(attrs, slog.Int("status_code", resp.StatusCode))
				default:
					attrs = append(attrs, slog.Int("status_code", resp.StatusCode))
				}
				if config.LogBodies && resp != nil && len(resp.Raw) > 0 {
					attrs = append(attrs, slog.String("response", string(resp.Raw)))
				}

				logger.LogAttrs(ctx, level, "HTTP request completed", attrs...)
			}

			return resp, err
		})
	}
}

func requestAttrs(event string, req fetchstate.Request, fields map[string]interface{}) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("event", event),
		slog.String("method", methodOf(req)),
		slog.String("path", req.Path),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	return attrs
}

// Metrics returns middleware recording a request counter and a duration
// histogram. A nil provider disables it.
func Metrics(provider metric.MeterProvider) (fetchstate.Middleware, error) {
	if provider == nil {
		return passthrough, nil
	}

	meter := provider.Meter(instrumentationName)

	requests, err := meter.Int64Counter(
		"fetchstate.requests",
		metric.WithDescription("Number of requests issued"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"fetchstate.request.duration",
		metric.WithDescription("Time until the response was received"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return func(next fetchstate.Transport) fetchstate.Transport {
		return fetchstate.TransportFunc(func(ctx context.Context, req fetchstate.Request) (*fetchstate.Response, error) {
			start := time.Now()
			resp, err := next.Do(ctx, req)
			elapsed := float64(time.Since(start).Microseconds()) / 1000

			attrs := metric.WithAttributes(
				attribute.String("http.method", methodOf(req)),
				attribute.String("http.route", req.Path),
				attribute.String("status", outcome(resp, err)),
			)
			requests.Add(ctx, 1, attrs)
			duration.Record(ctx, elapsed, attrs)

			return resp, err
		})
	}, nil
}

// Tracing returns middleware that wraps every request in a client span and
// injects the span context into the request headers. A nil provider disables it.
func Tracing(tp trace.TracerProvider, p propagation.TextMapPropagator) fetchstate.Middleware {
	if tp == nil {
		return passthrough
	}
	if p == nil {
		p = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}

	tracer := tp.Tracer(instrumentationName)

	return func(next fetchstate.Transport) fetchstate.Transport {
		return fetchstate.TransportFunc(func(ctx context.Context, req fetchstate.Request) (resp *fetchstate.Response, err error) {
			ctx, span := tracer.Start(ctx, methodOf(req)+" "+req.Path,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("http.method", methodOf(req)),
					attribute.String("http.route", req.Path),
				),
			)
			defer func() {
				switch {
				case err != nil:
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				case !resp.OK():
					span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
					span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(resp.StatusCode))
				default:
					span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
				}
				span.End()
			}()

			headers := make(map[string]string, len(req.Headers)+2)
			for k, v := range req.Headers {
				headers[k] = v
			}
			p.Inject(ctx, propagation.MapCarrier(headers))
			req.Headers = headers

			return next.Do(ctx, req)
		})
	}
}

func passthrough(next fetchstate.Transport) fetchstate.Transport {
	return next
}

func methodOf(req fetchstate.Request) string {
	if req.Method == "" {
		return "GET"
	}
	return req.Method
}

func outcome(resp *fetchstate.Response, err error) string {
	switch {
	case err != nil:
		return "error"
	case !resp.OK():
		return "failure"
	default:
		return "success"
	}
}
