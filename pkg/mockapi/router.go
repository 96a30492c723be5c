package mockapi

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/pavelpascari/fetchstate/pkg/forms"
	"github.com/pavelpascari/fetchstate/pkg/openapi"
)

// Router registers typed handlers on an http.ServeMux and keeps their
// descriptions for the API document.
type Router struct {
	routes     []openapi.Route
	mux        *http.ServeMux
	middleware []Middleware
	validator  *forms.Validator
	logger     *slog.Logger
}

// NewRouter creates a router validating requests with v.
func NewRouter(v *forms.Validator, logger *slog.Logger) *Router {
	return &Router{
		mux:       http.NewServeMux(),
		validator: v,
		logger:    logger,
	}
}

// Use adds middleware around every route. The first is the outermost.
func (r *Router) Use(middleware ...Middleware) {
	r.middleware = append(r.middleware, middleware...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var handler http.Handler = r.mux
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}

	handler.ServeHTTP(w, req)
}

// Routes returns the registered typed routes.
func (r *Router) Routes() []openapi.Route {
	return r.routes
}

// Mount serves an untyped handler. It is not listed in Routes.
func (r *Router) Mount(method, path string, handler http.Handler) {
	r.mux.Handle(method+" "+muxPath(path), handler)
}

// Handle registers a typed handler for method and path. Path is the
// documented path; wildcards may carry a .json suffix, as in
// /quotes/{id}.json.
func Handle[TReq, TResp any](
	router *Router,
	method, path string,
	handler Handler[TReq, TResp],
	opts ...HandlerOption,
) {
	config := &HandlerConfig{}
	for _, opt := range opts {
		opt(config)
	}

	httpHandler := NewHTTPHandler(handler, NewDecoder[TReq](router.validator), router.logger, opts...)

	router.routes = append(router.routes, openapi.Route{
		Method:       method,
		Path:         path,
		Summary:      config.Summary,
		Tags:         config.Tags,
		RequestType:  reflect.TypeOf((*TReq)(nil)).Elem(),
		ResponseType: reflect.TypeOf((*TResp)(nil)).Elem(),
		StatusCode:   config.StatusCode,
		Security:     config.Security,
	})

	router.mux.Handle(method+" "+muxPath(path), httpHandler)
}

// GET registers a GET handler.
func GET[TReq, TResp any](router *Router, path string, handler Handler[TReq, TResp], opts ...HandlerOption) {
	Handle(router, http.MethodGet, path, handler, opts...)
}

// POST registers a POST handler.
func POST[TReq, TResp any](router *Router, path string, handler Handler[TReq, TResp], opts ...HandlerOption) {
	Handle(router, http.MethodPost, path, handler, opts...)
}

// PUT registers a PUT handler.
func PUT[TReq, TResp any](router *Router, path string, handler Handler[TReq, TResp], opts ...HandlerOption) {
	Handle(router, http.MethodPut, path, handler, opts...)
}

// muxPath turns a documented path into a ServeMux pattern: "{id}.json"
// segments become "{id}" and a trailing slash matches only itself.
func muxPath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}.json") {
			segments[i] = strings.TrimSuffix(segment, ".json")
		}
	}

	pattern := strings.Join(segments, "/")
	if strings.HasSuffix(pattern, "/") {
		pattern += "{$}"
	}

	return pattern
}
