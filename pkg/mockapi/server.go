package mockapi

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pavelpascari/fetchstate/pkg/forms"
	"github.com/pavelpascari/fetchstate/pkg/middleware/auth"
	"github.com/pavelpascari/fetchstate/pkg/middleware/compression"
	"github.com/pavelpascari/fetchstate/pkg/middleware/observability"
	"github.com/pavelpascari/fetchstate/pkg/middleware/ratelimit"
	"github.com/pavelpascari/fetchstate/pkg/middleware/recovery"
	"github.com/pavelpascari/fetchstate/pkg/openapi"
	"github.com/pavelpascari/fetchstate/pkg/store"
	"golang.org/x/crypto/bcrypt"
)

// Server is the lesson backend. It is safe for concurrent use.
type Server struct {
	router       *Router
	tokens       *auth.JWTMiddleware
	validator    *forms.Validator
	logger       *slog.Logger
	newID        func() string
	passwordCost int
	films        []swapiFilm
	info         openapi.Info
	attempts     *ratelimit.SlidingWindowRateLimiter
	limiter      ratelimit.RateLimiter

	mu       sync.Mutex
	movies   map[string]movieRecord
	tasks    map[string]taskRecord
	quotes   map[string]quoteRecord
	comments map[string]map[string]commentRecord
	cart     *store.CartState
	accounts map[string]*account
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and error logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTokens sets how ID tokens are issued and checked.
func WithTokens(tokens *auth.JWTMiddleware) Option {
	return func(s *Server) {
		s.tokens = tokens
	}
}

// WithIDs sets the generator of record keys and account ids.
func WithIDs(newID func() string) Option {
	return func(s *Server) {
		s.newID = newID
	}
}

// WithPasswordCost sets the bcrypt cost of stored passwords.
func WithPasswordCost(cost int) Option {
	return func(s *Server) {
		s.passwordCost = cost
	}
}

// WithInfo sets the title and version of the API document.
func WithInfo(info openapi.Info) Option {
	return func(s *Server) {
		s.info = info
	}
}

// WithSignInAttempts locks an email out of sign-in after limit wrong
// passwords within window. The default is 5 per 15 minutes.
func WithSignInAttempts(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.attempts = ratelimit.NewSlidingWindowRateLimiter(limit, window, nil)
	}
}

// WithRateLimit rejects requests of a client over limiter with 429.
func WithRateLimit(limiter ratelimit.RateLimiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// New creates a server with the films catalog seeded and every database
// collection empty.
func New(opts ...Option) *Server {
	s := &Server{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:        uuid.NewString,
		passwordCost: bcrypt.DefaultCost,
		films:        seedFilms(),
		info:         openapi.Info{Title: "Lessons API", Version: "1.0.0"},
		attempts:     ratelimit.NewSlidingWindowRateLimiter(5, 15*time.Minute, nil),
		movies:       make(map[string]movieRecord),
		tasks:        make(map[string]taskRecord),
		quotes:       make(map[string]quoteRecord),
		comments:     make(map[string]map[string]commentRecord),
		accounts:     make(map[string]*account),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokens == nil {
		s.tokens = auth.NewJWTMiddleware([]byte(uuid.NewString()))
	}

	s.validator = forms.New()
	s.router = NewRouter(s.validator, s.logger)
	s.router.Use(
		observability.HTTPLogging(s.logger),
		compression.New().HTTPMiddleware(),
		recovery.NewPanicRecoveryMiddleware(recovery.WithLogger(s.logger)).HTTPMiddleware(),
	)
	if s.limiter != nil {
		// Without a meter provider construction cannot fail.
		limit, _ := ratelimit.NewRateLimitMiddleware(s.limiter)
		s.router.Use(limit.HTTPMiddleware())
	}

	s.registerFilms()
	s.registerDatabase()
	s.registerAccounts()
	s.router.Mount(http.MethodGet, OpenAPIPath, http.HandlerFunc(s.serveOpenAPI))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Routes returns the typed routes the server registers.
func (s *Server) Routes() []openapi.Route {
	return s.router.Routes()
}
