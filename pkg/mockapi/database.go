package mockapi

import (
	"context"
	"maps"
	"net/http"
	"slices"

	"github.com/pavelpascari/fetchstate/pkg/forms"
	"github.com/pavelpascari/fetchstate/pkg/store"
)

// Realtime-database endpoints. Collections answer GET with an object keyed
// by record key, or null when empty, and POST with the new key.
const (
	MoviesPath   = "/movies.json"
	TasksPath    = "/tasks.json"
	QuotesPath   = "/quotes.json"
	QuotePath    = "/quotes/{id}.json"
	CommentsPath = "/comments/{quoteId}.json"
	CartPath     = "/cart.json"
)

type movieRecord struct {
	Title       string `json:"title" validate:"notblank" message:"Please enter a title!"`
	OpeningText string `json:"openingText"`
	ReleaseDate string `json:"releaseDate"`
}

type taskRecord struct {
	Text string `json:"text" validate:"notblank" message:"Please enter a task!"`
}

type quoteRecord struct {
	forms.NewQuote
}

type commentRecord struct {
	forms.NewComment
}

type created struct {
	Name string `json:"name"`
}

type quoteRequest struct {
	ID string `path:"id" json:"-"`
}

type commentsRequest struct {
	QuoteID string `path:"quoteId" json:"-"`
}

type addCommentRequest struct {
	QuoteID string `path:"quoteId" json:"-"`
	forms.NewComment
}

func (s *Server) registerDatabase() {
	ok := WithStatusCode(http.StatusOK)

	GET(s.router, MoviesPath, HandlerFunc[struct{}, map[string]movieRecord](
		func(context.Context, struct{}) (map[string]movieRecord, error) {
			return collection(s, s.movies), nil
		}), WithTags("movies"), WithSummary("List movies"))
	POST(s.router, MoviesPath, HandlerFunc[movieRecord, created](
		func(_ context.Context, movie movieRecord) (created, error) {
			return insert(s, s.movies, movie), nil
		}), ok, WithTags("movies"), WithSummary("Add a movie"))

	GET(s.router, TasksPath, HandlerFunc[struct{}, map[string]taskRecord](
		func(context.Context, struct{}) (map[string]taskRecord, error) {
			return collection(s, s.tasks), nil
		}), WithTags("tasks"), WithSummary("List tasks"))
	POST(s.router, TasksPath, HandlerFunc[taskRecord, created](
		func(_ context.Context, task taskRecord) (created, error) {
			return insert(s, s.tasks, task), nil
		}), ok, WithTags("tasks"), WithSummary("Add a task"))

	GET(s.router, QuotesPath, HandlerFunc[struct{}, map[string]quoteRecord](
		func(context.Context, struct{}) (map[string]quoteRecord, error) {
			return collection(s, s.quotes), nil
		}), WithTags("quotes"), WithSummary("List quotes"))
	POST(s.router, QuotesPath, HandlerFunc[quoteRecord, created](
		func(_ context.Context, quote quoteRecord) (created, error) {
			return insert(s, s.quotes, quote), nil
		}), ok, WithTags("quotes"), WithSummary("Add a quote"))
	GET(s.router, QuotePath, HandlerFunc[quoteRequest, *quoteRecord](s.getQuote),
		WithTags("quotes"), WithSummary("Get a quote, null when missing"))

	GET(s.router, CommentsPath, HandlerFunc[commentsRequest, map[string]commentRecord](s.listComments),
		WithTags("quotes"), WithSummary("List the comments of a quote"))
	POST(s.router, CommentsPath, HandlerFunc[addCommentRequest, created](s.addComment),
		ok, WithTags("quotes"), WithSummary("Comment on a quote"))

	GET(s.router, CartPath, HandlerFunc[struct{}, *store.CartState](s.getCart),
		WithTags("cart"), WithSummary("Get the saved cart, null when never saved"))
	PUT(s.router, CartPath, HandlerFunc[store.CartState, store.CartState](s.putCart),
		WithTags("cart"), WithSummary("Replace the saved cart"))
}

// collection copies records under the server lock. An empty collection is
// nil so that it encodes as null.
func collection[V any](s *Server, records map[string]V) map[string]V {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		return nil
	}
	return maps.Clone(records)
}

func insert[V any](s *Server, records map[string]V, record V) created {
	key := s.newID()

	s.mu.Lock()
	records[key] = record
	s.mu.Unlock()

	return created{Name: key}
}

func (s *Server) getQuote(_ context.Context, req quoteRequest) (*quoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quote, ok := s.quotes[req.ID]
	if !ok {
		return nil, nil
	}
	return &quote, nil
}

func (s *Server) listComments(_ context.Context, req commentsRequest) (map[string]commentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.comments[req.QuoteID]) == 0 {
		return nil, nil
	}
	return maps.Clone(s.comments[req.QuoteID]), nil
}

// addComment does not require the quote to exist, like the database it
// stands in for.
func (s *Server) addComment(_ context.Context, req addCommentRequest) (created, error) {
	key := s.newID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.comments[req.QuoteID] == nil {
		s.comments[req.QuoteID] = make(map[string]commentRecord)
	}
	s.comments[req.QuoteID][key] = commentRecord{NewComment: req.NewComment}

	return created{Name: key}, nil
}

func (s *Server) getCart(context.Context, struct{}) (*store.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart == nil {
		return nil, nil
	}
	cart := *s.cart
	cart.Items = slices.Clone(s.cart.Items)

	return &cart, nil
}

//nolint:gocritic // CartState is the decoded request body
func (s *Server) putCart(_ context.Context, cart store.CartState) (store.CartState, error) {
	if cart.Items == nil {
		cart.Items = []store.CartItem{}
	}

	s.mu.Lock()
	saved := cart
	saved.Items = slices.Clone(cart.Items)
	s.cart = &saved
	s.mu.Unlock()

	return cart, nil
}
