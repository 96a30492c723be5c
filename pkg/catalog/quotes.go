package catalog

import (
	"net/http"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// Quote is a stored quote.
type Quote struct {
	ID     string `json:"id,omitempty"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// Comment is a comment on a quote.
type Comment struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

const (
	// QuotesPath is the quotes collection endpoint.
	QuotesPath = "/quotes.json"
	// QuotePath addresses a single quote.
	QuotePath = "/quotes/{id}.json"
	// CommentsPath addresses the comments of a quote.
	CommentsPath = "/comments/{quoteId}.json"
)

// AllQuotes lists the stored quotes.
func AllQuotes() fetchstate.Descriptor[[]Quote] {
	return fetchstate.Descriptor[[]Quote]{
		Request: fetchstate.Request{Method: http.MethodGet, Path: QuotesPath},
		Transform: fetchstate.JSON(func(raw map[string]Quote) ([]Quote, error) {
			return entries(raw, func(key string, q Quote) Quote {
				q.ID = key
				return q
			}), nil
		}),
		ErrorMessage: firebaseMessage(),
	}
}

// SingleQuote fetches the quote stored under id. A missing quote fails
// with ErrNotFound.
func SingleQuote(id string) fetchstate.Descriptor[Quote] {
	return fetchstate.Descriptor[Quote]{
		Request: fetchstate.Request{
			Method:     http.MethodGet,
			Path:       QuotePath,
			PathParams: map[string]string{"id": id},
		},
		Transform: fetchstate.JSON(func(raw *Quote) (Quote, error) {
			if raw == nil {
				return Quote{}, ErrNotFound
			}
			q := *raw
			q.ID = id
			return q, nil
		}),
		ErrorMessage: firebaseMessage(),
	}
}

// AddQuote stores quote and resolves to its generated key.
func AddQuote(author, text string) fetchstate.Descriptor[string] {
	return fetchstate.Descriptor[string]{
		Request: fetchstate.Request{
			Method: http.MethodPost,
			Path:   QuotesPath,
			Body:   Quote{Author: author, Text: text},
		},
		Transform:    createdKey(),
		ErrorMessage: firebaseMessage(),
	}
}

// AllComments lists the comments of the quote stored under quoteID.
func AllComments(quoteID string) fetchstate.Descriptor[[]Comment] {
	return fetchstate.Descriptor[[]Comment]{
		Request: fetchstate.Request{
			Method:     http.MethodGet,
			Path:       CommentsPath,
			PathParams: map[string]string{"quoteId": quoteID},
		},
		Transform: fetchstate.JSON(func(raw map[string]Comment) ([]Comment, error) {
			return entries(raw, func(key string, c Comment) Comment {
				c.ID = key
				return c
			}), nil
		}),
		ErrorMessage: firebaseMessage(),
	}
}

// AddComment stores a comment on the quote and resolves to the comment key.
func AddComment(quoteID, text string) fetchstate.Descriptor[string] {
	return fetchstate.Descriptor[string]{
		Request: fetchstate.Request{
			Method:     http.MethodPost,
			Path:       CommentsPath,
			PathParams: map[string]string{"quoteId": quoteID},
			Body:       Comment{Text: text},
		},
		Transform:    createdKey(),
		ErrorMessage: firebaseMessage(),
	}
}
