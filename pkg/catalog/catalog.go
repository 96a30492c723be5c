// Package catalog holds the request descriptors of the lesson backends:
// films, movies, tasks, quotes with comments, the cart and accounts.
//
// Per-call arguments are bound when the descriptor is built, e.g.
// SingleQuote(id) or AddComment(quoteID, text).
package catalog

import (
	"errors"
	"sort"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// ErrNotFound is returned by transforms when the backend answers null.
var ErrNotFound = errors.New("not found")

// created is the body returned when a keyed record is stored.
type created struct {
	Name string `json:"name"`
}

// entries flattens a keyed collection into a slice ordered by key. A null
// collection yields an empty slice.
func entries[V, T any](collection map[string]V, fn func(key string, value V) T) []T {
	keys := make([]string, 0, len(collection))
	for key := range collection {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	items := make([]T, 0, len(keys))
	for _, key := range keys {
		items = append(items, fn(key, collection[key]))
	}

	return items
}

// createdKey is the transform of every POST to a keyed collection.
func createdKey() func(payload []byte) (string, error) {
	return fetchstate.JSON(func(raw created) (string, error) {
		if raw.Name == "" {
			return "", errors.New("missing record key")
		}
		return raw.Name, nil
	})
}

// firebaseMessage reads the error body of the realtime database, a bare
// {"error": "..."} string.
func firebaseMessage() func(payload []byte) string {
	return fetchstate.MessageAt("error")
}
