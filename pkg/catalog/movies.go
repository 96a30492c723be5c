package catalog

import (
	"net/http"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// Movie is a record of the movies collection.
type Movie struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	OpeningText string `json:"openingText"`
	ReleaseDate string `json:"releaseDate"`
}

// MoviesPath is the movies collection endpoint.
const MoviesPath = "/movies.json"

// Movies lists the stored movies.
func Movies() fetchstate.Descriptor[[]Movie] {
	return fetchstate.Descriptor[[]Movie]{
		Request: fetchstate.Request{Method: http.MethodGet, Path: MoviesPath},
		Transform: fetchstate.JSON(func(raw map[string]Movie) ([]Movie, error) {
			return entries(raw, func(key string, m Movie) Movie {
				m.ID = key
				return m
			}), nil
		}),
		ErrorMessage: firebaseMessage(),
	}
}

// AddMovie stores movie and resolves to its generated key.
//
//nolint:gocritic // Movie is copied into the request body
func AddMovie(movie Movie) fetchstate.Descriptor[string] {
	movie.ID = ""

	return fetchstate.Descriptor[string]{
		Request:      fetchstate.Request{Method: http.MethodPost, Path: MoviesPath, Body: movie},
		Transform:    createdKey(),
		ErrorMessage: firebaseMessage(),
	}
}
