package catalog

import (
	"net/http"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// Film is a record of the films catalog.
type Film struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	OpeningText string `json:"openingText"`
	ReleaseDate string `json:"releaseDate"`
}

type swapiFilms struct {
	Results []struct {
		EpisodeID    int    `json:"episode_id"`
		Title        string `json:"title"`
		OpeningCrawl string `json:"opening_crawl"`
		ReleaseDate  string `json:"release_date"`
	} `json:"results"`
}

// FilmsPath is the films catalog endpoint.
const FilmsPath = "/api/films/"

// Films lists the films catalog, in the order the backend returns it.
func Films() fetchstate.Descriptor[[]Film] {
	return fetchstate.Descriptor[[]Film]{
		Request: fetchstate.Request{Method: http.MethodGet, Path: FilmsPath},
		Transform: fetchstate.JSON(func(raw swapiFilms) ([]Film, error) {
			films := make([]Film, 0, len(raw.Results))
			for _, r := range raw.Results {
				films = append(films, Film{
					ID:          r.EpisodeID,
					Title:       r.Title,
					OpeningText: r.OpeningCrawl,
					ReleaseDate: r.ReleaseDate,
				})
			}
			return films, nil
		}),
		ErrorMessage: fetchstate.MessageAt("detail"),
	}
}
