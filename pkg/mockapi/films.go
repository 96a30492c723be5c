package mockapi

import (
	"context"
	"strconv"
)

// Films catalog endpoints.
const (
	FilmsPath = "/api/films/"
	FilmPath  = "/api/films/{id}/"
)

type swapiFilm struct {
	EpisodeID    int    `json:"episode_id"`
	Title        string `json:"title"`
	OpeningCrawl string `json:"opening_crawl"`
	ReleaseDate  string `json:"release_date"`
}

type filmList struct {
	Count   int         `json:"count"`
	Results []swapiFilm `json:"results"`
}

type filmRequest struct {
	ID string `path:"id" json:"-"`
}

func seedFilms() []swapiFilm {
	return []swapiFilm{
		{
			EpisodeID:    4,
			Title:        "A New Hope",
			OpeningCrawl: "It is a period of civil war.",
			ReleaseDate:  "1977-05-25",
		},
		{
			EpisodeID:    5,
			Title:        "The Empire Strikes Back",
			OpeningCrawl: "It is a dark time for the Rebellion.",
			ReleaseDate:  "1980-05-17",
		},
		{
			EpisodeID:    6,
			Title:        "Return of the Jedi",
			OpeningCrawl: "Luke Skywalker has returned to his home planet of Tatooine.",
			ReleaseDate:  "1983-05-25",
		},
	}
}

func (s *Server) registerFilms() {
	catalog := []HandlerOption{WithErrorMapper(CatalogErrors{}), WithTags("films")}

	GET(s.router, FilmsPath, HandlerFunc[struct{}, filmList](s.listFilms),
		append(catalog, WithSummary("List films"))...)
	GET(s.router, FilmPath, HandlerFunc[filmRequest, swapiFilm](s.getFilm),
		append(catalog, WithSummary("Get a film by its position in the catalog"))...)
}

func (s *Server) listFilms(_ context.Context, _ struct{}) (filmList, error) {
	results := make([]swapiFilm, len(s.films))
	copy(results, s.films)

	return filmList{Count: len(results), Results: results}, nil
}

// getFilm addresses films from 1, the way the catalog numbers them.
func (s *Server) getFilm(_ context.Context, req filmRequest) (swapiFilm, error) {
	n, err := strconv.Atoi(req.ID)
	if err != nil || n < 1 || n > len(s.films) {
		return swapiFilm{}, NewNotFoundError("film", req.ID)
	}

	return s.films[n-1], nil
}
