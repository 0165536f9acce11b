// Package service adapts the storage layer to the assistant core and executes
// the side effects assistant turns request.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
	"github.com/iliyamo/cinema-assistant/internal/repository"
)

// Collaborators serves the assistant's read side from MySQL.
type Collaborators struct {
	movies    *repository.MovieRepo
	shows     *repository.ShowRepo
	showSeats *repository.ShowSeatRepo
	loc       *time.Location
	now       func() time.Time
}

// NewCollaborators groups shows by calendar date in loc.
func NewCollaborators(movies *repository.MovieRepo, shows *repository.ShowRepo, showSeats *repository.ShowSeatRepo, loc *time.Location) *Collaborators {
	if loc == nil {
		loc = time.UTC
	}
	return &Collaborators{movies: movies, shows: shows, showSeats: showSeats, loc: loc, now: time.Now}
}

func (c *Collaborators) FetchCatalog(ctx context.Context) ([]assistant.CatalogEntry, error) {
	movies, err := c.movies.ListWithGenres(ctx)
	if err != nil {
		return nil, err
	}
	return CatalogFromMovies(movies), nil
}

// FetchShowsForMovie returns the movie's scheduled shows from the start of
// today (local) onwards, keyed by local date, start times in RFC 3339 with the
// local offset.
func (c *Collaborators) FetchShowsForMovie(ctx context.Context, movieID uint64) (assistant.ShowsByDate, error) {
	now := c.now().In(c.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	shows, err := c.shows.ListUpcomingByMovie(ctx, movieID, midnight)
	if err != nil {
		return nil, err
	}
	out := assistant.ShowsByDate{}
	for _, s := range shows {
		local := s.StartsAt.In(c.loc)
		date := local.Format(assistant.DateLayout)
		out[date] = append(out[date], assistant.ShowSlot{ShowID: s.ID, StartTimeISO: local.Format(time.RFC3339)})
	}
	return out, nil
}

func (c *Collaborators) FetchOccupiedSeats(ctx context.Context, showID uint64) (assistant.SeatSet, error) {
	labels, err := c.showSeats.OccupiedLabels(ctx, showID)
	if err != nil {
		return nil, err
	}
	return assistant.NewSeatSet(labels...), nil
}

// CatalogFromMovies converts repository rows to the assistant's catalog.
func CatalogFromMovies(movies []repository.Movie) []assistant.CatalogEntry {
	out := make([]assistant.CatalogEntry, 0, len(movies))
	for _, m := range movies {
		e := assistant.CatalogEntry{ID: m.ID, Title: m.Title, Genres: make([]assistant.Genre, 0, len(m.Genres))}
		for _, g := range m.Genres {
			e.Genres = append(e.Genres, assistant.Genre{Name: g})
		}
		out = append(out, e)
	}
	return out
}
