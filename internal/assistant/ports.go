package assistant

import (
	"context"
	"errors"
)

// ErrCollaborator wraps every failure reported by a Collaborators call. The
// router turns it into an apology without touching the session.
var ErrCollaborator = errors.New("assistant: collaborator unavailable")

type Genre struct {
	Name string `json:"name"`
}

// CatalogEntry is one movie as the assistant sees it.
type CatalogEntry struct {
	ID     uint64  `json:"id"`
	Title  string  `json:"title"`
	Genres []Genre `json:"genres"`
}

// HasGenre reports whether the movie is tagged with name, ignoring case.
func (e CatalogEntry) HasGenre(name string) bool {
	for _, g := range e.Genres {
		if Normalize(g.Name) == Normalize(name) {
			return true
		}
	}
	return false
}

// ShowSlot is one screening. StartTimeISO is RFC 3339.
type ShowSlot struct {
	ShowID       uint64 `json:"showId"`
	StartTimeISO string `json:"startTimeISO"`
}

// ShowsByDate groups one movie's screenings by local date (YYYY-MM-DD).
type ShowsByDate map[string][]ShowSlot

// Collaborators is the read side the rules depend on. Implementations may
// block; the router bounds each call with its own timeout.
type Collaborators interface {
	FetchCatalog(ctx context.Context) ([]CatalogEntry, error)
	FetchShowsForMovie(ctx context.Context, movieID uint64) (ShowsByDate, error)
	FetchOccupiedSeats(ctx context.Context, showID uint64) (SeatSet, error)
}
