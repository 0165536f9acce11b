package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
)

// CatalogHandler serves read-only browse endpoints from the same collaborators
// the assistant reasons over.
type CatalogHandler struct {
	deps assistant.Collaborators
}

func NewCatalogHandler(deps assistant.Collaborators) *CatalogHandler {
	if deps == nil {
		panic("nil collaborators passed to NewCatalogHandler")
	}
	return &CatalogHandler{deps: deps}
}

// ListMovies returns the catalog. ?genre= keeps only movies tagged with it.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	catalog, err := h.deps.FetchCatalog(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	genre := strings.TrimSpace(c.QueryParam("genre"))
	out := make([]assistant.CatalogEntry, 0, len(catalog))
	for _, m := range catalog {
		if genre == "" || m.HasGenre(genre) {
			out = append(out, m)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

type seatSuggestion struct {
	ShowID    uint64   `json:"show_id"`
	Requested int      `json:"requested"`
	Seats     []string `json:"seats"`
	Together  bool     `json:"together"`
	Free      int      `json:"free"`
	Status    string   `json:"status"`
}

// SuggestSeats proposes seats for a party of ?count= (default 2, clamped to
// the booking limit) given the show's current occupancy.
func (h *CatalogHandler) SuggestSeats(c echo.Context) error {
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	count := 2
	if raw := c.QueryParam("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "count must be a number"})
		}
		count = n
	}
	count = assistant.ClampSeatCount(count)

	occupied, err := h.deps.FetchOccupiedSeats(c.Request().Context(), showID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	free := assistant.FreeCount(occupied)
	seats := assistant.SuggestSeats(occupied, count)
	if seats == nil {
		seats = []string{}
	}
	return c.JSON(http.StatusOK, seatSuggestion{
		ShowID:    showID,
		Requested: count,
		Seats:     seats,
		Together:  len(seats) == count && assistant.IsContiguous(seats),
		Free:      free,
		Status:    assistant.OccupancyStatus(assistant.TotalSeats - free),
	})
}

// Refresher drops a cached catalog snapshot.
type Refresher func(ctx context.Context) error

// RefreshCatalog forgets the cached catalog so the next read, by the assistant
// or by ListMovies, goes to the database.
func RefreshCatalog(refresh Refresher) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := refresh(c.Request().Context()); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cache error"})
		}
		return c.NoContent(http.StatusNoContent)
	}
}
