// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-assistant/internal/handler"
	"github.com/iliyamo/cinema-assistant/internal/middleware"
)

// RegisterRoutes registers unauthenticated infrastructure routes.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health(checks))
}

// RegisterAssistant registers the chat endpoints. Turns accept guests and
// signed-in users alike and are rate limited; the rule table is owner-only.
func RegisterAssistant(e *echo.Echo, a *handler.AssistantHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/assistant", middleware.OptionalJWT(jwtSecret))
	g.POST("/turns", a.Turn, limit)
	g.GET("/sessions/:id", a.GetSession)
	g.DELETE("/sessions/:id", a.ResetSession)

	admin := e.Group("/v1/admin/assistant", middleware.JWTAuth(jwtSecret), middleware.RequireRole("OWNER"))
	admin.GET("/rules", a.ListRules)
}

// RegisterPublic registers cacheable browse endpoints.
func RegisterPublic(e *echo.Echo, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/movies", h.ListMovies, cache)
	e.GET("/v1/shows/:id/seats/suggest", h.SuggestSeats)
}

// RegisterCatalogAdmin lets owners drop the cached catalog after editing movies.
func RegisterCatalogAdmin(e *echo.Echo, refresh handler.Refresher, jwtSecret string) {
	admin := e.Group("/v1/admin/catalog", middleware.JWTAuth(jwtSecret), middleware.RequireRole("OWNER"))
	admin.DELETE("/cache", handler.RefreshCatalog(refresh))
}
