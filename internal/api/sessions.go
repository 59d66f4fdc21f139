package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/ShashidharM0118/sitelenz/internal/session"
)

const sessionListCacheKey = "session-list"

// initSessionRoutes registers the stored session endpoints.
func (c *Controller) initSessionRoutes() {
	c.Group.GET("/sessions", c.ListSessions)
	c.Group.GET("/sessions/:id", c.GetSession)
}

// ListSessions returns all stored capture sessions, newest first. The
// list is cached briefly since it requires a directory scan.
func (c *Controller) ListSessions(ctx echo.Context) error {
	if cached, found := c.sessionCache.Get(sessionListCacheKey); found {
		if sessions, ok := cached.([]session.Summary); ok {
			return ctx.JSON(http.StatusOK, map[string]any{
				"sessions": sessions,
				"count":    len(sessions),
			})
		}
	}

	sessions, err := c.Store.Sessions()
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to list sessions")
	}
	c.sessionCache.Set(sessionListCacheKey, sessions, cache.DefaultExpiration)

	return ctx.JSON(http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns the full content of one stored session.
func (c *Controller) GetSession(ctx echo.Context) error {
	detail, err := c.Store.Session(ctx.Param("id"))
	if err != nil {
		return c.handleDomainError(ctx, err, "Session not found")
	}
	return ctx.JSON(http.StatusOK, detail)
}
