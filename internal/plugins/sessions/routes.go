package sessions

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/wellnest/internal/plugins/auth"
)

// RegisterRoutes sets up session routes. The public list needs no auth;
// everything under /api/my-sessions goes through the auth gate and is
// scoped to the caller.
func RegisterRoutes(e *echo.Echo, h *Handler, tokens auth.TokenVerifier) {
	e.GET("/api/sessions", h.ListPublished)

	mine := e.Group("/api/my-sessions")
	mine.GET("", auth.WithAuth(tokens, h.ListMine))
	mine.POST("/save-draft", auth.WithAuth(tokens, h.SaveDraft))
	mine.POST("/publish", auth.WithAuth(tokens, h.Publish))
	mine.GET("/:id", auth.WithAuthParams(tokens, h.Get))
	mine.DELETE("/:id", auth.WithAuthParams(tokens, h.Delete))
}
