package sessions

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/wellnest/internal/apperror"
	"github.com/keyxmakerx/wellnest/internal/plugins/auth"
	"github.com/keyxmakerx/wellnest/internal/response"
)

// Handler handles HTTP requests for sessions. Handlers are thin: they bind
// the request, call the service, and write the envelope. Owner-scoped
// handlers receive the caller's identity from the auth gate.
type Handler struct {
	service SessionService
}

// NewHandler creates a new session handler.
func NewHandler(service SessionService) *Handler {
	return &Handler{service: service}
}

// ListPublished returns the public list (GET /api/sessions).
func (h *Handler) ListPublished(c echo.Context) error {
	sessions, err := h.service.ListPublished(c.Request().Context(), c.QueryParam("tag"))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, sessions, "")
}

// ListMine returns the caller's sessions (GET /api/my-sessions).
func (h *Handler) ListMine(c echo.Context, id auth.Identity) error {
	sessions, err := h.service.ListOwned(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, sessions, "")
}

// Get returns one of the caller's sessions (GET /api/my-sessions/:id).
func (h *Handler) Get(c echo.Context, id auth.Identity, params auth.Params) error {
	session, err := h.service.GetOwned(c.Request().Context(), params["id"], id.UserID)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, session, "")
}

// SaveDraft saves the session as a draft (POST /api/my-sessions/save-draft).
func (h *Handler) SaveDraft(c echo.Context, id auth.Identity) error {
	var req SaveSessionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	session, err := h.service.SaveDraft(c.Request().Context(), id.UserID, req.toInput())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, session, "Draft saved")
}

// Publish saves and publishes the session (POST /api/my-sessions/publish).
func (h *Handler) Publish(c echo.Context, id auth.Identity) error {
	var req SaveSessionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	session, err := h.service.Publish(c.Request().Context(), id.UserID, req.toInput())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, session, "Session published")
}

// Delete removes one of the caller's sessions (DELETE /api/my-sessions/:id).
func (h *Handler) Delete(c echo.Context, id auth.Identity, params auth.Params) error {
	session, err := h.service.DeleteOwned(c.Request().Context(), params["id"], id.UserID)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, session, "Session deleted")
}
