package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/wellnest/internal/apperror"
	"github.com/keyxmakerx/wellnest/internal/response"
)

// Handler handles HTTP requests for authentication (register, login,
// logout, me). Handlers are thin: they bind the request, call the service,
// and write the envelope. No business logic lives here.
type Handler struct {
	service      AuthService
	tokenTTL     time.Duration
	secureCookie bool
}

// NewHandler creates a new auth handler. tokenTTL sets the cookie lifetime
// and should match the token service ttl. secureCookie marks the token
// cookie Secure on every response; it is derived from BASE_URL.
func NewHandler(service AuthService, tokenTTL time.Duration, secureCookie bool) *Handler {
	return &Handler{service: service, tokenTTL: tokenTTL, secureCookie: secureCookie}
}

// Register creates an account (POST /api/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	result, err := h.service.Register(c.Request().Context(), CredentialsInput(req))
	if err != nil {
		return err
	}

	h.setTokenCookie(c, result.Token)
	return response.OK(c, http.StatusCreated, result, "User registered successfully")
}

// Login authenticates with email and password (POST /api/auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	result, err := h.service.Login(c.Request().Context(), CredentialsInput(req))
	if err != nil {
		return err
	}

	h.setTokenCookie(c, result.Token)
	return response.OK(c, http.StatusOK, result, "Login successful")
}

// Logout clears the token cookie (POST /api/auth/logout). The token itself
// stays valid until it expires.
func (h *Handler) Logout(c echo.Context) error {
	clearTokenCookie(c)
	return response.OK(c, http.StatusOK, nil, "Logged out")
}

// Me returns the identity carried by the request token (GET /api/auth/me).
func (h *Handler) Me(c echo.Context, id Identity) error {
	return response.OK(c, http.StatusOK, id, "")
}

// --- Cookie helpers ---

// setTokenCookie stores the token in the cookie the gate reads first.
func (h *Handler) setTokenCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie || c.Request().TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.tokenTTL.Seconds()),
	})
}

// clearTokenCookie removes the token cookie by setting MaxAge to -1.
func clearTokenCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
