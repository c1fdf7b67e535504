package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API from a browser.
	AllowedOrigins []string

	// AllowCredentials lets a separately hosted UI send the token cookie.
	AllowCredentials bool
}

// CORS wraps echo's CORS middleware for the session API. Requests from
// origins outside the list get no CORS headers and the browser blocks them.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	// A wildcard with credentials would let any site act as the user.
	if slices.Contains(cfg.AllowedOrigins, "*") && cfg.AllowCredentials {
		slog.Warn("CORS: wildcard origin with credentials requested, sending credentials disabled")
		cfg.AllowCredentials = false
	}

	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
		},
		ExposeHeaders:    []string{"Retry-After"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           3600,
	})
}
