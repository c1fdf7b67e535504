// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (DB connector, Redis
// client, token service, Echo instance) and wires together the plugins.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/wellnest/internal/apperror"
	"github.com/keyxmakerx/wellnest/internal/config"
	"github.com/keyxmakerx/wellnest/internal/database"
	"github.com/keyxmakerx/wellnest/internal/middleware"
	"github.com/keyxmakerx/wellnest/internal/plugins/auth"
	"github.com/keyxmakerx/wellnest/internal/response"
)

// DB is the database handle the app needs: pool access for repositories
// and a ping for the health check. *database.Connector satisfies it.
type DB interface {
	database.DB
	Ping(ctx context.Context) error
}

// App is the composition root: shared infrastructure plus the echo server
// the plugins register on.
type App struct {
	Config  *config.Config
	DB      DB            // lazily connected MariaDB pool
	Redis   *redis.Client // published-list cache; nil when disabled
	Tokens  *auth.TokenService
	Metrics *middleware.Metrics
	Echo    *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling. It fails only
// if the token service cannot be built from the config.
func New(cfg *config.Config, db DB, rdb *redis.Client) (*App, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Proxies on these ranges may set X-Forwarded-For; rate limiting keys
	// on the resolved client IP.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fd00::/8",
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Tokens:  tokens,
		Metrics: middleware.NewMetrics(reg),
		Echo:    e,
	}
	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app, nil
}

// setupMiddleware installs the global chain, outermost first. Metrics wrap
// the logger because the logger renders errors itself, so the status
// metrics see is the one the client got.
func (a *App) setupMiddleware() {
	a.Echo.Use(
		middleware.Recovery(),
		a.Metrics.Middleware(),
		middleware.RequestLogger(),
		middleware.SecurityHeaders(),
		middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   []string{a.Config.BaseURL},
			AllowCredentials: true,
		}),
	)
}

// errorHandler renders every error returned by a handler or middleware as
// the JSON envelope. 5xx causes are logged here and nowhere else.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, message := a.classify(err, c.Request().URL.Path)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if err := response.Fail(c, code, message); err != nil {
		slog.Error("writing error response", slog.Any("error", err))
	}
}

// classify maps err to a status and a client-safe message.
func (a *App) classify(err error, path string) (int, string) {
	if appErr, ok := apperror.As(err); ok {
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", string(appErr.Type)),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", path),
			)
		}
		return appErr.Code, appErr.Message
	}

	// Router errors (404, 405) and body-limit errors from echo itself.
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		if msg, ok := echoErr.Message.(string); ok && msg != "" {
			return echoErr.Code, msg
		}
		return echoErr.Code, defaultErrorMessage(echoErr.Code)
	}

	slog.Error("unhandled error", slog.Any("error", err), slog.String("path", path))
	return http.StatusInternalServerError, apperror.SafeMessage(err)
}

// defaultErrorMessage returns a short message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusMethodNotAllowed:
		return "Method not allowed"
	case http.StatusRequestEntityTooLarge:
		return "Request body too large"
	case http.StatusTooManyRequests:
		return "Too many requests, please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "Internal server error"
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Wellnest server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
