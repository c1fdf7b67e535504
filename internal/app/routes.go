package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/wellnest/internal/database"
	"github.com/keyxmakerx/wellnest/internal/plugins/auth"
	"github.com/keyxmakerx/wellnest/internal/plugins/sessions"
	"github.com/keyxmakerx/wellnest/internal/response"
)

// RegisterRoutes sets up all application routes. It registers public routes
// directly and delegates to each plugin's route registration function.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// --- Operational Routes ---

	// Health check: MariaDB and (when configured) Redis must answer.
	e.GET("/healthz", a.healthz)

	// Prometheus scrape endpoint.
	e.GET("/metrics", a.Metrics.Handler())

	// --- Plugin Routes ---

	// auth plugin (public: register, login, logout; gated: me)
	userRepo := auth.NewUserRepository(a.DB)
	authService := auth.NewAuthService(userRepo, auth.NewHasher(a.Config.Auth.BcryptCost), a.Tokens)
	auth.RegisterRoutes(e, auth.NewHandler(authService, a.Config.Auth.TokenTTL, a.Config.SecureCookies()), a.Tokens)

	// sessions plugin (public list; owner-scoped CRUD behind the auth gate)
	sessionRepo := sessions.NewSessionRepository(a.DB)
	cache := sessions.NewPublishedCache(a.Redis, a.Config.Sessions.PublishedCacheTTL)
	sessionService := sessions.NewSessionService(sessionRepo, cache)
	sessions.RegisterRoutes(e, sessions.NewHandler(sessionService), a.Tokens)
}

// healthz reports component status. Any failing dependency turns the whole
// check into a 503 so orchestrators stop routing to this instance.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"database": "ok"}

	if err := a.DB.Ping(ctx); err != nil {
		slog.Warn("health check: database unavailable", slog.Any("error", err))
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if a.Redis != nil {
		checks["redis"] = "ok"
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			slog.Warn("health check: redis unavailable", slog.Any("error", err))
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	if sc, ok := a.DB.(interface{ State() database.State }); ok {
		checks["database_state"] = sc.State().String()
	}

	return c.JSON(status, response.Envelope{
		Success: status == http.StatusOK,
		Data:    checks,
	})
}
