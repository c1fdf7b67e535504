// Package main is the entry point for the Wellnest server. It loads
// configuration, prepares database connections, runs migrations, wires
// the plugins, and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keyxmakerx/wellnest/internal/app"
	"github.com/keyxmakerx/wellnest/internal/config"
	"github.com/keyxmakerx/wellnest/internal/database"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// run owns every resource the server opens. Errors are returned rather than
// exiting so deferred closes always run.
func run() error {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting Wellnest",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	// --- MariaDB ---
	// The pool is opened lazily and shared; running migrations here makes
	// the first connect happen at startup rather than on the first request.
	db := database.NewConnector(cfg.Database)
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	err = database.RunMigrations(migrateCtx, db, cfg.MigrationsPath)
	cancel()
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// --- Redis ---
	// Redis only backs the published-list cache, so the server runs without it.
	rdb, err := database.NewRedis(context.Background(), cfg.Redis)
	switch {
	case err != nil:
		slog.Warn("redis unavailable, published list cache disabled", slog.Any("error", err))
	case rdb == nil:
		slog.Info("REDIS_URL empty, published list cache disabled")
	default:
		defer rdb.Close()
		slog.Info("connected to Redis")
	}

	// --- Create Application ---
	application, err := app.New(cfg, db, rdb)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}

	// Register all routes (operational and plugin).
	application.RegisterRoutes()

	// --- Serve until SIGINT/SIGTERM, then drain for up to 10s ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- application.Start() }()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Echo.Shutdown(shutdownCtx); err != nil {
			slog.Error("forced shutdown", slog.Any("error", err))
		}
	}
	slog.Info("server stopped")
	return nil
}

// setupLogging installs the default slog logger: text in development, JSON
// everywhere else.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
