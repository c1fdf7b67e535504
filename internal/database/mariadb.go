// Package database provides connection setup for MariaDB and Redis.
// The MariaDB handle is established lazily on first use and shared by every
// repository; concurrent first callers wait on the same in-flight attempt.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	// MariaDB driver -- imported for side effect of registering the driver.
	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/sync/singleflight"

	"github.com/keyxmakerx/wellnest/internal/config"
)

// State is the lifecycle state of a Connector.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "uninitialized"
	}
}

// DB is what repositories depend on: a way to obtain the shared pool.
type DB interface {
	Conn(ctx context.Context) (*sql.DB, error)
}

// OpenFunc opens and verifies a pool. Swappable for tests.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

// Connector owns the process-wide MariaDB pool. It moves through
// uninitialized -> connecting -> connected and falls back to uninitialized
// when an attempt fails so the next caller retries.
type Connector struct {
	open  OpenFunc
	group singleflight.Group

	mu    sync.Mutex
	db    *sql.DB
	state State
}

// NewConnector creates a lazy connector for the given database config.
func NewConnector(cfg config.DatabaseConfig) *Connector {
	return NewConnectorWithOpen(func(ctx context.Context) (*sql.DB, error) {
		return openMariaDB(ctx, cfg)
	})
}

// NewConnectorWithOpen creates a lazy connector around a custom open function.
func NewConnectorWithOpen(open OpenFunc) *Connector {
	return &Connector{open: open}
}

// Conn returns the shared pool, connecting on first use.
func (c *Connector) Conn(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	if c.state == StateConnected {
		db := c.db
		c.mu.Unlock()
		return db, nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	// The attempt is detached from any single caller's context so one
	// cancelled request cannot fail the connect for everyone waiting on it.
	ch := c.group.DoChan("connect", func() (any, error) {
		c.mu.Lock()
		if c.state == StateConnected {
			db := c.db
			c.mu.Unlock()
			return db, nil
		}
		c.mu.Unlock()

		db, err := c.open(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.state = StateUninitialized
			return nil, err
		}
		c.db = db
		c.state = StateConnected
		return db, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sql.DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// State reports the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ping verifies the pool is reachable, connecting first if needed.
func (c *Connector) Ping(ctx context.Context) error {
	db, err := c.Conn(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes the pool if it was opened and resets the connector.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	c.state = StateUninitialized
	return err
}

// openMariaDB creates a new MariaDB connection pool configured with the
// settings from the provided config and pings it, retrying with backoff
// while the server is still starting up.
func openMariaDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	const maxRetries = 5
	backoff := 1 * time.Second
	var pingErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pingErr = db.PingContext(pingCtx)
		cancel()

		if pingErr == nil {
			slog.Info("connected to MariaDB", slog.Int("attempt", attempt))
			return db, nil
		}

		if attempt == maxRetries {
			break
		}

		slog.Warn("mariadb not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 10*time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("pinging mariadb after %d attempts: %w", maxRetries, pingErr)
}
