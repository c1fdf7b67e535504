// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. A .env file in the working directory is loaded first when
// present; real environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// TokenTTL is the fixed lifetime of an identity token.
const TokenTTL = 7 * 24 * time.Hour

// DefaultBcryptCost is the bcrypt work factor used for password hashes.
const DefaultBcryptCost = 12

// ErrMissingSecret is returned by Load when JWT_SECRET is not set. There is
// no development fallback: tokens signed with a well-known key are forgeable.
var ErrMissingSecret = errors.New("JWT_SECRET is required")

// Config is the full server configuration, read once by Load.
type Config struct {
	Env            string // "development" or "production"
	Port           int
	BaseURL        string // public URL, also the allowed CORS origin
	LogLevel       string
	MigrationsPath string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Sessions SessionsConfig
}

// SecureCookies reports whether the public URL is served over HTTPS. Proxy
// headers are client-controlled, so the cookie Secure flag follows this
// instead of X-Forwarded-Proto.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(c.BaseURL), "https://")
}

// DatabaseConfig holds MariaDB settings. DATABASE_URL, when set, replaces
// the individual connection fields but not the pool limits.
type DatabaseConfig struct {
	Host     string // host[:port], port defaults to 3306
	User     string
	Password string
	Name     string

	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is used as the base. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() to safely handle special
// characters in passwords.
//
// ClientFoundRows makes UPDATE report matched rather than changed rows, so
// an owner-scoped update that writes identical values still counts as found.
// It is forced on an override too, along with ParseTime and UTC.
func (d DatabaseConfig) DSN() string {
	var cfg *mysql.Config
	if d.dsnOverride != "" {
		parsed, err := mysql.ParseDSN(d.dsnOverride)
		if err != nil {
			return d.dsnOverride
		}
		cfg = parsed
	} else {
		cfg = mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = ensurePort(d.Host, "3306")
		cfg.DBName = d.Name
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig points at the cache Redis. An empty URL disables caching.
type RedisConfig struct {
	URL string
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration // always TokenTTL
	BcryptCost int
}

// SessionsConfig holds settings for the sessions plugin.
type SessionsConfig struct {
	// PublishedCacheTTL bounds how stale the public list may be. Zero
	// disables the cache.
	PublishedCacheTTL time.Duration
}

// Load reads the environment (after an optional .env file) and validates
// it. A missing or short JWT secret is fatal.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", slog.Any("error", err))
	}

	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "wellnest"),
			Password:        getEnv("DB_PASSWORD", "wellnest"),
			Name:            getEnv("DB_NAME", "wellnest"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			TokenTTL:   TokenTTL,
			BcryptCost: getEnvInt("BCRYPT_COST", DefaultBcryptCost),
		},

		Sessions: SessionsConfig{
			PublishedCacheTTL: getEnvDuration("PUBLISHED_CACHE_TTL", time.Minute),
		},
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, ErrMissingSecret
	}

	if !cfg.IsDevelopment() && len(cfg.Auth.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters outside development")
	}

	if cfg.Auth.BcryptCost < DefaultBcryptCost {
		slog.Warn("BCRYPT_COST below minimum, using default",
			slog.Int("requested", cfg.Auth.BcryptCost),
			slog.Int("cost", DefaultBcryptCost),
		)
		cfg.Auth.BcryptCost = DefaultBcryptCost
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error"), falling
// back to info for anything slog does not recognize.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "90s") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
