package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/keyxmakerx/wellnest/internal/config"
)

// fakeDB never connects; Conn and Ping return the configured error.
type fakeDB struct {
	err error
}

func (f *fakeDB) Conn(context.Context) (*sql.DB, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, errors.New("no database in tests")
}

func (f *fakeDB) Ping(context.Context) error { return f.err }

func testConfig() *config.Config {
	return &config.Config{
		Env:     "development",
		Port:    0,
		BaseURL: "http://localhost:8080",
		Auth: config.AuthConfig{
			JWTSecret:  "app-test-secret-app-test-secret-xx",
			TokenTTL:   config.TokenTTL,
			BcryptCost: config.DefaultBcryptCost,
		},
		Sessions: config.SessionsConfig{PublishedCacheTTL: time.Minute},
	}
}

func newTestApp(t *testing.T, db *fakeDB) *App {
	t.Helper()
	a, err := New(testConfig(), db, nil)
	if err != nil {
		t.Fatalf("creating app: %v", err)
	}
	a.RegisterRoutes()
	return a
}

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

func request(a *App, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestNew_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	if _, err := New(cfg, &fakeDB{}, nil); err == nil {
		t.Fatal("expected error without a signing secret")
	}
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	a := newTestApp(t, &fakeDB{})
	rec, env := request(a, http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if env.Success || env.Error == "" {
		t.Errorf("expected failure envelope, got %s", rec.Body.String())
	}
}

func TestErrorHandler_Unauthenticated(t *testing.T) {
	a := newTestApp(t, &fakeDB{})
	rec, env := request(a, http.MethodGet, "/api/my-sessions", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.Error != "authentication required" {
		t.Errorf("unexpected error message %q", env.Error)
	}
}

func TestErrorHandler_ValidationBeforeStore(t *testing.T) {
	a := newTestApp(t, &fakeDB{err: errors.New("must not be reached")})
	rec, env := request(a, http.MethodPost, "/api/auth/register", `{"email":"bad","password":"secret1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.Success {
		t.Error("expected success=false")
	}
}

func TestErrorHandler_InternalDetailHidden(t *testing.T) {
	a := newTestApp(t, &fakeDB{err: errors.New("dial tcp 10.9.8.7:3306: connection refused")})
	rec, env := request(a, http.MethodPost, "/api/auth/login", `{"email":"a@x.io","password":"secret1"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if env.Error != "Internal server error" || strings.Contains(rec.Body.String(), "10.9.8.7") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t, &fakeDB{})
	rec, env := request(a, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !env.Success || env.Data["database"] != "ok" {
		t.Errorf("unexpected healthy response %d %s", rec.Code, rec.Body.String())
	}

	a = newTestApp(t, &fakeDB{err: errors.New("down")})
	rec, env = request(a, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable || env.Success || env.Data["database"] != "unavailable" {
		t.Errorf("unexpected unhealthy response %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t, &fakeDB{})
	request(a, http.MethodGet, "/healthz", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/healthz"`) {
		t.Error("expected healthz request to be counted")
	}
}

func TestSecurityHeadersOnAPI(t *testing.T) {
	a := newTestApp(t, &fakeDB{})
	rec, _ := request(a, http.MethodGet, "/api/sessions", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}
