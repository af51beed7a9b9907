// ABOUTME: Tests for server wiring, health endpoints, metrics exposure and lifecycle
// ABOUTME: Uses in-memory stores and a redismock client for the Redis backend

package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/timecard/internal/auth"
	"github.com/2389/timecard/internal/config"
	"github.com/2389/timecard/internal/session"
	"github.com/2389/timecard/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Path: ":memory:"},
		Auth: config.AuthConfig{
			SessionSecret:  "server-test-secret-0123456789abcdef",
			SessionTTL:     time.Hour,
			TokenTTL:       time.Minute,
			KDFConcurrency: 2,
		},
		Sessions: config.SessionsConfig{Backend: config.BackendMemory},
		Logging:  config.LoggingConfig{Level: "info", Format: "text"},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *store.MockStore) {
	t.Helper()
	users := store.NewMockStore()
	sessions := session.NewMemoryStore(session.Options{TTL: time.Hour}, 0)
	s := newServer(testConfig(), users, sessions, testLogger())
	t.Cleanup(func() { _ = sessions.Close() })
	return s, users
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReady(t *testing.T) {
	s, users := newTestServer(t)

	rec := get(t, s.Handler(), "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	users.SetError(errors.New("database is locked"))
	rec = get(t, s.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	body := strings.NewReader(`{"username":"nobody","password":"nope"}`)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", body))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `timecard_logins_total{result="failure"}`)
	assert.Contains(t, rec.Body.String(), "timecard_kdf_duration_seconds")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	s := newServer(cfg, store.NewMockStore(), session.NewMemoryStore(session.Options{}, 0), testLogger())

	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginThroughServer(t *testing.T) {
	s, users := newTestServer(t)
	cred, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.CreateUser(context.Background(), &store.User{
		Username: "admin", Password: string(cred), Role: store.RoleAdmin,
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"username":"admin","password":"hunter22"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.False(t, cookie.Secure)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductionCookiesAreSecure(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Production = true
	users := store.NewMockStore()
	cred, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.CreateUser(context.Background(), &store.User{Username: "u", Password: string(cred), Role: store.RoleEmployee}))
	s := newServer(cfg, users, session.NewMemoryStore(session.Options{}, 0), testLogger())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"username":"u","password":"hunter22"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestNew_SQLiteAndMemory(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "timecard.db")

	s, err := New(cfg, testLogger())
	require.NoError(t, err)

	rec := get(t, s.Handler(), "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestServe_GracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNewRedisSessionStore(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")

	st, err := newRedisSessionStore(client, "tc:", session.Options{}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &session.RedisStore{}, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisSessionStore_Unreachable(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(errors.New("dial tcp: connection refused"))

	_, err := newRedisSessionStore(client, "tc:", session.Options{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to redis")
}

func TestAppendCloseError(t *testing.T) {
	var errs []error
	errs = appendCloseError(errs, "a", nil)
	assert.Empty(t, errs)

	errs = appendCloseError(errs, "b", io.EOF)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], io.EOF)
	assert.Contains(t, errs[0].Error(), "b:")
}
