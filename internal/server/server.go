// ABOUTME: Server orchestrator that wires the user directory, session store, auth gate and API
// ABOUTME: Owns the HTTP listener, health and metrics endpoints, and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/2389/timecard/internal/api"
	"github.com/2389/timecard/internal/auth"
	"github.com/2389/timecard/internal/config"
	"github.com/2389/timecard/internal/password"
	"github.com/2389/timecard/internal/session"
	"github.com/2389/timecard/internal/store"
)

// shutdownTimeout bounds graceful shutdown once the run context is canceled.
const shutdownTimeout = 5 * time.Second

// Server owns every long-lived component of a timecard process.
type Server struct {
	config     *config.Config
	users      store.UserStore
	sessions   session.Store
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// New opens the user directory and session backend and builds the HTTP handler.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	users, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening user store: %w", err)
	}

	sessions, err := newSessionStore(cfg, logger)
	if err != nil {
		_ = users.Close()
		return nil, err
	}

	return newServer(cfg, users, sessions, logger), nil
}

// newServer wires already-opened stores. Tests use it to inject backends.
func newServer(cfg *config.Config, users store.UserStore, sessions session.Store, logger *slog.Logger) *Server {
	if cfg.Auth.EphemeralSecret {
		logger.Warn("no session secret configured; bearer tokens will not survive a restart")
	}

	codec := password.NewCodec(
		password.WithConcurrency(cfg.Auth.KDFConcurrency),
		password.WithLogger(logger.With("component", "password")),
	)
	gate := auth.NewGate(auth.GateConfig{
		Sessions:      sessions,
		Users:         users,
		Tokens:        auth.NewTokenSigner([]byte(cfg.Auth.SessionSecret)),
		TTL:           cfg.Auth.SessionTTL,
		SecureCookies: cfg.Server.Production,
	})
	a := api.New(api.Config{
		Users:    users,
		Codec:    codec,
		Verifier: auth.NewVerifier(users, codec),
		Gate:     gate,
		TokenTTL: cfg.Auth.TokenTTL,
	})

	s := &Server{
		config:   cfg,
		users:    users,
		sessions: sessions,
		logger:   logger.With("component", "server"),
	}

	extra := []api.Route{
		{Method: http.MethodGet, Pattern: "/health", Requirement: auth.Public, Handler: s.handleHealth},
		{Method: http.MethodGet, Pattern: "/health/ready", Requirement: auth.Public, Handler: s.handleReady},
	}
	if cfg.Metrics.Enabled {
		extra = append(extra, api.Route{
			Method:      http.MethodGet,
			Pattern:     cfg.Metrics.Path,
			Requirement: auth.Public,
			Handler:     promhttp.Handler().ServeHTTP,
		})
	}
	s.handler = a.Router(extra...)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// newSessionStore builds the configured session backend.
func newSessionStore(cfg *config.Config, logger *slog.Logger) (session.Store, error) {
	opts := session.Options{
		TTL:    cfg.Auth.SessionTTL,
		Secure: cfg.Server.Production,
	}

	switch cfg.Sessions.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Sessions.Redis.Addr,
			Password:    cfg.Sessions.Redis.Password,
			DB:          cfg.Sessions.Redis.DB,
			DialTimeout: 5 * time.Second,
		})
		return newRedisSessionStore(client, cfg.Sessions.Redis.Prefix, opts, logger)
	default:
		logger.Info("using in-memory session store", "sweep_interval", cfg.Sessions.SweepInterval)
		return session.NewMemoryStore(opts, cfg.Sessions.SweepInterval), nil
	}
}

func newRedisSessionStore(client redis.UniversalClient, prefix string, opts session.Options, logger *slog.Logger) (session.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("using redis session store", "prefix", prefix)
	return session.NewRedisStore(client, prefix, opts), nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "production", s.config.Server.Production)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The run context is already canceled at this point.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting requests, then clears the session store and
// closes the user directory.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "session store close", s.sessions.Close())
	errs = appendCloseError(errs, "user store close", s.users.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the process is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if both stores answer a lookup.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.sessions.Get(ctx, "readiness-probe"); err != nil && !errors.Is(err, session.ErrNotFound) {
		s.logger.Warn("session store not ready", "error", err)
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, err := s.users.GetUser(ctx, 0); err != nil && !errors.Is(err, store.ErrUserNotFound) {
		s.logger.Warn("user store not ready", "error", err)
		http.Error(w, "user store unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
