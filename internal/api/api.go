// ABOUTME: HTTP router for the timecard API built on chi
// ABOUTME: Routes are declared in one table that names each route's auth requirement

package api

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/2389/timecard/internal/auth"
	"github.com/2389/timecard/internal/password"
	"github.com/2389/timecard/internal/store"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

// DefaultTokenTTL is the lifetime of bearer tokens issued by /api/auth/token.
const DefaultTokenTTL = time.Hour

// Route is one entry of the routing table.
type Route struct {
	Method      string
	Pattern     string
	Requirement auth.Requirement
	Handler     http.HandlerFunc
}

// Config wires the API to its collaborators.
type Config struct {
	Users    store.UserStore
	Codec    *password.Codec
	Verifier *auth.Verifier
	Gate     *auth.Gate
	TokenTTL time.Duration
}

// API holds the handlers for the timecard HTTP interface.
type API struct {
	users    store.UserStore
	codec    *password.Codec
	verifier *auth.Verifier
	gate     *auth.Gate
	tokenTTL time.Duration
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates an API.
func New(cfg Config) *API {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &API{
		users:    cfg.Users,
		codec:    cfg.Codec,
		verifier: cfg.Verifier,
		gate:     cfg.Gate,
		tokenTTL: ttl,
		validate: validate,
		logger:   slog.Default().With("component", "api"),
	}
}

// Routes returns the API's routing table.
func (a *API) Routes() []Route {
	return []Route{
		{http.MethodPost, "/api/auth/login", auth.Public, a.handleLogin},
		{http.MethodPost, "/api/auth/logout", auth.Public, a.handleLogout},
		{http.MethodPost, "/api/auth/token", auth.Authenticated, a.handleIssueToken},
		{http.MethodGet, "/api/user", auth.Authenticated, a.handleCurrentUser},
		{http.MethodPut, "/api/user/password", auth.Authenticated, a.handleChangePassword},
		{http.MethodGet, "/api/users", auth.AdminOnly, a.handleListUsers},
		{http.MethodPost, "/api/users", auth.AdminOnly, a.handleCreateUser},
	}
}

// Router builds the HTTP handler for the API routes plus any extra routes
// the caller mounts (health, metrics). Extra routes pass through the same
// table and gate.
func (a *API) Router(extra ...Route) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(a.gate.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	for _, rt := range append(a.Routes(), extra...) {
		r.Method(rt.Method, rt.Pattern, a.gate.Require(rt.Requirement, rt.Handler))
	}
	return r
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
