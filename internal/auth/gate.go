// ABOUTME: Request authorization gate: resolves the caller from a session carrier
// ABOUTME: and enforces per-route requirements with a single shared check

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/timecard/internal/metrics"
	"github.com/2389/timecard/internal/session"
	"github.com/2389/timecard/internal/store"
)

// CookieName is the cookie carrying the session identifier.
const CookieName = "timecard.sid"

// Requirement is the access level a route demands.
type Requirement int

const (
	Public Requirement = iota
	Authenticated
	AdminOnly
)

func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case AdminOnly:
		return "admin"
	default:
		return "unknown"
	}
}

// Messages returned in 401 bodies.
const (
	MsgNotAuthenticated = "Not authenticated"
	MsgNotAuthorized    = "Not authorized"
	msgInternal         = "Internal server error"
)

// GateConfig wires a Gate to its collaborators.
type GateConfig struct {
	Sessions session.Store
	Users    store.UserStore
	// Tokens enables the bearer carrier. Nil disables it.
	Tokens *TokenSigner
	// TTL must match the session store's TTL; it dates re-issued cookies.
	TTL time.Duration
	// SecureCookies forces the Secure attribute regardless of transport.
	SecureCookies bool
}

// Gate resolves callers and enforces requirements.
type Gate struct {
	sessions session.Store
	users    store.UserStore
	tokens   *TokenSigner
	ttl      time.Duration
	secure   bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewGate creates a Gate.
func NewGate(cfg GateConfig) *Gate {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return &Gate{
		sessions: cfg.Sessions,
		users:    cfg.Users,
		tokens:   cfg.Tokens,
		ttl:      ttl,
		secure:   cfg.SecureCookies,
		now:      time.Now,
		logger:   slog.Default().With("component", "gate"),
	}
}

type carrier int

const (
	carrierNone carrier = iota
	carrierCookie
	carrierBearer
)

// Middleware resolves the caller on every request. It never rejects; a
// request with no usable carrier continues anonymously. A failing session or
// user store ends the request with 500.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, via := g.sessionID(r)
		if via == carrierNone {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		rec, err := g.sessions.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			g.logger.Debug("presented session not found", "session", session.Fingerprint(id))
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			g.fail(w, "loading session", err)
			return
		}
		ctx = WithSessionID(ctx, id)

		if rec.Data.UserID == 0 {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		user, err := g.users.GetUser(ctx, rec.Data.UserID)
		if errors.Is(err, store.ErrUserNotFound) {
			g.logger.Info("session refers to missing user", "session", session.Fingerprint(id), "user_id", rec.Data.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		if err != nil {
			g.fail(w, "loading session user", err)
			return
		}

		if err := g.sessions.Touch(ctx, id); err != nil {
			g.fail(w, "touching session", err)
			return
		}
		if via == carrierCookie {
			g.setCookie(w, r, id, g.now().Add(g.ttl))
		}

		ctx = WithPrincipal(ctx, PrincipalFromUser(user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require wraps next with the check for req. Every route goes through this.
func (g *Gate) Require(req Requirement, next http.Handler) http.Handler {
	if req == Public {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := FromContext(r.Context())
		if p == nil {
			g.deny(w, r, req, MsgNotAuthenticated)
			return
		}
		// Insufficient role reuses 401 rather than 403.
		if req == AdminOnly && !p.IsAdmin() {
			g.deny(w, r, req, MsgNotAuthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Establish binds p to a fresh session identifier and sets the cookie. A live
// session presented with the request is regenerated so its old identifier
// stops resolving; otherwise a new session is created.
func (g *Gate) Establish(w http.ResponseWriter, r *http.Request, p *Principal) (*session.Record, error) {
	ctx := r.Context()
	data := session.Data{UserID: p.ID}

	var id string
	if prev := SessionIDFromContext(ctx); prev != "" {
		newID, err := g.sessions.Regenerate(ctx, prev)
		switch {
		case err == nil:
			if err := g.sessions.Set(ctx, newID, data); err != nil {
				return nil, fmt.Errorf("binding session: %w", err)
			}
			id = newID
		case errors.Is(err, session.ErrNotFound):
			// Destroyed concurrently; start over.
		default:
			return nil, fmt.Errorf("regenerating session: %w", err)
		}
	}

	if id == "" {
		var err error
		id, err = g.sessions.Create(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
	}

	rec, err := g.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading new session: %w", err)
	}

	g.setCookie(w, r, id, rec.Cookie.Expires)
	g.logger.Info("session established", "user_id", p.ID, "session", session.Fingerprint(id))
	return rec, nil
}

// Rotate gives the current session a new identifier and re-issues the cookie.
func (g *Gate) Rotate(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	prev := SessionIDFromContext(ctx)
	if prev == "" {
		return session.ErrNotFound
	}

	id, err := g.sessions.Regenerate(ctx, prev)
	if err != nil {
		return fmt.Errorf("regenerating session: %w", err)
	}
	rec, err := g.sessions.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("reading regenerated session: %w", err)
	}

	g.setCookie(w, r, id, rec.Cookie.Expires)
	return nil
}

// Terminate destroys the presented session, if any, and clears the cookie.
func (g *Gate) Terminate(w http.ResponseWriter, r *http.Request) error {
	if id := SessionIDFromContext(r.Context()); id != "" {
		if err := g.sessions.Destroy(r.Context(), id); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}
		g.logger.Info("session destroyed", "session", session.Fingerprint(id))
	}

	dropSessionCookie(w)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// IssueToken signs a bearer token for the current session.
func (g *Gate) IssueToken(r *http.Request, ttl time.Duration) (string, time.Time, error) {
	if g.tokens == nil {
		return "", time.Time{}, errors.New("bearer tokens disabled")
	}
	id := SessionIDFromContext(r.Context())
	p := FromContext(r.Context())
	if id == "" || p == nil {
		return "", time.Time{}, session.ErrNotFound
	}
	return g.tokens.Generate(id, p.ID, ttl)
}

// sessionID finds the identifier carrier. The cookie wins over a bearer token.
func (g *Gate) sessionID(r *http.Request) (string, carrier) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, carrierCookie
	}

	if g.tokens == nil {
		return "", carrierNone
	}
	token, ok := extractBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", carrierNone
	}
	sid, err := g.tokens.Verify(token)
	if err != nil {
		g.logger.Debug("rejected bearer token", "error", err)
		return "", carrierNone
	}
	return sid, carrierBearer
}

func (g *Gate) setCookie(w http.ResponseWriter, r *http.Request, id string, expires time.Time) {
	dropSessionCookie(w)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   g.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// dropSessionCookie removes a session cookie already queued on w, so the
// response carries at most one.
func dropSessionCookie(w http.ResponseWriter) {
	h := w.Header()
	var keep []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, CookieName+"=") {
			keep = append(keep, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range keep {
		h.Add("Set-Cookie", v)
	}
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, req Requirement, msg string) {
	metrics.AuthzDenied.WithLabelValues(req.String()).Inc()
	g.logger.Debug("request denied", "path", r.URL.Path, "requirement", req.String())
	writeMessage(w, http.StatusUnauthorized, msg)
}

func (g *Gate) fail(w http.ResponseWriter, op string, err error) {
	g.logger.Error("session store unavailable", "op", op, "error", err)
	writeMessage(w, http.StatusInternalServerError, msgInternal)
}

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(authHeader string) (string, bool) {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
