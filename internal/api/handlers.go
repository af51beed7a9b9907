// ABOUTME: Handlers for login, logout, the current user, bearer tokens and user administration
// ABOUTME: Credential failures of every kind produce one identical 401 response

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/2389/timecard/internal/auth"
	"github.com/2389/timecard/internal/metrics"
	"github.com/2389/timecard/internal/store"
)

// Response messages clients rely on.
const (
	msgInvalidCredentials = "Invalid username or password"
	msgLoggedOut          = "Logged out successfully"
	msgInvalidBody        = "Invalid request body"
	msgInternal           = "Internal server error"
)

// LoginRequest is the body of POST /api/auth/login. Older clients send the
// username in the email field.
type LoginRequest struct {
	Username string `json:"username" validate:"required_without=Email,max=255"`
	Email    string `json:"email" validate:"required_without=Username,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

func (l *LoginRequest) username() string {
	if l.Username != "" {
		return l.Username
	}
	return l.Email
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		a.logger.Debug("rejected login body", "error", err)
		sendJSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	principal, err := a.verifier.Authenticate(r.Context(), req.username(), req.Password)
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginFailure).Inc()
		sendJSONError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginError).Inc()
		a.logger.Error("login failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if _, err := a.gate.Establish(w, r, principal); err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginError).Inc()
		a.logger.Error("establishing session failed", "user_id", principal.ID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	metrics.LoginsTotal.WithLabelValues(metrics.LoginSuccess).Inc()
	sendJSON(w, http.StatusOK, principal)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.Terminate(w, r); err != nil {
		a.logger.Error("logout failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	sendJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, auth.FromContext(r.Context()))
}

// TokenResponse is the body returned by POST /api/auth/token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *API) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	token, expiresAt, err := a.gate.IssueToken(r, a.tokenTTL)
	if err != nil {
		a.logger.Error("issuing token failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	sendJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt.UTC()})
}

// ChangePasswordRequest is the body of PUT /api/user/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=1024"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=1024"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	p := auth.FromContext(ctx)

	_, err := a.verifier.Authenticate(ctx, p.Username, req.CurrentPassword)
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		sendJSONError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if err != nil {
		a.logger.Error("re-verifying password failed", "user_id", p.ID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	credential, err := a.codec.Hash(ctx, req.NewPassword)
	if err != nil {
		a.logger.Error("hashing password failed", "user_id", p.ID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if err := a.users.UpdateUserPassword(ctx, p.ID, credential); err != nil {
		a.logger.Error("storing password failed", "user_id", p.ID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if err := a.gate.Rotate(w, r); err != nil {
		a.logger.Error("rotating session failed", "user_id", p.ID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	a.logger.Info("password changed", "user_id", p.ID)
	sendJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		a.logger.Error("listing users failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	out := make([]*auth.Principal, 0, len(users))
	for _, u := range users {
		out = append(out, auth.PrincipalFromUser(u))
	}
	sendJSON(w, http.StatusOK, out)
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Username string     `json:"username" validate:"required,max=64"`
	Password string     `json:"password" validate:"required,min=8,max=1024"`
	FullName string     `json:"fullName" validate:"max=255"`
	Role     store.Role `json:"role" validate:"required,oneof=admin employee"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	credential, err := a.codec.Hash(ctx, req.Password)
	if err != nil {
		a.logger.Error("hashing password failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	user := &store.User{
		Username: req.Username,
		Password: credential,
		FullName: req.FullName,
		Role:     req.Role,
	}
	err = a.users.CreateUser(ctx, user)
	if errors.Is(err, store.ErrUsernameExists) {
		sendJSONError(w, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		a.logger.Error("creating user failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	a.logger.Info("user created", "user_id", user.ID, "by", auth.FromContext(ctx).ID)
	sendJSON(w, http.StatusCreated, auth.PrincipalFromUser(user))
}
