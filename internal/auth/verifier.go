// ABOUTME: Credential verifier that checks a username/password pair against the user directory
// ABOUTME: Spends one KDF run on every attempt so unknown users are indistinguishable by timing

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/timecard/internal/password"
	"github.com/2389/timecard/internal/store"
)

// Reason says why a credential check failed. It is for logs, never for clients.
type Reason int

const (
	ReasonNoSuchUser Reason = iota + 1
	ReasonBadCredential
	ReasonMalformedCredential
)

func (r Reason) String() string {
	switch r {
	case ReasonNoSuchUser:
		return "no_such_user"
	case ReasonBadCredential:
		return "bad_credential"
	case ReasonMalformedCredential:
		return "malformed_credential"
	default:
		return "unknown"
	}
}

// AuthError is returned by Authenticate when the credentials are rejected.
type AuthError struct {
	Reason Reason
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Reason.String()
}

// Verifier authenticates users by username and password.
type Verifier struct {
	users  store.UserStore
	codec  *password.Codec
	logger *slog.Logger
}

// NewVerifier creates a Verifier backed by users and codec.
func NewVerifier(users store.UserStore, codec *password.Codec) *Verifier {
	return &Verifier{
		users:  users,
		codec:  codec,
		logger: slog.Default().With("component", "auth"),
	}
}

// Authenticate returns the principal for username if password matches its
// stored credential. Rejections are *AuthError; any other error means the
// directory or the KDF could not be consulted.
func (v *Verifier) Authenticate(ctx context.Context, username, plaintext string) (*Principal, error) {
	user, err := v.users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrUserNotFound) {
		// Same KDF cost as a real mismatch.
		_, _ = v.codec.Check(ctx, plaintext, password.DummyCredential)
		return nil, v.reject(username, ReasonNoSuchUser)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := v.codec.Check(ctx, plaintext, user.Password)
	switch {
	case errors.Is(err, password.ErrMalformed):
		v.logger.Warn("stored credential is malformed", "user_id", user.ID, "kind", password.Detect(user.Password).String())
		return nil, v.reject(username, ReasonMalformedCredential)
	case err != nil:
		return nil, fmt.Errorf("verifying credential: %w", err)
	case !ok:
		return nil, v.reject(username, ReasonBadCredential)
	}

	v.logger.Debug("credentials accepted", "user_id", user.ID)
	return PrincipalFromUser(user), nil
}

func (v *Verifier) reject(username string, reason Reason) error {
	v.logger.Info("credentials rejected", "username", username, "reason", reason.String())
	return &AuthError{Reason: reason}
}
