// ABOUTME: Request-scoped identity for handlers behind the gate
// ABOUTME: Provides WithPrincipal/FromContext and session id propagation via context

package auth

import (
	"context"

	"github.com/2389/timecard/internal/store"
)

// Principal is the public view of an authenticated user. It never carries
// the stored credential.
type Principal struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	FullName string     `json:"fullName"`
	Role     store.Role `json:"role"`
}

// IsAdmin returns true if the principal has the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == store.RoleAdmin
}

// PrincipalFromUser strips a directory entry down to its public fields.
func PrincipalFromUser(u *store.User) *Principal {
	return &Principal{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

type principalKey struct{}

type sessionIDKey struct{}

// WithPrincipal returns a new context with p attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the Principal from the context, returning nil if the
// request is anonymous.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// IsAuthenticated reports whether the request resolved to a user.
func IsAuthenticated(ctx context.Context) bool {
	return FromContext(ctx) != nil
}

// WithSessionID returns a new context carrying the resolved session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the identifier of the live session presented
// with the request, or "" if none was.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
