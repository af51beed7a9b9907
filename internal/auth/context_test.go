// ABOUTME: Tests for request-scoped principal and session id helpers

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/timecard/internal/store"
)

func TestContext_Anonymous(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, FromContext(ctx))
	assert.False(t, IsAuthenticated(ctx))
	assert.Empty(t, SessionIDFromContext(ctx))
}

func TestContext_RoundTrip(t *testing.T) {
	p := &Principal{ID: 3, Username: "amy", Role: store.RoleEmployee}
	ctx := WithSessionID(WithPrincipal(context.Background(), p), "sid")

	assert.Same(t, p, FromContext(ctx))
	assert.True(t, IsAuthenticated(ctx))
	assert.Equal(t, "sid", SessionIDFromContext(ctx))
}

func TestPrincipal_IsAdmin(t *testing.T) {
	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.IsAdmin())
	assert.False(t, (&Principal{Role: store.RoleEmployee}).IsAdmin())
	assert.True(t, (&Principal{Role: store.RoleAdmin}).IsAdmin())
}

func TestPrincipalFromUser_DropsCredential(t *testing.T) {
	u := &store.User{ID: 9, Username: "zed", Password: "secret.hash", FullName: "Zed", Role: store.RoleAdmin}
	p := PrincipalFromUser(u)

	assert.Equal(t, &Principal{ID: 9, Username: "zed", FullName: "Zed", Role: store.RoleAdmin}, p)
}
