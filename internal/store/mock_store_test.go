// ABOUTME: Tests for MockStore
// ABOUTME: Checks it honours the same contract as SQLiteStore

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_UserLifecycle(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	u := &User{Username: "alice", Password: "cred", Role: RoleEmployee}
	require.NoError(t, m.CreateUser(ctx, u))
	assert.Equal(t, int64(1), u.ID)

	assert.ErrorIs(t, m.CreateUser(ctx, &User{Username: "alice", Role: RoleEmployee}), ErrUsernameExists)

	_, err := m.GetUserByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, ErrUserNotFound)

	got, err := m.GetUser(ctx, u.ID)
	require.NoError(t, err)
	got.Password = "mutated"

	again, err := m.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "cred", again.Password, "returned users must be copies")

	require.NoError(t, m.UpdateUserPassword(ctx, u.ID, "new"))
	again, err = m.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new", again.Password)

	m.DeleteUser(u.ID)
	_, err = m.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMockStore_SetError(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	boom := errors.New("disk on fire")

	m.SetError(boom)
	_, err := m.GetUserByUsername(ctx, "x")
	assert.ErrorIs(t, err, boom)
	_, err = m.ListUsers(ctx)
	assert.ErrorIs(t, err, boom)

	m.SetError(nil)
	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
