// ABOUTME: Tests for the SQLite user directory
// ABOUTME: Covers schema creation, user CRUD, case-sensitive lookup and migrations

package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(ctx, &User{Username: "alice", Password: "x", Role: RoleEmployee}))
	require.NoError(t, s.Close())

	// Schema creation and migrations must be idempotent.
	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	u, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestMigrations_AddUpdatedAt(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// A database created before updated_at existed.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			username   TEXT NOT NULL COLLATE BINARY,
			password   TEXT NOT NULL,
			full_name  TEXT NOT NULL DEFAULT '',
			role       TEXT NOT NULL DEFAULT 'employee',
			created_at TEXT NOT NULL,
			UNIQUE (username)
		);
		INSERT INTO users (username, password, role, created_at)
		VALUES ('old', 'cred', 'employee', '2024-01-01T00:00:00Z');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	u, err := s.GetUserByUsername(context.Background(), "old")
	require.NoError(t, err)
	assert.True(t, u.UpdatedAt.IsZero())

	require.NoError(t, s.UpdateUserPassword(context.Background(), u.ID, "new"))
	u, err = s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, u.UpdatedAt.IsZero())
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &User{Username: "jsmith", Password: "deadbeef.cafe", FullName: "Jane Smith", Role: RoleAdmin}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "jsmith", got.Username)
	assert.Equal(t, "deadbeef.cafe", got.Password)
	assert.Equal(t, "Jane Smith", got.FullName)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, u.CreatedAt.Unix(), got.CreatedAt.Unix())

	byName, err := s.GetUserByUsername(ctx, "jsmith")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &User{Username: "bob", Password: "a", Role: RoleEmployee}))
	err := s.CreateUser(ctx, &User{Username: "bob", Password: "b", Role: RoleEmployee})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestCreateUser_InvalidRole(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateUser(context.Background(), &User{Username: "eve", Password: "a", Role: "root"})
	assert.Error(t, err)
}

func TestGetUserByUsername_CaseSensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &User{Username: "Carol", Password: "a", Role: RoleEmployee}))

	_, err := s.GetUserByUsername(ctx, "carol")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Differently cased usernames are distinct accounts.
	require.NoError(t, s.CreateUser(ctx, &User{Username: "carol", Password: "b", Role: RoleEmployee}))
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.GetUserByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateUser(ctx, &User{Username: name, Password: "x", Role: RoleEmployee}))
	}

	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a", users[0].Username)
	assert.Equal(t, "c", users[2].Username)
	assert.Less(t, users[0].ID, users[1].ID)
}

func TestUpdateUserPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &User{Username: "dave", Password: "old", Role: RoleEmployee}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.UpdateUserPassword(ctx, u.ID, "new"))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Password)

	assert.ErrorIs(t, s.UpdateUserPassword(ctx, 12345, "x"), ErrUserNotFound)
}
