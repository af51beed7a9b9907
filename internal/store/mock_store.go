// ABOUTME: Mock UserStore implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory UserStore implementation for testing.
type MockStore struct {
	mu         sync.RWMutex
	users      map[int64]*User  // keyed by user ID
	byUsername map[string]int64 // keyed by exact username
	nextID     int64
	err        error
}

var _ UserStore = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:      make(map[int64]*User),
		byUsername: make(map[string]int64),
	}
}

// SetError makes every subsequent call fail with err. Pass nil to recover.
func (m *MockStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CreateUser stores a new user and assigns its ID.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if !user.Role.Valid() {
		return fmt.Errorf("invalid role %q", user.Role)
	}
	if _, taken := m.byUsername[user.Username]; taken {
		return ErrUsernameExists
	}

	m.nextID++
	user.ID = m.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	// Make a copy to avoid external modification
	u := *user
	m.users[u.ID] = &u
	m.byUsername[u.Username] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	result := *u
	return &result, nil
}

// GetUserByUsername retrieves a user by exact username.
func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	id, ok := m.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	result := *m.users[id]
	return &result, nil
}

// ListUsers returns all users ordered by ID.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// UpdateUserPassword replaces a user's stored credential.
func (m *MockStore) UpdateUserPassword(ctx context.Context, id int64, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Password = credential
	u.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	return nil
}

// DeleteUser removes a user. Tests use it to simulate accounts removed while
// a session is still live.
func (m *MockStore) DeleteUser(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		delete(m.byUsername, u.Username)
		delete(m.users, id)
	}
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}
