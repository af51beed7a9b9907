// ABOUTME: User directory interface and data types
// ABOUTME: Defines User, Role, sentinel errors and the UserStore interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user doesn't exist.
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameExists is returned when trying to create a user with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// User is a directory entry. Password holds the stored credential, never plaintext.
type User struct {
	ID        int64
	Username  string
	Password  string
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore defines the interface for user persistence.
type UserStore interface {
	// CreateUser inserts user and assigns user.ID.
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	// GetUserByUsername is an exact, case-sensitive match.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUserPassword(ctx context.Context, id int64, credential string) error
	Close() error
}
