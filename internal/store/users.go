// ABOUTME: User CRUD methods on SQLiteStore
// ABOUTME: Timestamps are stored as RFC3339 text in UTC

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = `id, username, password, full_name, role, created_at, updated_at`

// CreateUser inserts a new user and sets user.ID.
// Returns ErrUsernameExists if the username is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if !user.Role.Valid() {
		return fmt.Errorf("invalid role %q", user.Role)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	query := `
		INSERT INTO users (username, password, full_name, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.Password,
		user.FullName,
		string(user.Role),
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting user id: %w", err)
	}
	user.ID = id

	s.logger.Info("created user", "id", id, "username", user.Username, "role", user.Role)
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by exact username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// ListUsers returns all users ordered by ID.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// UpdateUserPassword replaces a user's stored credential.
func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, id int64, credential string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`,
		credential,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info("updated user password", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var role, createdAtStr string
	var updatedAtStr sql.NullString

	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.FullName, &role, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Role = Role(role)

	u.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	if updatedAtStr.Valid {
		u.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
	}

	return &u, nil
}
