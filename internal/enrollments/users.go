package enrollments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateUser adds a platform user.
func (s *Store) CreateUser(ctx context.Context, username, email string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("create user: username is required")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (username, email) VALUES (?, ?)`, username, email)
	if err != nil {
		return User{}, fmt.Errorf("create user %q: %w", username, constraintError(err, ErrDuplicateUser))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return User{ID: id, Username: username, Email: email}, nil
}

// UserByID returns a user. Fails with ErrUserNotFound.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.reader().QueryRowContext(ctx, `
		SELECT id, username, email FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Username, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	return u, nil
}

// UserByUsername returns a user. Fails with ErrUserNotFound.
func (s *Store) UserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.reader().QueryRowContext(ctx, `
		SELECT id, username, email FROM users WHERE username = ?
	`, username).Scan(&u.ID, &u.Username, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	return u, nil
}
