// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/domain"
)

// Users provides access to user records.
type Users struct {
	db *sql.DB
}

// NewUsers creates a user store over db.
func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

const userColumns = "id, username, email, password_hash, avatar_url, active, created_at"

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	var active int
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarURL, &active, &u.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.Active = active != 0
	return u, nil
}

// Create inserts a new user. Returns domain.ErrAlreadyExists when the
// username or email is taken.
func (s *Users) Create(ctx context.Context, username, email, passwordHash string) (domain.User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("user %s: %w", username, domain.ErrAlreadyExists)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the user with the given id.
func (s *Users) GetByID(ctx context.Context, id int64) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, err
}

// GetByEmail returns the user with the given email.
func (s *Users) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	return u, err
}

// EmailExists reports whether a user with this email is already registered.
func (s *Users) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM users WHERE email = ?", email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count users by email: %w", err)
	}
	return n > 0, nil
}

// SetActive flips the account's active flag. Inactive accounts cannot
// log in.
func (s *Users) SetActive(ctx context.Context, id int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = ? WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateProfile updates mutable profile fields. Email is immutable.
func (s *Users) UpdateProfile(ctx context.Context, id int64, username, avatarURL string) (domain.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, avatar_url = ? WHERE id = ?`,
		username, avatarURL, id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("username %s: %w", username, domain.ErrAlreadyExists)
		}
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return s.GetByID(ctx, id)
}

// isUniqueViolation detects SQLite UNIQUE constraint failures without
// depending on driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
