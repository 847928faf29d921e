// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ironforge-id/authcore/user"
)

// UserRepository implements user.UserRepository.
//
// Purpose: PostgreSQL implementation of user identity persistence.
// Domain: Identity (Infrastructure)
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user identity.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (
			id, username, email, email_verified, is_active, must_change_password,
			given_name, family_name, full_name, nickname, picture, locale, timezone,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		u.ID, u.Username, u.Email, u.EmailVerified, u.IsActive, u.MustChangePassword,
		u.Profile.GivenName, u.Profile.FamilyName, u.Profile.FullName,
		u.Profile.Nickname, u.Profile.Picture, u.Profile.Locale, u.Profile.Timezone,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// AddCredentials adds credentials for a user.
func (r *UserRepository) AddCredentials(ctx context.Context, c *user.Credentials) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
	`, c.UserID, c.PasswordHash, now)
	if err != nil {
		return fmt.Errorf("failed to insert credentials: %w", err)
	}
	c.UpdatedAt = now
	return nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var deletedAt sql.NullTime

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.EmailVerified, &u.IsActive, &u.MustChangePassword,
		&u.Profile.GivenName, &u.Profile.FamilyName, &u.Profile.FullName,
		&u.Profile.Nickname, &u.Profile.Picture, &u.Profile.Locale, &u.Profile.Timezone,
		&u.FailedLoginAttempts, &u.LockedUntil,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

const selectUserColumns = `
	id, username, email, email_verified, is_active, must_change_password,
	given_name, family_name, full_name, nickname, picture, locale, timezone,
	failed_login_attempts, locked_until,
	created_at, updated_at, deleted_at
`

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+selectUserColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by their lowercased email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+selectUserColumns+` FROM users WHERE email = $1 AND deleted_at IS NULL`, email)
	return scanUser(row)
}

// GetByUsername retrieves a user by their username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+selectUserColumns+` FROM users WHERE username = $1 AND deleted_at IS NULL`, username)
	return scanUser(row)
}

// Update updates user information. Username is immutable and never part of
// the update set.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			email_verified = $2,
			is_active = $3,
			must_change_password = $4,
			given_name = $5,
			family_name = $6,
			full_name = $7,
			nickname = $8,
			picture = $9,
			locale = $10,
			timezone = $11,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`,
		u.ID, u.EmailVerified, u.IsActive, u.MustChangePassword,
		u.Profile.GivenName, u.Profile.FamilyName, u.Profile.FullName,
		u.Profile.Nickname, u.Profile.Picture, u.Profile.Locale, u.Profile.Timezone,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// UpdateLockout updates user lockout status.
func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = $1, locked_until = $2, updated_at = NOW()
		WHERE id = $3
	`, failedAttempts, lockedUntil, userID)
	if err != nil {
		return fmt.Errorf("failed to update user lockout status: %w", err)
	}
	return nil
}

// Delete soft-deletes a user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// List returns a page of users ordered by creation time.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*user.User, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+selectUserColumns+`
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetCredentials retrieves user credentials.
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*user.Credentials, error) {
	var c user.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at
		FROM credentials
		WHERE user_id = $1
	`, userID).Scan(&c.UserID, &c.PasswordHash, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &c, nil
}

// UpdatePassword updates user password.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE credentials SET password_hash = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}
