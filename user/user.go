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

// Package user is the Resource Owner registry: identities that can
// authenticate via password and hold RBAC role/permission assignments.
//
// Purpose: Core identity entity representing a human account.
// Domain: Identity
// Invariants: Email is unique, stored lowercased. A locked or inactive
// user cannot authenticate (Service.Authenticate rejects them).
package user

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrSelfTargeting      = errors.New("administrators cannot deactivate or lock their own account")
)

// User represents a resource owner identity in the system.
//
// Purpose: Core identity entity representing a digital actor.
// Domain: Identity
// Invariants: ID must be a UUIDv7. Username is unique and immutable after
// creation. Email is unique and stored lowercased.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`

	EmailVerified      bool    `json:"email_verified"`
	IsActive           bool    `json:"is_active"`
	MustChangePassword bool    `json:"must_change_password"`
	Profile            Profile `json:"profile"`

	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
}

// Profile represents user profile information.
//
// Purpose: PII metadata associated with a user identity.
// Domain: Identity
type Profile struct {
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
	Picture    string `json:"picture,omitempty"`
	Locale     string `json:"locale,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

// Credentials represents user authentication credentials.
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// IsLocked reports whether the user's lockout window is still active.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

// UserRepository defines the interface for user persistence.
//
// Purpose: Abstraction for managing user identity storage.
// Domain: Identity
type UserRepository interface {
	// Create creates a new user identity.
	Create(ctx context.Context, user *User) error

	// AddCredentials adds credentials for a user.
	AddCredentials(ctx context.Context, credentials *Credentials) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by their lowercased email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername retrieves a user by their username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update updates user information. Username is immutable and never
	// written by Update.
	Update(ctx context.Context, user *User) error

	// UpdateLockout updates user lockout status.
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// Delete soft-deletes a user.
	Delete(ctx context.Context, id string) error

	// GetCredentials retrieves user credentials.
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	// UpdatePassword updates user password.
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error

	// List returns a page of users ordered by creation time.
	List(ctx context.Context, limit, offset int) ([]*User, error)
}
