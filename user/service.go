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

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/id"
	"github.com/ironforge-id/authcore/password"
)

// Service provides identity-related business logic.
//
// Purpose: Registration, authentication and credential management for
// resource owners.
// Domain: Identity
type Service struct {
	repo               UserRepository
	hasher             *password.Hasher
	auditLogger        audit.Logger
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
}

// NewService creates a new identity service.
func NewService(
	repo UserRepository,
	hasher *password.Hasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
	}
}

// ProvisionIdentity creates a new user identity without credentials. An
// empty username defaults to the (already unique) email address; either
// way the username is immutable once the row exists.
func (s *Service) ProvisionIdentity(ctx context.Context, username, email string, profile Profile) (*User, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = email
	}
	if !isValidUsername(username) {
		return nil, ErrInvalidUsername
	}

	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}
	if existing, err := s.repo.GetByUsername(ctx, username); err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}

	if profile.Picture == "" {
		profile.Picture = GenerateRandomAvatar(username)
	}
	if profile.Nickname == "" {
		parts := strings.Split(email, "@")
		if len(parts) > 0 {
			profile.Nickname = parts[0]
		}
	}

	u := &User{
		ID:            id.New(),
		Username:      username,
		Email:         email,
		EmailVerified: false,
		IsActive:      true,
		Profile:       profile,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("user: create identity: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionUserCreated, ActorType: audit.ActorSystem,
		UserID: u.ID, ResourceType: audit.ResourceUser, ResourceID: u.ID, Success: true,
	})

	return u, nil
}

// AddPassword adds a password credential to an existing user.
func (s *Service) AddPassword(ctx context.Context, userID, plaintext string) error {
	if !password.IsStrong(plaintext) {
		return ErrWeakPassword
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("user: hash password: %w", err)
	}
	if err := s.repo.AddCredentials(ctx, &Credentials{UserID: userID, PasswordHash: hash}); err != nil {
		return fmt.Errorf("user: add credentials: %w", err)
	}
	return nil
}

// SetPassword sets or updates a user's password without requiring the old
// password (administrative action).
func (s *Service) SetPassword(ctx context.Context, actorID, userID, plaintext string) error {
	if !password.IsStrong(plaintext) {
		return ErrWeakPassword
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("user: hash password: %w", err)
	}

	_, err = s.repo.GetCredentials(ctx, userID)
	if err != nil {
		if err := s.repo.AddCredentials(ctx, &Credentials{UserID: userID, PasswordHash: hash}); err != nil {
			return fmt.Errorf("user: add credentials: %w", err)
		}
	} else if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("user: update credentials: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPasswordChanged, ActorType: audit.ActorUser, ActorID: actorID,
		UserID: userID, ResourceType: audit.ResourceUser, ResourceID: userID, Success: true,
	})
	return nil
}

// Authenticate authenticates a user with email and password, enforcing
// lockout after repeated failures.
func (s *Service) Authenticate(ctx context.Context, email, plaintext string) (*User, error) {
	email = normalizeEmail(email)

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Action: audit.ActionLoginFailed, ActorType: audit.ActorUnknown,
			ResourceType: audit.ResourceUser, Success: false, ErrorMessage: "user_not_found",
		})
		return nil, ErrInvalidCredentials
	}

	if u.IsLocked() {
		s.auditLogger.Log(ctx, audit.Event{
			Action: audit.ActionLoginFailed, ActorType: audit.ActorUser, ActorID: u.ID,
			UserID: u.ID, ResourceType: audit.ResourceUser, ResourceID: u.ID, Success: false,
			ErrorMessage: "locked_out",
		})
		return nil, ErrAccountLocked
	}

	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	credentials, err := s.repo.GetCredentials(ctx, u.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(plaintext, credentials.PasswordHash) {
		newAttempts := u.FailedLoginAttempts + 1
		var lockedUntil *time.Time

		if newAttempts >= s.lockoutMaxAttempts {
			until := time.Now().Add(s.lockoutDuration)
			lockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Action: audit.ActionUserLocked, ActorType: audit.ActorUser, ActorID: u.ID,
				UserID: u.ID, ResourceType: audit.ResourceUser, ResourceID: u.ID, Success: true,
				Metadata: map[string]any{"failed_attempts": newAttempts},
			})
		}

		_ = s.repo.UpdateLockout(ctx, u.ID, newAttempts, lockedUntil)

		s.auditLogger.Log(ctx, audit.Event{
			Action: audit.ActionLoginFailed, ActorType: audit.ActorUser, ActorID: u.ID,
			UserID: u.ID, ResourceType: audit.ResourceUser, ResourceID: u.ID, Success: false,
			ErrorMessage: "invalid_password", Metadata: map[string]any{"failed_attempts": newAttempts},
		})

		return nil, ErrInvalidCredentials
	}

	if u.FailedLoginAttempts > 0 || u.LockedUntil != nil {
		_ = s.repo.UpdateLockout(ctx, u.ID, 0, nil)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionLoginSuccess, ActorType: audit.ActorUser, ActorID: u.ID,
		UserID: u.ID, ResourceType: audit.ResourceUser, ResourceID: u.ID, Success: true,
	})

	return u, nil
}

// GetByEmail retrieves a user by lowercased email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// UpdateProfile updates user profile information.
func (s *Service) UpdateProfile(ctx context.Context, userID string, profile Profile) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	u.Profile = profile
	return s.repo.Update(ctx, u)
}

// ChangePassword changes a user's own password, verifying the old one
// first (self-service, contrast with SetPassword).
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	credentials, err := s.repo.GetCredentials(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	if !s.hasher.Verify(oldPassword, credentials.PasswordHash) {
		return ErrInvalidCredentials
	}

	if !password.IsStrong(newPassword) {
		return ErrWeakPassword
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("user: hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, newHash); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPasswordChanged, ActorType: audit.ActorUser, ActorID: userID,
		UserID: userID, ResourceType: audit.ResourceUser, ResourceID: userID, Success: true,
	})
	return nil
}

// Deactivate marks a user inactive, preventing further authentication.
// An administrator cannot deactivate their own account.
func (s *Service) Deactivate(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return ErrSelfTargeting
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	u.IsActive = false
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionUserDeactivated, ActorType: audit.ActorUser, ActorID: actorID,
		UserID: userID, ResourceType: audit.ResourceUser, ResourceID: userID, Success: true,
	})
	return nil
}

// ListUsers returns a page of users for admin listing.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	return s.repo.List(ctx, limit, offset)
}

// Lock places an administrative lock on a user until until. It writes the
// same lockout fields as the automatic failed-login lockout (the failed
// attempt count is set to the lockout threshold), so Unlock clears either.
func (s *Service) Lock(ctx context.Context, actorID, userID string, until time.Time) error {
	if actorID == userID {
		return ErrSelfTargeting
	}
	if err := s.repo.UpdateLockout(ctx, userID, s.lockoutMaxAttempts, &until); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionUserLocked, ActorType: audit.ActorUser, ActorID: actorID,
		UserID: userID, ResourceType: audit.ResourceUser, ResourceID: userID, Success: true,
	})
	return nil
}

// Unlock clears an administrative or automatic lockout.
func (s *Service) Unlock(ctx context.Context, actorID, userID string) error {
	if err := s.repo.UpdateLockout(ctx, userID, 0, nil); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionUserUnlocked, ActorType: audit.ActorUser, ActorID: actorID,
		UserID: userID, ResourceType: audit.ResourceUser, ResourceID: userID, Success: true,
	})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	if len(email) <= 3 || len(email) >= 255 {
		return false
	}
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.Contains(email[at+1:], "@")
}

func isValidUsername(username string) bool {
	if len(username) < 3 || len(username) >= 255 {
		return false
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_' || r == '@' || r == '+':
		default:
			return false
		}
	}
	return true
}
