// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"testing"

	"github.com/ironforge-id/authcore/user"
)

func TestUserRepository(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewUserRepository(db)

	u := &user.User{
		ID:       "00000000-0000-0000-0000-000000000101",
		Username: "user1",
		Email:    "user1@example.com",
		IsActive: true,
		Profile: user.Profile{
			FullName: "User One",
		},
	}

	t.Run("Create and Get", func(t *testing.T) {
		err := repo.Create(ctx, u)
		if err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		got, err := repo.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Email != u.Email {
			t.Errorf("expected email %s, got %s", u.Email, got.Email)
		}

		byEmail, err := repo.GetByEmail(ctx, u.Email)
		if err != nil {
			t.Fatalf("failed to get user by email: %v", err)
		}
		if byEmail.ID != u.ID {
			t.Errorf("expected id %s, got %s", u.ID, byEmail.ID)
		}
	})

	t.Run("Update", func(t *testing.T) {
		u.Profile.FullName = "User One Updated"
		err := repo.Update(ctx, u)
		if err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		got, err := repo.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Profile.FullName != "User One Updated" {
			t.Errorf("expected updated name, got %s", got.Profile.FullName)
		}
	})

	t.Run("Credentials", func(t *testing.T) {
		c := &user.Credentials{
			UserID:       u.ID,
			PasswordHash: "passhash",
		}
		err := repo.AddCredentials(ctx, c)
		if err != nil {
			t.Fatalf("failed to add credentials: %v", err)
		}

		got, err := repo.GetCredentials(ctx, u.ID)
		if err != nil {
			t.Fatalf("failed to get credentials: %v", err)
		}
		if got.PasswordHash != "passhash" {
			t.Errorf("expected passhash, got %s", got.PasswordHash)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		err := repo.Delete(ctx, u.ID)
		if err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		_, err = repo.GetByID(ctx, u.ID)
		if err != user.ErrUserNotFound {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}
