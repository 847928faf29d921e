// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"testing"

	"github.com/ironforge-id/authcore/rbac"
)

func TestRoleRepository(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewRoleRepository(db)
	permRepo := NewPermissionRepository(db)

	perm := &rbac.Permission{
		ID: "00000000-0000-0000-0000-000000000301", Name: "settings:manage",
		Resource: "settings", Action: "manage", Type: rbac.PermissionTypeAPI, IsActive: true,
	}
	if err := permRepo.Create(ctx, perm); err != nil {
		t.Fatalf("failed to create permission: %v", err)
	}

	r := &rbac.Role{
		ID:          "00000000-0000-0000-0000-000000000201",
		Name:        "editor",
		DisplayName: "Editor",
	}

	t.Run("Create and Get", func(t *testing.T) {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("failed to create role: %v", err)
		}

		got, err := repo.GetByID(ctx, r.ID)
		if err != nil {
			t.Fatalf("failed to get role: %v", err)
		}
		if got.Name != r.Name {
			t.Errorf("expected name %s, got %s", r.Name, got.Name)
		}
	})

	t.Run("GetByName", func(t *testing.T) {
		got, err := repo.GetByName(ctx, r.Name)
		if err != nil {
			t.Fatalf("failed to get role by name: %v", err)
		}
		if got.ID != r.ID {
			t.Errorf("expected ID %s, got %s", r.ID, got.ID)
		}
	})

	t.Run("AddPermission and PermissionsForRole", func(t *testing.T) {
		if err := repo.AddPermission(ctx, r.ID, perm.ID); err != nil {
			t.Fatalf("failed to bind permission: %v", err)
		}
		perms, err := repo.PermissionsForRole(ctx, r.ID)
		if err != nil {
			t.Fatalf("failed to list role permissions: %v", err)
		}
		if len(perms) != 1 || perms[0].Name != "settings:manage" {
			t.Errorf("expected permission settings:manage, got %v", perms)
		}
	})

	t.Run("List", func(t *testing.T) {
		roles, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list roles: %v", err)
		}
		if len(roles) == 0 {
			t.Errorf("expected at least one role")
		}
	})

	t.Run("Update", func(t *testing.T) {
		r.DisplayName = "Updated Editor"
		if err := repo.Update(ctx, r); err != nil {
			t.Fatalf("failed to update role: %v", err)
		}

		got, err := repo.GetByID(ctx, r.ID)
		if err != nil {
			t.Fatalf("failed to get role: %v", err)
		}
		if got.DisplayName != "Updated Editor" {
			t.Errorf("expected updated display name, got %s", got.DisplayName)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, r.ID); err != nil {
			t.Fatalf("failed to delete role: %v", err)
		}

		_, err := repo.GetByID(ctx, r.ID)
		if err == nil {
			t.Errorf("expected error after delete, got nil")
		}
	})
}
