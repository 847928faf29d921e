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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ironforge-id/authcore/rbac"
)

// RoleRepository implements rbac.RoleRepository.
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository.
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create creates a new role.
func (r *RoleRepository) Create(ctx context.Context, ro *rbac.Role) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO roles (id, name, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`, ro.ID, ro.Name, ro.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}
	return nil
}

// GetByID retrieves a role by ID.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*rbac.Role, error) {
	var ro rbac.Role
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, display_name, created_at, updated_at
		FROM roles WHERE id = $1
	`, id).Scan(&ro.ID, &ro.Name, &ro.DisplayName, &ro.CreatedAt, &ro.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &ro, nil
}

// GetByName retrieves a role by name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*rbac.Role, error) {
	var ro rbac.Role
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, display_name, created_at, updated_at
		FROM roles WHERE name = $1
	`, name).Scan(&ro.ID, &ro.Name, &ro.DisplayName, &ro.CreatedAt, &ro.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &ro, nil
}

// List retrieves all roles.
func (r *RoleRepository) List(ctx context.Context) ([]*rbac.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, display_name, created_at, updated_at
		FROM roles ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*rbac.Role
	for rows.Next() {
		var ro rbac.Role
		if err := rows.Scan(&ro.ID, &ro.Name, &ro.DisplayName, &ro.CreatedAt, &ro.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &ro)
	}
	return roles, nil
}

// Update updates role information.
func (r *RoleRepository) Update(ctx context.Context, ro *rbac.Role) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE roles SET display_name = $2, updated_at = NOW()
		WHERE id = $1
	`, ro.ID, ro.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return rbac.ErrRoleNotFound
	}
	return nil
}

// Delete deletes a role.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return rbac.ErrRoleNotFound
	}
	return nil
}

// AddPermission binds a permission to a role.
func (r *RoleRepository) AddPermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to bind permission: %w", err)
	}
	return nil
}

// RemovePermission unbinds a permission from a role.
func (r *RoleRepository) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to unbind permission: %w", err)
	}
	return nil
}

// PermissionsForRole lists the permissions bound to a role.
func (r *RoleRepository) PermissionsForRole(ctx context.Context, roleID string) ([]*rbac.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT p.id, p.name, p.resource, p.action, p.type, p.display_name, p.description, p.is_active, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var perms []*rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		var ptype string
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &ptype, &p.DisplayName, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		p.Type = rbac.PermissionType(ptype)
		perms = append(perms, &p)
	}
	return perms, nil
}
