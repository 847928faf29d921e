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

	"github.com/ironforge-id/authcore/id"
	"github.com/ironforge-id/authcore/rbac"
)

// AssignmentRepository implements rbac.AssignmentRepository: which roles
// a user holds, and direct permission grants bypassing roles.
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// AssignRole assigns a role to a user.
func (r *AssignmentRepository) AssignRole(ctx context.Context, userID, roleID, grantedBy string) error {
	var by interface{} = grantedBy
	if grantedBy == "" {
		by = nil
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_roles (id, user_id, role_id, granted_at, granted_by)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, id.New(), userID, roleID, by)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RevokeRole removes a role assignment from a user.
func (r *AssignmentRepository) RevokeRole(ctx context.Context, userID, roleID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2
	`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}

// RolesForUser lists the roles assigned to a user.
func (r *AssignmentRepository) RolesForUser(ctx context.Context, userID string) ([]*rbac.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT r.id, r.name, r.display_name, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles for user: %w", err)
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

// GrantPermission creates a direct (role-bypassing) permission grant.
func (r *AssignmentRepository) GrantPermission(ctx context.Context, grant *rbac.UserPermission) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_permissions (id, user_id, resource, permission_id, expires_at, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, resource, permission_id) DO UPDATE SET
			expires_at = EXCLUDED.expires_at, granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at
	`, grant.ID, grant.UserID, grant.Resource, grant.PermissionID, grant.ExpiresAt, grant.GrantedBy, grant.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to grant direct permission: %w", err)
	}
	return nil
}

// RevokePermission removes a direct permission grant.
func (r *AssignmentRepository) RevokePermission(ctx context.Context, userID, resource, permissionID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM user_permissions WHERE user_id = $1 AND resource = $2 AND permission_id = $3
	`, userID, resource, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke direct permission: %w", err)
	}
	return nil
}

// DirectGrantsForUser lists direct permission grants for a user.
func (r *AssignmentRepository) DirectGrantsForUser(ctx context.Context, userID string) ([]*rbac.UserPermission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, resource, permission_id, expires_at, granted_by, granted_at
		FROM user_permissions WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct grants: %w", err)
	}
	defer rows.Close()

	var grants []*rbac.UserPermission
	for rows.Next() {
		var g rbac.UserPermission
		if err := rows.Scan(&g.ID, &g.UserID, &g.Resource, &g.PermissionID, &g.ExpiresAt, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan direct grant: %w", err)
		}
		grants = append(grants, &g)
	}
	return grants, nil
}
