// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ironforge-id/authcore/rbac"
)

// PermissionRepository implements rbac.PermissionRepository.
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository.
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func scanPermission(row pgx.Row) (*rbac.Permission, error) {
	var p rbac.Permission
	var ptype string
	err := row.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &ptype, &p.DisplayName, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, rbac.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("failed to scan permission: %w", err)
	}
	p.Type = rbac.PermissionType(ptype)
	return &p, nil
}

const selectPermissionColumns = `id, name, resource, action, type, display_name, description, is_active, created_at, updated_at`

// Create registers a new permission.
func (r *PermissionRepository) Create(ctx context.Context, p *rbac.Permission) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO permissions (id, name, resource, action, type, display_name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, p.ID, p.Name, p.Resource, p.Action, string(p.Type), p.DisplayName, p.Description, p.IsActive)
	if err != nil {
		return fmt.Errorf("failed to insert permission: %w", err)
	}
	return nil
}

// GetByID retrieves a permission by ID.
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*rbac.Permission, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+selectPermissionColumns+` FROM permissions WHERE id = $1`, id)
	return scanPermission(row)
}

// GetByName retrieves a permission by name.
func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*rbac.Permission, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+selectPermissionColumns+` FROM permissions WHERE name = $1`, name)
	return scanPermission(row)
}

// Update updates a permission.
func (r *PermissionRepository) Update(ctx context.Context, p *rbac.Permission) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE permissions SET
			resource = $2, action = $3, type = $4, display_name = $5,
			description = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Resource, p.Action, string(p.Type), p.DisplayName, p.Description, p.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return rbac.ErrPermissionNotFound
	}
	return nil
}

// Delete deletes a permission.
func (r *PermissionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return rbac.ErrPermissionNotFound
	}
	return nil
}

// List retrieves all permissions.
func (r *PermissionRepository) List(ctx context.Context) ([]*rbac.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+selectPermissionColumns+` FROM permissions ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
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
