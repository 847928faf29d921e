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

// Package rbac models roles, permissions, and the links between them and
// users — the data the Authorization Decider resolves against.
//
// Purpose: Roles, permissions, role-permission and user-permission links.
// Domain: Authorization
// Invariants: Role.Name and Permission.Name are globally unique.
// (user_id, resource, permission_id) is a unique composite on UserPermission.
package rbac

import (
	"context"
	"errors"
	"time"
)

// Domain errors.
var (
	ErrRoleNotFound          = errors.New("rbac: role not found")
	ErrRoleAlreadyExists     = errors.New("rbac: role already exists")
	ErrPermissionNotFound    = errors.New("rbac: permission not found")
	ErrPermissionExists      = errors.New("rbac: permission already exists")
	ErrGrantAlreadyExists    = errors.New("rbac: direct grant already exists")
	ErrGrantNotFound         = errors.New("rbac: direct grant not found")
	ErrInvalidPermissionType = errors.New("rbac: invalid permission type")
	ErrInsufficientScope     = errors.New("rbac: insufficient scope")
	ErrForbidden             = errors.New("rbac: forbidden")
)

// PermissionType classifies what a permission governs.
type PermissionType string

const (
	PermissionTypeAPI  PermissionType = "api"
	PermissionTypeMenu PermissionType = "menu"
	PermissionTypeData PermissionType = "data"
)

// Role is a named bundle of permissions, e.g. "admin", "support".
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a single coded capability, e.g. "users:create".
type Permission struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Resource    string         `json:"resource"`
	Action      string         `json:"action"`
	Type        PermissionType `json:"type"`
	DisplayName string         `json:"display_name,omitempty"`
	Description string         `json:"description,omitempty"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// UserPermission is a direct grant of a permission to a user, bypassing
// roles, with optional expiry.
type UserPermission struct {
	ID           string
	UserID       string
	Resource     string
	PermissionID string
	ExpiresAt    *time.Time
	GrantedBy    string
	GrantedAt    time.Time
}

// IsExpired reports whether the direct grant has expired.
func (g *UserPermission) IsExpired() bool {
	return g.ExpiresAt != nil && time.Now().After(*g.ExpiresAt)
}

// RoleRepository persists roles and the permissions bound to them.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Role, error)

	// AddPermission binds a permission to a role (RolePermission).
	AddPermission(ctx context.Context, roleID, permissionID string) error
	// RemovePermission unbinds a permission from a role.
	RemovePermission(ctx context.Context, roleID, permissionID string) error
	// PermissionsForRole lists the permissions bound to a role.
	PermissionsForRole(ctx context.Context, roleID string) ([]*Permission, error)
}

// PermissionRepository persists the permission registry.
type PermissionRepository interface {
	Create(ctx context.Context, p *Permission) error
	GetByID(ctx context.Context, id string) (*Permission, error)
	GetByName(ctx context.Context, name string) (*Permission, error)
	Update(ctx context.Context, p *Permission) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Permission, error)
}

// AssignmentRepository persists which roles a user holds, and direct
// user-permission grants.
type AssignmentRepository interface {
	AssignRole(ctx context.Context, userID, roleID, grantedBy string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	RolesForUser(ctx context.Context, userID string) ([]*Role, error)

	GrantPermission(ctx context.Context, grant *UserPermission) error
	RevokePermission(ctx context.Context, userID, resource, permissionID string) error
	DirectGrantsForUser(ctx context.Context, userID string) ([]*UserPermission, error)
}
