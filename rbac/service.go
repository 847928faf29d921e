// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/id"
)

// Service provides role and permission management business logic.
//
// Purpose: CRUD and assignment operations over the RBAC registry, each
// audit-logged.
// Domain: Authorization
type Service struct {
	roles       RoleRepository
	permissions PermissionRepository
	assignments AssignmentRepository
	auditLogger audit.Logger
}

// NewService creates a new RBAC management service.
func NewService(roles RoleRepository, permissions PermissionRepository, assignments AssignmentRepository, auditLogger audit.Logger) *Service {
	return &Service{roles: roles, permissions: permissions, assignments: assignments, auditLogger: auditLogger}
}

// CreateRole creates a new role.
func (s *Service) CreateRole(ctx context.Context, actorID, name, displayName string) (*Role, error) {
	if existing, _ := s.roles.GetByName(ctx, name); existing != nil {
		return nil, ErrRoleAlreadyExists
	}
	r := &Role{ID: id.New(), Name: name, DisplayName: displayName}
	if err := s.roles.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("rbac: create role: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionRoleCreated, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceRole, ResourceID: r.ID, Success: true,
		Metadata: map[string]any{"name": name},
	})
	return r, nil
}

// CreatePermission registers a new permission in the catalog.
func (s *Service) CreatePermission(ctx context.Context, actorID string, p *Permission) (*Permission, error) {
	if p.Type != PermissionTypeAPI && p.Type != PermissionTypeMenu && p.Type != PermissionTypeData {
		return nil, ErrInvalidPermissionType
	}
	if existing, _ := s.permissions.GetByName(ctx, p.Name); existing != nil {
		return nil, ErrPermissionExists
	}
	p.ID = id.New()
	p.IsActive = true
	if err := s.permissions.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("rbac: create permission: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPermissionCreated, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourcePermission, ResourceID: p.ID, Success: true,
		Metadata: map[string]any{"name": p.Name},
	})
	return p, nil
}

// GetRole retrieves a role by id.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	return s.roles.GetByID(ctx, roleID)
}

// UpdateRole changes a role's display name. The role name itself is a
// stable identifier other systems reference and is never renamed.
func (s *Service) UpdateRole(ctx context.Context, actorID, roleID, displayName string) (*Role, error) {
	r, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	r.DisplayName = displayName
	if err := s.roles.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("rbac: update role: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionRoleUpdated, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceRole, ResourceID: roleID, Success: true,
	})
	return r, nil
}

// DeleteRole removes a role and, via the role_permissions FK cascade, every
// binding to it. Users holding the role simply lose it.
func (s *Service) DeleteRole(ctx context.Context, actorID, roleID string) error {
	if err := s.roles.Delete(ctx, roleID); err != nil {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionRoleDeleted, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceRole, ResourceID: roleID, Success: true,
	})
	return nil
}

// UpdatePermission changes a permission's display fields and active flag.
// The coded name, resource and action are immutable once registered.
func (s *Service) UpdatePermission(ctx context.Context, actorID, permissionID, displayName, description string, isActive bool) (*Permission, error) {
	p, err := s.permissions.GetByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	p.DisplayName = displayName
	p.Description = description
	p.IsActive = isActive
	if err := s.permissions.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("rbac: update permission: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPermissionUpdated, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourcePermission, ResourceID: permissionID, Success: true,
	})
	return p, nil
}

// DeletePermission removes a permission from the catalog along with its
// role bindings and direct grants.
func (s *Service) DeletePermission(ctx context.Context, actorID, permissionID string) error {
	if err := s.permissions.Delete(ctx, permissionID); err != nil {
		return fmt.Errorf("rbac: delete permission: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPermissionDeleted, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourcePermission, ResourceID: permissionID, Success: true,
	})
	return nil
}

// BindPermission attaches a permission to a role (RolePermission link).
func (s *Service) BindPermission(ctx context.Context, actorID, roleID, permissionID string) error {
	if err := s.roles.AddPermission(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("rbac: bind permission: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPermissionGrant, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceRole, ResourceID: roleID, Success: true,
		Metadata: map[string]any{"permission_id": permissionID},
	})
	return nil
}

// ListRoles returns every role in the registry.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

// ListPermissions returns every permission in the catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return s.permissions.List(ctx)
}

// RolePermissions lists the permissions bound to a role.
func (s *Service) RolePermissions(ctx context.Context, roleID string) ([]*Permission, error) {
	return s.roles.PermissionsForRole(ctx, roleID)
}

// UnbindPermission detaches a permission from a role.
func (s *Service) UnbindPermission(ctx context.Context, actorID, roleID, permissionID string) error {
	if err := s.roles.RemovePermission(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("rbac: unbind permission: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPermissionRevoke, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceRole, ResourceID: roleID, Success: true,
		Metadata: map[string]any{"permission_id": permissionID},
	})
	return nil
}

// AssignRole assigns a role to a user.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID string) error {
	if err := s.assignments.AssignRole(ctx, userID, roleID, actorID); err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionRoleAssigned, ActorType: audit.ActorUser, ActorID: actorID,
		UserID: userID, ResourceType: audit.ResourceRole, ResourceID: roleID, Success: true,
	})
	return nil
}

// RevokeRole removes a role from a user.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleID string) error {
	if err := s.assignments.RevokeRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("rbac: revoke role: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionRoleRevoked, ActorType: audit.ActorUser, ActorID: actorID,
		UserID: userID, ResourceType: audit.ResourceRole, ResourceID: roleID, Success: true,
	})
	return nil
}

// GrantDirectPermission grants a permission directly to a user, bypassing
// roles entirely.
func (s *Service) GrantDirectPermission(ctx context.Context, actorID, userID, resource, permissionID string, expiresAt *time.Time) error {
	grant := &UserPermission{
		ID: id.New(), UserID: userID, Resource: resource, PermissionID: permissionID,
		ExpiresAt: expiresAt, GrantedBy: actorID, GrantedAt: time.Now(),
	}
	if err := s.assignments.GrantPermission(ctx, grant); err != nil {
		return fmt.Errorf("rbac: grant direct permission: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPermissionGrant, ActorType: audit.ActorUser, ActorID: actorID,
		UserID: userID, ResourceType: resource, ResourceID: permissionID, Success: true,
	})
	return nil
}

// RevokeDirectPermission removes a direct grant.
func (s *Service) RevokeDirectPermission(ctx context.Context, actorID, userID, resource, permissionID string) error {
	if err := s.assignments.RevokePermission(ctx, userID, resource, permissionID); err != nil {
		return fmt.Errorf("rbac: revoke direct permission: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionPermissionRevoke, ActorType: audit.ActorUser, ActorID: actorID,
		UserID: userID, ResourceType: resource, ResourceID: permissionID, Success: true,
	})
	return nil
}
