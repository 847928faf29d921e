// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package rbac

import (
	"context"
	"fmt"
	"log/slog"
)

// Decider is the Authorization Decider: it computes the effective
// permission set for a user and enforces required scopes/permissions at
// request admission.
//
// Purpose: Centralized engine for permission checks and role resolution.
// Domain: Authorization
// Invariants: Effective set = union of active-role permissions (restricted
// to active permissions) plus active, non-expired direct grants.
type Decider struct {
	roles       RoleRepository
	permissions PermissionRepository
	assignments AssignmentRepository
}

// NewDecider constructs the Authorization Decider.
func NewDecider(roles RoleRepository, permissions PermissionRepository, assignments AssignmentRepository) *Decider {
	return &Decider{roles: roles, permissions: permissions, assignments: assignments}
}

// EffectivePermissions computes the effective permission set for a user:
// the union of (a) permissions from every active role assigned to the
// user, restricted to active permissions, and (b) direct user-permissions
// that are active and not expired.
func (d *Decider) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	set := map[string]struct{}{}

	roles, err := d.assignments.RolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles for user: %w", err)
	}
	for _, r := range roles {
		perms, err := d.roles.PermissionsForRole(ctx, r.ID)
		if err != nil {
			slog.WarnContext(ctx, "rbac: failed to load role permissions", "role_id", r.ID, "error", err)
			continue
		}
		for _, p := range perms {
			if p.IsActive {
				set[p.Name] = struct{}{}
			}
		}
	}

	grants, err := d.assignments.DirectGrantsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list direct grants: %w", err)
	}
	for _, g := range grants {
		if g.IsExpired() {
			continue
		}
		p, err := d.permissions.GetByID(ctx, g.PermissionID)
		if err != nil || !p.IsActive {
			continue
		}
		set[p.Name] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out, nil
}

// AuthContext is the {user_id?, client_id, scopes, permissions} context
// attached to every authenticated request.
type AuthContext struct {
	UserID      string // empty for client_credentials tokens
	ClientID    string
	Scopes      []string
	Permissions []string // frozen token claim, if present; else computed at request time by Resolve
}

// HasScope reports whether scope is present in the auth context.
func (a *AuthContext) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether every required scope is present.
func (a *AuthContext) HasAllScopes(required []string) bool {
	for _, r := range required {
		if !a.HasScope(r) {
			return false
		}
	}
	return true
}

// HasPermission reports whether permission is present in the frozen or
// computed permission set.
func (a *AuthContext) HasPermission(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission || p == "*" {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every required permission is present.
func (a *AuthContext) HasAllPermissions(required []string) bool {
	for _, r := range required {
		if !a.HasPermission(r) {
			return false
		}
	}
	return true
}

// Resolve populates AuthContext.Permissions. If tokenPermissions is
// non-nil, it is authoritative (the token's frozen view) — it is used
// as-is, even if empty, and the decider is never consulted. Otherwise the
// effective set is computed at request time from the user's roles and
// direct grants.
func (d *Decider) Resolve(ctx context.Context, userID string, tokenPermissions []string) ([]string, error) {
	if tokenPermissions != nil {
		return tokenPermissions, nil
	}
	return d.EffectivePermissions(ctx, userID)
}

// ClientCredentialsScope computes the effective scope set for a
// client_credentials token: the intersection of the token's granted scopes
// and the client's allowed scopes.
func ClientCredentialsScope(tokenScopes, clientAllowedScopes []string) []string {
	allowed := map[string]struct{}{}
	for _, s := range clientAllowedScopes {
		allowed[s] = struct{}{}
	}
	out := make([]string, 0, len(tokenScopes))
	for _, s := range tokenScopes {
		if _, ok := allowed[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Require enforces that the auth context satisfies every required scope
// and permission.
func Require(ctx *AuthContext, requiredScopes, requiredPermissions []string) error {
	if !ctx.HasAllScopes(requiredScopes) {
		return ErrInsufficientScope
	}
	if !ctx.HasAllPermissions(requiredPermissions) {
		return ErrForbidden
	}
	return nil
}
