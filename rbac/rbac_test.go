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

package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/ironforge-id/authcore/audit"
)

type mockRoleRepo struct {
	roles       map[string]*Role
	byName      map[string]*Role
	permissions map[string][]*Permission
}

func newMockRoleRepo() *mockRoleRepo {
	return &mockRoleRepo{roles: map[string]*Role{}, byName: map[string]*Role{}, permissions: map[string][]*Permission{}}
}

func (m *mockRoleRepo) Create(ctx context.Context, r *Role) error {
	m.roles[r.ID] = r
	m.byName[r.Name] = r
	return nil
}
func (m *mockRoleRepo) GetByID(ctx context.Context, id string) (*Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return r, nil
}
func (m *mockRoleRepo) GetByName(ctx context.Context, name string) (*Role, error) {
	r, ok := m.byName[name]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return r, nil
}
func (m *mockRoleRepo) Update(ctx context.Context, r *Role) error { m.roles[r.ID] = r; return nil }
func (m *mockRoleRepo) Delete(ctx context.Context, id string) error {
	delete(m.roles, id)
	return nil
}
func (m *mockRoleRepo) List(ctx context.Context) ([]*Role, error) {
	out := make([]*Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}
func (m *mockRoleRepo) AddPermission(ctx context.Context, roleID, permissionID string) error {
	return nil
}
func (m *mockRoleRepo) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	return nil
}
func (m *mockRoleRepo) PermissionsForRole(ctx context.Context, roleID string) ([]*Permission, error) {
	return m.permissions[roleID], nil
}

type mockPermissionRepo struct {
	perms  map[string]*Permission
	byName map[string]*Permission
}

func newMockPermissionRepo() *mockPermissionRepo {
	return &mockPermissionRepo{perms: map[string]*Permission{}, byName: map[string]*Permission{}}
}

func (m *mockPermissionRepo) Create(ctx context.Context, p *Permission) error {
	m.perms[p.ID] = p
	m.byName[p.Name] = p
	return nil
}
func (m *mockPermissionRepo) GetByID(ctx context.Context, id string) (*Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return nil, ErrPermissionNotFound
	}
	return p, nil
}
func (m *mockPermissionRepo) GetByName(ctx context.Context, name string) (*Permission, error) {
	p, ok := m.byName[name]
	if !ok {
		return nil, ErrPermissionNotFound
	}
	return p, nil
}
func (m *mockPermissionRepo) Update(ctx context.Context, p *Permission) error {
	m.perms[p.ID] = p
	return nil
}
func (m *mockPermissionRepo) Delete(ctx context.Context, id string) error {
	delete(m.perms, id)
	return nil
}
func (m *mockPermissionRepo) List(ctx context.Context) ([]*Permission, error) {
	out := make([]*Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	return out, nil
}

type mockAssignmentRepo struct {
	rolesForUser map[string][]*Role
	directGrants map[string][]*UserPermission
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{rolesForUser: map[string][]*Role{}, directGrants: map[string][]*UserPermission{}}
}

func (m *mockAssignmentRepo) AssignRole(ctx context.Context, userID, roleID, grantedBy string) error {
	return nil
}
func (m *mockAssignmentRepo) RevokeRole(ctx context.Context, userID, roleID string) error { return nil }
func (m *mockAssignmentRepo) RolesForUser(ctx context.Context, userID string) ([]*Role, error) {
	return m.rolesForUser[userID], nil
}
func (m *mockAssignmentRepo) GrantPermission(ctx context.Context, grant *UserPermission) error {
	m.directGrants[grant.UserID] = append(m.directGrants[grant.UserID], grant)
	return nil
}
func (m *mockAssignmentRepo) RevokePermission(ctx context.Context, userID, resource, permissionID string) error {
	return nil
}
func (m *mockAssignmentRepo) DirectGrantsForUser(ctx context.Context, userID string) ([]*UserPermission, error) {
	return m.directGrants[userID], nil
}

type noopAuditLogger struct{}

func (noopAuditLogger) Log(ctx context.Context, event audit.Event) {}

func TestEffectivePermissionsUnionsRolesAndDirectGrants(t *testing.T) {
	roles := newMockRoleRepo()
	perms := newMockPermissionRepo()
	assignments := newMockAssignmentRepo()

	role := &Role{ID: "role-1", Name: "support"}
	roles.roles[role.ID] = role
	roles.permissions[role.ID] = []*Permission{{ID: "perm-1", Name: "tickets:read", IsActive: true}}

	directPerm := &Permission{ID: "perm-2", Name: "users:export", IsActive: true}
	perms.perms[directPerm.ID] = directPerm

	assignments.rolesForUser["user-1"] = []*Role{role}
	assignments.directGrants["user-1"] = []*UserPermission{{UserID: "user-1", PermissionID: directPerm.ID}}

	decider := NewDecider(roles, perms, assignments)
	effective, err := decider.EffectivePermissions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set := map[string]bool{}
	for _, p := range effective {
		set[p] = true
	}
	if !set["tickets:read"] || !set["users:export"] {
		t.Fatalf("expected union of role and direct permissions, got %v", effective)
	}
}

func TestEffectivePermissionsExcludesExpiredDirectGrant(t *testing.T) {
	roles := newMockRoleRepo()
	perms := newMockPermissionRepo()
	assignments := newMockAssignmentRepo()

	directPerm := &Permission{ID: "perm-1", Name: "admin:all", IsActive: true}
	perms.perms[directPerm.ID] = directPerm
	past := time.Now().Add(-time.Hour)
	assignments.directGrants["user-1"] = []*UserPermission{{UserID: "user-1", PermissionID: directPerm.ID, ExpiresAt: &past}}

	decider := NewDecider(roles, perms, assignments)
	effective, err := decider.EffectivePermissions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(effective) != 0 {
		t.Fatalf("expected expired direct grant excluded, got %v", effective)
	}
}

func TestAuthContextHasScopeAndPermission(t *testing.T) {
	ctx := &AuthContext{Scopes: []string{"openid", "profile"}, Permissions: []string{"users:read"}}
	if !ctx.HasScope("openid") || ctx.HasScope("admin") {
		t.Fatal("unexpected scope check result")
	}
	if !ctx.HasAllScopes([]string{"openid", "profile"}) {
		t.Fatal("expected all scopes present")
	}
	if ctx.HasAllScopes([]string{"openid", "admin"}) {
		t.Fatal("expected missing scope to fail HasAllScopes")
	}
	if !ctx.HasPermission("users:read") {
		t.Fatal("expected direct permission match")
	}
}

func TestAuthContextWildcardPermission(t *testing.T) {
	ctx := &AuthContext{Permissions: []string{"*"}}
	if !ctx.HasPermission("anything:at-all") {
		t.Fatal("expected wildcard permission to satisfy any check")
	}
}

func TestResolvePrefersFrozenTokenPermissions(t *testing.T) {
	decider := NewDecider(newMockRoleRepo(), newMockPermissionRepo(), newMockAssignmentRepo())
	resolved, err := decider.Resolve(context.Background(), "user-1", []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved == nil || len(resolved) != 0 {
		t.Fatalf("expected the empty-but-non-nil frozen token permissions to be used as-is, got %v", resolved)
	}
}

func TestClientCredentialsScopeIntersects(t *testing.T) {
	got := ClientCredentialsScope([]string{"read", "write", "admin"}, []string{"read", "write"})
	if len(got) != 2 {
		t.Fatalf("expected intersection of 2 scopes, got %v", got)
	}
}

func TestRequireFailsOnInsufficientScope(t *testing.T) {
	ctx := &AuthContext{Scopes: []string{"openid"}}
	if err := Require(ctx, []string{"openid", "admin"}, nil); err != ErrInsufficientScope {
		t.Fatalf("expected ErrInsufficientScope, got %v", err)
	}
}

func TestRequireFailsOnForbidden(t *testing.T) {
	ctx := &AuthContext{Scopes: []string{"openid"}, Permissions: []string{"users:read"}}
	if err := Require(ctx, []string{"openid"}, []string{"users:delete"}); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestServiceCreateRoleRejectsDuplicateName(t *testing.T) {
	roles := newMockRoleRepo()
	svc := NewService(roles, newMockPermissionRepo(), newMockAssignmentRepo(), noopAuditLogger{})
	ctx := context.Background()

	if _, err := svc.CreateRole(ctx, "admin-1", "support", "Support"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreateRole(ctx, "admin-1", "support", "Support"); err != ErrRoleAlreadyExists {
		t.Fatalf("expected ErrRoleAlreadyExists, got %v", err)
	}
}

func TestServiceCreatePermissionValidatesType(t *testing.T) {
	svc := NewService(newMockRoleRepo(), newMockPermissionRepo(), newMockAssignmentRepo(), noopAuditLogger{})
	_, err := svc.CreatePermission(context.Background(), "admin-1", &Permission{Name: "x", Type: "bogus"})
	if err != ErrInvalidPermissionType {
		t.Fatalf("expected ErrInvalidPermissionType, got %v", err)
	}
}

func TestServiceUpdateAndDeleteRole(t *testing.T) {
	roles := newMockRoleRepo()
	svc := NewService(roles, newMockPermissionRepo(), newMockAssignmentRepo(), noopAuditLogger{})
	ctx := context.Background()

	r, err := svc.CreateRole(ctx, "admin-1", "support", "Support")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.UpdateRole(ctx, "admin-1", r.ID, "Support Desk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DisplayName != "Support Desk" {
		t.Fatalf("expected updated display name, got %q", updated.DisplayName)
	}
	if updated.Name != "support" {
		t.Fatalf("role name must never change, got %q", updated.Name)
	}

	if err := svc.DeleteRole(ctx, "admin-1", r.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetRole(ctx, r.ID); err != ErrRoleNotFound {
		t.Fatalf("expected ErrRoleNotFound after delete, got %v", err)
	}
}

func TestServiceUpdatePermissionTogglesActive(t *testing.T) {
	svc := NewService(newMockRoleRepo(), newMockPermissionRepo(), newMockAssignmentRepo(), noopAuditLogger{})
	ctx := context.Background()

	p, err := svc.CreatePermission(ctx, "admin-1", &Permission{Name: "users:create", Resource: "users", Action: "create", Type: PermissionTypeAPI})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.IsActive {
		t.Fatal("new permissions must be active")
	}

	updated, err := svc.UpdatePermission(ctx, "admin-1", p.ID, "Create users", "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.IsActive {
		t.Fatal("expected permission to be deactivated")
	}
}

func TestServiceGrantAndRevokeDirectPermission(t *testing.T) {
	assignments := newMockAssignmentRepo()
	svc := NewService(newMockRoleRepo(), newMockPermissionRepo(), assignments, noopAuditLogger{})
	ctx := context.Background()

	if err := svc.GrantDirectPermission(ctx, "admin-1", "user-1", "users", "perm-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assignments.directGrants["user-1"]) != 1 {
		t.Fatalf("expected one direct grant recorded, got %d", len(assignments.directGrants["user-1"]))
	}

	if err := svc.RevokeDirectPermission(ctx, "admin-1", "user-1", "users", "perm-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
