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

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/rbac"
)

// scopeCatalog returns the statically known OIDC scopes; there is no
// dedicated scope registry table, this mirrors client.OIDCScopes.
func scopeCatalog() []string {
	scopes := make([]string, 0, len(client.OIDCScopes))
	for scope := range client.OIDCScopes {
		scopes = append(scopes, scope)
	}
	return scopes
}

type createRoleRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.RBAC.ListRoles(r.Context())
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, roles, "", nil)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	authCtx, _ := authContextFrom(r.Context())
	role, err := s.RBAC.CreateRole(r.Context(), authCtx.UserID, req.Name, req.DisplayName)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusCreated, role, "role created", nil)
}

func (s *Server) handleListRolePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.RBAC.RolePermissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, perms, "", nil)
}

type bindPermissionRequest struct {
	PermissionID string `json:"permission_id"`
}

func (s *Server) handleBindPermission(w http.ResponseWriter, r *http.Request) {
	var req bindPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	authCtx, _ := authContextFrom(r.Context())
	if err := s.RBAC.BindPermission(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), req.PermissionID); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "permission bound", nil)
}

func (s *Server) handleUnbindPermission(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	if err := s.RBAC.UnbindPermission(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "permID")); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "permission unbound", nil)
}

func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.RBAC.ListPermissions(r.Context())
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, perms, "", nil)
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := s.RBAC.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, role, "", nil)
}

type updateRoleRequest struct {
	DisplayName string `json:"display_name"`
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	authCtx, _ := authContextFrom(r.Context())
	role, err := s.RBAC.UpdateRole(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), req.DisplayName)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, role, "role updated", nil)
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	if err := s.RBAC.DeleteRole(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "role deleted", nil)
}

type createPermissionRequest struct {
	Name        string              `json:"name"`
	Resource    string              `json:"resource"`
	Action      string              `json:"action"`
	Type        rbac.PermissionType `json:"type"`
	DisplayName string              `json:"display_name"`
	Description string              `json:"description"`
}

func (s *Server) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	p := &rbac.Permission{
		Name: req.Name, Resource: req.Resource, Action: req.Action,
		Type: req.Type, DisplayName: req.DisplayName, Description: req.Description,
	}
	authCtx, _ := authContextFrom(r.Context())
	out, err := s.RBAC.CreatePermission(r.Context(), authCtx.UserID, p)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusCreated, out, "permission created", nil)
}

type updatePermissionRequest struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

func (s *Server) handleUpdatePermission(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	authCtx, _ := authContextFrom(r.Context())
	p, err := s.RBAC.UpdatePermission(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), req.DisplayName, req.Description, req.IsActive)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, p, "permission updated", nil)
}

func (s *Server) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	if err := s.RBAC.DeletePermission(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "permission deleted", nil)
}

// handleListScopes returns the OIDC scope registry available for clients
// to request, per the client package's standard scope catalog.
func (s *Server) handleListScopes(w http.ResponseWriter, r *http.Request) {
	apierror.WriteAdminSuccess(w, http.StatusOK, scopeCatalog(), "", nil)
}
