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
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/user"
)

func paginationFromQuery(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r)
	users, err := s.Users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, users, "", map[string]int{"limit": limit, "offset": offset})
}

type createUserRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}

	u, err := s.Users.ProvisionIdentity(r.Context(), req.Username, req.Email, user.Profile{GivenName: req.GivenName, FamilyName: req.FamilyName})
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	if req.Password != "" {
		if err := s.Users.AddPassword(r.Context(), u.ID, req.Password); err != nil {
			apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
			return
		}
	}
	apierror.WriteAdminSuccess(w, http.StatusCreated, u, "user created", nil)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.Users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, u, "", nil)
}

type updateUserRequest struct {
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Nickname   string `json:"nickname"`
	Picture    string `json:"picture"`
	Locale     string `json:"locale"`
	Timezone   string `json:"timezone"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Users.UpdateProfile(r.Context(), id, user.Profile{
		GivenName: req.GivenName, FamilyName: req.FamilyName, Nickname: req.Nickname,
		Picture: req.Picture, Locale: req.Locale, Timezone: req.Timezone,
	}); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "user updated", nil)
}

func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	if err := s.Users.Deactivate(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "user deactivated", nil)
}

type lockUserRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

func (s *Server) handleLockUser(w http.ResponseWriter, r *http.Request) {
	var req lockUserRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = 3600
	}
	authCtx, _ := authContextFrom(r.Context())
	until := time.Now().Add(time.Duration(req.DurationSeconds) * time.Second)
	if err := s.Users.Lock(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), until); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "user locked", nil)
}

func (s *Server) handleUnlockUser(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	if err := s.Users.Unlock(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "user unlocked", nil)
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	authCtx, _ := authContextFrom(r.Context())
	if err := s.RBAC.AssignRole(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), req.RoleID); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "role assigned", nil)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	if err := s.RBAC.RevokeRole(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "roleID")); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "role revoked", nil)
}

type grantPermissionRequest struct {
	Resource     string     `json:"resource"`
	PermissionID string     `json:"permission_id"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) handleGrantDirectPermission(w http.ResponseWriter, r *http.Request) {
	var req grantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	authCtx, _ := authContextFrom(r.Context())
	if err := s.RBAC.GrantDirectPermission(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), req.Resource, req.PermissionID, req.ExpiresAt); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "permission granted", nil)
}

func (s *Server) handleRevokeDirectPermission(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	resource := r.URL.Query().Get("resource")
	if err := s.RBAC.RevokeDirectPermission(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), resource, chi.URLParam(r, "permID")); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "permission revoked", nil)
}
