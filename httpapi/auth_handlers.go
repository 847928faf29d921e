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

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/user"
)

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// handleRegister implements the public self-registration endpoint, gated
// by REGISTRATION_ENABLED.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.RegistrationEnabled {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminForbidden, "public registration is disabled"))
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}

	u, err := s.Users.ProvisionIdentity(r.Context(), req.Username, req.Email, user.Profile{GivenName: req.GivenName, FamilyName: req.FamilyName})
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	if err := s.Users.AddPassword(r.Context(), u.ID, req.Password); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}

	apierror.WriteAdminSuccess(w, http.StatusCreated, u, "account created", nil)
}

// handleMe returns the current bearer token's user and its claims.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authContextFrom(r.Context())
	if !ok {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminForbidden, "authentication required"))
		return
	}
	if authCtx.UserID == "" {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminForbidden, "token is not bound to a user"))
		return
	}

	u, err := s.Users.GetUser(r.Context(), authCtx.UserID)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}

	apierror.WriteAdminSuccess(w, http.StatusOK, map[string]any{
		"user":        u,
		"client_id":   authCtx.ClientID,
		"scopes":      authCtx.Scopes,
		"permissions": authCtx.Permissions,
	}, "", nil)
}
