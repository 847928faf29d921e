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
)

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.Clients.ListClients(r.Context())
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, clients, "", nil)
}

type createClientRequest struct {
	ClientName              string   `json:"client_name"`
	ClientURI               string   `json:"client_uri"`
	LogoURI                 string   `json:"logo_uri"`
	ClientType              string   `json:"client_type"`
	RedirectURIs            []string `json:"redirect_uris"`
	AllowedScopes           []string `json:"allowed_scopes"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	JWKSURI                 string   `json:"jwks_uri"`
	RequirePKCE             bool     `json:"require_pkce"`
	RequireConsent          bool     `json:"require_consent"`
	IsTrusted               bool     `json:"is_trusted"`
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	authCtx, _ := authContextFrom(r.Context())

	c := &client.Client{
		ClientName:              req.ClientName,
		ClientURI:               req.ClientURI,
		LogoURI:                 req.LogoURI,
		ClientType:              client.ClientType(req.ClientType),
		RedirectURIs:            req.RedirectURIs,
		AllowedScopes:           req.AllowedScopes,
		GrantTypes:              req.GrantTypes,
		ResponseTypes:           req.ResponseTypes,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		JWKSURI:                 req.JWKSURI,
		RequirePKCE:             req.RequirePKCE,
		RequireConsent:          req.RequireConsent,
		IsTrusted:               req.IsTrusted,
		IsActive:                true,
	}

	secret, out, err := s.Clients.RegisterClient(r.Context(), authCtx.UserID, c)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}

	resp := map[string]any{"client": out}
	if secret != "" {
		resp["client_secret"] = secret
	}
	apierror.WriteAdminSuccess(w, http.StatusCreated, resp, "client registered", nil)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	c, err := s.Clients.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, c, "", nil)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	c, err := s.Clients.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}

	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminValidation, "malformed request body"))
		return
	}
	c.ClientName = req.ClientName
	c.ClientURI = req.ClientURI
	c.LogoURI = req.LogoURI
	c.RedirectURIs = req.RedirectURIs
	c.AllowedScopes = req.AllowedScopes
	c.GrantTypes = req.GrantTypes
	c.ResponseTypes = req.ResponseTypes
	c.TokenEndpointAuthMethod = req.TokenEndpointAuthMethod
	c.JWKSURI = req.JWKSURI
	c.RequirePKCE = req.RequirePKCE
	c.RequireConsent = req.RequireConsent
	c.IsTrusted = req.IsTrusted

	authCtx, _ := authContextFrom(r.Context())
	if err := s.Clients.UpdateClient(r.Context(), c, authCtx.UserID); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, c, "client updated", nil)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	if err := s.Clients.DeleteClient(r.Context(), chi.URLParam(r, "id"), authCtx.UserID); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "client deleted", nil)
}

func (s *Server) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	c, err := s.Clients.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	authCtx, _ := authContextFrom(r.Context())
	secret, err := s.Clients.RotateSecret(r.Context(), authCtx.UserID, c)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, map[string]string{"client_secret": secret}, "secret rotated", nil)
}
