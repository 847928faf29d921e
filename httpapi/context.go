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

// Package httpapi is the HTTP transport: it exposes every engine in the
// module over one HTTP surface, translating wire requests into engine
// calls and engine results into the OAuth2 or admin response shapes
// apierror defines.
//
// Purpose: The only package that knows about net/http; every other
// package is transport-agnostic.
// Domain: Ambient
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/rbac"
	"github.com/ironforge-id/authcore/tokencodec"
)

type ctxKey int

const authContextKey ctxKey = iota

// authFromRequest extracts the Bearer access token, verifies it, and
// builds the AuthContext the rest of the request handles with.
func (s *Server) authFromRequest(r *http.Request) (*rbac.AuthContext, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidClient, "missing bearer token")
	}
	token := strings.TrimPrefix(header, "Bearer ")

	claims, _, err := s.Codec.ParseAccessToken(token)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidClient, "access token is invalid")
	}

	blacklisted, err := s.Blacklist.Contains(r.Context(), claims.ID)
	if err == nil && blacklisted {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidClient, "access token has been revoked")
	}

	row, err := s.AccessRepo.GetByTokenHash(r.Context(), tokencodec.Hash(token))
	if err != nil || row.IsRevoked || row.IsExpired() {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidClient, "access token is invalid, expired, or revoked")
	}

	scopes := strings.Fields(claims.Scope)
	permissions, err := s.Decider.Resolve(r.Context(), row.UserID, claims.Permissions)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "")
	}

	return &rbac.AuthContext{
		UserID:      row.UserID,
		ClientID:    claims.ClientID,
		Scopes:      scopes,
		Permissions: permissions,
	}, nil
}

// requireAuth is admin-surface middleware: it rejects any request without
// a valid bearer token before the handler runs, attaching the resolved
// AuthContext for handlers and requirePermission to read.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, err := s.authFromRequest(r)
		if err != nil {
			apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminForbidden, "authentication required"))
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission wraps a handler so it only runs when the caller's
// AuthContext carries permission.
func (s *Server) requirePermission(permission string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authCtx, ok := authContextFrom(r.Context())
		if !ok {
			apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminForbidden, "authentication required"))
			return
		}
		if err := rbac.Require(authCtx, nil, []string{permission}); err != nil {
			apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
			return
		}
		next(w, r)
	}
}

func authContextFrom(ctx context.Context) (*rbac.AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*rbac.AuthContext)
	return authCtx, ok
}

func withAuthContext(ctx context.Context, authCtx *rbac.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func clientIPFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
