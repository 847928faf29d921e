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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/authorize"
	"github.com/ironforge-id/authcore/backup"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/clientauth"
	"github.com/ironforge-id/authcore/consent"
	"github.com/ironforge-id/authcore/crypto"
	"github.com/ironforge-id/authcore/rbac"
	"github.com/ironforge-id/authcore/ratelimit"
	"github.com/ironforge-id/authcore/revocation"
	"github.com/ironforge-id/authcore/session"
	"github.com/ironforge-id/authcore/tokencodec"
	"github.com/ironforge-id/authcore/tokenendpoint"
	"github.com/ironforge-id/authcore/user"
)

// Server wires every engine to the HTTP surface. It holds no business
// logic of its own beyond request parsing and response shaping.
type Server struct {
	Keys        *crypto.Manager
	Codec       *tokencodec.Codec
	Authorizer  *authorize.Engine
	TokenEP     *tokenendpoint.Engine
	Revocation  *revocation.Service
	ClientAuth  *clientauth.Authenticator
	Decider     *rbac.Decider
	RBAC        *rbac.Service
	Consent     *consent.Service
	Users       *user.Service
	Clients     *client.Service
	Sessions    *session.Service
	AuditRepo   audit.Repository
	AuditLogger audit.Logger
	Blacklist   revocation.Blacklist
	AccessRepo  client.AccessTokenRepository
	RefreshRepo client.RefreshTokenRepository
	RateLimiter *ratelimit.Limiter
	Backups     *backup.Service

	RegistrationEnabled bool
	RequestTimeout      time.Duration
	CORSOrigins         []string
}

// NewRouter builds the complete chi.Router for the authorization server.
func (s *Server) NewRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.recoverPanics)
	r.Use(func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, s.RequestTimeout, `{"error":"temporarily_unavailable","error_description":"request timed out"}`)
	})
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(s.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(next)
	})

	r.Get("/.well-known/jwks.json", s.handleJWKS)

	r.Route("/api/v2/oauth", func(r chi.Router) {
		r.Get("/authorize", s.rateLimit("authorize", s.handleAuthorize))
		r.Post("/authorize/consent", s.rateLimit("authorize", s.handleAuthorizeConsent))
		r.Post("/token", s.rateLimit("token", s.handleToken))
		r.Post("/introspect", s.rateLimit("introspect", s.handleIntrospect))
		r.Post("/revoke", s.rateLimit("revoke", s.handleRevoke))
		r.Get("/userinfo", s.requireBearerFunc(s.handleUserinfo))
		r.Post("/userinfo", s.requireBearerFunc(s.handleUserinfo))
	})

	r.Route("/api/v2/auth", func(r chi.Router) {
		r.Post("/register", s.rateLimit("register", s.handleRegister))
		r.With(s.requireAuth).Get("/me", s.handleMe)
	})

	r.Route("/api/v2/users", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.requirePermission("users:read", s.handleListUsers))
		r.Post("/", s.requirePermission("users:create", s.handleCreateUser))
		r.Get("/{id}", s.requirePermission("users:read", s.handleGetUser))
		r.Put("/{id}", s.requirePermission("users:update", s.handleUpdateUser))
		r.Delete("/{id}", s.requirePermission("users:delete", s.handleDeactivateUser))
		r.Post("/{id}/lock", s.requirePermission("users:update", s.handleLockUser))
		r.Post("/{id}/unlock", s.requirePermission("users:update", s.handleUnlockUser))
		r.Post("/{id}/roles", s.requirePermission("users:update", s.handleAssignRole))
		r.Delete("/{id}/roles/{roleID}", s.requirePermission("users:update", s.handleRevokeRole))
		r.Post("/{id}/permissions", s.requirePermission("users:update", s.handleGrantDirectPermission))
		r.Delete("/{id}/permissions/{permID}", s.requirePermission("users:update", s.handleRevokeDirectPermission))
	})

	r.Route("/api/v2/clients", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.requirePermission("clients:read", s.handleListClients))
		r.Post("/", s.requirePermission("clients:create", s.handleCreateClient))
		r.Get("/{id}", s.requirePermission("clients:read", s.handleGetClient))
		r.Put("/{id}", s.requirePermission("clients:update", s.handleUpdateClient))
		r.Delete("/{id}", s.requirePermission("clients:delete", s.handleDeleteClient))
		r.Post("/{id}/rotate-secret", s.requirePermission("clients:update", s.handleRotateSecret))
	})

	r.Route("/api/v2/roles", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.requirePermission("roles:read", s.handleListRoles))
		r.Post("/", s.requirePermission("roles:create", s.handleCreateRole))
		r.Get("/{id}", s.requirePermission("roles:read", s.handleGetRole))
		r.Put("/{id}", s.requirePermission("roles:update", s.handleUpdateRole))
		r.Delete("/{id}", s.requirePermission("roles:delete", s.handleDeleteRole))
		r.Get("/{id}/permissions", s.requirePermission("roles:read", s.handleListRolePermissions))
		r.Post("/{id}/permissions", s.requirePermission("roles:update", s.handleBindPermission))
		r.Delete("/{id}/permissions/{permID}", s.requirePermission("roles:update", s.handleUnbindPermission))
	})

	r.Route("/api/v2/permissions", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.requirePermission("permissions:read", s.handleListPermissions))
		r.Post("/", s.requirePermission("permissions:create", s.handleCreatePermission))
		r.Put("/{id}", s.requirePermission("permissions:update", s.handleUpdatePermission))
		r.Delete("/{id}", s.requirePermission("permissions:delete", s.handleDeletePermission))
	})

	r.Route("/api/v2/scopes", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.requirePermission("scopes:read", s.handleListScopes))
	})

	r.Route("/api/v2/audit-logs", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.requirePermission("audit:read", s.handleListAuditLogs))
		r.Get("/statistics", s.requirePermission("audit:read", s.handleAuditStatistics))
		r.Get("/{id}", s.requirePermission("audit:read", s.handleGetAuditLog))
		r.Get("/security-events", s.requirePermission("audit:read", s.handleSecurityEvents))
		r.Get("/compliance-reports", s.requirePermission("audit:read", s.handleComplianceReport))
	})

	r.Route("/api/v2/account/sessions", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Delete("/{id}", s.handleRevokeOwnSession)
	})

	r.Route("/api/v2/system/backups", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.requirePermission("system:admin", s.handleListBackups))
		r.Post("/", s.requirePermission("system:admin", s.handleCreateBackup))
		r.Post("/{id}/restore", s.requirePermission("system:admin", s.handleRestoreBackup))
	})

	return r
}

// requireBearerFunc is a lighter-weight variant of requireAuth for OAuth2
// endpoints that need an AuthContext but report OAuth2 errors, not admin
// ones, on failure.
func (s *Server) requireBearerFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authCtx, err := s.authFromRequest(r)
		if err != nil {
			apierror.WriteOAuthError(w, err)
			return
		}
		next(w, r.WithContext(withAuthContext(r.Context(), authCtx)))
	}
}
