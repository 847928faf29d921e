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

package apierror

import (
	"errors"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/backup"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/consent"
	"github.com/ironforge-id/authcore/rbac"
	"github.com/ironforge-id/authcore/session"
	"github.com/ironforge-id/authcore/user"
)

// FromDomainOAuth maps a domain sentinel error to the OAuth2 error kind the
// token/authorize/introspect/revoke endpoints report. Errors not
// recognized here fall through to server_error.
func FromDomainOAuth(err error) *OAuthError {
	var oerr *OAuthError
	if errors.As(err, &oerr) {
		return oerr
	}

	switch {
	case errors.Is(err, client.ErrClientNotFound), errors.Is(err, client.ErrDomainInvalidClient):
		return NewOAuthError(OAuthInvalidClient, "client authentication failed")
	case errors.Is(err, client.ErrCodeNotFound), errors.Is(err, client.ErrCodeAlreadyUsed), errors.Is(err, client.ErrCodeExpired):
		return NewOAuthError(OAuthInvalidGrant, "authorization code is invalid, expired, or already used")
	case errors.Is(err, client.ErrTokenNotFound), errors.Is(err, client.ErrTokenExpired), errors.Is(err, client.ErrTokenRevoked):
		return NewOAuthError(OAuthInvalidGrant, "token is invalid, expired, or revoked")
	case errors.Is(err, client.ErrDomainInvalidRedirectURI):
		return NewOAuthError(OAuthInvalidRequest, "redirect_uri does not match a registered URI")
	case errors.Is(err, client.ErrDomainInvalidScope):
		return NewOAuthError(OAuthInvalidScope, "requested scope is invalid or exceeds the client's allowed scopes")
	case errors.Is(err, client.ErrDomainInvalidGrantType), errors.Is(err, client.ErrInvalidClientConfig):
		return NewOAuthError(OAuthUnauthorizedClient, "client is not authorized to use this grant")
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, user.ErrUserNotFound):
		return NewOAuthError(OAuthAccessDenied, "resource owner credentials are invalid")
	case errors.Is(err, user.ErrAccountLocked):
		return NewOAuthError(OAuthAccessDenied, "account is locked")
	case errors.Is(err, user.ErrAccountInactive):
		return NewOAuthError(OAuthAccessDenied, "account is inactive")
	case errors.Is(err, rbac.ErrInsufficientScope):
		return NewOAuthError(OAuthInsufficientScope, "token does not carry the required scope")
	case errors.Is(err, rbac.ErrForbidden):
		return NewOAuthError(OAuthAccessDenied, "access denied")
	case errors.Is(err, consent.ErrConsentRequired):
		return NewOAuthError(OAuthAccessDenied, "user consent is required")
	default:
		return NewOAuthError(OAuthServerError, "")
	}
}

// FromDomainAdmin maps a domain sentinel error to the admin error code the
// management endpoints report.
func FromDomainAdmin(err error) *AdminError {
	var aerr *AdminError
	if errors.As(err, &aerr) {
		return aerr
	}

	switch {
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, client.ErrClientNotFound),
		errors.Is(err, rbac.ErrRoleNotFound),
		errors.Is(err, rbac.ErrPermissionNotFound),
		errors.Is(err, rbac.ErrGrantNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, backup.ErrBackupNotFound),
		errors.Is(err, audit.ErrEventNotFound):
		return NewAdminError(AdminNotFound, err.Error())
	case errors.Is(err, user.ErrUserAlreadyExists),
		errors.Is(err, client.ErrClientAlreadyExists),
		errors.Is(err, rbac.ErrRoleAlreadyExists),
		errors.Is(err, rbac.ErrPermissionExists),
		errors.Is(err, rbac.ErrGrantAlreadyExists):
		return NewAdminError(AdminConflict, err.Error())
	case errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrWeakPassword),
		errors.Is(err, client.ErrInvalidClientConfig),
		errors.Is(err, client.ErrDomainInvalidRedirectURI),
		errors.Is(err, client.ErrDomainInvalidScope),
		errors.Is(err, rbac.ErrInvalidPermissionType):
		return NewAdminError(AdminValidation, err.Error())
	case errors.Is(err, rbac.ErrForbidden), errors.Is(err, rbac.ErrInsufficientScope):
		return NewAdminError(AdminForbidden, err.Error())
	case errors.Is(err, user.ErrAccountLocked), errors.Is(err, user.ErrSelfTargeting):
		return NewAdminError(AdminForbidden, err.Error())
	case errors.Is(err, backup.ErrBackupInFlight), errors.Is(err, backup.ErrRestoreFailed):
		return NewAdminError(AdminConflict, err.Error())
	default:
		return NewAdminError(AdminInternal, "an internal error occurred")
	}
}
