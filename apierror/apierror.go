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

// Package apierror translates domain sentinel errors into the two response
// shapes httpapi exposes: the OAuth2 `{error, error_description}` body used
// by /authorize, /token, /introspect, /revoke, and the admin
// `{success, data|error}` envelope used by every other endpoint.
//
// Purpose: Single place errors are mapped to wire shape and HTTP status.
// Domain: Ambient
package apierror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// OAuth2 error kinds, per RFC 6749 §5.2 and RFC 6750 §3.1.
const (
	OAuthInvalidRequest          = "invalid_request"
	OAuthInvalidClient           = "invalid_client"
	OAuthInvalidGrant            = "invalid_grant"
	OAuthInvalidScope            = "invalid_scope"
	OAuthUnauthorizedClient      = "unauthorized_client"
	OAuthUnsupportedGrantType    = "unsupported_grant_type"
	OAuthAccessDenied            = "access_denied"
	OAuthInsufficientScope       = "insufficient_scope"
	OAuthServerError             = "server_error"
	OAuthTemporarilyUnavailable  = "temporarily_unavailable"
)

// Admin error codes used in the `{success:false, error:{code,...}}` envelope.
const (
	AdminValidation    = "validation"
	AdminNotFound      = "not_found"
	AdminConflict      = "conflict"
	AdminForbidden     = "forbidden"
	AdminRateLimited   = "rate_limited"
	AdminConfiguration = "configuration"
	AdminInternal      = "internal"
)

// OAuthError is the `{error, error_description}` body returned by every
// OAuth2/OIDC endpoint. It satisfies the error interface so it can be
// passed around like any other Go error and later unwrapped at the
// response boundary.
type OAuthError struct {
	Kind        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`

	// Status is the HTTP status code to send; it is never serialized.
	Status int `json:"-"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Kind + ": " + e.Description
	}
	return e.Kind
}

// NewOAuthError builds an OAuthError with the conventional status for its
// kind. invalid_client responses get a WWW-Authenticate challenge written
// by WriteOAuthError.
func NewOAuthError(kind, description string) *OAuthError {
	return &OAuthError{Kind: kind, Description: description, Status: statusForOAuthKind(kind)}
}

func statusForOAuthKind(kind string) int {
	switch kind {
	case OAuthInvalidClient:
		return http.StatusUnauthorized
	case OAuthAccessDenied, OAuthInsufficientScope:
		return http.StatusForbidden
	case OAuthServerError:
		return http.StatusInternalServerError
	case OAuthTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// AdminError is the `{success:false, error:{code, message, details}}` body
// returned by every admin/management endpoint.
type AdminError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	Status int `json:"-"`
}

func (e *AdminError) Error() string {
	return e.Code + ": " + e.Message
}

// NewAdminError builds an AdminError with the conventional status for its
// code.
func NewAdminError(code, message string) *AdminError {
	return &AdminError{Code: code, Message: message, Status: statusForAdminCode(code)}
}

// WithDetails attaches structured validation detail to an AdminError.
func (e *AdminError) WithDetails(details any) *AdminError {
	e.Details = details
	return e
}

func statusForAdminCode(code string) int {
	switch code {
	case AdminValidation:
		return http.StatusBadRequest
	case AdminNotFound:
		return http.StatusNotFound
	case AdminConflict:
		return http.StatusConflict
	case AdminForbidden:
		return http.StatusForbidden
	case AdminRateLimited:
		return http.StatusTooManyRequests
	case AdminConfiguration, AdminInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// adminEnvelope is the success/error wrapper every admin response shares.
type adminEnvelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Pagination any    `json:"pagination,omitempty"`
	Error      any    `json:"error,omitempty"`
}

// WriteOAuthError serializes an error as the OAuth2 {error,
// error_description} body. Any error not already an *OAuthError is wrapped
// as server_error so internals never leak to the client; it is logged with
// full context first.
func WriteOAuthError(w http.ResponseWriter, err error) {
	var oerr *OAuthError
	if !errors.As(err, &oerr) {
		slog.Error("unmapped error reached OAuth2 boundary", "error", err)
		oerr = NewOAuthError(OAuthServerError, "")
	}
	if oerr.Kind == OAuthInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	}
	writeJSON(w, oerr.Status, oerr)
}

// WriteAdminError serializes an error as the admin {success:false,
// error:{...}} envelope.
func WriteAdminError(w http.ResponseWriter, err error) {
	var aerr *AdminError
	if !errors.As(err, &aerr) {
		slog.Error("unmapped error reached admin boundary", "error", err)
		aerr = NewAdminError(AdminInternal, "an internal error occurred")
	}
	writeJSON(w, aerr.Status, adminEnvelope{Success: false, Error: aerr})
}

// WriteAdminSuccess serializes data as the admin {success:true, data, ...}
// envelope.
func WriteAdminSuccess(w http.ResponseWriter, status int, data any, message string, pagination any) {
	writeJSON(w, status, adminEnvelope{Success: true, Data: data, Message: message, Pagination: pagination})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	enc, err := json.Marshal(body)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(enc); err != nil {
		slog.Error("failed to write HTTP response", "error", err)
	}
}
