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

// Package tokenendpoint is the Token Endpoint Engine: it dispatches
// POST /token by grant_type and mints the resulting token set.
//
// Purpose: Single place every grant type turns a presented credential
// (code, refresh token, or client credential) into a fresh token set.
// Domain: OAuth2
// Invariants: A refresh token presented twice revokes its entire rotation
// family. An authorization code is redeemed at most once.
package tokenendpoint

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/authorize"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/clientauth"
	"github.com/ironforge-id/authcore/id"
	"github.com/ironforge-id/authcore/rbac"
	"github.com/ironforge-id/authcore/tokencodec"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// Request is the parsed application/x-www-form-urlencoded POST /token body.
type Request struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
}

// Response is the RFC 6749 §5.1 token response.
type Response struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Engine implements the Token Endpoint Engine.
type Engine struct {
	authenticator *clientauth.Authenticator
	codeRepo      client.AuthorizationCodeRepository
	accessRepo    client.AccessTokenRepository
	refreshRepo   client.RefreshTokenRepository
	codec         *tokencodec.Codec
	decider       *rbac.Decider
	auditLogger   audit.Logger

	defaultAccessTTL  time.Duration
	defaultRefreshTTL time.Duration
	defaultIDTTL      time.Duration
}

// NewEngine constructs the Token Endpoint Engine.
func NewEngine(
	authenticator *clientauth.Authenticator,
	codeRepo client.AuthorizationCodeRepository,
	accessRepo client.AccessTokenRepository,
	refreshRepo client.RefreshTokenRepository,
	codec *tokencodec.Codec,
	decider *rbac.Decider,
	auditLogger audit.Logger,
	defaultAccessTTL, defaultRefreshTTL, defaultIDTTL time.Duration,
) *Engine {
	return &Engine{
		authenticator: authenticator, codeRepo: codeRepo, accessRepo: accessRepo, refreshRepo: refreshRepo,
		codec: codec, decider: decider, auditLogger: auditLogger,
		defaultAccessTTL: defaultAccessTTL, defaultRefreshTTL: defaultRefreshTTL, defaultIDTTL: defaultIDTTL,
	}
}

// Handle authenticates the client and dispatches by grant_type.
func (e *Engine) Handle(ctx context.Context, creds clientauth.Credentials, req Request) (*Response, error) {
	c, err := e.authenticator.Authenticate(ctx, creds, req.GrantType == GrantAuthorizationCode)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidClient, "client authentication failed")
	}
	if !c.SupportsGrant(req.GrantType) {
		return nil, apierror.NewOAuthError(apierror.OAuthUnauthorizedClient, "client is not authorized for this grant type")
	}

	switch req.GrantType {
	case GrantAuthorizationCode:
		return e.handleAuthorizationCode(ctx, c, req)
	case GrantRefreshToken:
		return e.handleRefreshToken(ctx, c, req)
	case GrantClientCredentials:
		return e.handleClientCredentials(ctx, c, req)
	default:
		return nil, apierror.NewOAuthError(apierror.OAuthUnsupportedGrantType, "unsupported grant_type")
	}
}

func (e *Engine) handleAuthorizationCode(ctx context.Context, c *client.Client, req Request) (*Response, error) {
	if req.Code == "" {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidRequest, "code is required")
	}
	record, err := e.codeRepo.GetByCode(ctx, req.Code)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "authorization code is invalid")
	}
	if record.ClientID != c.ClientID {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "authorization code was not issued to this client")
	}
	if record.IsUsed || record.IsExpired() {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "authorization code is used or expired")
	}
	if record.RedirectURI != req.RedirectURI {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "redirect_uri does not match the authorization request")
	}
	if err := verifyCodePKCE(record, req.CodeVerifier); err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, err.Error())
	}

	// Single-use enforcement: the update-where-not-used must be atomic
	// with the read above, or two concurrent redemptions could both win.
	if err := e.codeRepo.MarkAsUsed(ctx, req.Code); err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "authorization code was already redeemed")
	}

	permissions, err := e.decider.EffectivePermissions(ctx, record.UserID)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to resolve permissions")
	}

	accessTTL := resolveLifetime(c.AccessTokenLifetime, e.defaultAccessTTL)
	refreshTTL := resolveLifetime(c.RefreshTokenLifetime, e.defaultRefreshTTL)

	access, err := e.codec.MintAccessToken(record.UserID, c.ClientID, record.Scope, permissions, accessTTL)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to mint access token")
	}
	refresh, err := e.codec.MintRefreshToken(record.UserID, c.ClientID, record.Scope, refreshTTL)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to mint refresh token")
	}

	if err := e.accessRepo.Create(ctx, &client.AccessToken{
		ID: id.New(), TokenHash: access.TokenHash, JTI: access.JTI, ClientID: c.ClientID, UserID: record.UserID,
		Scope: record.Scope, TokenType: "Bearer", ExpiresAt: access.ExpiresAt, CreatedAt: time.Now(),
	}); err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to persist access token")
	}
	accessRow, err := e.accessRepo.GetByTokenHash(ctx, access.TokenHash)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to load minted access token")
	}
	if err := e.refreshRepo.Create(ctx, &client.RefreshToken{
		ID: id.New(), TokenHash: refresh.TokenHash, AccessTokenID: accessRow.ID, ClientID: c.ClientID, UserID: record.UserID,
		Scope: record.Scope, ExpiresAt: refresh.ExpiresAt, CreatedAt: time.Now(),
	}); err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to persist refresh token")
	}

	var idToken string
	if hasScope(record.Scope, "openid") {
		idToken, err = e.codec.MintIDToken(tokencodec.IDClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: record.UserID},
			Nonce:            record.Nonce,
		}, resolveLifetime(c.IDTokenLifetime, e.defaultIDTTL))
		if err != nil {
			return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to mint id_token")
		}
	}

	e.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionTokenIssued, ActorType: audit.ActorUser, ActorID: record.UserID,
		ClientID: c.ClientID, UserID: record.UserID, ResourceType: audit.ResourceToken, ResourceID: access.JTI, Success: true,
	})

	return &Response{
		AccessToken: access.Token, TokenType: "Bearer", ExpiresIn: int64(accessTTL.Seconds()),
		RefreshToken: refresh.Token, IDToken: idToken, Scope: record.Scope,
	}, nil
}

func (e *Engine) handleRefreshToken(ctx context.Context, c *client.Client, req Request) (*Response, error) {
	if req.RefreshToken == "" {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidRequest, "refresh_token is required")
	}
	hash := tokencodec.Hash(req.RefreshToken)
	row, err := e.refreshRepo.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "refresh token is invalid")
	}
	if row.ClientID != c.ClientID {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "refresh token was not issued to this client")
	}
	if row.IsRevoked {
		// Reuse of an already-rotated token: burn the whole family and
		// every access token descended from it. The presented token's
		// issue time bounds the access-token sweep so an unrelated,
		// older session with the same client survives.
		parent := row.ID
		if row.ParentID != "" {
			parent = row.ParentID
		}
		_ = e.refreshRepo.RevokeFamily(ctx, parent)
		_ = e.accessRepo.RevokeByClientAndUser(ctx, row.ClientID, row.UserID, row.CreatedAt)
		e.auditLogger.Log(ctx, audit.Event{
			Action: audit.ActionTokenReuseDetect, ActorType: audit.ActorClient, ActorID: c.ClientID,
			ClientID: c.ClientID, UserID: row.UserID, ResourceType: audit.ResourceToken, ResourceID: row.ID, Success: false,
		})
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "refresh token has already been used")
	}
	if row.IsExpired() {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidGrant, "refresh token has expired")
	}

	scope := row.Scope
	if req.Scope != "" {
		if !isScopeSubset(req.Scope, row.Scope) {
			return nil, apierror.NewOAuthError(apierror.OAuthInvalidScope, "requested scope exceeds the original grant")
		}
		scope = req.Scope
	}

	permissions, err := e.decider.EffectivePermissions(ctx, row.UserID)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to resolve permissions")
	}

	accessTTL := resolveLifetime(c.AccessTokenLifetime, e.defaultAccessTTL)
	refreshTTL := resolveLifetime(c.RefreshTokenLifetime, e.defaultRefreshTTL)

	access, err := e.codec.MintAccessToken(row.UserID, c.ClientID, scope, permissions, accessTTL)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to mint access token")
	}
	newRefresh, err := e.codec.MintRefreshToken(row.UserID, c.ClientID, scope, refreshTTL)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to mint refresh token")
	}

	if err := e.accessRepo.Create(ctx, &client.AccessToken{
		ID: id.New(), TokenHash: access.TokenHash, JTI: access.JTI, ClientID: c.ClientID, UserID: row.UserID,
		Scope: scope, TokenType: "Bearer", ExpiresAt: access.ExpiresAt, CreatedAt: time.Now(),
	}); err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to persist access token")
	}
	accessRow, err := e.accessRepo.GetByTokenHash(ctx, access.TokenHash)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to load minted access token")
	}
	if err := e.refreshRepo.Create(ctx, &client.RefreshToken{
		ID: id.New(), TokenHash: newRefresh.TokenHash, ParentID: row.ID, AccessTokenID: accessRow.ID,
		ClientID: c.ClientID, UserID: row.UserID, Scope: scope, ExpiresAt: newRefresh.ExpiresAt, CreatedAt: time.Now(),
	}); err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to persist refresh token")
	}
	if err := e.refreshRepo.Revoke(ctx, hash); err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to rotate refresh token")
	}

	e.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionTokenRefreshed, ActorType: audit.ActorUser, ActorID: row.UserID,
		ClientID: c.ClientID, UserID: row.UserID, ResourceType: audit.ResourceToken, ResourceID: access.JTI, Success: true,
	})

	return &Response{
		AccessToken: access.Token, TokenType: "Bearer", ExpiresIn: int64(accessTTL.Seconds()),
		RefreshToken: newRefresh.Token, Scope: scope,
	}, nil
}

func (e *Engine) handleClientCredentials(ctx context.Context, c *client.Client, req Request) (*Response, error) {
	if c.ClientType == client.ClientTypePublic {
		return nil, apierror.NewOAuthError(apierror.OAuthUnauthorizedClient, "public clients cannot use client_credentials")
	}
	if req.Scope != "" && !c.ValidateScope(req.Scope) {
		return nil, apierror.NewOAuthError(apierror.OAuthInvalidScope, "requested scope exceeds the client's allowed scopes")
	}
	scope := req.Scope
	if scope == "" {
		scope = strings.Join(c.AllowedScopes, " ")
	}

	accessTTL := resolveLifetime(c.AccessTokenLifetime, e.defaultAccessTTL)
	access, err := e.codec.MintAccessToken(c.ClientID, c.ClientID, scope, nil, accessTTL)
	if err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to mint access token")
	}
	if err := e.accessRepo.Create(ctx, &client.AccessToken{
		ID: id.New(), TokenHash: access.TokenHash, JTI: access.JTI, ClientID: c.ClientID, UserID: "",
		Scope: scope, TokenType: "Bearer", ExpiresAt: access.ExpiresAt, CreatedAt: time.Now(),
	}); err != nil {
		return nil, apierror.NewOAuthError(apierror.OAuthServerError, "failed to persist access token")
	}

	e.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionTokenIssued, ActorType: audit.ActorClient, ActorID: c.ClientID,
		ClientID: c.ClientID, ResourceType: audit.ResourceToken, ResourceID: access.JTI, Success: true,
	})

	return &Response{AccessToken: access.Token, TokenType: "Bearer", ExpiresIn: int64(accessTTL.Seconds()), Scope: scope}, nil
}

func verifyCodePKCE(record *client.AuthorizationCode, verifier string) error {
	if record.CodeChallenge == "" {
		if verifier != "" {
			return errors.New("code_verifier supplied but no code_challenge was recorded")
		}
		return nil
	}
	if verifier == "" {
		return errors.New("code_verifier is required")
	}
	if !authorize.VerifyPKCE(record.CodeChallenge, verifier) {
		return errors.New("code_verifier does not match code_challenge")
	}
	return nil
}

func resolveLifetime(perClientSeconds int, fallback time.Duration) time.Duration {
	if perClientSeconds > 0 {
		return time.Duration(perClientSeconds) * time.Second
	}
	return fallback
}

func hasScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}

func isScopeSubset(requested, original string) bool {
	allowed := make(map[string]bool)
	for _, s := range strings.Fields(original) {
		allowed[s] = true
	}
	for _, s := range strings.Fields(requested) {
		if !allowed[s] {
			return false
		}
	}
	return true
}

