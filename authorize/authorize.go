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

// Package authorize is the Authorize Flow Engine: the /authorize
// state machine, START -> validate params -> AUTH -> CONSENT -> MINT_CODE.
//
// Purpose: Produce, for any incoming authorization request, exactly one of
// a direct error, a redirect carrying an error, a need for login or
// consent, or a minted authorization code.
// Domain: OAuth2
// Invariants: A parameter error detected before the redirect URI is
// confirmed never redirects. Every error detected afterward preserves
// state and is delivered to that redirect URI.
package authorize

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/consent"
	"github.com/ironforge-id/authcore/id"
)

// Outcome classifies what the caller must do next with a Decision.
type Outcome int

const (
	// OutcomeDirectError means the request failed before its redirect URI
	// was confirmed; render the error directly, never redirect.
	OutcomeDirectError Outcome = iota
	// OutcomeRedirectError means the request failed after its redirect URI
	// was confirmed; redirect to it with error/error_description/state.
	OutcomeRedirectError
	// OutcomeNeedLogin means there is no authenticated session; the caller
	// must redirect to an external login, preserving all params, and call
	// Continue again once a session exists.
	OutcomeNeedLogin
	// OutcomeNeedConsent means the user must approve the requested scopes
	// before a code can be minted.
	OutcomeNeedConsent
	// OutcomeCode means a code was minted; RedirectURL carries it.
	OutcomeCode
)

// Params is the raw, unauthenticated /authorize request.
type Params struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompt              string
}

// Decision is the engine's verdict for one step of the state machine.
type Decision struct {
	Outcome     Outcome
	RedirectURL string
	ErrorCode   string
	ErrorDesc   string
	Client      *client.Client
	Scopes      []string
}

// Engine implements the Authorize Flow Engine.
type Engine struct {
	clientRepo  client.ClientRepository
	codeRepo    client.AuthorizationCodeRepository
	consentSvc  *consent.Service
	auditLogger audit.Logger
	codeTTL     time.Duration
}

// NewEngine constructs the Authorize Flow Engine.
func NewEngine(
	clientRepo client.ClientRepository,
	codeRepo client.AuthorizationCodeRepository,
	consentSvc *consent.Service,
	auditLogger audit.Logger,
	codeTTL time.Duration,
) *Engine {
	return &Engine{clientRepo: clientRepo, codeRepo: codeRepo, consentSvc: consentSvc, auditLogger: auditLogger, codeTTL: codeTTL}
}

// Start runs the validate-params state. It resolves the client and
// redirect URI, then validates response_type, scope, and PKCE. A failure
// before the redirect URI is confirmed is OutcomeDirectError; afterward,
// OutcomeRedirectError.
func (e *Engine) Start(ctx context.Context, p Params) (*Decision, error) {
	if p.ClientID == "" {
		return directError("invalid_request", "client_id is required"), nil
	}
	c, err := e.clientRepo.GetByClientID(ctx, p.ClientID)
	if err != nil || !c.IsActive {
		return directError("invalid_request", "unknown client_id"), nil
	}

	if p.RedirectURI == "" || !c.ValidateRedirectURI(p.RedirectURI) {
		return directError("invalid_request", "redirect_uri is not registered for this client"), nil
	}
	if strings.Contains(p.RedirectURI, "#") {
		return directError("invalid_request", "redirect_uri must not contain a fragment"), nil
	}
	if err := validateRedirectScheme(p.RedirectURI, c); err != nil {
		return directError("invalid_request", err.Error()), nil
	}

	// From here on, every failure redirects back to the confirmed URI.
	if p.ResponseType != "code" {
		return e.redirectError(c, p, "unsupported_response_type", "only the 'code' response type is supported"), nil
	}
	if !c.SupportsGrant("authorization_code") {
		return e.redirectError(c, p, "unauthorized_client", "client is not authorized for the authorization_code grant"), nil
	}
	if !c.ValidateScope(p.Scope) {
		return e.redirectError(c, p, "invalid_scope", "requested scope exceeds the client's allowed scopes"), nil
	}
	if err := validatePKCE(c, p); err != nil {
		return e.redirectError(c, p, "invalid_request", err.Error()), nil
	}

	return &Decision{Outcome: OutcomeNeedLogin, Client: c, Scopes: splitScope(p.Scope)}, nil
}

// Continue runs the AUTH/CONSENT states once a session's userID is known.
// It never re-validates params; call Start first.
func (e *Engine) Continue(ctx context.Context, c *client.Client, p Params, userID string) (*Decision, error) {
	scopes := splitScope(p.Scope)

	if c.IsTrusted || !c.RequireConsent {
		return e.mintCode(ctx, c, p, userID, scopes)
	}

	covered, err := e.consentSvc.Check(ctx, userID, c.ClientID, scopes)
	if err != nil {
		return e.redirectError(c, p, "server_error", "failed to evaluate consent"), nil
	}
	if covered {
		return e.mintCode(ctx, c, p, userID, scopes)
	}

	if p.Prompt == "none" {
		e.auditLogger.Log(ctx, audit.Event{
			Action: audit.ActionAuthorizeDenied, ActorType: audit.ActorUser, ActorID: userID,
			ClientID: c.ClientID, UserID: userID, ResourceType: audit.ResourceToken, Success: false,
			ErrorMessage: "consent required but prompt=none",
		})
		return e.redirectError(c, p, "access_denied", "consent is required"), nil
	}

	return &Decision{Outcome: OutcomeNeedConsent, Client: c, Scopes: scopes}, nil
}

// CompleteConsent runs the MINT_CODE state once the user has approved the
// requested scopes at the consent screen.
func (e *Engine) CompleteConsent(ctx context.Context, c *client.Client, p Params, userID string, approvedScopes []string) (*Decision, error) {
	if _, err := e.consentSvc.Grant(ctx, userID, c.ClientID, approvedScopes); err != nil {
		return e.redirectError(c, p, "server_error", "failed to persist consent"), nil
	}
	return e.mintCode(ctx, c, p, userID, approvedScopes)
}

// DenyConsent runs the FAIL_REDIRECT(access_denied) transition when the
// user declines consent at the consent screen.
func (e *Engine) DenyConsent(ctx context.Context, c *client.Client, p Params, userID string) *Decision {
	e.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionAuthorizeDenied, ActorType: audit.ActorUser, ActorID: userID,
		ClientID: c.ClientID, UserID: userID, ResourceType: audit.ResourceToken, Success: false,
		ErrorMessage: "user denied consent",
	})
	return e.redirectError(c, p, "access_denied", "the user denied the authorization request")
}

func (e *Engine) mintCode(ctx context.Context, c *client.Client, p Params, userID string, scopes []string) (*Decision, error) {
	code, err := id.NewToken(32)
	if err != nil {
		return e.redirectError(c, p, "server_error", "failed to mint authorization code"), nil
	}

	record := &client.AuthorizationCode{
		ID:                  id.New(),
		Code:                code,
		ClientID:            c.ClientID,
		UserID:              userID,
		RedirectURI:         p.RedirectURI,
		Scope:               strings.Join(scopes, " "),
		State:               p.State,
		Nonce:               p.Nonce,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: p.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(e.codeTTL),
		CreatedAt:           time.Now(),
	}
	if err := e.codeRepo.Create(ctx, record); err != nil {
		return e.redirectError(c, p, "server_error", "failed to persist authorization code"), nil
	}

	e.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionAuthorizeGranted, ActorType: audit.ActorUser, ActorID: userID,
		ClientID: c.ClientID, UserID: userID, ResourceType: audit.ResourceToken, ResourceID: record.ID, Success: true,
	})

	redirectURL, err := appendQuery(p.RedirectURI, map[string]string{"code": code, "state": p.State})
	if err != nil {
		return e.redirectError(c, p, "server_error", "failed to build redirect URL"), nil
	}
	return &Decision{Outcome: OutcomeCode, RedirectURL: redirectURL, Client: c, Scopes: scopes}, nil
}

func (e *Engine) redirectError(c *client.Client, p Params, code, desc string) *Decision {
	redirectURL, err := appendQuery(p.RedirectURI, map[string]string{"error": code, "error_description": desc, "state": p.State})
	if err != nil {
		return directErrorDecision(code, desc)
	}
	return &Decision{Outcome: OutcomeRedirectError, RedirectURL: redirectURL, ErrorCode: code, ErrorDesc: desc, Client: c}
}

func directError(code, desc string) *Decision {
	return directErrorDecision(code, desc)
}

func directErrorDecision(code, desc string) *Decision {
	return &Decision{Outcome: OutcomeDirectError, ErrorCode: code, ErrorDesc: desc}
}

func appendQuery(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("authorize: parse redirect_uri: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func validateRedirectScheme(redirectURI string, c *client.Client) error {
	if !c.RequireHTTPSRedirect {
		return nil
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return errors.New("redirect_uri is not a valid URL")
	}
	if u.Scheme == "https" {
		return nil
	}
	if c.AllowLocalhostRedirect && isLoopbackHost(u.Hostname()) {
		return nil
	}
	return errors.New("redirect_uri must use https")
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// validatePKCE enforces PKCE policy: mandatory for public clients,
// conditional on require_pkce for confidential ones, method S256 only.
func validatePKCE(c *client.Client, p Params) error {
	required := c.ClientType == client.ClientTypePublic || c.RequirePKCE
	if !required && p.CodeChallenge == "" {
		return nil
	}
	if p.CodeChallenge == "" {
		return errors.New("code_challenge is required")
	}
	if p.CodeChallengeMethod != "S256" {
		return errors.New("code_challenge_method must be S256")
	}
	return nil
}

// VerifyPKCE reports whether verifier hashes to challenge under S256; the
// token endpoint calls it when an authorization code is redeemed.
func VerifyPKCE(challenge, verifier string) bool {
	sum := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(sum[:])
	return computed == challenge
}

func splitScope(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}
