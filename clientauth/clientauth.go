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

// Package clientauth is the Client Authenticator: it authenticates the
// OAuth2 client making a request to any endpoint that requires one,
// selecting among client_secret_basic, client_secret_post, private_key_jwt
// and none per the client's configured token-endpoint-auth method.
//
// Purpose: Single place every OAuth endpoint defers client authentication
// to.
// Domain: OAuth2
// Invariants: The selected method must be in the client's configured
// method. Failure is always reported as invalid_client (HTTP 401).
package clientauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/revocation"
)

// ErrAuthenticationFailed is returned for any client authentication
// failure; callers map it to invalid_client.
var ErrAuthenticationFailed = errors.New("clientauth: client authentication failed")

// Credentials is the client authentication material extracted from an
// incoming request, before it is matched against a client's configured
// method.
type Credentials struct {
	ClientID            string
	ClientSecret        string
	ClientAssertionType string
	ClientAssertion     string
	HasBasicAuth        bool
	HasBodyCredentials  bool
}

// ExtractCredentials reads client credentials from an
// application/x-www-form-urlencoded request: HTTP Basic header, or
// client_id/client_secret/client_assertion(_type) form fields. The caller
// must have already called r.ParseForm().
func ExtractCredentials(r *http.Request) Credentials {
	var c Credentials
	if id, secret, ok := r.BasicAuth(); ok {
		c.ClientID = id
		c.ClientSecret = secret
		c.HasBasicAuth = true
		return c
	}

	c.ClientID = r.PostFormValue("client_id")
	c.ClientSecret = r.PostFormValue("client_secret")
	c.ClientAssertionType = r.PostFormValue("client_assertion_type")
	c.ClientAssertion = r.PostFormValue("client_assertion")
	if c.ClientSecret != "" {
		c.HasBodyCredentials = true
	}
	return c
}

const clientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Authenticator implements the Client Authenticator.
type Authenticator struct {
	clientRepo       client.ClientRepository
	clientService    *client.Service
	jwks             JWKSFetcher
	blacklist        revocation.Blacklist
	tokenEndpointURL string
}

// JWKSFetcher retrieves (and caches) the JSON Web Key Set published at a
// client's jwks_uri, used to verify private_key_jwt assertions.
type JWKSFetcher interface {
	Fetch(ctx context.Context, jwksURI string) (*JSONWebKeySet, error)
}

// NewAuthenticator constructs the Client Authenticator. tokenEndpointURL is
// the absolute URL private_key_jwt assertions must set as `aud`.
func NewAuthenticator(
	clientRepo client.ClientRepository,
	clientService *client.Service,
	jwks JWKSFetcher,
	blacklist revocation.Blacklist,
	tokenEndpointURL string,
) *Authenticator {
	return &Authenticator{
		clientRepo:       clientRepo,
		clientService:    clientService,
		jwks:             jwks,
		blacklist:        blacklist,
		tokenEndpointURL: tokenEndpointURL,
	}
}

// Authenticate resolves and verifies the client for an incoming request by
// its configured auth method. allowNone permits an unauthenticated public
// client to pass (used by /authorize, which never requires a secret).
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials, allowNone bool) (*client.Client, error) {
	switch {
	case creds.ClientAssertion != "":
		return a.authenticatePrivateKeyJWT(ctx, creds)
	case creds.HasBasicAuth:
		return a.authenticateSecret(ctx, creds, client.AuthMethodClientSecretBasic)
	case creds.HasBodyCredentials:
		return a.authenticateSecret(ctx, creds, client.AuthMethodClientSecretPost)
	case creds.ClientID != "":
		return a.authenticateNone(ctx, creds, allowNone)
	default:
		return nil, ErrAuthenticationFailed
	}
}

func (a *Authenticator) authenticateSecret(ctx context.Context, creds Credentials, method string) (*client.Client, error) {
	c, err := a.clientRepo.GetByClientID(ctx, creds.ClientID)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if c.TokenEndpointAuthMethod != method {
		return nil, ErrAuthenticationFailed
	}
	if !a.clientService.VerifySecret(c, creds.ClientSecret) {
		return nil, ErrAuthenticationFailed
	}
	return c, nil
}

func (a *Authenticator) authenticateNone(ctx context.Context, creds Credentials, allowNone bool) (*client.Client, error) {
	c, err := a.clientRepo.GetByClientID(ctx, creds.ClientID)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if c.ClientType != client.ClientTypePublic || c.TokenEndpointAuthMethod != client.AuthMethodNone {
		return nil, ErrAuthenticationFailed
	}
	if !allowNone {
		return nil, ErrAuthenticationFailed
	}
	return c, nil
}

func (a *Authenticator) authenticatePrivateKeyJWT(ctx context.Context, creds Credentials) (*client.Client, error) {
	if creds.ClientAssertionType != clientAssertionTypeJWTBearer {
		return nil, ErrAuthenticationFailed
	}

	issuer, err := unverifiedIssuer(creds.ClientAssertion)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	c, err := a.clientRepo.GetByClientID(ctx, issuer)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if c.TokenEndpointAuthMethod != client.AuthMethodPrivateKeyJWT || c.JWKSURI == "" {
		return nil, ErrAuthenticationFailed
	}

	keys, err := a.jwks.Fetch(ctx, c.JWKSURI)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	jti, err := verifyClientAssertion(creds.ClientAssertion, keys, c.ClientID, a.tokenEndpointURL)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	if a.blacklist != nil && jti != "" {
		used, err := a.blacklist.Contains(ctx, jti)
		if err != nil || used {
			return nil, ErrAuthenticationFailed
		}
		_ = a.blacklist.Add(ctx, jti, revocation.TokenType("client_assertion"), 10*time.Minute)
	}

	return c, nil
}

func unverifiedIssuer(assertion string) (string, error) {
	parts := strings.Split(assertion, ".")
	if len(parts) != 3 {
		return "", ErrAuthenticationFailed
	}
	claims, err := decodeUnverifiedClaims(parts[1])
	if err != nil {
		return "", err
	}
	iss, _ := claims["iss"].(string)
	if iss == "" {
		return "", ErrAuthenticationFailed
	}
	return iss, nil
}
