// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

// Package tokencodec is the Token Codec: it builds JWT claim sets for
// access, refresh and id tokens and computes the storage hash every
// persisted token is keyed by.
//
// Purpose: Single place that knows the wire shape of every token kind.
// Domain: OAuth2/OIDC
// Invariants: Only sha256(token) is ever persisted; the plaintext token is
// never written to storage.
package tokencodec

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the claim set of an access token JWT.
type AccessClaims struct {
	jwt.RegisteredClaims
	ClientID    string   `json:"client_id"`
	Scope       string   `json:"scope"`
	Permissions []string `json:"permissions,omitempty"`
	TokenUse    string   `json:"token_use"`
}

// RefreshClaims is the claim set of a refresh token JWT. Clients treat
// refresh tokens opaquely; the server binds them to a DB row by jti.
type RefreshClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	TokenUse string `json:"token_use"`
}

// IDClaims is the claim set of an OIDC id_token.
type IDClaims struct {
	jwt.RegisteredClaims
	Nonce         string `json:"nonce,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Locale        string `json:"locale,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
}

const (
	TokenUseAccess  = "access_token"
	TokenUseRefresh = "refresh_token"
)

// BuildParams carries the common fields every claim-set builder needs.
type BuildParams struct {
	Issuer      string
	Audience    string
	Subject     string // user id, or client id for client_credentials
	ClientID    string
	Scope       string
	Permissions []string
	Lifetime    time.Duration
	JTI         string
	IssuedAt    time.Time
}

// NewAccessClaims builds the claim set for an access token: iss, aud, sub,
// iat, exp, jti, client_id, scope (space-delimited) and an optional frozen
// permissions array.
func NewAccessClaims(p BuildParams) AccessClaims {
	iat := p.IssuedAt
	if iat.IsZero() {
		iat = time.Now()
	}
	return AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Audience:  jwt.ClaimStrings{p.Audience},
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(p.Lifetime)),
			ID:        p.JTI,
		},
		ClientID:    p.ClientID,
		Scope:       p.Scope,
		Permissions: p.Permissions,
		TokenUse:    TokenUseAccess,
	}
}

// NewRefreshClaims builds the claim set for a refresh token.
func NewRefreshClaims(p BuildParams) RefreshClaims {
	iat := p.IssuedAt
	if iat.IsZero() {
		iat = time.Now()
	}
	return RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Audience:  jwt.ClaimStrings{p.Audience},
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(p.Lifetime)),
			ID:        p.JTI,
		},
		ClientID: p.ClientID,
		Scope:    p.Scope,
		TokenUse: TokenUseRefresh,
	}
}

// Hash computes the storage key for a token: sha256(token), hex-encoded.
// This is the only representation of a token ever written to the database.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
