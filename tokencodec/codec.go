// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package tokencodec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ironforge-id/authcore/crypto"
	"github.com/ironforge-id/authcore/id"
)

// Codec wires the Crypto/Key Service to claim-set construction: it mints
// signed JWTs and can parse them back, without callers touching jwt.Token
// directly.
type Codec struct {
	keys     *crypto.Manager
	issuer   string
	audience string
}

// New creates a Codec bound to a signing Manager, issuer and audience (both
// read from JWT_ISSUER / JWT_AUDIENCE at startup).
func New(keys *crypto.Manager, issuer, audience string) *Codec {
	return &Codec{keys: keys, issuer: issuer, audience: audience}
}

// Minted is the result of minting one access or refresh token: the signed
// JWT, its jti, its storage hash and its expiry.
type Minted struct {
	Token     string
	JTI       string
	TokenHash string
	ExpiresAt time.Time
}

// MintAccessToken signs a new access token JWT.
func (c *Codec) MintAccessToken(subject, clientID, scope string, permissions []string, lifetime time.Duration) (Minted, error) {
	jti := id.New()
	iat := time.Now()
	claims := NewAccessClaims(BuildParams{
		Issuer:      c.issuer,
		Audience:    c.audience,
		Subject:     subject,
		ClientID:    clientID,
		Scope:       scope,
		Permissions: permissions,
		Lifetime:    lifetime,
		JTI:         jti,
		IssuedAt:    iat,
	})
	signed, err := c.keys.Sign(claims)
	if err != nil {
		return Minted{}, fmt.Errorf("tokencodec: sign access token: %w", err)
	}
	return Minted{Token: signed, JTI: jti, TokenHash: Hash(signed), ExpiresAt: claims.ExpiresAt.Time}, nil
}

// MintRefreshToken signs a new refresh token JWT.
func (c *Codec) MintRefreshToken(subject, clientID, scope string, lifetime time.Duration) (Minted, error) {
	jti := id.New()
	iat := time.Now()
	claims := NewRefreshClaims(BuildParams{
		Issuer:   c.issuer,
		Audience: c.audience,
		Subject:  subject,
		ClientID: clientID,
		Scope:    scope,
		Lifetime: lifetime,
		JTI:      jti,
		IssuedAt: iat,
	})
	signed, err := c.keys.Sign(claims)
	if err != nil {
		return Minted{}, fmt.Errorf("tokencodec: sign refresh token: %w", err)
	}
	return Minted{Token: signed, JTI: jti, TokenHash: Hash(signed), ExpiresAt: claims.ExpiresAt.Time}, nil
}

// MintIDToken signs a new OIDC id_token.
func (c *Codec) MintIDToken(claims IDClaims, lifetime time.Duration) (string, error) {
	iat := time.Now()
	claims.Issuer = c.issuer
	claims.Audience = jwt.ClaimStrings{c.audience}
	claims.IssuedAt = jwt.NewNumericDate(iat)
	claims.ExpiresAt = jwt.NewNumericDate(iat.Add(lifetime))
	if claims.ID == "" {
		claims.ID = id.New()
	}
	return c.keys.Sign(claims)
}

// ParseAccessToken verifies and parses an access token JWT, returning the
// kid that signed it.
func (c *Codec) ParseAccessToken(raw string) (AccessClaims, string, error) {
	var claims AccessClaims
	kid, err := c.keys.Verify(raw, &claims)
	return claims, kid, err
}

// ParseRefreshToken verifies and parses a refresh token JWT.
func (c *Codec) ParseRefreshToken(raw string) (RefreshClaims, string, error) {
	var claims RefreshClaims
	kid, err := c.keys.Verify(raw, &claims)
	return claims, kid, err
}
