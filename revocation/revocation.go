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

// Package revocation is Introspection & Revocation: RFC 7662 token
// introspection and RFC 7009 token revocation, plus the jti blacklist both
// rely on.
//
// Purpose: Authoritative active/inactive decision for any token, and the
// single place a token is retired before its natural expiry.
// Domain: OAuth2
// Invariants: An inactive token's introspection response is exactly
// {active:false}, regardless of why it is inactive.
package revocation

import (
	"context"
	"time"
)

// TokenType distinguishes which table a blacklist/introspection lookup
// targets.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access_token"
	TokenTypeRefresh TokenType = "refresh_token"
)

// Blacklist tracks jtis that must be treated as inactive regardless of
// their row state. It is also reused by clientauth for private_key_jwt
// assertion replay protection.
type Blacklist interface {
	// Add records jti as blacklisted for ttl (normally the token's
	// remaining lifetime).
	Add(ctx context.Context, jti string, tokenType TokenType, ttl time.Duration) error
	// Contains reports whether jti is currently blacklisted.
	Contains(ctx context.Context, jti string) (bool, error)
}

// IntrospectionResult is the RFC 7662 response body. Every field is
// omitted from the wire response when the token is inactive — see
// httpapi's introspection handler, which serializes only {active:false}
// in that case.
type IntrospectionResult struct {
	Active      bool     `json:"active"`
	Scope       string   `json:"scope,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	Username    string   `json:"username,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	TokenType   string   `json:"token_type,omitempty"`
	Subject     string   `json:"sub,omitempty"`
	Audience    string   `json:"aud,omitempty"`
	Issuer      string   `json:"iss,omitempty"`
	ExpiresAt   int64    `json:"exp,omitempty"`
	IssuedAt    int64    `json:"iat,omitempty"`
	JTI         string   `json:"jti,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Inactive is the canonical inactive introspection response — a fresh
// value every time so callers can't accidentally mutate a shared zero
// value and leak a stray field.
func Inactive() IntrospectionResult {
	return IntrospectionResult{Active: false}
}
