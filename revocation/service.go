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

package revocation

import (
	"context"
	"time"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/tokencodec"
)

// Service implements token introspection and revocation.
//
// Purpose: Authoritative active/inactive decision, and the retirement
// path for access and refresh tokens ahead of their natural expiry.
// Domain: OAuth2
type Service struct {
	codec       *tokencodec.Codec
	accessRepo  client.AccessTokenRepository
	refreshRepo client.RefreshTokenRepository
	blacklist   Blacklist
	auditLogger audit.Logger
}

// NewService constructs the Introspection & Revocation service.
func NewService(
	codec *tokencodec.Codec,
	accessRepo client.AccessTokenRepository,
	refreshRepo client.RefreshTokenRepository,
	blacklist Blacklist,
	auditLogger audit.Logger,
) *Service {
	return &Service{codec: codec, accessRepo: accessRepo, refreshRepo: refreshRepo, blacklist: blacklist, auditLogger: auditLogger}
}

// Introspect implements RFC 7662. It tries the access-token interpretation
// first unless hint says "refresh_token", and never returns anything but
// {active:false} for a token that fails any check — expired, revoked,
// blacklisted, unknown, or malformed — callers never learn which.
func (s *Service) Introspect(ctx context.Context, token, hint string) IntrospectionResult {
	if hint == "refresh_token" {
		if r, ok := s.introspectRefresh(ctx, token); ok {
			return r
		}
		if r, ok := s.introspectAccess(ctx, token); ok {
			return r
		}
		return Inactive()
	}
	if r, ok := s.introspectAccess(ctx, token); ok {
		return r
	}
	if r, ok := s.introspectRefresh(ctx, token); ok {
		return r
	}
	return Inactive()
}

func (s *Service) introspectAccess(ctx context.Context, token string) (IntrospectionResult, bool) {
	claims, _, err := s.codec.ParseAccessToken(token)
	if err != nil {
		return IntrospectionResult{}, false
	}
	blacklisted, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil || blacklisted {
		return IntrospectionResult{}, false
	}
	row, err := s.accessRepo.GetByTokenHash(ctx, tokencodec.Hash(token))
	if err != nil || row.IsRevoked || row.IsExpired() {
		return IntrospectionResult{}, false
	}

	return IntrospectionResult{
		Active:      true,
		Scope:       claims.Scope,
		ClientID:    claims.ClientID,
		UserID:      row.UserID,
		TokenType:   "Bearer",
		Subject:     claims.Subject,
		Audience:    firstAudience(claims.Audience),
		Issuer:      claims.Issuer,
		ExpiresAt:   claims.ExpiresAt.Unix(),
		IssuedAt:    claims.IssuedAt.Unix(),
		JTI:         claims.ID,
		Permissions: claims.Permissions,
	}, true
}

func (s *Service) introspectRefresh(ctx context.Context, token string) (IntrospectionResult, bool) {
	claims, _, err := s.codec.ParseRefreshToken(token)
	if err != nil {
		return IntrospectionResult{}, false
	}
	blacklisted, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil || blacklisted {
		return IntrospectionResult{}, false
	}
	row, err := s.refreshRepo.GetByTokenHash(ctx, tokencodec.Hash(token))
	if err != nil || row.IsRevoked || row.IsExpired() {
		return IntrospectionResult{}, false
	}

	return IntrospectionResult{
		Active:    true,
		Scope:     claims.Scope,
		ClientID:  claims.ClientID,
		UserID:    row.UserID,
		TokenType: "refresh_token",
		Subject:   claims.Subject,
		Audience:  firstAudience(claims.Audience),
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt.Unix(),
		IssuedAt:  claims.IssuedAt.Unix(),
		JTI:       claims.ID,
	}, true
}

// Revoke implements RFC 7009. It always returns nil (callers always answer
// 200): an unknown token is a no-op, and failed repository or blacklist
// writes are not reported.
func (s *Service) Revoke(ctx context.Context, clientID, token, hint string) error {
	if hint == "refresh_token" {
		if s.revokeRefresh(ctx, clientID, token) {
			return nil
		}
		s.revokeAccess(ctx, clientID, token)
		return nil
	}
	if s.revokeAccess(ctx, clientID, token) {
		return nil
	}
	s.revokeRefresh(ctx, clientID, token)
	return nil
}

// revokeAccess revokes token as an access token, cascading to its sibling
// refresh token (if any). Reports whether token was recognized as one.
func (s *Service) revokeAccess(ctx context.Context, clientID, token string) bool {
	claims, _, err := s.codec.ParseAccessToken(token)
	if err != nil {
		return false
	}
	hash := tokencodec.Hash(token)
	row, err := s.accessRepo.GetByTokenHash(ctx, hash)
	if err != nil {
		return false
	}

	_ = s.accessRepo.Revoke(ctx, hash)
	ttl := time.Until(claims.ExpiresAt.Time)
	_ = s.blacklist.Add(ctx, claims.ID, TokenTypeAccess, ttl)

	if sibling, err := s.refreshRepo.GetByAccessTokenID(ctx, row.ID); err == nil {
		_ = s.refreshRepo.Revoke(ctx, sibling.TokenHash)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionTokenRevoked, ActorType: audit.ActorClient, ActorID: clientID,
		ClientID: clientID, UserID: row.UserID, ResourceType: audit.ResourceToken, ResourceID: claims.ID, Success: true,
	})
	return true
}

// revokeRefresh revokes token as a refresh token, cascading to every access
// token of the same (user, client) issued at or after the refresh token —
// an approximation of the exact descendant chain that leaves any older,
// independent session's access tokens intact.
func (s *Service) revokeRefresh(ctx context.Context, clientID, token string) bool {
	claims, _, err := s.codec.ParseRefreshToken(token)
	if err != nil {
		return false
	}
	hash := tokencodec.Hash(token)
	row, err := s.refreshRepo.GetByTokenHash(ctx, hash)
	if err != nil {
		return false
	}

	_ = s.refreshRepo.Revoke(ctx, hash)
	ttl := time.Until(claims.ExpiresAt.Time)
	_ = s.blacklist.Add(ctx, claims.ID, TokenTypeRefresh, ttl)
	_ = s.accessRepo.RevokeByClientAndUser(ctx, row.ClientID, row.UserID, row.CreatedAt)

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionTokenRevoked, ActorType: audit.ActorClient, ActorID: clientID,
		ClientID: clientID, UserID: row.UserID, ResourceType: audit.ResourceToken, ResourceID: claims.ID, Success: true,
	})
	return true
}

// RevokeSession revokes one of a user's sessions by its refresh-token row
// id: the refresh token is revoked and its access tokens cascade exactly
// as in revokeRefresh. A session id that does not exist or belongs to
// another user returns client.ErrTokenNotFound either way, so callers
// can't distinguish the two.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	row, err := s.refreshRepo.GetByID(ctx, sessionID)
	if err != nil || row.UserID != userID {
		return client.ErrTokenNotFound
	}

	_ = s.refreshRepo.Revoke(ctx, row.TokenHash)
	_ = s.accessRepo.RevokeByClientAndUser(ctx, row.ClientID, row.UserID, row.CreatedAt)

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionSessionRevoked, ActorType: audit.ActorUser, ActorID: userID,
		ClientID: row.ClientID, UserID: userID, ResourceType: audit.ResourceSession, ResourceID: sessionID, Success: true,
	})
	return nil
}

func firstAudience(aud []string) string {
	if len(aud) == 0 {
		return ""
	}
	return aud[0]
}
