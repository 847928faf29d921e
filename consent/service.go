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

package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/id"
)

// Service implements consent business logic for the Authorize Flow Engine.
//
// Purpose: Decide whether a requested scope set needs a fresh consent
// prompt, and record the outcome.
// Domain: OAuth2
type Service struct {
	repo        Repository
	auditLogger audit.Logger
}

// NewService creates a new consent service.
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, auditLogger: auditLogger}
}

// Check reports whether the user has already consented to every scope in
// requested. A missing grant is not an error — callers use this to decide
// whether to render a consent prompt.
func (s *Service) Check(ctx context.Context, userID, clientID string, requested []string) (bool, error) {
	g, err := s.repo.GetByUserAndClient(ctx, userID, clientID)
	if err != nil {
		if errors.Is(err, ErrConsentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("consent: check: %w", err)
	}
	return g.Covers(requested), nil
}

// Grant records (or extends) a user's consent for a client to the given
// scopes, called after the user approves a consent prompt.
func (s *Service) Grant(ctx context.Context, userID, clientID string, scopes []string) (*Grant, error) {
	existing, err := s.repo.GetByUserAndClient(ctx, userID, clientID)
	switch {
	case err == nil:
		existing.Scopes = mergeScopes(existing.Scopes, scopes)
		existing.RevokedAt = nil
		existing.UpdatedAt = time.Now()
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("consent: update grant: %w", err)
		}
		s.logGrant(ctx, userID, clientID, true)
		return existing, nil
	case errors.Is(err, ErrConsentNotFound):
		g := &Grant{
			ID:        id.New(),
			UserID:    userID,
			ClientID:  clientID,
			Scopes:    scopes,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.repo.Create(ctx, g); err != nil {
			return nil, fmt.Errorf("consent: create grant: %w", err)
		}
		s.logGrant(ctx, userID, clientID, true)
		return g, nil
	default:
		return nil, fmt.Errorf("consent: grant: %w", err)
	}
}

// Revoke withdraws a user's consent for a client; the next /authorize
// request for that client re-prompts.
func (s *Service) Revoke(ctx context.Context, userID, clientID string) error {
	if err := s.repo.Revoke(ctx, userID, clientID); err != nil {
		return fmt.Errorf("consent: revoke: %w", err)
	}
	s.logGrant(ctx, userID, clientID, false)
	return nil
}

// ListForUser returns every consent grant a user has issued, for
// self-service review.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Grant, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) logGrant(ctx context.Context, userID, clientID string, granted bool) {
	action := audit.ActionConsentGranted
	if !granted {
		action = audit.ActionConsentRevoked
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: action, ActorType: audit.ActorUser, ActorID: userID, UserID: userID,
		ResourceType: audit.ResourceClient, ResourceID: clientID, Success: true,
	})
}

func mergeScopes(existing, additional []string) []string {
	seen := make(map[string]bool, len(existing)+len(additional))
	out := make([]string, 0, len(existing)+len(additional))
	for _, s := range append(existing, additional...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
