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

// Package consent tracks which scopes a user has authorized a client to
// request without being prompted again.
//
// Purpose: Persisted (user, client) consent grants consulted by the
// Authorize Flow Engine.
// Domain: OAuth2
// Invariants: (UserID, ClientID) is a unique pair. A grant covers a scope
// request iff it is unrevoked, unexpired, and its scope set is a superset
// of the request.
package consent

import (
	"context"
	"errors"
	"time"
)

// Domain errors.
var (
	ErrConsentNotFound = errors.New("consent: grant not found")
	ErrConsentRequired = errors.New("consent: user consent is required")
)

// Grant records that a user has authorized a client for a set of scopes.
type Grant struct {
	ID        string
	UserID    string
	ClientID  string
	Scopes    []string
	ExpiresAt *time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the grant is currently usable: not revoked, not
// expired.
func (g *Grant) Active() bool {
	if g.RevokedAt != nil {
		return false
	}
	if g.ExpiresAt != nil && time.Now().After(*g.ExpiresAt) {
		return false
	}
	return true
}

// Covers reports whether the grant's scope set is a superset of requested.
func (g *Grant) Covers(requested []string) bool {
	if !g.Active() {
		return false
	}
	granted := make(map[string]bool, len(g.Scopes))
	for _, s := range g.Scopes {
		granted[s] = true
	}
	for _, s := range requested {
		if !granted[s] {
			return false
		}
	}
	return true
}

// Repository persists consent grants.
type Repository interface {
	Create(ctx context.Context, g *Grant) error
	GetByUserAndClient(ctx context.Context, userID, clientID string) (*Grant, error)
	Update(ctx context.Context, g *Grant) error
	Revoke(ctx context.Context, userID, clientID string) error
	DeleteByClient(ctx context.Context, clientID string) error
	DeleteByUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]*Grant, error)
}
