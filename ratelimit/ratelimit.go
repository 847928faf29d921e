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

// Package ratelimit is the Rate Limiter: per-key request throttling for
// the HTTP surface, keyed by ip|client_id|user_id.
//
// Purpose: Bound the request rate a single caller can sustain against any
// protected endpoint, surfacing HTTP 429 with Retry-After on exhaustion.
// Domain: OAuth2
// Invariants: A key's count never exceeds its configured limit within the
// current window. The backend is swappable behind Store; callers never
// depend on which one is active.
package ratelimit

import (
	"context"
	"time"
)

// Store is the pluggable counting backend a Limiter drives. Redis is wired
// in by default, with an in-memory fallback so the engine stays usable
// standalone.
type Store interface {
	// Allow records one attempt against key under limit/window and
	// reports whether it is within budget, plus how long to wait before
	// retrying when it is not.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

// Key builds the canonical rate-limit key from ip|client_id|user_id. Any
// part may be empty; empty parts still occupy
// their position so distinct combinations never collide.
func Key(ip, clientID, userID string) string {
	return ip + "|" + clientID + "|" + userID
}

// Decision is the outcome of a Limiter.Check call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Rule names a limit/window pair for one protected category of request
// (e.g. "login", "token", "authorize").
type Rule struct {
	Limit  int
	Window time.Duration
}

// Limiter evaluates Rules against a Store, falling back to an in-memory
// Store whenever the primary one errors (e.g. Redis is unreachable), so a
// degraded dependency throttles traffic rather than failing every request
// open or closed.
type Limiter struct {
	primary  Store
	fallback Store
	rules    map[string]Rule
}

// NewLimiter constructs a Limiter over the given primary and fallback stores.
// With a nil fallback, a primary error lets the request through (fails open).
func NewLimiter(primary, fallback Store, rules map[string]Rule) *Limiter {
	return &Limiter{primary: primary, fallback: fallback, rules: rules}
}

// Check evaluates the named rule for key, using the fallback store if the
// primary store errors.
func (l *Limiter) Check(ctx context.Context, rule, key string) Decision {
	r, ok := l.rules[rule]
	if !ok {
		return Decision{Allowed: true}
	}

	allowed, retryAfter, err := l.primary.Allow(ctx, rule+":"+key, r.Limit, r.Window)
	if err == nil {
		return Decision{Allowed: allowed, RetryAfter: retryAfter}
	}
	if l.fallback == nil {
		return Decision{Allowed: true}
	}

	allowed, retryAfter, _ = l.fallback.Allow(ctx, rule+":"+key, r.Limit, r.Window)
	return Decision{Allowed: allowed, RetryAfter: retryAfter}
}
