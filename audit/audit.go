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

// Package audit is the Audit Sink: every security-relevant action appends
// exactly one durable, queryable event with actor, resource, outcome, IP
// and user agent.
//
// Purpose: Canonical, append-only record of security-relevant actions.
// Domain: Audit
// Invariants: Append-only. A failed persist is logged to stderr but never
// fails the caller's request.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// ErrEventNotFound is returned when a requested audit event does not exist.
var ErrEventNotFound = errors.New("audit event not found")

// Action codes. Stable strings; never renamed once shipped since external
// consumers (compliance exports, SIEM forwarders) match on them.
const (
	ActionLoginSuccess    = "login.success"
	ActionLoginFailed     = "login.failed"
	ActionUserLocked      = "user.locked"
	ActionUserUnlocked    = "user.unlocked"
	ActionUserCreated     = "user.created"
	ActionUserUpdated     = "user.updated"
	ActionUserDeactivated = "user.deactivated"
	ActionUserDeleted     = "user.deleted"
	ActionPasswordChanged = "user.password_changed"
	ActionLogout          = "session.logout"

	ActionClientCreated = "client.created"
	ActionClientUpdated = "client.updated"
	ActionClientDeleted = "client.deleted"
	ActionSecretRotated = "client.secret_rotated"

	ActionRoleCreated       = "role.created"
	ActionRoleUpdated       = "role.updated"
	ActionRoleDeleted       = "role.deleted"
	ActionRoleAssigned      = "role.assigned"
	ActionRoleRevoked       = "role.revoked"
	ActionPermissionCreated = "permission.created"
	ActionPermissionUpdated = "permission.updated"
	ActionPermissionDeleted = "permission.deleted"
	ActionPermissionGrant   = "permission.granted"
	ActionPermissionRevoke  = "permission.revoked"

	ActionAuthorizeGranted = "oauth.authorize.granted"
	ActionAuthorizeDenied  = "oauth.authorize.denied"
	ActionConsentGranted   = "oauth.consent.granted"
	ActionConsentRevoked   = "oauth.consent.revoked"
	ActionTokenIssued      = "oauth.token.issued"
	ActionTokenRefreshed   = "oauth.token.refreshed"
	ActionTokenReuseDetect = "oauth.token.reuse_detected"
	ActionTokenRevoked     = "oauth.token.revoked"
	ActionTokenIntrospect  = "oauth.token.introspected"
	ActionSessionRevoked   = "session.revoked"

	ActionAuditRead = "audit.read"
)

// ActorType identifies what kind of principal performed the action.
type ActorType string

const (
	ActorUser    ActorType = "user"
	ActorClient  ActorType = "client"
	ActorSystem  ActorType = "system"
	ActorUnknown ActorType = "unknown"
)

// Common resource types.
const (
	ResourceUser         = "user"
	ResourceRole         = "role"
	ResourcePermission   = "permission"
	ResourceClient       = "client"
	ResourceSession      = "session"
	ResourceToken        = "token"
	ResourceAuthCode     = "authorization_code"
	ResourceConsentGrant = "consent_grant"
	ResourceAuditLog     = "audit_log"
)

// Event represents one auditable action.
//
// Purpose: Canonical representation of a security or system event.
// Domain: Audit
// Invariants: Action must be a known Action constant. Timestamp is set by
// the logger if the caller leaves it zero.
type Event struct {
	ID           string         `json:"id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Action       string         `json:"action"`
	ActorType    ActorType      `json:"actor_type"`
	ActorID      string         `json:"actor_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	ClientID     string         `json:"client_id,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Logger defines the interface for emitting audit events.
//
// Purpose: Abstraction so callers never talk to storage directly.
// Domain: Audit
type Logger interface {
	Log(ctx context.Context, event Event)
}

// Filter defines criteria for listing audit events.
type Filter struct {
	ActorID   *string
	UserID    *string
	ClientID  *string
	Action    *string
	Success   *bool
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Repository defines storage for audit events.
//
// Purpose: Persistence and retrieval of the audit trail.
// Domain: Audit
type Repository interface {
	Log(ctx context.Context, event Event) error
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filter Filter) ([]Event, int, error)
}

// SlogLogger implements Logger using structured logging only (no
// persistence) — used by components that can't construct a Repository,
// and as the always-on half of RepositoryLogger.
type SlogLogger struct{}

// NewSlogLogger creates a new stdout-only audit logger.
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event via slog.
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("action", event.Action),
		slog.String("actor_type", string(event.ActorType)),
		slog.String("actor_id", event.ActorID),
		slog.String("resource_type", event.ResourceType),
		slog.String("resource_id", event.ResourceID),
		slog.Bool("success", event.Success),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}
	if event.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error_message", event.ErrorMessage))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Metadata) > 0 {
		group := make([]any, 0, len(event.Metadata)*2)
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// RepositoryLogger implements Logger by writing to both slog and a
// Repository. Persist failures never mask the underlying operation's
// success — they are logged to stderr at error level.
type RepositoryLogger struct {
	repo Repository
	slog *SlogLogger
}

// NewRepositoryLogger creates a new repository-backed logger.
func NewRepositoryLogger(repo Repository) *RepositoryLogger {
	return &RepositoryLogger{repo: repo, slog: NewSlogLogger()}
}

// Log records an audit event to both slog and the Repository.
func (l *RepositoryLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ActorType == "" {
		event.ActorType = ActorUnknown
	}

	l.slog.Log(ctx, event)

	if err := l.repo.Log(ctx, event); err != nil {
		slog.ErrorContext(ctx, "failed to persist audit event", "error", err, "action", event.Action)
	}
}

// isSecret checks if a metadata key likely contains a secret, redacting its
// value before it ever reaches a log line.
func isSecret(key string) bool {
	k := strings.ToLower(key)
	secrets := []string{
		"password", "secret", "token", "key", "authorization",
		"hash", "credential", "private", "api_key", "code_verifier", "code_challenge",
	}
	for _, s := range secrets {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
