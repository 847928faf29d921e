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

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ironforge-id/authcore/consent"
)

// ConsentGrantRepository implements consent.Repository.
type ConsentGrantRepository struct {
	db *DB
}

// NewConsentGrantRepository creates a new consent grant repository.
func NewConsentGrantRepository(db *DB) *ConsentGrantRepository {
	return &ConsentGrantRepository{db: db}
}

const selectConsentGrantColumns = `
	id, user_id, client_id, scopes, expires_at, revoked_at, created_at, updated_at
`

func scanConsentGrant(row pgx.Row) (*consent.Grant, error) {
	var g consent.Grant
	var scopesJSON []byte
	var expiresAt, revokedAt sql.NullTime

	err := row.Scan(
		&g.ID, &g.UserID, &g.ClientID, &scopesJSON, &expiresAt, &revokedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, consent.ErrConsentNotFound
		}
		return nil, fmt.Errorf("failed to scan consent grant: %w", err)
	}

	if err := json.Unmarshal(scopesJSON, &g.Scopes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scopes: %w", err)
	}
	if expiresAt.Valid {
		g.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		g.RevokedAt = &revokedAt.Time
	}
	return &g, nil
}

// Create creates a new consent grant.
func (r *ConsentGrantRepository) Create(ctx context.Context, g *consent.Grant) error {
	scopes, err := json.Marshal(g.Scopes)
	if err != nil {
		return fmt.Errorf("failed to marshal scopes: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO consent_grants (
			id, user_id, client_id, scopes, expires_at, revoked_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		g.ID, g.UserID, g.ClientID, scopes, g.ExpiresAt, g.RevokedAt, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consent grant: %w", err)
	}
	return nil
}

// GetByUserAndClient retrieves the consent grant for a (user, client) pair.
func (r *ConsentGrantRepository) GetByUserAndClient(ctx context.Context, userID, clientID string) (*consent.Grant, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+selectConsentGrantColumns+`
		FROM consent_grants WHERE user_id = $1 AND client_id = $2
	`, userID, clientID)
	return scanConsentGrant(row)
}

// Update updates a consent grant's scope set and expiry.
func (r *ConsentGrantRepository) Update(ctx context.Context, g *consent.Grant) error {
	scopes, err := json.Marshal(g.Scopes)
	if err != nil {
		return fmt.Errorf("failed to marshal scopes: %w", err)
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE consent_grants SET
			scopes = $3, expires_at = $4, revoked_at = $5, updated_at = NOW()
		WHERE user_id = $1 AND client_id = $2
	`, g.UserID, g.ClientID, scopes, g.ExpiresAt, g.RevokedAt)
	if err != nil {
		return fmt.Errorf("failed to update consent grant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return consent.ErrConsentNotFound
	}
	return nil
}

// Revoke marks a consent grant revoked; it is retained for audit history
// rather than deleted.
func (r *ConsentGrantRepository) Revoke(ctx context.Context, userID, clientID string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE consent_grants SET revoked_at = $3, updated_at = NOW()
		WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL
	`, userID, clientID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke consent grant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return consent.ErrConsentNotFound
	}
	return nil
}

// DeleteByClient removes every consent grant for a client, used when the
// client itself is deleted.
func (r *ConsentGrantRepository) DeleteByClient(ctx context.Context, clientID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM consent_grants WHERE client_id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete consent grants: %w", err)
	}
	return nil
}

// DeleteByUser removes every consent grant for a user.
func (r *ConsentGrantRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM consent_grants WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete consent grants: %w", err)
	}
	return nil
}

// ListByUser retrieves every consent grant a user has issued.
func (r *ConsentGrantRepository) ListByUser(ctx context.Context, userID string) ([]*consent.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+selectConsentGrantColumns+`
		FROM consent_grants WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query consent grants: %w", err)
	}
	defer rows.Close()

	var grants []*consent.Grant
	for rows.Next() {
		g, err := scanConsentGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, nil
}
