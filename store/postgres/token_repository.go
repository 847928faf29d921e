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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ironforge-id/authcore/client"
)

// AccessTokenRepository implements client.AccessTokenRepository.
type AccessTokenRepository struct {
	db *DB
}

// NewAccessTokenRepository creates a new access token repository.
func NewAccessTokenRepository(db *DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// Create creates a new access token record.
func (r *AccessTokenRepository) Create(ctx context.Context, t *client.AccessToken) error {
	var revokedAt sql.NullTime
	if t.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *t.RevokedAt, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO access_tokens (
			id, token_hash, jti, client_id, user_id,
			scope, token_type, expires_at, revoked_at, is_revoked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		t.ID, t.TokenHash, t.JTI, t.ClientID, t.UserID,
		t.Scope, t.TokenType, t.ExpiresAt, revokedAt, t.IsRevoked, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

// GetByTokenHash retrieves an access token record by its hash.
func (r *AccessTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*client.AccessToken, error) {
	var t client.AccessToken
	var revokedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT
			id, token_hash, jti, client_id, user_id,
			scope, token_type, expires_at, revoked_at, is_revoked, created_at
		FROM access_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&t.ID, &t.TokenHash, &t.JTI, &t.ClientID, &t.UserID,
		&t.Scope, &t.TokenType, &t.ExpiresAt, &revokedAt, &t.IsRevoked, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, client.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return &t, nil
}

// Revoke revokes an access token by hash.
func (r *AccessTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE access_tokens SET is_revoked = true, revoked_at = NOW()
		WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return client.ErrTokenNotFound
	}
	return nil
}

// RevokeByClientAndUser revokes the user's active access tokens under a
// given client issued at or after issuedOnOrAfter. The time bound keeps
// the cascade from a revoked or replayed refresh token scoped to that
// token's descendants; an older, independent session with the same client
// keeps its access tokens.
func (r *AccessTokenRepository) RevokeByClientAndUser(ctx context.Context, clientID, userID string, issuedOnOrAfter time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE access_tokens SET is_revoked = true, revoked_at = NOW()
		WHERE client_id = $1 AND user_id = $2 AND created_at >= $3 AND is_revoked = false
	`, clientID, userID, issuedOnOrAfter)
	if err != nil {
		return fmt.Errorf("failed to revoke access tokens: %w", err)
	}
	return nil
}

// RevokeByClient revokes every active access token issued to a client,
// regardless of user — used when the client itself is deleted.
func (r *AccessTokenRepository) RevokeByClient(ctx context.Context, clientID string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE access_tokens SET is_revoked = true, revoked_at = NOW()
		WHERE client_id = $1 AND is_revoked = false
	`, clientID)
	if err != nil {
		return fmt.Errorf("failed to revoke access tokens: %w", err)
	}
	return nil
}

// DeleteExpired deletes all expired access tokens.
func (r *AccessTokenRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM access_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return fmt.Errorf("failed to delete expired access tokens: %w", err)
	}
	return nil
}

// RefreshTokenRepository implements client.RefreshTokenRepository.
type RefreshTokenRepository struct {
	db *DB
}

// NewRefreshTokenRepository creates a new refresh token repository.
func NewRefreshTokenRepository(db *DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create creates a new refresh token.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *client.RefreshToken) error {
	var revokedAt sql.NullTime
	if t.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *t.RevokedAt, Valid: true}
	}

	var accessTokenID, parentID sql.NullString
	if t.AccessTokenID != "" {
		accessTokenID = sql.NullString{String: t.AccessTokenID, Valid: true}
	}
	if t.ParentID != "" {
		parentID = sql.NullString{String: t.ParentID, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, token_hash, parent_id, access_token_id, client_id, user_id,
			scope, expires_at, revoked_at, is_revoked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		t.ID, t.TokenHash, parentID, accessTokenID, t.ClientID, t.UserID,
		t.Scope, t.ExpiresAt, revokedAt, t.IsRevoked, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// GetByTokenHash retrieves a refresh token by hash.
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*client.RefreshToken, error) {
	var t client.RefreshToken
	var revokedAt sql.NullTime
	var accessTokenID, parentID sql.NullString

	err := r.db.pool.QueryRow(ctx, `
		SELECT
			id, token_hash, parent_id, access_token_id, client_id, user_id,
			scope, expires_at, revoked_at, is_revoked, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&t.ID, &t.TokenHash, &parentID, &accessTokenID, &t.ClientID, &t.UserID,
		&t.Scope, &t.ExpiresAt, &revokedAt, &t.IsRevoked, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, client.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	if accessTokenID.Valid {
		t.AccessTokenID = accessTokenID.String
	}
	if parentID.Valid {
		t.ParentID = parentID.String
	}
	return &t, nil
}

// GetByID retrieves a refresh token by its row id.
func (r *RefreshTokenRepository) GetByID(ctx context.Context, id string) (*client.RefreshToken, error) {
	var t client.RefreshToken
	var revokedAt sql.NullTime
	var accessTokenID, parentID sql.NullString

	err := r.db.pool.QueryRow(ctx, `
		SELECT
			id, token_hash, parent_id, access_token_id, client_id, user_id,
			scope, expires_at, revoked_at, is_revoked, created_at
		FROM refresh_tokens
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.TokenHash, &parentID, &accessTokenID, &t.ClientID, &t.UserID,
		&t.Scope, &t.ExpiresAt, &revokedAt, &t.IsRevoked, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, client.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token by id: %w", err)
	}

	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	if accessTokenID.Valid {
		t.AccessTokenID = accessTokenID.String
	}
	if parentID.Valid {
		t.ParentID = parentID.String
	}
	return &t, nil
}

// GetByAccessTokenID finds the refresh token issued alongside a given
// access token.
func (r *RefreshTokenRepository) GetByAccessTokenID(ctx context.Context, accessTokenID string) (*client.RefreshToken, error) {
	var t client.RefreshToken
	var revokedAt sql.NullTime
	var accessTokenIDCol, parentID sql.NullString

	err := r.db.pool.QueryRow(ctx, `
		SELECT
			id, token_hash, parent_id, access_token_id, client_id, user_id,
			scope, expires_at, revoked_at, is_revoked, created_at
		FROM refresh_tokens
		WHERE access_token_id = $1
	`, accessTokenID).Scan(
		&t.ID, &t.TokenHash, &parentID, &accessTokenIDCol, &t.ClientID, &t.UserID,
		&t.Scope, &t.ExpiresAt, &revokedAt, &t.IsRevoked, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, client.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token by access token id: %w", err)
	}

	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	if accessTokenIDCol.Valid {
		t.AccessTokenID = accessTokenIDCol.String
	}
	if parentID.Valid {
		t.ParentID = parentID.String
	}
	return &t, nil
}

// Revoke revokes a refresh token by hash.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = true, revoked_at = NOW()
		WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return client.ErrTokenNotFound
	}
	return nil
}

// RevokeFamily revokes parentID itself and every descendant of it. Used
// when a reused (already-rotated) refresh token is presented, to burn
// the whole rotation chain rather than just the presented token.
func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, parentID string) error {
	_, err := r.db.pool.Exec(ctx, `
		WITH RECURSIVE family AS (
			SELECT id FROM refresh_tokens WHERE id = $1 OR parent_id = $1
			UNION
			SELECT rt.id FROM refresh_tokens rt
			JOIN family f ON rt.parent_id = f.id
		)
		UPDATE refresh_tokens SET is_revoked = true, revoked_at = NOW()
		WHERE id IN (SELECT id FROM family) AND is_revoked = false
	`, parentID)
	if err != nil {
		return fmt.Errorf("failed to revoke token family: %w", err)
	}
	return nil
}

// RevokeByClientAndUser revokes every active refresh token issued to a
// user under a given client.
func (r *RefreshTokenRepository) RevokeByClientAndUser(ctx context.Context, clientID, userID string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = true, revoked_at = NOW()
		WHERE client_id = $1 AND user_id = $2 AND is_revoked = false
	`, clientID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

// RevokeByClient revokes every active refresh token issued to a client,
// regardless of user — used when the client itself is deleted.
func (r *RefreshTokenRepository) RevokeByClient(ctx context.Context, clientID string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = true, revoked_at = NOW()
		WHERE client_id = $1 AND is_revoked = false
	`, clientID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

// DeleteExpired deletes all expired refresh tokens.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	return nil
}
