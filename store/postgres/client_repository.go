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
	"github.com/ironforge-id/authcore/client"
)

// ClientRepository implements client.ClientRepository.
type ClientRepository struct {
	db *DB
}

// NewClientRepository creates a new client repository.
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const selectClientColumns = `
	id, client_id, client_secret_hash, client_name, client_uri, logo_uri, client_type,
	redirect_uris, allowed_scopes, grant_types, response_types,
	token_endpoint_auth_method, jwks_uri, require_pkce, require_consent,
	strict_redirect_uri_matching, allow_localhost_redirect, require_https_redirect,
	access_token_lifetime, refresh_token_lifetime, id_token_lifetime,
	owner_id, is_trusted, is_active, created_at, updated_at, deleted_at
`

func scanClient(row pgx.Row) (*client.Client, error) {
	var c client.Client
	var clientType string
	var redirectURIsJSON, allowedScopesJSON, grantTypesJSON, responseTypesJSON []byte
	var clientURI, logoURI, jwksURI, ownerID sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.ClientID, &c.ClientSecretHash, &c.ClientName, &clientURI, &logoURI, &clientType,
		&redirectURIsJSON, &allowedScopesJSON, &grantTypesJSON, &responseTypesJSON,
		&c.TokenEndpointAuthMethod, &jwksURI, &c.RequirePKCE, &c.RequireConsent,
		&c.StrictRedirectURIMatching, &c.AllowLocalhostRedirect, &c.RequireHTTPSRedirect,
		&c.AccessTokenLifetime, &c.RefreshTokenLifetime, &c.IDTokenLifetime,
		&ownerID, &c.IsTrusted, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, client.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}

	c.ClientType = client.ClientType(clientType)
	if err := json.Unmarshal(redirectURIsJSON, &c.RedirectURIs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal redirect URIs: %w", err)
	}
	if err := json.Unmarshal(allowedScopesJSON, &c.AllowedScopes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allowed scopes: %w", err)
	}
	if err := json.Unmarshal(grantTypesJSON, &c.GrantTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant types: %w", err)
	}
	if err := json.Unmarshal(responseTypesJSON, &c.ResponseTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response types: %w", err)
	}
	if clientURI.Valid {
		c.ClientURI = clientURI.String
	}
	if logoURI.Valid {
		c.LogoURI = logoURI.String
	}
	if jwksURI.Valid {
		c.JWKSURI = jwksURI.String
	}
	if ownerID.Valid {
		c.OwnerID = ownerID.String
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return &c, nil
}

// Create creates a new OAuth2 client.
func (r *ClientRepository) Create(ctx context.Context, c *client.Client) error {
	redirectURIs, err := json.Marshal(c.RedirectURIs)
	if err != nil {
		return fmt.Errorf("failed to marshal redirect URIs: %w", err)
	}
	allowedScopes, err := json.Marshal(c.AllowedScopes)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed scopes: %w", err)
	}
	grantTypes, err := json.Marshal(c.GrantTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal grant types: %w", err)
	}
	responseTypes, err := json.Marshal(c.ResponseTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal response types: %w", err)
	}

	var ownerID sql.NullString
	if c.OwnerID != "" {
		ownerID = sql.NullString{String: c.OwnerID, Valid: true}
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO clients (
			id, client_id, client_secret_hash, client_name, client_uri, logo_uri, client_type,
			redirect_uris, allowed_scopes, grant_types, response_types,
			token_endpoint_auth_method, jwks_uri, require_pkce, require_consent,
			strict_redirect_uri_matching, allow_localhost_redirect, require_https_redirect,
			access_token_lifetime, refresh_token_lifetime, id_token_lifetime,
			owner_id, is_trusted, is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
	`,
		c.ID, c.ClientID, c.ClientSecretHash, c.ClientName, c.ClientURI, c.LogoURI, string(c.ClientType),
		redirectURIs, allowedScopes, grantTypes, responseTypes,
		c.TokenEndpointAuthMethod, c.JWKSURI, c.RequirePKCE, c.RequireConsent,
		c.StrictRedirectURIMatching, c.AllowLocalhostRedirect, c.RequireHTTPSRedirect,
		c.AccessTokenLifetime, c.RefreshTokenLifetime, c.IDTokenLifetime,
		ownerID, c.IsTrusted, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetByClientID retrieves a client by its external client_id.
func (r *ClientRepository) GetByClientID(ctx context.Context, clientID string) (*client.Client, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+selectClientColumns+` FROM clients WHERE client_id = $1 AND deleted_at IS NULL`, clientID)
	return scanClient(row)
}

// GetByID retrieves a client by internal ID.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*client.Client, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+selectClientColumns+` FROM clients WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanClient(row)
}

// Update updates client information.
func (r *ClientRepository) Update(ctx context.Context, c *client.Client) error {
	redirectURIs, err := json.Marshal(c.RedirectURIs)
	if err != nil {
		return fmt.Errorf("failed to marshal redirect URIs: %w", err)
	}
	allowedScopes, err := json.Marshal(c.AllowedScopes)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed scopes: %w", err)
	}
	grantTypes, err := json.Marshal(c.GrantTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal grant types: %w", err)
	}
	responseTypes, err := json.Marshal(c.ResponseTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal response types: %w", err)
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE clients SET
			client_secret_hash = $2,
			client_name = $3,
			client_uri = $4,
			logo_uri = $5,
			redirect_uris = $6,
			allowed_scopes = $7,
			grant_types = $8,
			response_types = $9,
			token_endpoint_auth_method = $10,
			jwks_uri = $11,
			require_pkce = $12,
			require_consent = $13,
			strict_redirect_uri_matching = $14,
			allow_localhost_redirect = $15,
			require_https_redirect = $16,
			access_token_lifetime = $17,
			refresh_token_lifetime = $18,
			id_token_lifetime = $19,
			is_trusted = $20,
			is_active = $21,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`,
		c.ID, c.ClientSecretHash, c.ClientName, c.ClientURI, c.LogoURI,
		redirectURIs, allowedScopes, grantTypes, responseTypes,
		c.TokenEndpointAuthMethod, c.JWKSURI, c.RequirePKCE, c.RequireConsent,
		c.StrictRedirectURIMatching, c.AllowLocalhostRedirect, c.RequireHTTPSRedirect,
		c.AccessTokenLifetime, c.RefreshTokenLifetime, c.IDTokenLifetime,
		c.IsTrusted, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return client.ErrClientNotFound
	}
	return nil
}

// Delete soft-deletes a client.
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE clients SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL
	`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return client.ErrClientNotFound
	}
	return nil
}

// ListByOwner retrieves all clients for an owner.
func (r *ClientRepository) ListByOwner(ctx context.Context, ownerID string) ([]*client.Client, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+selectClientColumns+` FROM clients WHERE owner_id = $1 AND deleted_at IS NULL`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()
	return collectClients(rows)
}

// List retrieves all registered clients.
func (r *ClientRepository) List(ctx context.Context) ([]*client.Client, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+selectClientColumns+` FROM clients WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()
	return collectClients(rows)
}

func collectClients(rows pgx.Rows) ([]*client.Client, error) {
	var clients []*client.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}
