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

package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/id"
	"github.com/ironforge-id/authcore/password"
)

// Service provides OAuth2 client management business logic.
//
// Purpose: Implementation of client registration, validation, and
// lifecycle rules.
// Domain: OAuth2
type Service struct {
	clientRepo  ClientRepository
	accessRepo  AccessTokenRepository
	refreshRepo RefreshTokenRepository
	consentRepo ConsentRepository
	hasher      *password.Hasher
	auditLogger audit.Logger
}

// NewService creates a new client management service. consentRepo may be
// nil for deployments that never wire consent storage; DeleteClient then
// skips the consent-grant cleanup step.
func NewService(
	clientRepo ClientRepository,
	accessRepo AccessTokenRepository,
	refreshRepo RefreshTokenRepository,
	consentRepo ConsentRepository,
	hasher *password.Hasher,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		clientRepo:  clientRepo,
		accessRepo:  accessRepo,
		refreshRepo: refreshRepo,
		consentRepo: consentRepo,
		hasher:      hasher,
		auditLogger: auditLogger,
	}
}

// RegisterClient validates and creates a new OAuth2 client. If the client
// is confidential, a plaintext secret is generated and returned once; it
// is never recoverable afterward, only its bcrypt hash is stored.
func (s *Service) RegisterClient(ctx context.Context, actorID string, c *Client) (plaintextSecret string, out *Client, err error) {
	if err := s.validateURIs(c); err != nil {
		return "", nil, err
	}

	if c.ID == "" {
		c.ID = id.New()
	}
	if c.ClientID == "" {
		c.ClientID = id.New()
	}

	if c.ClientType == ClientTypeConfidential && c.ClientSecretHash == "" {
		plaintextSecret = GenerateClientSecret()
		hash, err := s.hasher.Hash(plaintextSecret)
		if err != nil {
			return "", nil, fmt.Errorf("client: hash secret: %w", err)
		}
		c.ClientSecretHash = hash
	}

	if err := c.Validate(); err != nil {
		return "", nil, err
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()

	if err := s.clientRepo.Create(ctx, c); err != nil {
		return "", nil, fmt.Errorf("client: create: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionClientCreated, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceClient, ResourceID: c.ClientID, Success: true,
		Metadata: map[string]any{"client_name": c.ClientName, "client_type": string(c.ClientType)},
	})

	return plaintextSecret, c, nil
}

// VerifySecret checks a presented client secret against the stored hash.
func (s *Service) VerifySecret(c *Client, secret string) bool {
	if c.ClientSecretHash == "" {
		return false
	}
	return s.hasher.Verify(secret, c.ClientSecretHash)
}

// RotateSecret issues and stores a new secret for a confidential client.
func (s *Service) RotateSecret(ctx context.Context, actorID string, c *Client) (string, error) {
	if c.ClientType != ClientTypeConfidential {
		return "", fmt.Errorf("%w: only confidential clients hold a secret", ErrInvalidClientConfig)
	}
	secret := GenerateClientSecret()
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return "", fmt.Errorf("client: hash secret: %w", err)
	}
	c.ClientSecretHash = hash
	c.UpdatedAt = time.Now()
	if err := s.clientRepo.Update(ctx, c); err != nil {
		return "", fmt.Errorf("client: rotate secret: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionSecretRotated, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceClient, ResourceID: c.ClientID, Success: true,
	})
	return secret, nil
}

// ListClients retrieves all registered OAuth2 clients.
func (s *Service) ListClients(ctx context.Context) ([]*Client, error) {
	return s.clientRepo.List(ctx)
}

// GetClient retrieves an OAuth2 client by internal ID.
func (s *Service) GetClient(ctx context.Context, id string) (*Client, error) {
	return s.clientRepo.GetByID(ctx, id)
}

// GetClientByClientID retrieves an OAuth2 client by external client_id.
func (s *Service) GetClientByClientID(ctx context.Context, clientID string) (*Client, error) {
	return s.clientRepo.GetByClientID(ctx, clientID)
}

// DeleteClient deletes an OAuth2 client. Deletion cascades: every access
// and refresh token issued to the client is revoked before the client
// record itself is removed.
func (s *Service) DeleteClient(ctx context.Context, id, actorID string) error {
	c, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.accessRepo.RevokeByClient(ctx, c.ClientID); err != nil {
		return fmt.Errorf("client: revoke access tokens: %w", err)
	}
	if err := s.refreshRepo.RevokeByClient(ctx, c.ClientID); err != nil {
		return fmt.Errorf("client: revoke refresh tokens: %w", err)
	}
	if s.consentRepo != nil {
		if err := s.consentRepo.DeleteByClient(ctx, c.ClientID); err != nil {
			return fmt.Errorf("client: clear consent grants: %w", err)
		}
	}

	if err := s.clientRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionClientDeleted, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceClient, ResourceID: c.ClientID, Success: true,
	})
	return nil
}

// UpdateClient updates an existing OAuth2 client.
func (s *Service) UpdateClient(ctx context.Context, c *Client, actorID string) error {
	if err := s.validateURIs(c); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	if err := s.clientRepo.Update(ctx, c); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: audit.ActionClientUpdated, ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: audit.ResourceClient, ResourceID: c.ClientID, Success: true,
	})
	return nil
}

func (s *Service) validateURIs(c *Client) error {
	if c.ClientURI != "" {
		if _, err := url.ParseRequestURI(c.ClientURI); err != nil {
			return fmt.Errorf("%w: client_uri: %s", ErrInvalidClientConfig, err)
		}
	}
	for _, uri := range c.RedirectURIs {
		if _, err := url.ParseRequestURI(uri); err != nil {
			return fmt.Errorf("%w: redirect_uri %q: %s", ErrDomainInvalidRedirectURI, uri, err)
		}
	}
	return nil
}
