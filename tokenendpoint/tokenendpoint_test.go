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

package tokenendpoint

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/clientauth"
	"github.com/ironforge-id/authcore/crypto"
	"github.com/ironforge-id/authcore/password"
	"github.com/ironforge-id/authcore/rbac"
	"github.com/ironforge-id/authcore/tokencodec"
)

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

type mockClientRepo struct{ clients map[string]*client.Client }

func newMockClientRepo() *mockClientRepo { return &mockClientRepo{clients: make(map[string]*client.Client)} }

func (m *mockClientRepo) Create(ctx context.Context, c *client.Client) error { return nil }
func (m *mockClientRepo) GetByClientID(ctx context.Context, clientID string) (*client.Client, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return nil, client.ErrClientNotFound
	}
	return c, nil
}
func (m *mockClientRepo) GetByID(ctx context.Context, id string) (*client.Client, error) { return nil, client.ErrClientNotFound }
func (m *mockClientRepo) Update(ctx context.Context, c *client.Client) error              { return nil }
func (m *mockClientRepo) Delete(ctx context.Context, id string) error                     { return nil }
func (m *mockClientRepo) ListByOwner(ctx context.Context, ownerID string) ([]*client.Client, error) {
	return nil, nil
}
func (m *mockClientRepo) List(ctx context.Context) ([]*client.Client, error) { return nil, nil }

type mockCodeRepo struct{ codes map[string]*client.AuthorizationCode }

func newMockCodeRepo() *mockCodeRepo { return &mockCodeRepo{codes: make(map[string]*client.AuthorizationCode)} }

func (m *mockCodeRepo) Create(ctx context.Context, c *client.AuthorizationCode) error {
	m.codes[c.Code] = c
	return nil
}
func (m *mockCodeRepo) GetByCode(ctx context.Context, code string) (*client.AuthorizationCode, error) {
	c, ok := m.codes[code]
	if !ok {
		return nil, client.ErrCodeNotFound
	}
	return c, nil
}
func (m *mockCodeRepo) MarkAsUsed(ctx context.Context, code string) error {
	c, ok := m.codes[code]
	if !ok || c.IsUsed {
		return client.ErrCodeAlreadyUsed
	}
	c.IsUsed = true
	return nil
}
func (m *mockCodeRepo) Delete(ctx context.Context, code string) error { delete(m.codes, code); return nil }
func (m *mockCodeRepo) DeleteExpired(ctx context.Context) error       { return nil }

type mockAccessRepo struct {
	byHash map[string]*client.AccessToken
}

func newMockAccessRepo() *mockAccessRepo { return &mockAccessRepo{byHash: make(map[string]*client.AccessToken)} }

func (m *mockAccessRepo) Create(ctx context.Context, t *client.AccessToken) error {
	m.byHash[t.TokenHash] = t
	return nil
}
func (m *mockAccessRepo) GetByTokenHash(ctx context.Context, hash string) (*client.AccessToken, error) {
	t, ok := m.byHash[hash]
	if !ok {
		return nil, client.ErrTokenNotFound
	}
	return t, nil
}
func (m *mockAccessRepo) Revoke(ctx context.Context, hash string) error {
	if t, ok := m.byHash[hash]; ok {
		t.IsRevoked = true
	}
	return nil
}
func (m *mockAccessRepo) RevokeByClientAndUser(ctx context.Context, clientID, userID string, issuedOnOrAfter time.Time) error {
	for _, t := range m.byHash {
		if t.ClientID == clientID && t.UserID == userID && !t.CreatedAt.Before(issuedOnOrAfter) {
			t.IsRevoked = true
		}
	}
	return nil
}
func (m *mockAccessRepo) RevokeByClient(ctx context.Context, clientID string) error {
	for _, t := range m.byHash {
		if t.ClientID == clientID {
			t.IsRevoked = true
		}
	}
	return nil
}
func (m *mockAccessRepo) DeleteExpired(ctx context.Context) error { return nil }

type mockRefreshRepo struct {
	byHash map[string]*client.RefreshToken
	byID   map[string]*client.RefreshToken
}

func newMockRefreshRepo() *mockRefreshRepo {
	return &mockRefreshRepo{byHash: make(map[string]*client.RefreshToken), byID: make(map[string]*client.RefreshToken)}
}

func (m *mockRefreshRepo) Create(ctx context.Context, t *client.RefreshToken) error {
	m.byHash[t.TokenHash] = t
	m.byID[t.ID] = t
	return nil
}
func (m *mockRefreshRepo) GetByTokenHash(ctx context.Context, hash string) (*client.RefreshToken, error) {
	t, ok := m.byHash[hash]
	if !ok {
		return nil, client.ErrTokenNotFound
	}
	return t, nil
}
func (m *mockRefreshRepo) GetByID(ctx context.Context, id string) (*client.RefreshToken, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, client.ErrTokenNotFound
	}
	return t, nil
}
func (m *mockRefreshRepo) GetByAccessTokenID(ctx context.Context, accessTokenID string) (*client.RefreshToken, error) {
	for _, t := range m.byID {
		if t.AccessTokenID == accessTokenID {
			return t, nil
		}
	}
	return nil, client.ErrTokenNotFound
}
func (m *mockRefreshRepo) Revoke(ctx context.Context, hash string) error {
	t, ok := m.byHash[hash]
	if !ok {
		return client.ErrTokenNotFound
	}
	t.IsRevoked = true
	return nil
}
func (m *mockRefreshRepo) RevokeFamily(ctx context.Context, parentID string) error {
	for _, t := range m.byID {
		if t.ID == parentID || t.ParentID == parentID {
			t.IsRevoked = true
		}
	}
	return nil
}
func (m *mockRefreshRepo) RevokeByClientAndUser(ctx context.Context, clientID, userID string) error {
	for _, t := range m.byID {
		if t.ClientID == clientID && t.UserID == userID {
			t.IsRevoked = true
		}
	}
	return nil
}
func (m *mockRefreshRepo) RevokeByClient(ctx context.Context, clientID string) error {
	for _, t := range m.byID {
		if t.ClientID == clientID {
			t.IsRevoked = true
		}
	}
	return nil
}
func (m *mockRefreshRepo) DeleteExpired(ctx context.Context) error { return nil }

type mockAssignmentRepo struct{}

func (m *mockAssignmentRepo) AssignRole(ctx context.Context, userID, roleID, grantedBy string) error { return nil }
func (m *mockAssignmentRepo) RevokeRole(ctx context.Context, userID, roleID string) error            { return nil }
func (m *mockAssignmentRepo) RolesForUser(ctx context.Context, userID string) ([]*rbac.Role, error) {
	return nil, nil
}
func (m *mockAssignmentRepo) GrantPermission(ctx context.Context, grant *rbac.UserPermission) error {
	return nil
}
func (m *mockAssignmentRepo) RevokePermission(ctx context.Context, userID, resource, permissionID string) error {
	return nil
}
func (m *mockAssignmentRepo) DirectGrantsForUser(ctx context.Context, userID string) ([]*rbac.UserPermission, error) {
	return nil, nil
}

type mockRoleRepo struct{}

func (m *mockRoleRepo) Create(ctx context.Context, r *rbac.Role) error          { return nil }
func (m *mockRoleRepo) GetByID(ctx context.Context, id string) (*rbac.Role, error) { return nil, rbac.ErrRoleNotFound }
func (m *mockRoleRepo) GetByName(ctx context.Context, name string) (*rbac.Role, error) {
	return nil, rbac.ErrRoleNotFound
}
func (m *mockRoleRepo) Update(ctx context.Context, r *rbac.Role) error { return nil }
func (m *mockRoleRepo) Delete(ctx context.Context, id string) error    { return nil }
func (m *mockRoleRepo) List(ctx context.Context) ([]*rbac.Role, error) { return nil, nil }
func (m *mockRoleRepo) AddPermission(ctx context.Context, roleID, permissionID string) error {
	return nil
}
func (m *mockRoleRepo) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	return nil
}
func (m *mockRoleRepo) PermissionsForRole(ctx context.Context, roleID string) ([]*rbac.Permission, error) {
	return nil, nil
}

type mockPermissionRepo struct{}

func (m *mockPermissionRepo) Create(ctx context.Context, p *rbac.Permission) error { return nil }
func (m *mockPermissionRepo) GetByID(ctx context.Context, id string) (*rbac.Permission, error) {
	return nil, rbac.ErrPermissionNotFound
}
func (m *mockPermissionRepo) GetByName(ctx context.Context, name string) (*rbac.Permission, error) {
	return nil, rbac.ErrPermissionNotFound
}
func (m *mockPermissionRepo) Update(ctx context.Context, p *rbac.Permission) error { return nil }
func (m *mockPermissionRepo) Delete(ctx context.Context, id string) error          { return nil }
func (m *mockPermissionRepo) List(ctx context.Context) ([]*rbac.Permission, error) { return nil, nil }

type mockAuditLogger struct{ events []audit.Event }

func (m *mockAuditLogger) Log(ctx context.Context, event audit.Event) { m.events = append(m.events, event) }

func confidentialClient(t *testing.T, hasher *password.Hasher) (*client.Client, string) {
	t.Helper()
	secret := "super-secret-value"
	hash, err := hasher.Hash(secret)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	return &client.Client{
		ClientID:                "confidential-client",
		ClientSecretHash:        hash,
		ClientType:              client.ClientTypeConfidential,
		RedirectURIs:            []string{"https://app.example.com/callback"},
		AllowedScopes:           []string{"openid", "profile", "offline_access"},
		GrantTypes:              []string{"authorization_code", "refresh_token", "client_credentials"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: client.AuthMethodClientSecretBasic,
		IsActive:                true,
	}, secret
}

type testHarness struct {
	engine     *Engine
	clients    *mockClientRepo
	codes      *mockCodeRepo
	accessRepo *mockAccessRepo
	refresh    *mockRefreshRepo
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	clients := newMockClientRepo()
	codes := newMockCodeRepo()
	accessRepo := newMockAccessRepo()
	refreshRepo := newMockRefreshRepo()

	hasher, err := password.NewHasher(password.MinCost)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	svc := client.NewService(clients, accessRepo, refreshRepo, nil, hasher, &mockAuditLogger{})
	authenticator := clientauth.NewAuthenticator(clients, svc, nil, nil, "https://auth.example.com/token")

	keys := crypto.NewHS256Manager([]byte("test-signing-secret-test-signing-secret"))
	codec := tokencodec.New(keys, "https://auth.example.com/", "https://api.example.com/")
	decider := rbac.NewDecider(&mockRoleRepo{}, &mockPermissionRepo{}, &mockAssignmentRepo{})

	engine := NewEngine(authenticator, codes, accessRepo, refreshRepo, codec, decider, &mockAuditLogger{},
		time.Hour, 30*24*time.Hour, time.Hour)

	return &testHarness{engine: engine, clients: clients, codes: codes, accessRepo: accessRepo, refresh: refreshRepo}
}

func TestHandleAuthorizationCodeGrant(t *testing.T) {
	h := newTestHarness(t)
	hasher, _ := password.NewHasher(password.MinCost)
	c, secret := confidentialClient(t, hasher)
	h.clients.clients[c.ClientID] = c

	verifier := "a-sufficiently-long-code-verifier-string"
	code := &client.AuthorizationCode{
		Code: "test-code", ClientID: c.ClientID, UserID: "user-1", RedirectURI: c.RedirectURIs[0],
		Scope: "openid profile", CodeChallenge: pkceChallenge(verifier), CodeChallengeMethod: "S256",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	h.codes.codes[code.Code] = code

	resp, err := h.engine.Handle(context.Background(), clientauth.Credentials{ClientID: c.ClientID, ClientSecret: secret, HasBasicAuth: true},
		Request{GrantType: GrantAuthorizationCode, Code: code.Code, RedirectURI: c.RedirectURIs[0], CodeVerifier: verifier})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected both access and refresh tokens to be minted")
	}
	if resp.IDToken == "" {
		t.Fatal("expected id_token for openid scope")
	}
	if code.IsUsed != true {
		t.Fatal("expected code to be marked used")
	}
}

func TestHandleAuthorizationCodeRejectsReuse(t *testing.T) {
	h := newTestHarness(t)
	hasher, _ := password.NewHasher(password.MinCost)
	c, secret := confidentialClient(t, hasher)
	h.clients.clients[c.ClientID] = c

	code := &client.AuthorizationCode{
		Code: "reuse-code", ClientID: c.ClientID, UserID: "user-1", RedirectURI: c.RedirectURIs[0],
		Scope: "openid", ExpiresAt: time.Now().Add(10 * time.Minute), IsUsed: true,
	}
	h.codes.codes[code.Code] = code

	creds := clientauth.Credentials{ClientID: c.ClientID, ClientSecret: secret, HasBasicAuth: true}
	_, err := h.engine.Handle(context.Background(), creds, Request{GrantType: GrantAuthorizationCode, Code: code.Code, RedirectURI: c.RedirectURIs[0]})
	var oerr *apierror.OAuthError
	if !errors.As(err, &oerr) || oerr.Kind != apierror.OAuthInvalidGrant {
		t.Fatalf("expected invalid_grant for reused code, got %v", err)
	}
}

func TestHandleRefreshTokenRotatesAndBurnsOnReuse(t *testing.T) {
	h := newTestHarness(t)
	hasher, _ := password.NewHasher(password.MinCost)
	c, secret := confidentialClient(t, hasher)
	h.clients.clients[c.ClientID] = c
	creds := clientauth.Credentials{ClientID: c.ClientID, ClientSecret: secret, HasBasicAuth: true}

	original := &client.RefreshToken{
		ID: "rt-1", TokenHash: tokencodecHash("original-refresh-token"), ClientID: c.ClientID, UserID: "user-1",
		Scope: "openid", ExpiresAt: time.Now().Add(24 * time.Hour), CreatedAt: time.Now(),
	}
	h.refresh.byHash[original.TokenHash] = original
	h.refresh.byID[original.ID] = original

	// An access token from an older, unrelated session with the same
	// client; the burn below must not touch it.
	unrelated := &client.AccessToken{
		ID: "at-old", TokenHash: tokencodecHash("older-session-access-token"), ClientID: c.ClientID,
		UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: original.CreatedAt.Add(-time.Hour),
	}
	h.accessRepo.byHash[unrelated.TokenHash] = unrelated

	resp, err := h.engine.Handle(context.Background(), creds, Request{GrantType: GrantRefreshToken, RefreshToken: "original-refresh-token"})
	if err != nil {
		t.Fatalf("unexpected error rotating refresh token: %v", err)
	}
	if resp.RefreshToken == "" {
		t.Fatal("expected a new refresh token to be issued")
	}
	if !original.IsRevoked {
		t.Fatal("expected original refresh token to be revoked after rotation")
	}

	// Presenting the now-revoked original again must burn the whole family.
	_, err = h.engine.Handle(context.Background(), creds, Request{GrantType: GrantRefreshToken, RefreshToken: "original-refresh-token"})
	var oerr *apierror.OAuthError
	if !errors.As(err, &oerr) || oerr.Kind != apierror.OAuthInvalidGrant {
		t.Fatalf("expected invalid_grant on refresh token reuse, got %v", err)
	}
	if !h.accessRepo.byHash[tokencodecHash(resp.AccessToken)].IsRevoked {
		t.Fatal("expected the rotated session's access token to be burned on reuse")
	}
	if unrelated.IsRevoked {
		t.Fatal("expected the older independent session's access token to survive the burn")
	}
}

func TestHandleClientCredentialsRejectsPublicClients(t *testing.T) {
	h := newTestHarness(t)
	pub := &client.Client{
		ClientID: "pub-1", ClientType: client.ClientTypePublic, AllowedScopes: []string{"read"},
		GrantTypes: []string{"client_credentials"}, TokenEndpointAuthMethod: client.AuthMethodNone,
		RequirePKCE: true, IsActive: true,
	}
	h.clients.clients[pub.ClientID] = pub

	// A public client authenticates with "none", which the token endpoint
	// only ever permits for authorization_code — so this fails at client
	// authentication before the grant-type-specific public-client check
	// in handleClientCredentials is ever reached.
	_, err := h.engine.Handle(context.Background(), clientauth.Credentials{ClientID: pub.ClientID}, Request{GrantType: GrantClientCredentials})
	var oerr *apierror.OAuthError
	if !errors.As(err, &oerr) || oerr.Kind != apierror.OAuthInvalidClient {
		t.Fatalf("expected invalid_client for public client_credentials, got %v", err)
	}
}

func TestHandleClientCredentialsMintsClientBoundToken(t *testing.T) {
	h := newTestHarness(t)
	hasher, _ := password.NewHasher(password.MinCost)
	c, secret := confidentialClient(t, hasher)
	h.clients.clients[c.ClientID] = c

	resp, err := h.engine.Handle(context.Background(), clientauth.Credentials{ClientID: c.ClientID, ClientSecret: secret, HasBasicAuth: true},
		Request{GrantType: GrantClientCredentials, Scope: "openid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.RefreshToken != "" {
		t.Fatal("client_credentials must never issue a refresh token")
	}
	if resp.AccessToken == "" {
		t.Fatal("expected an access token to be minted")
	}
}

func tokencodecHash(token string) string {
	return tokencodec.Hash(token)
}
