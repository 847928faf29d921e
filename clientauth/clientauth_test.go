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

package clientauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/password"
)

type mockClientRepo struct {
	clients map[string]*client.Client
}

func newMockClientRepo() *mockClientRepo { return &mockClientRepo{clients: make(map[string]*client.Client)} }

func (m *mockClientRepo) Create(ctx context.Context, c *client.Client) error { return nil }
func (m *mockClientRepo) GetByClientID(ctx context.Context, clientID string) (*client.Client, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return nil, client.ErrClientNotFound
	}
	return c, nil
}
func (m *mockClientRepo) GetByID(ctx context.Context, id string) (*client.Client, error) {
	return nil, client.ErrClientNotFound
}
func (m *mockClientRepo) Update(ctx context.Context, c *client.Client) error { return nil }
func (m *mockClientRepo) Delete(ctx context.Context, id string) error       { return nil }
func (m *mockClientRepo) ListByOwner(ctx context.Context, ownerID string) ([]*client.Client, error) {
	return nil, nil
}
func (m *mockClientRepo) List(ctx context.Context) ([]*client.Client, error) { return nil, nil }

type mockAuditLogger struct{}

func (mockAuditLogger) Log(ctx context.Context, event audit.Event) {}

func newHasher(t *testing.T) *password.Hasher {
	t.Helper()
	hasher, err := password.NewHasher(password.MinCost)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return hasher
}

func newClientService(t *testing.T, repo *mockClientRepo, hasher *password.Hasher) *client.Service {
	t.Helper()
	return client.NewService(repo, nil, nil, nil, hasher, mockAuditLogger{})
}

func TestExtractCredentialsFromBasicAuth(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/token", nil)
	r.SetBasicAuth("client-1", "secret-1")
	r.ParseForm()

	creds := ExtractCredentials(r)
	if !creds.HasBasicAuth || creds.ClientID != "client-1" || creds.ClientSecret != "secret-1" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestExtractCredentialsFromBody(t *testing.T) {
	form := url.Values{"client_id": {"client-1"}, "client_secret": {"secret-1"}}
	r := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ParseForm()

	creds := ExtractCredentials(r)
	if !creds.HasBodyCredentials || creds.ClientID != "client-1" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestAuthenticateSecretBasicSuccess(t *testing.T) {
	repo := newMockClientRepo()
	hasher := newHasher(t)
	svc := newClientService(t, repo, hasher)
	hash, err := hasher.Hash("correct-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo.clients["client-1"] = &client.Client{
		ClientID: "client-1", ClientSecretHash: hash, ClientType: client.ClientTypeConfidential,
		TokenEndpointAuthMethod: client.AuthMethodClientSecretBasic, IsActive: true,
	}

	auth := NewAuthenticator(repo, svc, nil, nil, "https://auth.example.com/token")
	c, err := auth.Authenticate(context.Background(), Credentials{ClientID: "client-1", ClientSecret: "correct-secret", HasBasicAuth: true}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ClientID != "client-1" {
		t.Errorf("expected client-1, got %s", c.ClientID)
	}
}

func TestAuthenticateSecretWrongSecretFails(t *testing.T) {
	repo := newMockClientRepo()
	hasher := newHasher(t)
	svc := newClientService(t, repo, hasher)
	hash, _ := hasher.Hash("correct-secret")
	repo.clients["client-1"] = &client.Client{
		ClientID: "client-1", ClientSecretHash: hash, ClientType: client.ClientTypeConfidential,
		TokenEndpointAuthMethod: client.AuthMethodClientSecretBasic, IsActive: true,
	}

	auth := NewAuthenticator(repo, svc, nil, nil, "https://auth.example.com/token")
	_, err := auth.Authenticate(context.Background(), Credentials{ClientID: "client-1", ClientSecret: "wrong", HasBasicAuth: true}, false)
	if err != ErrAuthenticationFailed {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestAuthenticateNoneForPublicClient(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(t, repo, newHasher(t))
	repo.clients["public-1"] = &client.Client{
		ClientID: "public-1", ClientType: client.ClientTypePublic,
		TokenEndpointAuthMethod: client.AuthMethodNone, IsActive: true,
	}

	auth := NewAuthenticator(repo, svc, nil, nil, "https://auth.example.com/token")
	c, err := auth.Authenticate(context.Background(), Credentials{ClientID: "public-1"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ClientID != "public-1" {
		t.Errorf("expected public-1, got %s", c.ClientID)
	}
}

func TestAuthenticateNoneDisallowedWhenNotPermitted(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(t, repo, newHasher(t))
	repo.clients["public-1"] = &client.Client{
		ClientID: "public-1", ClientType: client.ClientTypePublic,
		TokenEndpointAuthMethod: client.AuthMethodNone, IsActive: true,
	}

	auth := NewAuthenticator(repo, svc, nil, nil, "https://auth.example.com/token")
	_, err := auth.Authenticate(context.Background(), Credentials{ClientID: "public-1"}, false)
	if err != ErrAuthenticationFailed {
		t.Fatalf("expected ErrAuthenticationFailed when /authorize is not allowing none, got %v", err)
	}
}

func TestAuthenticateUnknownClientFails(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(t, repo, newHasher(t))
	auth := NewAuthenticator(repo, svc, nil, nil, "https://auth.example.com/token")

	_, err := auth.Authenticate(context.Background(), Credentials{ClientID: "nope", ClientSecret: "x", HasBasicAuth: true}, false)
	if err != ErrAuthenticationFailed {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestAuthenticateNoCredentialsFails(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(t, repo, newHasher(t))
	auth := NewAuthenticator(repo, svc, nil, nil, "https://auth.example.com/token")

	_, err := auth.Authenticate(context.Background(), Credentials{}, true)
	if err != ErrAuthenticationFailed {
		t.Fatalf("expected ErrAuthenticationFailed for empty credentials, got %v", err)
	}
}
