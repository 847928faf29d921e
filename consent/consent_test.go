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
	"testing"
	"time"

	"github.com/ironforge-id/authcore/audit"
)

func TestGrantCoversSubsetOfScopes(t *testing.T) {
	g := &Grant{Scopes: []string{"openid", "profile", "email"}}
	if !g.Covers([]string{"openid", "profile"}) {
		t.Fatal("expected grant to cover subset of its scopes")
	}
	if g.Covers([]string{"openid", "admin"}) {
		t.Fatal("expected grant not to cover a scope it was never given")
	}
}

func TestGrantActiveRespectsRevocationAndExpiry(t *testing.T) {
	g := &Grant{Scopes: []string{"openid"}}
	if !g.Active() {
		t.Fatal("expected fresh grant to be active")
	}

	revoked := time.Now()
	g.RevokedAt = &revoked
	if g.Active() {
		t.Fatal("expected revoked grant to be inactive")
	}
	g.RevokedAt = nil

	past := time.Now().Add(-time.Hour)
	g.ExpiresAt = &past
	if g.Active() {
		t.Fatal("expected expired grant to be inactive")
	}
}

type mockRepo struct {
	grants map[string]*Grant
}

func newMockRepo() *mockRepo { return &mockRepo{grants: make(map[string]*Grant)} }

func rkey(userID, clientID string) string { return userID + "|" + clientID }

func (m *mockRepo) Create(ctx context.Context, g *Grant) error {
	m.grants[rkey(g.UserID, g.ClientID)] = g
	return nil
}
func (m *mockRepo) GetByUserAndClient(ctx context.Context, userID, clientID string) (*Grant, error) {
	g, ok := m.grants[rkey(userID, clientID)]
	if !ok {
		return nil, ErrConsentNotFound
	}
	return g, nil
}
func (m *mockRepo) Update(ctx context.Context, g *Grant) error {
	m.grants[rkey(g.UserID, g.ClientID)] = g
	return nil
}
func (m *mockRepo) Revoke(ctx context.Context, userID, clientID string) error {
	g, ok := m.grants[rkey(userID, clientID)]
	if !ok {
		return ErrConsentNotFound
	}
	now := time.Now()
	g.RevokedAt = &now
	return nil
}
func (m *mockRepo) DeleteByClient(ctx context.Context, clientID string) error { return nil }
func (m *mockRepo) DeleteByUser(ctx context.Context, userID string) error    { return nil }
func (m *mockRepo) ListByUser(ctx context.Context, userID string) ([]*Grant, error) {
	var out []*Grant
	for _, g := range m.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

type noopAuditLogger struct{}

func (noopAuditLogger) Log(ctx context.Context, event audit.Event) {}

func TestServiceCheckReturnsFalseWithoutError(t *testing.T) {
	svc := NewService(newMockRepo(), noopAuditLogger{})
	ok, err := svc.Check(context.Background(), "user-1", "client-1", []string{"openid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no existing grant to report false")
	}
}

func TestServiceGrantCreatesThenExtends(t *testing.T) {
	svc := NewService(newMockRepo(), noopAuditLogger{})
	ctx := context.Background()

	g, err := svc.Grant(ctx, "user-1", "client-1", []string{"openid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID == "" {
		t.Fatal("expected generated grant id")
	}

	ok, err := svc.Check(ctx, "user-1", "client-1", []string{"openid"})
	if err != nil || !ok {
		t.Fatalf("expected consent now covered, ok=%v err=%v", ok, err)
	}

	g2, err := svc.Grant(ctx, "user-1", "client-1", []string{"profile"})
	if err != nil {
		t.Fatalf("unexpected error extending grant: %v", err)
	}
	if len(g2.Scopes) != 2 {
		t.Fatalf("expected merged scopes of length 2, got %v", g2.Scopes)
	}
}

func TestServiceRevokeThenCheckFails(t *testing.T) {
	svc := NewService(newMockRepo(), noopAuditLogger{})
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "user-1", "client-1", []string{"openid"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Revoke(ctx, "user-1", "client-1"); err != nil {
		t.Fatalf("unexpected error revoking: %v", err)
	}

	ok, err := svc.Check(ctx, "user-1", "client-1", []string{"openid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected revoked grant not to cover scopes")
	}
}
