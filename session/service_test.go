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

package session

import (
	"context"
	"testing"
	"time"
)

type mockRepo struct {
	sessions map[string]*Session
}

func newMockRepo() *mockRepo { return &mockRepo{sessions: make(map[string]*Session)} }

func (m *mockRepo) Create(ctx context.Context, s *Session) error {
	m.sessions[s.ID] = s
	return nil
}
func (m *mockRepo) Get(ctx context.Context, id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}
func (m *mockRepo) Update(ctx context.Context, s *Session) error {
	m.sessions[s.ID] = s
	return nil
}
func (m *mockRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}
func (m *mockRepo) DeleteByUserID(ctx context.Context, userID string) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}
func (m *mockRepo) DeleteExpired(ctx context.Context) error {
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
		}
	}
	return nil
}

func TestCreateGeneratesTokenAndExpiry(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, time.Hour, 30*time.Minute)

	s, err := svc.Create(context.Background(), "user-1", "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected generated session id")
	}
	if s.ExpiresAt.Before(time.Now()) {
		t.Fatal("expected expiry in the future")
	}
}

func TestGetExpiredSessionDeletesAndReturnsError(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	repo.sessions["s1"] = &Session{ID: "s1", UserID: "user-1", ExpiresAt: time.Now().Add(-time.Minute), LastSeenAt: time.Now()}

	if _, err := svc.Get(context.Background(), "s1"); err != ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, ok := repo.sessions["s1"]; ok {
		t.Fatal("expected expired session to be deleted")
	}
}

func TestGetIdleSessionDeletesAndReturnsError(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	repo.sessions["s1"] = &Session{
		ID: "s1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour), LastSeenAt: time.Now().Add(-time.Hour),
	}

	if _, err := svc.Get(context.Background(), "s1"); err != ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired for idle session, got %v", err)
	}
}

func TestRefreshUpdatesLastSeenAt(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	old := time.Now().Add(-time.Minute)
	repo.sessions["s1"] = &Session{ID: "s1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour), LastSeenAt: old}

	if err := svc.Refresh(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.sessions["s1"].LastSeenAt.After(old) {
		t.Fatal("expected last seen time to advance")
	}
}

func TestDestroyAllForUserRemovesOnlyThatUsersSessions(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, time.Hour, 30*time.Minute)
	repo.sessions["s1"] = &Session{ID: "s1", UserID: "user-1"}
	repo.sessions["s2"] = &Session{ID: "s2", UserID: "user-2"}

	if err := svc.DestroyAllForUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.sessions["s1"]; ok {
		t.Error("expected user-1's session removed")
	}
	if _, ok := repo.sessions["s2"]; !ok {
		t.Error("expected user-2's session to remain")
	}
}
