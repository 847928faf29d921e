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

package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type mockRepository struct {
	events []Event
	logErr error
}

func (m *mockRepository) Log(ctx context.Context, event Event) error {
	m.events = append(m.events, event)
	return m.logErr
}

func (m *mockRepository) Get(ctx context.Context, id string) (*Event, error) {
	for i := range m.events {
		if m.events[i].ID == id {
			return &m.events[i], nil
		}
	}
	return nil, ErrEventNotFound
}

func (m *mockRepository) List(ctx context.Context, filter Filter) ([]Event, int, error) {
	return m.events, len(m.events), nil
}

// captureHandler records the attributes of every log record so tests can
// inspect what SlogLogger actually emits.
type captureHandler struct {
	records []slog.Record
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }
func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}
func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(name string) slog.Handler       { return h }

func recordString(r slog.Record) string {
	var sb strings.Builder
	r.Attrs(func(a slog.Attr) bool {
		sb.WriteString(a.String())
		sb.WriteString(" ")
		return true
	})
	return sb.String()
}

func TestRepositoryLoggerPersistsAndDefaultsActorType(t *testing.T) {
	repo := &mockRepository{}
	logger := NewRepositoryLogger(repo)

	logger.Log(context.Background(), Event{Action: ActionLoginSuccess, Success: true})

	if len(repo.events) != 1 {
		t.Fatalf("expected one event persisted, got %d", len(repo.events))
	}
	got := repo.events[0]
	if got.ActorType != ActorUnknown {
		t.Errorf("expected ActorType to default to ActorUnknown, got %q", got.ActorType)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected Timestamp to be filled in")
	}
}

func TestRepositoryLoggerPreservesExplicitActorType(t *testing.T) {
	repo := &mockRepository{}
	logger := NewRepositoryLogger(repo)

	logger.Log(context.Background(), Event{Action: ActionLoginSuccess, ActorType: ActorUser, ActorID: "user-1"})

	if repo.events[0].ActorType != ActorUser {
		t.Errorf("expected explicit ActorType preserved, got %q", repo.events[0].ActorType)
	}
}

func TestRepositoryLoggerPersistFailureDoesNotPanicOrBlock(t *testing.T) {
	repo := &mockRepository{logErr: errors.New("connection refused")}
	logger := NewRepositoryLogger(repo)

	logger.Log(context.Background(), Event{Action: ActionLoginFailed, Success: false})

	if len(repo.events) != 1 {
		t.Fatal("expected the event to still be recorded as attempted")
	}
}

func TestSlogLoggerRedactsSecretMetadata(t *testing.T) {
	handler := &captureHandler{}
	prev := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(prev)

	l := NewSlogLogger()
	l.Log(context.Background(), Event{
		Action: ActionTokenIssued, Success: true,
		Metadata: map[string]any{"client_secret": "super-sensitive-value", "scope": "openid"},
	})

	if len(handler.records) != 1 {
		t.Fatalf("expected one log record, got %d", len(handler.records))
	}
	out := recordString(handler.records[0])
	if strings.Contains(out, "super-sensitive-value") {
		t.Errorf("expected secret metadata value to be redacted, got %q", out)
	}
	if !strings.Contains(out, "REDACTED") {
		t.Errorf("expected redaction marker present, got %q", out)
	}
	if !strings.Contains(out, "openid") {
		t.Errorf("expected non-secret metadata preserved, got %q", out)
	}
}

func TestSlogLoggerUsesWarnLevelOnFailure(t *testing.T) {
	handler := &captureHandler{}
	prev := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(prev)

	l := NewSlogLogger()
	l.Log(context.Background(), Event{Action: ActionLoginFailed, Success: false})

	if len(handler.records) != 1 {
		t.Fatalf("expected one log record, got %d", len(handler.records))
	}
	if handler.records[0].Level != slog.LevelWarn {
		t.Errorf("expected warn level for a failed event, got %v", handler.records[0].Level)
	}
}
