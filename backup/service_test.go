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

package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/ironforge-id/authcore/audit"
)

type mockRepo struct {
	backups map[string]*Backup
}

func newMockRepo() *mockRepo { return &mockRepo{backups: make(map[string]*Backup)} }

func (m *mockRepo) Create(ctx context.Context, b *Backup) error {
	m.backups[b.ID] = b
	return nil
}
func (m *mockRepo) Update(ctx context.Context, b *Backup) error {
	m.backups[b.ID] = b
	return nil
}
func (m *mockRepo) GetByID(ctx context.Context, id string) (*Backup, error) {
	b, ok := m.backups[id]
	if !ok {
		return nil, ErrBackupNotFound
	}
	return b, nil
}
func (m *mockRepo) List(ctx context.Context) ([]*Backup, error) {
	out := make([]*Backup, 0, len(m.backups))
	for _, b := range m.backups {
		out = append(out, b)
	}
	return out, nil
}

type fakeDumper struct {
	dumpSize int64
	dumpErr  error
	restErr  error
}

func (d *fakeDumper) Dump(ctx context.Context, destPath string) (int64, error) {
	return d.dumpSize, d.dumpErr
}
func (d *fakeDumper) Restore(ctx context.Context, srcPath string) error {
	return d.restErr
}

type noopAuditLogger struct{}

func (noopAuditLogger) Log(ctx context.Context, event audit.Event) {}

func TestCreateSucceedsAndRecordsSize(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &fakeDumper{dumpSize: 4096}, noopAuditLogger{}, "/tmp/backups")

	b, err := svc.Create(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %s", b.Status)
	}
	if b.SizeBytes != 4096 {
		t.Errorf("expected size 4096, got %d", b.SizeBytes)
	}
	if b.CompletedAt == nil {
		t.Error("expected completed timestamp set")
	}
}

func TestCreateRecordsFailureInsteadOfDiscardingIt(t *testing.T) {
	repo := newMockRepo()
	dumpErr := errors.New("disk full")
	svc := NewService(repo, &fakeDumper{dumpErr: dumpErr}, noopAuditLogger{}, "/tmp/backups")

	b, err := svc.Create(context.Background(), "admin-1")
	if err == nil {
		t.Fatal("expected an error from Create when the dump fails")
	}
	if b == nil {
		t.Fatal("expected a backup record to still be returned")
	}
	if b.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", b.Status)
	}
	if b.Error != dumpErr.Error() {
		t.Errorf("expected error message recorded, got %q", b.Error)
	}
	if _, ok := repo.backups[b.ID]; !ok {
		t.Fatal("expected failed backup to remain in the registry")
	}
}

func TestRestoreRejectsIncompleteBackup(t *testing.T) {
	repo := newMockRepo()
	repo.backups["b1"] = &Backup{ID: "b1", Status: StatusRunning}
	svc := NewService(repo, &fakeDumper{}, noopAuditLogger{}, "/tmp/backups")

	err := svc.Restore(context.Background(), "admin-1", "b1")
	if !errors.Is(err, ErrRestoreFailed) {
		t.Fatalf("expected ErrRestoreFailed for a non-completed backup, got %v", err)
	}
}

func TestRestoreUnknownBackup(t *testing.T) {
	svc := NewService(newMockRepo(), &fakeDumper{}, noopAuditLogger{}, "/tmp/backups")
	if err := svc.Restore(context.Background(), "admin-1", "missing"); !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %v", err)
	}
}

func TestRestoreSucceeds(t *testing.T) {
	repo := newMockRepo()
	repo.backups["b1"] = &Backup{ID: "b1", Status: StatusCompleted, Filename: "/tmp/backups/b1.dump"}
	svc := NewService(repo, &fakeDumper{}, noopAuditLogger{}, "/tmp/backups")

	if err := svc.Restore(context.Background(), "admin-1", "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRestoreFailurePropagatesDumperError(t *testing.T) {
	repo := newMockRepo()
	repo.backups["b1"] = &Backup{ID: "b1", Status: StatusCompleted, Filename: "/tmp/backups/b1.dump"}
	svc := NewService(repo, &fakeDumper{restErr: errors.New("corrupt archive")}, noopAuditLogger{}, "/tmp/backups")

	err := svc.Restore(context.Background(), "admin-1", "b1")
	if !errors.Is(err, ErrRestoreFailed) {
		t.Fatalf("expected ErrRestoreFailed, got %v", err)
	}
}

func TestListReturnsAllBackups(t *testing.T) {
	repo := newMockRepo()
	repo.backups["b1"] = &Backup{ID: "b1"}
	repo.backups["b2"] = &Backup{ID: "b2"}
	svc := NewService(repo, &fakeDumper{}, noopAuditLogger{}, "/tmp/backups")

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 backups, got %d", len(list))
	}
}
