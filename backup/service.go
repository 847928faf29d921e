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
	"fmt"
	"path/filepath"
	"time"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/id"
)

// Service coordinates backup creation and restoration, audit-logging every
// lifecycle transition.
type Service struct {
	repo        Repository
	dumper      Dumper
	auditLogger audit.Logger
	dir         string
}

// NewService creates a new backup service. dir is the directory dump files
// are written to and read from.
func NewService(repo Repository, dumper Dumper, auditLogger audit.Logger, dir string) *Service {
	return &Service{repo: repo, dumper: dumper, auditLogger: auditLogger, dir: dir}
}

// List returns every recorded backup, most recent first is the
// Repository's responsibility.
func (s *Service) List(ctx context.Context) ([]*Backup, error) {
	return s.repo.List(ctx)
}

// Create starts a new backup synchronously and records its outcome. A
// failed dump is still recorded, with Status failed and Error populated,
// so operators can see it in the registry rather than it vanishing.
func (s *Service) Create(ctx context.Context, actorID string) (*Backup, error) {
	backupID := id.New()
	b := &Backup{
		ID:          backupID,
		Filename:    filepath.Join(s.dir, fmt.Sprintf("authcore-%s.dump", backupID)),
		Status:      StatusRunning,
		TriggeredBy: actorID,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("backup: create record: %w", err)
	}

	size, err := s.dumper.Dump(ctx, b.Filename)
	now := time.Now()
	b.CompletedAt = &now
	if err != nil {
		b.Status = StatusFailed
		b.Error = err.Error()
		_ = s.repo.Update(ctx, b)
		s.auditLogger.Log(ctx, audit.Event{
			Action: "system.backup.failed", ActorType: audit.ActorUser, ActorID: actorID,
			ResourceType: "backup", ResourceID: b.ID, Success: false, ErrorMessage: err.Error(),
		})
		return b, fmt.Errorf("backup: dump: %w", err)
	}

	b.Status = StatusCompleted
	b.SizeBytes = size
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("backup: update record: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: "system.backup.created", ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: "backup", ResourceID: b.ID, Success: true,
		Metadata: map[string]any{"size_bytes": size},
	})
	return b, nil
}

// Restore restores the database from a previously completed backup.
func (s *Service) Restore(ctx context.Context, actorID, backupID string) error {
	b, err := s.repo.GetByID(ctx, backupID)
	if err != nil {
		return ErrBackupNotFound
	}
	if b.Status != StatusCompleted {
		return fmt.Errorf("%w: backup %s is not in a completed state", ErrRestoreFailed, backupID)
	}

	if err := s.dumper.Restore(ctx, b.Filename); err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Action: "system.backup.restore_failed", ActorType: audit.ActorUser, ActorID: actorID,
			ResourceType: "backup", ResourceID: b.ID, Success: false, ErrorMessage: err.Error(),
		})
		return fmt.Errorf("%w: %s", ErrRestoreFailed, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action: "system.backup.restored", ActorType: audit.ActorUser, ActorID: actorID,
		ResourceType: "backup", ResourceID: b.ID, Success: true,
	})
	return nil
}
