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

// Package backup is the ops-surface backup registry behind the
// /api/v2/system/backups endpoints: snapshotting and restoring the
// PostgreSQL store that holds every other component's state.
//
// Purpose: Metadata and lifecycle for point-in-time database dumps.
// Domain: Platform (Ops)
// Invariants: A backup's file always exists on disk for as long as its
// registry row reports Status "completed".
package backup

import (
	"context"
	"errors"
	"time"
)

// Domain errors.
var (
	ErrBackupNotFound  = errors.New("backup not found")
	ErrBackupInFlight  = errors.New("another backup is already running")
	ErrRestoreFailed   = errors.New("restore failed")
)

// Status is the lifecycle state of a Backup.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Backup is one recorded snapshot of the database.
type Backup struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Status      Status     `json:"status"`
	SizeBytes   int64      `json:"size_bytes"`
	TriggeredBy string     `json:"triggered_by"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Repository persists backup metadata rows.
type Repository interface {
	Create(ctx context.Context, b *Backup) error
	Update(ctx context.Context, b *Backup) error
	GetByID(ctx context.Context, id string) (*Backup, error)
	List(ctx context.Context) ([]*Backup, error)
}

// Dumper performs the actual database dump/restore I/O, kept as an
// interface so the Service can be tested without shelling out to pg_dump.
type Dumper interface {
	Dump(ctx context.Context, destPath string) (sizeBytes int64, err error)
	Restore(ctx context.Context, srcPath string) error
}
