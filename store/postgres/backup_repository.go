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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ironforge-id/authcore/backup"
)

// BackupRepository implements backup.Repository.
//
// Purpose: PostgreSQL persistence for database backup metadata.
// Domain: Platform (Ops, Infrastructure)
type BackupRepository struct {
	db *DB
}

// NewBackupRepository creates a new backup metadata repository.
func NewBackupRepository(db *DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// Create inserts a new backup record.
func (r *BackupRepository) Create(ctx context.Context, b *backup.Backup) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO system_backups (id, filename, status, size_bytes, triggered_by, error, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.Filename, b.Status, b.SizeBytes, b.TriggeredBy, b.Error, b.CreatedAt, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert backup record: %w", err)
	}
	return nil
}

// Update updates a backup record's status, size and completion time.
func (r *BackupRepository) Update(ctx context.Context, b *backup.Backup) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE system_backups SET status = $2, size_bytes = $3, error = $4, completed_at = $5
		WHERE id = $1
	`, b.ID, b.Status, b.SizeBytes, b.Error, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update backup record: %w", err)
	}
	return nil
}

func scanBackup(row pgx.Row) (*backup.Backup, error) {
	var b backup.Backup
	var errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&b.ID, &b.Filename, &b.Status, &b.SizeBytes, &b.TriggeredBy, &errMsg, &b.CreatedAt, &completedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, backup.ErrBackupNotFound
		}
		return nil, fmt.Errorf("failed to scan backup record: %w", err)
	}
	if errMsg.Valid {
		b.Error = errMsg.String
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

// GetByID retrieves a backup record by ID.
func (r *BackupRepository) GetByID(ctx context.Context, id string) (*backup.Backup, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, filename, status, size_bytes, triggered_by, error, created_at, completed_at
		FROM system_backups WHERE id = $1
	`, id)
	return scanBackup(row)
}

// List returns every backup record, most recent first.
func (r *BackupRepository) List(ctx context.Context) ([]*backup.Backup, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, filename, status, size_bytes, triggered_by, error, created_at, completed_at
		FROM system_backups ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var out []*backup.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
