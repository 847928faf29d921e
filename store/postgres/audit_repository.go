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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ironforge-id/authcore/audit"
)

// AuditRepository implements audit.Repository.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Log persists an event.
func (r *AuditRepository) Log(ctx context.Context, event audit.Event) error {
	var actorID, userID, clientID *string
	if event.ActorID != "" {
		actorID = &event.ActorID
	}
	if event.UserID != "" {
		userID = &event.UserID
	}
	if event.ClientID != "" {
		clientID = &event.ClientID
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO audit_logs (
			id, action, actor_type, actor_id, user_id, client_id,
			resource_type, resource_id, success, error_message,
			ip_address, user_agent, metadata, created_at
		) VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`,
		event.Action,
		string(event.ActorType),
		actorID,
		userID,
		clientID,
		event.ResourceType,
		event.ResourceID,
		event.Success,
		event.ErrorMessage,
		event.IPAddress,
		event.UserAgent,
		metadata,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}
	return nil
}

// Get retrieves a single event by id.
func (r *AuditRepository) Get(ctx context.Context, id string) (*audit.Event, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, action, actor_type, COALESCE(actor_id, ''), COALESCE(user_id, ''), COALESCE(client_id, ''),
		       resource_type, resource_id, success, COALESCE(error_message, ''),
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), metadata, created_at
		FROM audit_logs
		WHERE id = $1
	`, id)

	var e audit.Event
	var actorType string
	var metadata []byte
	if err := row.Scan(
		&e.ID, &e.Action, &actorType, &e.ActorID, &e.UserID, &e.ClientID,
		&e.ResourceType, &e.ResourceID, &e.Success, &e.ErrorMessage,
		&e.IPAddress, &e.UserAgent, &metadata, &e.Timestamp,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, audit.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}
	e.ActorType = audit.ActorType(actorType)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
		}
	}
	return &e, nil
}

// List retrieves events matching filter.
func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error) {
	whereClauses := []string{}
	args := []any{}
	argIdx := 1

	if filter.ActorID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, *filter.ActorID)
		argIdx++
	}
	if filter.UserID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}
	if filter.ClientID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("client_id = $%d", argIdx))
		args = append(args, *filter.ClientID)
		argIdx++
	}
	if filter.Action != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("action = $%d", argIdx))
		args = append(args, *filter.Action)
		argIdx++
	}
	if filter.Success != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("success = $%d", argIdx))
		args = append(args, *filter.Success)
		argIdx++
	}
	if filter.StartDate != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filter.EndDate)
		argIdx++
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM audit_logs " + whereSQL
	var total int
	if err := r.db.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, action, actor_type, COALESCE(actor_id, ''), COALESCE(user_id, ''), COALESCE(client_id, ''),
		       resource_type, resource_id, success, COALESCE(error_message, ''),
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), metadata, created_at
		FROM audit_logs
	` + whereSQL + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var actorType string
		var metadata []byte

		if err := rows.Scan(
			&e.ID, &e.Action, &actorType, &e.ActorID, &e.UserID, &e.ClientID,
			&e.ResourceType, &e.ResourceID, &e.Success, &e.ErrorMessage,
			&e.IPAddress, &e.UserAgent, &metadata, &e.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.ActorType = audit.ActorType(actorType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
