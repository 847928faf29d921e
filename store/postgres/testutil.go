// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// SetupTestDB creates a connection to the test database and runs
// migrations.
func SetupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("TEST_DB_PORT")
	if port == "" {
		port = "5434" // default port in docker-compose.test.yml
	}

	dsn := fmt.Sprintf("postgres://authcore:authcore_test_password@%s:%s/authcore_test?sslmode=disable&pool_max_conns=10", host, port)

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	tables := []string{
		"audit_logs",
		"consent_grants",
		"sessions",
		"user_permissions",
		"user_roles",
		"role_permissions",
		"permissions",
		"roles",
		"token_blacklist",
		"refresh_tokens",
		"access_tokens",
		"authorization_codes",
		"clients",
		"credentials",
		"users",
	}
	for _, table := range tables {
		_, _ = db.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}

	if err := db.Migrate(ctx, InitialSchema); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	if err := seedRBAC(ctx, db); err != nil {
		db.Close()
		t.Fatalf("failed to seed RBAC: %v", err)
	}

	cleanup := func() {
		for _, table := range tables {
			_, _ = db.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		}
		db.Close()
	}

	return db, cleanup
}

// seedRBAC inserts the baseline "admin" role with a wildcard permission,
// mirroring the bootstrap a fresh deployment performs on first migration.
func seedRBAC(ctx context.Context, db *DB) error {
	const adminRoleID = "00000000-0000-0000-0000-0000000000a1"
	const wildcardPermID = "00000000-0000-0000-0000-0000000000a2"

	_, err := db.pool.Exec(ctx, `
		INSERT INTO roles (id, name, display_name, created_at, updated_at)
		VALUES ($1, 'admin', 'Administrator', NOW(), NOW())
		ON CONFLICT (name) DO NOTHING
	`, adminRoleID)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO permissions (id, name, resource, action, type, display_name, is_active, created_at, updated_at)
		VALUES ($1, '*', '*', '*', 'api', 'All permissions', true, NOW(), NOW())
		ON CONFLICT (name) DO NOTHING
	`, wildcardPermID)
	if err != nil {
		return err
	}

	var permID string
	if err := db.pool.QueryRow(ctx, `SELECT id FROM permissions WHERE name = '*'`).Scan(&permID); err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, adminRoleID, permID)
	return err
}
