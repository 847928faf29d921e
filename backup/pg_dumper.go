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
	"os"
	"os/exec"
)

// PgDumper shells out to the pg_dump/pg_restore client binaries against a
// single connection string. It is the production Dumper; tests substitute
// a fake.
type PgDumper struct {
	DSN string
}

// NewPgDumper creates a Dumper backed by the pg_dump/pg_restore binaries.
func NewPgDumper(dsn string) *PgDumper {
	return &PgDumper{DSN: dsn}
}

// Dump invokes pg_dump in custom format and reports the resulting file size.
func (d *PgDumper) Dump(ctx context.Context, destPath string) (int64, error) {
	cmd := exec.CommandContext(ctx, "pg_dump", "--format=custom", "--file", destPath, d.DSN)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("pg_dump: %w", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return 0, fmt.Errorf("stat dump file: %w", err)
	}
	return info.Size(), nil
}

// Restore invokes pg_restore against the dump file, replacing existing
// objects in the target database.
func (d *PgDumper) Restore(ctx context.Context, srcPath string) error {
	cmd := exec.CommandContext(ctx, "pg_restore", "--clean", "--if-exists", "--dbname", d.DSN, srcPath)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_restore: %w", err)
	}
	return nil
}
