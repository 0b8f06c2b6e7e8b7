// Copyright 2026 The Fixpoint Authors
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
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Two migration lineages: the shared registry partition and the table set
// every tenant partition is created from.
//
//go:embed migrations/registry/*.sql
var registryFS embed.FS

//go:embed migrations/tenant/*.sql
var tenantFS embed.FS

// Migrator runs the embedded migration lineages against partitions.
// Implements tenant.Migrator.
type Migrator struct {
	dsn string
}

// NewMigrator creates a migrator for the database behind db.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{dsn: db.dsn}
}

// MigrateRegistry upgrades the shared registry partition to head.
func (m *Migrator) MigrateRegistry(ctx context.Context) error {
	return m.run(ctx, "migrations/registry", registryFS, "public")
}

// MigrateTenant upgrades one tenant partition to head. Each partition
// tracks its own revision in its own schema_migrations table.
func (m *Migrator) MigrateTenant(ctx context.Context, schema string) error {
	return m.run(ctx, "migrations/tenant", tenantFS, schema)
}

func (m *Migrator) run(ctx context.Context, path string, fsys embed.FS, schema string) error {
	src, err := iofs.New(fsys, path)
	if err != nil {
		return fmt.Errorf("load migrations from %s: %w", path, err)
	}

	// search_path is passed as a runtime parameter so the unqualified
	// table names in the migration scripts land in the target schema.
	db, err := sql.Open("pgx", m.dsn+" search_path="+schema)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{
		SchemaName:      schema,
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("init migration driver for %s: %w", schema, err)
	}

	mig, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("init migrator for %s: %w", schema, err)
	}

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s to head: %w", schema, err)
	}
	return nil
}
