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
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Partition is the scoped data handle for one tenant schema. Every
// statement runs inside a transaction with SET LOCAL search_path, so one
// set of table definitions serves every tenant and nothing escapes the
// partition.
type Partition struct {
	db     *DB
	schema string
}

// Partition returns a handle bound to the named tenant schema.
func (db *DB) Partition(schema string) *Partition {
	return &Partition{db: db, schema: schema}
}

// Schema returns the physical schema name this handle is bound to.
func (p *Partition) Schema() string {
	return p.schema
}

// InTx runs fn inside a transaction scoped to the partition. SET LOCAL
// reverts with the transaction, so pooled connections never leak a
// search_path across tenants.
func (p *Partition) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, p.db.pool, func(tx pgx.Tx) error {
		schema := pgx.Identifier{p.schema}.Sanitize()
		if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+schema); err != nil {
			return fmt.Errorf("scope to schema %s: %w", p.schema, err)
		}
		return fn(tx)
	})
}

// CreateSchema creates a tenant partition. Implements tenant.SchemaManager.
func (db *DB) CreateSchema(ctx context.Context, name string) error {
	schema := pgx.Identifier{name}.Sanitize()
	if _, err := db.pool.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		return fmt.Errorf("create schema %s: %w", name, err)
	}
	return nil
}

// DropSchema removes a tenant partition and everything in it.
func (db *DB) DropSchema(ctx context.Context, name string) error {
	schema := pgx.Identifier{name}.Sanitize()
	if _, err := db.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", name, err)
	}
	return nil
}
