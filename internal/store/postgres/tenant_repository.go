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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fixpoint/fixpoint/internal/tenant"
)

// TenantRepository implements tenant.Repository against the shared
// registry partition.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant registry repository.
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create inserts a tenant registry row.
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO tenants (tenant_id, name, short_name, tax_id, country, city, qr_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		t.TenantID, t.Name, t.ShortName, t.TaxID, t.Country, t.City, t.QRID,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "tenants_tax_id_uniq") {
			return tenant.ErrDuplicateTaxID
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

// GetByTenantID retrieves a tenant by its partition key.
func (r *TenantRepository) GetByTenantID(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	return r.get(ctx, "tenant_id = $1", tenantID)
}

// GetByQRID retrieves a tenant by its public lookup code.
func (r *TenantRepository) GetByQRID(ctx context.Context, qrID string) (*tenant.Tenant, error) {
	return r.get(ctx, "qr_id = $1", qrID)
}

func (r *TenantRepository) get(ctx context.Context, where string, arg any) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var deletedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT tenant_id, name, short_name, tax_id, country, city, qr_id,
			created_at, updated_at, deleted_at
		FROM tenants
		WHERE `+where+` AND deleted_at IS NULL
	`, arg).Scan(
		&t.TenantID, &t.Name, &t.ShortName, &t.TaxID, &t.Country, &t.City, &t.QRID,
		&t.CreatedAt, &t.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return &t, nil
}

// QRIDExists reports whether a lookup code is already taken, including by
// soft-deleted tenants.
func (r *TenantRepository) QRIDExists(ctx context.Context, qrID string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE qr_id = $1)`, qrID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check qr_id: %w", err)
	}
	return exists, nil
}

// Update applies administrative edits to a tenant row.
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET
			name = $2,
			short_name = $3,
			tax_id = $4,
			country = $5,
			city = $6,
			updated_at = $7
		WHERE tenant_id = $1 AND deleted_at IS NULL
	`, t.TenantID, t.Name, t.ShortName, t.TaxID, t.Country, t.City, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "tenants_tax_id_uniq") {
			return tenant.ErrDuplicateTaxID
		}
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// SoftDelete marks a tenant as removed; the row stays for uniqueness
// checks and audit.
func (r *TenantRepository) SoftDelete(ctx context.Context, tenantID string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET deleted_at = now()
		WHERE tenant_id = $1 AND deleted_at IS NULL
	`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// List lists tenants with pagination.
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT tenant_id, name, short_name, tax_id, country, city, qr_id,
			created_at, updated_at, deleted_at
		FROM tenants
		WHERE deleted_at IS NULL
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&t.TenantID, &t.Name, &t.ShortName, &t.TaxID, &t.Country, &t.City, &t.QRID,
			&t.CreatedAt, &t.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		if deletedAt.Valid {
			t.DeletedAt = &deletedAt.Time
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}
