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

// UserRepository implements tenant.DirectoryRepository: the cross-tenant
// user directory in the shared registry partition, keyed by email.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user directory repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a directory entry.
func (r *UserRepository) Create(ctx context.Context, u *tenant.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (uuid, email, full_name, phone, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, u.UUID, u.Email, u.FullName, u.Phone, u.TenantID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_uniq") {
			return fmt.Errorf("user with email %s already exists", u.Email)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*tenant.User, error) {
	return r.get(ctx, "email = $1", email)
}

// GetByUUID retrieves a user by uuid.
func (r *UserRepository) GetByUUID(ctx context.Context, uuid string) (*tenant.User, error) {
	return r.get(ctx, "uuid = $1", uuid)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*tenant.User, error) {
	var u tenant.User
	var tenantID sql.NullString
	var deletedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT uuid, email, full_name, phone, tenant_id, created_at, updated_at, deleted_at
		FROM users
		WHERE `+where+` AND deleted_at IS NULL
	`, arg).Scan(
		&u.UUID, &u.Email, &u.FullName, &u.Phone, &tenantID,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenant.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if tenantID.Valid {
		u.TenantID = tenantID.String
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

// List lists directory entries with pagination.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*tenant.User, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT uuid, email, full_name, phone, tenant_id, created_at, updated_at, deleted_at
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY email
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*tenant.User
	for rows.Next() {
		var u tenant.User
		var tenantID sql.NullString
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&u.UUID, &u.Email, &u.FullName, &u.Phone, &tenantID,
			&u.CreatedAt, &u.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if tenantID.Valid {
			u.TenantID = tenantID.String
		}
		if deletedAt.Valid {
			u.DeletedAt = &deletedAt.Time
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
