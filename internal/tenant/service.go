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

package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/fixpoint/fixpoint/internal/audit"
	"github.com/fixpoint/fixpoint/internal/id"
)

// Service provides tenant registry and user directory management. All of
// it operates on the shared partition; per-tenant data never passes
// through here.
type Service struct {
	repo        Repository
	directory   DirectoryRepository
	schemas     SchemaManager
	resolver    *Resolver
	auditLogger audit.Logger
}

// NewService creates a new tenant service.
func NewService(repo Repository, directory DirectoryRepository, schemas SchemaManager, resolver *Resolver, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		directory:   directory,
		schemas:     schemas,
		resolver:    resolver,
		auditLogger: auditLogger,
	}
}

// GetTenant retrieves a tenant by its tenant_id.
func (s *Service) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	return s.repo.GetByTenantID(ctx, tenantID)
}

// GetTenantByQRID retrieves a tenant by its public lookup code.
func (s *Service) GetTenantByQRID(ctx context.Context, qrID string) (*Tenant, error) {
	return s.repo.GetByQRID(ctx, qrID)
}

// ListTenants lists tenants with pagination.
func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	return s.repo.List(ctx, limit, offset)
}

// UpdateTenant applies administrative edits and invalidates the cached
// resolution so stale routing cannot outlive the change.
func (s *Service) UpdateTenant(ctx context.Context, t *Tenant) error {
	t.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		return err
	}
	s.resolver.Invalidate(t.TenantID)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantUpdated,
		TenantID: t.TenantID,
		Resource: t.TenantID,
	})
	return nil
}

// Teardown is the explicit removal path: soft-delete the registry row,
// drop the physical partition and evict the cached resolution. Not part
// of any normal flow.
func (s *Service) Teardown(ctx context.Context, tenantID string) error {
	if _, err := s.repo.GetByTenantID(ctx, tenantID); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, tenantID); err != nil {
		return fmt.Errorf("remove tenant %s from registry: %w", tenantID, err)
	}
	s.resolver.Invalidate(tenantID)
	if err := s.schemas.DropSchema(ctx, tenantID); err != nil {
		return fmt.Errorf("drop schema %s: %w", tenantID, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantTeardown,
		TenantID: tenantID,
		Resource: tenantID,
	})
	return nil
}

// CreateUser adds an entry to the cross-tenant user directory.
func (s *Service) CreateUser(ctx context.Context, email, fullName, phone, tenantID string) (*User, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	now := time.Now()
	u := &User{
		UUID:      id.NewUUIDv7(),
		Email:     email,
		FullName:  fullName,
		Phone:     phone,
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.directory.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks a user up in the directory.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.directory.GetByEmail(ctx, email)
}

// ListUsers lists directory entries with pagination.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	return s.directory.List(ctx, limit, offset)
}
