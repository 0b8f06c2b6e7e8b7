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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixpoint/fixpoint/internal/audit"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
)

// Provisioner creates new tenant partitions and brings them to the
// current schema revision.
type Provisioner struct {
	repo        Repository
	schemas     SchemaManager
	migrator    Migrator
	auditLogger audit.Logger
}

// NewProvisioner creates a new tenant provisioner.
func NewProvisioner(repo Repository, schemas SchemaManager, migrator Migrator, auditLogger audit.Logger) *Provisioner {
	return &Provisioner{
		repo:        repo,
		schemas:     schemas,
		migrator:    migrator,
		auditLogger: auditLogger,
	}
}

// Metadata carries the administrative attributes of a new tenant.
type Metadata struct {
	Name    string
	TaxID   string
	Country string
	City    string
}

// Provision allocates a tenant_id, creates the physical partition, runs
// the migration chain to head, and only then inserts the registry row.
// The ordering makes provisioning all-or-nothing from the resolver's
// point of view: a tenant becomes resolvable only after its partition is
// fully migrated. On failure the partially created schema is dropped and
// ErrProvisioningFailed is returned.
func (p *Provisioner) Provision(ctx context.Context, shortName string, meta Metadata) (*Tenant, error) {
	if shortName == "" {
		return nil, fmt.Errorf("%w: short name is required", ErrProvisioningFailed)
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrProvisioningFailed)
	}
	if meta.TaxID == "" {
		return nil, fmt.Errorf("%w: tax id is required", ErrProvisioningFailed)
	}

	tenantID, err := NewTenantID(shortName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}
	qrID, err := GenerateQRID(ctx, p.repo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	if err := p.schemas.CreateSchema(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("%w: create schema %s: %v", ErrProvisioningFailed, tenantID, err)
	}

	if err := p.migrator.MigrateTenant(ctx, tenantID); err != nil {
		p.dropSchema(ctx, tenantID)
		return nil, fmt.Errorf("%w: migrate schema %s: %v", ErrProvisioningFailed, tenantID, err)
	}

	now := time.Now()
	t := &Tenant{
		TenantID:  tenantID,
		Name:      meta.Name,
		ShortName: shortName,
		TaxID:     meta.TaxID,
		Country:   meta.Country,
		City:      meta.City,
		QRID:      qrID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.repo.Create(ctx, t); err != nil {
		p.dropSchema(ctx, tenantID)
		if errors.Is(err, ErrDuplicateTaxID) {
			return nil, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
		}
		return nil, fmt.Errorf("%w: register tenant %s: %v", ErrProvisioningFailed, tenantID, err)
	}

	p.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantProvisioned,
		TenantID: tenantID,
		Resource: tenantID,
		Metadata: map[string]any{"qr_id": qrID, "short_name": shortName},
	})
	slog.InfoContext(ctx, "tenant provisioned",
		logger.TenantID(tenantID),
		logger.Schema(tenantID),
	)
	return t, nil
}

// dropSchema removes a partially created partition. Best effort: if the
// drop itself fails the schema stays behind, but it is unreachable because
// no registry row points at it.
func (p *Provisioner) dropSchema(ctx context.Context, tenantID string) {
	if err := p.schemas.DropSchema(ctx, tenantID); err != nil {
		slog.ErrorContext(ctx, "failed to drop partial schema after provisioning failure",
			logger.Schema(tenantID),
			logger.Error(err),
		)
	}
}
