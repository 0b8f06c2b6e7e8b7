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

// Command migrate upgrades the registry partition and every tenant
// partition to the current schema revision. Run after deploying a build
// that ships new migrations.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fixpoint/fixpoint/internal/config"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
	"github.com/fixpoint/fixpoint/internal/store/postgres"
)

const listPageSize = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      "text",
		ServiceName: cfg.Observability.ServiceName,
	})

	ctx := context.Background()

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	migrator := postgres.NewMigrator(db)

	slog.Info("migrating registry partition")
	if err := migrator.MigrateRegistry(ctx); err != nil {
		slog.Error("failed to migrate registry", logger.Error(err))
		os.Exit(1)
	}

	tenantRepo := postgres.NewTenantRepository(db)

	migrated := 0
	for offset := 0; ; offset += listPageSize {
		tenants, err := tenantRepo.List(ctx, listPageSize, offset)
		if err != nil {
			slog.Error("failed to list tenants", logger.Error(err))
			os.Exit(1)
		}
		for _, t := range tenants {
			slog.Info("migrating tenant partition", logger.TenantID(t.TenantID))
			if err := migrator.MigrateTenant(ctx, t.TenantID); err != nil {
				slog.Error("failed to migrate tenant partition",
					logger.TenantID(t.TenantID),
					logger.Error(err),
				)
				os.Exit(1)
			}
			migrated++
		}
		if len(tenants) < listPageSize {
			break
		}
	}

	slog.Info("migration complete", "tenant_partitions", migrated)
}
