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

// Command provision creates one tenant partition from the command line.
// Useful for bootstrapping an environment before the API is reachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fixpoint/fixpoint/internal/audit"
	"github.com/fixpoint/fixpoint/internal/config"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
	"github.com/fixpoint/fixpoint/internal/store/postgres"
	"github.com/fixpoint/fixpoint/internal/tenant"
)

func main() {
	shortName := flag.String("short-name", "", "tenant short name, becomes the schema prefix (required)")
	name := flag.String("name", "", "tenant display name (required)")
	taxID := flag.String("tax-id", "", "tenant tax id, unique across the registry (required)")
	country := flag.String("country", "", "tenant country code")
	city := flag.String("city", "", "tenant city")
	flag.Parse()

	if *shortName == "" || *name == "" || *taxID == "" {
		flag.Usage()
		os.Exit(2)
	}

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
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	migrator := postgres.NewMigrator(db)
	if err := migrator.MigrateRegistry(ctx); err != nil {
		fmt.Printf("Failed to migrate registry: %v\n", err)
		os.Exit(1)
	}

	tenantRepo := postgres.NewTenantRepository(db)
	provisioner := tenant.NewProvisioner(tenantRepo, db, migrator, audit.NewSlogLogger())

	t, err := provisioner.Provision(ctx, *shortName, tenant.Metadata{
		Name:    *name,
		TaxID:   *taxID,
		Country: *country,
		City:    *city,
	})
	if err != nil {
		fmt.Printf("Provisioning failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("tenant_id: %s\nqr_id:     %s\n", t.TenantID, t.QRID)
}
