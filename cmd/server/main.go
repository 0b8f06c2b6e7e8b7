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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fixpoint/fixpoint/internal/audit"
	"github.com/fixpoint/fixpoint/internal/config"
	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/notify"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
	"github.com/fixpoint/fixpoint/internal/observability/metrics"
	"github.com/fixpoint/fixpoint/internal/observability/tracing"
	"github.com/fixpoint/fixpoint/internal/storage"
	"github.com/fixpoint/fixpoint/internal/store/postgres"
	"github.com/fixpoint/fixpoint/internal/tenant"
	transportHTTP "github.com/fixpoint/fixpoint/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting fixpoint issue tracking backend")

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}

	// Initialize database
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
	slog.Info("connected to database")

	// Registry migrations run on every start so the shared partition is
	// always at head. Tenant partitions are migrated by cmd/migrate.
	migrator := postgres.NewMigrator(db)
	if err := migrator.MigrateRegistry(ctx); err != nil {
		slog.Error("failed to migrate registry", logger.Error(err))
		os.Exit(1)
	}

	// Initialize repositories
	tenantRepo := postgres.NewTenantRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	resolver := tenant.NewResolver(tenantRepo, cfg.TenantCache.TTL, cfg.TenantCache.CleanupInterval)

	// Optional attachment storage
	var files *storage.Store
	if cfg.Storage.AccessKey != "" {
		files, err = storage.New(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			URLExpiry: cfg.Storage.URLExpiry,
		})
		if err != nil {
			slog.Error("failed to connect to object storage", logger.Error(err))
			os.Exit(1)
		}
		if err := files.EnsureBucket(ctx); err != nil {
			slog.Error("failed to prepare attachment bucket", logger.Error(err))
			os.Exit(1)
		}
	}

	// Notifications
	var notifier issue.Notifier = notify.NewLogNotifier()
	if cfg.Mail.Enabled {
		mailer, err := notify.NewMailer(notify.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, userRepo)
		if err != nil {
			slog.Error("failed to initialize mailer", logger.Error(err))
			os.Exit(1)
		}
		notifier = mailer
	}

	// Initialize services
	issueService := issue.NewService(notifier, auditLogger)
	tenantService := tenant.NewService(tenantRepo, userRepo, db, resolver, auditLogger)
	provisioner := tenant.NewProvisioner(tenantRepo, db, migrator, auditLogger)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		issueService,
		tenantService,
		provisioner,
		resolver,
		func(t *tenant.Tenant) issue.Store {
			return postgres.NewIssueStore(db.Partition(t.TenantID))
		},
		files,
		meter,
		auditLogger,
		transportHTTP.AuthConfig{
			JWTSecret:    cfg.Auth.JWTSecret,
			TenantHeader: cfg.Auth.TenantHeader,
		},
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
