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

// Package notify delivers issue notifications. Delivery is best effort:
// the caller has already committed the transition and a failed send only
// produces a log line.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
	"github.com/fixpoint/fixpoint/internal/tenant"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends issue notifications over SMTP. Implements issue.Notifier.
// Recipient addresses come from the user directory.
type Mailer struct {
	client    *mail.Client
	from      string
	directory tenant.DirectoryRepository
}

// NewMailer creates an SMTP mailer.
func NewMailer(cfg Config, directory tenant.DirectoryRepository) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}
	return &Mailer{
		client:    client,
		from:      cfg.From,
		directory: directory,
	}, nil
}

// IssueCreated notifies the reporting user that their issue was recorded.
func (m *Mailer) IssueCreated(ctx context.Context, tenantID string, iss *issue.Issue) {
	u, err := m.directory.GetByUUID(ctx, iss.AuthorUUID)
	if err != nil {
		slog.WarnContext(ctx, "notification skipped, author not in directory",
			logger.TenantID(tenantID),
			logger.IssueUUID(iss.UUID),
			logger.Error(err),
		)
		return
	}
	subject := fmt.Sprintf("[%s] issue recorded: %s", iss.Symbol, iss.Name)
	body := fmt.Sprintf("Your issue %s (%q) was recorded and is awaiting review.\n", iss.Symbol, iss.Name)
	m.send(ctx, tenantID, iss, u.Email, subject, body)
}

// PersonAssigned notifies a newly assigned user.
func (m *Mailer) PersonAssigned(ctx context.Context, tenantID string, iss *issue.Issue, assigneeUUID string) {
	u, err := m.directory.GetByUUID(ctx, assigneeUUID)
	if err != nil {
		slog.WarnContext(ctx, "notification skipped, assignee not in directory",
			logger.TenantID(tenantID),
			logger.IssueUUID(iss.UUID),
			logger.Error(err),
		)
		return
	}
	subject := fmt.Sprintf("[%s] assigned to you: %s", iss.Symbol, iss.Name)
	body := fmt.Sprintf("You were assigned to issue %s (%q).\n", iss.Symbol, iss.Name)
	m.send(ctx, tenantID, iss, u.Email, subject, body)
}

func (m *Mailer) send(ctx context.Context, tenantID string, iss *issue.Issue, to, subject, body string) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		slog.ErrorContext(ctx, "invalid sender address", logger.Error(err))
		return
	}
	if err := msg.To(to); err != nil {
		slog.ErrorContext(ctx, "invalid recipient address",
			logger.Email(to),
			logger.Error(err),
		)
		return
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to send notification",
			logger.TenantID(tenantID),
			logger.IssueUUID(iss.UUID),
			logger.Email(to),
			logger.Error(err),
		)
	}
}
