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

package notify

import (
	"context"
	"log/slog"

	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
)

// LogNotifier records notifications in the log instead of delivering
// them. Used when mail is disabled.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) IssueCreated(ctx context.Context, tenantID string, iss *issue.Issue) {
	slog.InfoContext(ctx, "issue created notification",
		logger.TenantID(tenantID),
		logger.IssueUUID(iss.UUID),
		logger.Symbol(iss.Symbol),
	)
}

func (n *LogNotifier) PersonAssigned(ctx context.Context, tenantID string, iss *issue.Issue, assigneeUUID string) {
	slog.InfoContext(ctx, "person assigned notification",
		logger.TenantID(tenantID),
		logger.IssueUUID(iss.UUID),
		logger.Symbol(iss.Symbol),
		logger.UserID(assigneeUUID),
	)
}
