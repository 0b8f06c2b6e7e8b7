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

package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixpoint/fixpoint/internal/audit"
	"github.com/fixpoint/fixpoint/internal/event"
	"github.com/fixpoint/fixpoint/internal/id"
	"github.com/fixpoint/fixpoint/internal/ledger"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
)

// SymbolPrefix prefixes the tenant-scoped sequential issue symbol.
const SymbolPrefix = "PR-"

// Notifier receives fire-and-forget notifications after a transition has
// committed. Failures are logged and never roll back the transition.
type Notifier interface {
	IssueCreated(ctx context.Context, tenantID string, iss *Issue)
	PersonAssigned(ctx context.Context, tenantID string, iss *Issue, assigneeUUID string)
}

// Service drives the issue state machine. The partition Store is passed
// per call: it is the tenant-context handle resolved for the request.
type Service struct {
	notifier    Notifier
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new issue service.
func NewService(notifier Notifier, auditLogger audit.Logger) *Service {
	return &Service{
		notifier:    notifier,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// CreateInput carries the issue_add payload.
type CreateInput struct {
	TenantID   string
	AuthorUUID string
	Name       string
	Summary    string
	Priority   string
	Color      string
	Tags       []string
	Files      []string
}

// ActionInput carries one state machine action.
type ActionInput struct {
	TenantID    string
	IssueUUID   string
	Action      event.Action
	AuthorUUID  string
	Description string
	// TargetUUID is the assignee for issue_add_person / issue_remove_person.
	TargetUUID string
}

// Create performs issue_add: assigns the next symbol from the partition
// sequence, inserts the issue in status new, appends the issue_add event
// and opens issueTotalTime and issueResponseTime — one transaction.
func (s *Service) Create(ctx context.Context, store Store, in CreateInput) (*Issue, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("issue name is required")
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}

	now := s.now()
	iss := &Issue{
		UUID:       id.NewUUIDv7(),
		Name:       in.Name,
		Summary:    in.Summary,
		AuthorUUID: in.AuthorUUID,
		Priority:   in.Priority,
		Color:      in.Color,
		Status:     StatusNew,
		Tags:       in.Tags,
		Files:      in.Files,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := store.Create(ctx, func(tx Tx) error {
		n, err := tx.NextSymbol(ctx)
		if err != nil {
			return fmt.Errorf("next symbol: %w", err)
		}
		iss.Symbol = fmt.Sprintf("%s%d", SymbolPrefix, n)

		if err := tx.InsertIssue(ctx, iss); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, &event.Event{
			UUID:         id.NewUUIDv7(),
			Resource:     event.ResourceIssue,
			ResourceUUID: iss.UUID,
			Action:       event.ActionIssueAdd,
			AuthorUUID:   in.AuthorUUID,
			Description:  in.Summary,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		led := ledger.NewAt(tx, func() time.Time { return now })
		if _, err := led.Open(ctx, event.ResourceIssue, iss.UUID, ledger.MetricTotalTime, ""); err != nil {
			return err
		}
		if _, err := led.Open(ctx, event.ResourceIssue, iss.UUID, ledger.MetricResponseTime, ""); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIssueCreated,
		TenantID: in.TenantID,
		ActorID:  in.AuthorUUID,
		Resource: iss.UUID,
		Metadata: map[string]any{"symbol": iss.Symbol},
	})
	s.notify(ctx, func(ctx context.Context) {
		s.notifier.IssueCreated(ctx, in.TenantID, iss)
	})

	return iss, nil
}

// Apply validates and applies one action. All effects — the event row, the
// ledger opens/closes and the status update — commit together; a guard
// rejection leaves no trace beyond the audit log.
func (s *Service) Apply(ctx context.Context, store Store, in ActionInput) (*Issue, error) {
	if !in.Action.Valid() || in.Action == event.ActionIssueAdd {
		return nil, rejected(in.Action, "", "unknown action")
	}

	var applied *Issue
	err := store.Transition(ctx, in.IssueUUID, func(iss *Issue, tx Tx) error {
		openActivity, err := tx.OpenSubKeys(ctx, event.ResourceIssue, iss.UUID, ledger.MetricUserActivity)
		if err != nil {
			return fmt.Errorf("list open activity: %w", err)
		}

		tr, err := Plan(iss.Status, in.Action, in.TargetUUID, openActivity)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.InsertEvent(ctx, &event.Event{
			UUID:          id.NewUUIDv7(),
			Resource:      event.ResourceIssue,
			ResourceUUID:  iss.UUID,
			Action:        in.Action,
			AuthorUUID:    in.AuthorUUID,
			Description:   in.Description,
			InternalValue: in.TargetUUID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		led := ledger.NewAt(tx, func() time.Time { return now })
		for _, c := range tr.Closes {
			if c.Required {
				_, err = led.Close(ctx, event.ResourceIssue, iss.UUID, c.Metric, c.SubKey)
			} else {
				_, err = led.CloseIfOpen(ctx, event.ResourceIssue, iss.UUID, c.Metric, c.SubKey)
			}
			if err != nil {
				return err
			}
		}
		if tr.CloseAllActivity {
			if _, err := led.CloseAll(ctx, event.ResourceIssue, iss.UUID, ledger.MetricUserActivity); err != nil {
				return err
			}
		}
		for _, o := range tr.Opens {
			if _, err := led.Open(ctx, event.ResourceIssue, iss.UUID, o.Metric, o.SubKey); err != nil {
				return err
			}
		}

		if tr.ChangesStatus {
			if err := tx.UpdateStatus(ctx, iss.UUID, tr.Next, now); err != nil {
				return err
			}
			iss.Status = tr.Next
			iss.UpdatedAt = now
		}
		applied = iss
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeGuardRejected,
				TenantID: in.TenantID,
				ActorID:  in.AuthorUUID,
				Resource: in.IssueUUID,
				Metadata: map[string]any{"action": string(in.Action), "reason": err.Error()},
			})
		}
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIssueTransition,
		TenantID: in.TenantID,
		ActorID:  in.AuthorUUID,
		Resource: in.IssueUUID,
		Metadata: map[string]any{"action": string(in.Action), "status": string(applied.Status)},
	})
	if in.Action == event.ActionIssueAddPerson {
		target := in.TargetUUID
		s.notify(ctx, func(ctx context.Context) {
			s.notifier.PersonAssigned(ctx, in.TenantID, applied, target)
		})
	}

	return applied, nil
}

// UpdateInput carries direct field edits that do not affect status.
type UpdateInput struct {
	TenantID  string
	IssueUUID string
	ActorUUID string
	Name      *string
	Summary   *string
	Tags      []string
	Files     []string
}

// UpdateDetails edits name/summary/tags/files outside the state machine.
func (s *Service) UpdateDetails(ctx context.Context, store Store, in UpdateInput) (*Issue, error) {
	iss, err := store.Get(ctx, in.IssueUUID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		iss.Name = *in.Name
	}
	if in.Summary != nil {
		iss.Summary = *in.Summary
	}
	if in.Tags != nil {
		iss.Tags = in.Tags
	}
	if in.Files != nil {
		iss.Files = in.Files
	}
	iss.UpdatedAt = s.now()

	if err := store.UpdateDetails(ctx, iss); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIssueUpdated,
		TenantID: in.TenantID,
		ActorID:  in.ActorUUID,
		Resource: iss.UUID,
	})
	return iss, nil
}

// Delete soft-deletes an issue by administrative action.
func (s *Service) Delete(ctx context.Context, store Store, tenantID, issueUUID, actorUUID string) error {
	if err := store.SoftDelete(ctx, issueUUID, s.now()); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIssueDeleted,
		TenantID: tenantID,
		ActorID:  actorUUID,
		Resource: issueUUID,
	})
	return nil
}

// Get retrieves an issue by uuid.
func (s *Service) Get(ctx context.Context, store Store, issueUUID string) (*Issue, error) {
	return store.Get(ctx, issueUUID)
}

// List lists issues with pagination.
func (s *Service) List(ctx context.Context, store Store, limit, offset int) ([]*Issue, error) {
	return store.List(ctx, limit, offset)
}

// Events returns the ordered action history of an issue.
func (s *Service) Events(ctx context.Context, store Store, issueUUID string) ([]*event.Event, error) {
	return store.Events(ctx, issueUUID)
}

// Summaries returns the interval ledger entries of an issue.
func (s *Service) Summaries(ctx context.Context, store Store, issueUUID string) ([]*ledger.Entry, error) {
	return store.Summaries(ctx, issueUUID)
}

// notify runs fn on a detached context so a slow or failing notification
// cannot block the request or undo the committed transition.
func (s *Service) notify(ctx context.Context, fn func(ctx context.Context)) {
	if s.notifier == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("notifier panic", logger.String("panic", fmt.Sprint(r)))
			}
		}()
		fn(context.WithoutCancel(ctx))
	}()
}
