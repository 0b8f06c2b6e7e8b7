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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fixpoint/fixpoint/internal/event"
	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/ledger"
)

// IssueStore implements issue.Store over one tenant partition.
type IssueStore struct {
	p *Partition
}

// NewIssueStore creates an issue store bound to a partition handle.
func NewIssueStore(p *Partition) *IssueStore {
	return &IssueStore{p: p}
}

const issueColumns = `uuid, symbol, name, summary, author_uuid, priority, color, status,
	tags, files, created_at, updated_at, deleted_at`

func scanIssue(row pgx.Row) (*issue.Issue, error) {
	var iss issue.Issue
	var deletedAt sql.NullTime
	err := row.Scan(
		&iss.UUID, &iss.Symbol, &iss.Name, &iss.Summary, &iss.AuthorUUID,
		&iss.Priority, &iss.Color, &iss.Status, &iss.Tags, &iss.Files,
		&iss.CreatedAt, &iss.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, issue.ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to scan issue: %w", err)
	}
	if deletedAt.Valid {
		iss.DeletedAt = &deletedAt.Time
	}
	return &iss, nil
}

// Create runs fn in one partition-scoped transaction; used for issue_add.
func (s *IssueStore) Create(ctx context.Context, fn func(tx issue.Tx) error) error {
	return s.p.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&issueTx{tx: tx})
	})
}

// Transition locks the issue row for the duration of the transaction so
// two concurrent actions on the same issue serialize; the loser sees the
// committed status and re-runs its guard against it.
func (s *IssueStore) Transition(ctx context.Context, issueUUID string, fn func(iss *issue.Issue, tx issue.Tx) error) error {
	return s.p.InTx(ctx, func(tx pgx.Tx) error {
		iss, err := scanIssue(tx.QueryRow(ctx, `
			SELECT `+issueColumns+`
			FROM issues
			WHERE uuid = $1 AND deleted_at IS NULL
			FOR UPDATE
		`, issueUUID))
		if err != nil {
			return err
		}
		return fn(iss, &issueTx{tx: tx})
	})
}

// Get retrieves an issue by uuid.
func (s *IssueStore) Get(ctx context.Context, issueUUID string) (*issue.Issue, error) {
	var iss *issue.Issue
	err := s.p.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		iss, err = scanIssue(tx.QueryRow(ctx, `
			SELECT `+issueColumns+`
			FROM issues
			WHERE uuid = $1 AND deleted_at IS NULL
		`, issueUUID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return iss, nil
}

// List lists issues with pagination, newest first.
func (s *IssueStore) List(ctx context.Context, limit, offset int) ([]*issue.Issue, error) {
	var issues []*issue.Issue
	err := s.p.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+issueColumns+`
			FROM issues
			WHERE deleted_at IS NULL
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
		if err != nil {
			return fmt.Errorf("failed to list issues: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			iss, err := scanIssue(rows)
			if err != nil {
				return err
			}
			issues = append(issues, iss)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// UpdateDetails persists the status-neutral field edits.
func (s *IssueStore) UpdateDetails(ctx context.Context, iss *issue.Issue) error {
	return s.p.InTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE issues SET
				name = $2,
				summary = $3,
				tags = $4,
				files = $5,
				updated_at = $6
			WHERE uuid = $1 AND deleted_at IS NULL
		`, iss.UUID, iss.Name, iss.Summary, iss.Tags, iss.Files, iss.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update issue: %w", err)
		}
		if result.RowsAffected() == 0 {
			return issue.ErrIssueNotFound
		}
		return nil
	})
}

// SoftDelete marks an issue as deleted.
func (s *IssueStore) SoftDelete(ctx context.Context, issueUUID string, at time.Time) error {
	return s.p.InTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE issues SET deleted_at = $2, updated_at = $2
			WHERE uuid = $1 AND deleted_at IS NULL
		`, issueUUID, at)
		if err != nil {
			return fmt.Errorf("failed to delete issue: %w", err)
		}
		if result.RowsAffected() == 0 {
			return issue.ErrIssueNotFound
		}
		return nil
	})
}

// Events returns the ordered action history of an issue.
func (s *IssueStore) Events(ctx context.Context, issueUUID string) ([]*event.Event, error) {
	var events []*event.Event
	err := s.p.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT uuid, resource, resource_uuid, action, author_uuid,
				description, internal_value, created_at
			FROM events
			WHERE resource = $1 AND resource_uuid = $2
			ORDER BY created_at
		`, event.ResourceIssue, issueUUID)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e event.Event
			var internalValue sql.NullString
			if err := rows.Scan(
				&e.UUID, &e.Resource, &e.ResourceUUID, &e.Action, &e.AuthorUUID,
				&e.Description, &internalValue, &e.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to scan event: %w", err)
			}
			if internalValue.Valid {
				e.InternalValue = internalValue.String
			}
			events = append(events, &e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Summaries returns the interval ledger entries of an issue.
func (s *IssueStore) Summaries(ctx context.Context, issueUUID string) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	err := s.p.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT uuid, resource, resource_uuid, metric, sub_key,
				opened_at, closed_at, duration_seconds
			FROM events_summary
			WHERE resource = $1 AND resource_uuid = $2
			ORDER BY opened_at
		`, event.ResourceIssue, issueUUID)
		if err != nil {
			return fmt.Errorf("failed to list summaries: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var e ledger.Entry
	var subKey sql.NullString
	var closedAt sql.NullTime
	var duration sql.NullInt64
	if err := row.Scan(
		&e.UUID, &e.Resource, &e.ResourceUUID, &e.Metric, &subKey,
		&e.OpenedAt, &closedAt, &duration,
	); err != nil {
		return nil, fmt.Errorf("failed to scan summary: %w", err)
	}
	if subKey.Valid {
		e.SubKey = subKey.String
	}
	if closedAt.Valid {
		e.ClosedAt = &closedAt.Time
	}
	if duration.Valid {
		e.DurationSeconds = &duration.Int64
	}
	return &e, nil
}

// issueTx implements issue.Tx (and with it ledger.Tx) over one open
// partition-scoped transaction.
type issueTx struct {
	tx pgx.Tx
}

func (t *issueTx) InsertIssue(ctx context.Context, iss *issue.Issue) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO issues (uuid, symbol, name, summary, author_uuid, priority, color, status,
			tags, files, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		iss.UUID, iss.Symbol, iss.Name, iss.Summary, iss.AuthorUUID,
		iss.Priority, iss.Color, iss.Status, iss.Tags, iss.Files,
		iss.CreatedAt, iss.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert issue: %w", err)
	}
	return nil
}

func (t *issueTx) UpdateStatus(ctx context.Context, issueUUID string, status issue.Status, updatedAt time.Time) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE issues SET status = $2, updated_at = $3
		WHERE uuid = $1 AND deleted_at IS NULL
	`, issueUUID, status, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return issue.ErrIssueNotFound
	}
	return nil
}

func (t *issueTx) NextSymbol(ctx context.Context) (int64, error) {
	var n int64
	if err := t.tx.QueryRow(ctx, `SELECT nextval('issue_symbol_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to advance symbol sequence: %w", err)
	}
	return n, nil
}

func (t *issueTx) InsertEvent(ctx context.Context, e *event.Event) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO events (uuid, resource, resource_uuid, action, author_uuid,
			description, internal_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
	`,
		e.UUID, e.Resource, e.ResourceUUID, e.Action, e.AuthorUUID,
		e.Description, e.InternalValue, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (t *issueTx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO events_summary (uuid, resource, resource_uuid, metric, sub_key, opened_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, e.UUID, e.Resource, e.ResourceUUID, e.Metric, e.SubKey, e.OpenedAt)
	if err != nil {
		if isUniqueViolation(err, "events_summary_open_uniq") {
			return ledger.ErrDuplicateOpen
		}
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

func (t *issueTx) CloseEntry(ctx context.Context, resource, resourceUUID, metric, subKey string, closedAt time.Time) (*ledger.Entry, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx, `
		UPDATE events_summary SET
			closed_at = $5,
			duration_seconds = EXTRACT(EPOCH FROM ($5 - opened_at))::bigint
		WHERE resource = $1 AND resource_uuid = $2 AND metric = $3
			AND COALESCE(sub_key, '') = $4
			AND closed_at IS NULL
		RETURNING uuid, resource, resource_uuid, metric, sub_key,
			opened_at, closed_at, duration_seconds
	`, resource, resourceUUID, metric, subKey, closedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNoOpenEntry
		}
		return nil, err
	}
	return e, nil
}

func (t *issueTx) OpenSubKeys(ctx context.Context, resource, resourceUUID, metric string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT sub_key FROM events_summary
		WHERE resource = $1 AND resource_uuid = $2 AND metric = $3
			AND sub_key IS NOT NULL AND closed_at IS NULL
		ORDER BY opened_at
	`, resource, resourceUUID, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sub keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan sub key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
