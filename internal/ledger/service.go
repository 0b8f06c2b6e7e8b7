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

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixpoint/fixpoint/internal/id"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
)

// Ledger binds the open/close operations to one transaction. It is created
// per transition and discarded with the transaction.
type Ledger struct {
	tx  Tx
	now func() time.Time
}

// New creates a ledger over a transaction.
func New(tx Tx) *Ledger {
	return &Ledger{tx: tx, now: time.Now}
}

// NewAt creates a ledger with an explicit clock, used in tests and by the
// state machine so every effect of one transition shares one timestamp.
func NewAt(tx Tx, now func() time.Time) *Ledger {
	return &Ledger{tx: tx, now: now}
}

// Open starts a timer for (resource, metric, subKey). The open-row
// uniqueness constraint guarantees at most one running timer per key even
// under concurrent requests.
func (l *Ledger) Open(ctx context.Context, resource, resourceUUID, metric, subKey string) (*Entry, error) {
	e := &Entry{
		UUID:         id.NewUUIDv7(),
		Resource:     resource,
		ResourceUUID: resourceUUID,
		Metric:       metric,
		SubKey:       subKey,
		OpenedAt:     l.now(),
	}
	if err := l.tx.InsertEntry(ctx, e); err != nil {
		if errors.Is(err, ErrDuplicateOpen) {
			// A duplicate open means a guard let two timers through.
			// Surface it loudly; the transaction rolls back.
			slog.ErrorContext(ctx, "ledger invariant violated: duplicate open timer",
				logger.Metric(metric),
				logger.SubKey(subKey),
				logger.String("resource_uuid", resourceUUID),
			)
			return nil, fmt.Errorf("open %s[%s] for %s: %w", metric, subKey, resourceUUID, ErrDuplicateOpen)
		}
		return nil, fmt.Errorf("open %s for %s: %w", metric, resourceUUID, err)
	}
	return e, nil
}

// Close stops the running timer for (resource, metric, subKey) and fixes
// its duration. Returns ErrNoOpenEntry if no timer is running.
func (l *Ledger) Close(ctx context.Context, resource, resourceUUID, metric, subKey string) (*Entry, error) {
	e, err := l.tx.CloseEntry(ctx, resource, resourceUUID, metric, subKey, l.now())
	if err != nil {
		if errors.Is(err, ErrNoOpenEntry) {
			return nil, fmt.Errorf("close %s for %s: %w", metric, resourceUUID, ErrNoOpenEntry)
		}
		return nil, fmt.Errorf("close %s for %s: %w", metric, resourceUUID, err)
	}
	return e, nil
}

// CloseIfOpen closes the timer when it runs and logs an anomaly otherwise.
// Used for metrics the transition table closes conditionally, e.g.
// issueRepairPauseTime on issue_done.
func (l *Ledger) CloseIfOpen(ctx context.Context, resource, resourceUUID, metric, subKey string) (*Entry, error) {
	e, err := l.tx.CloseEntry(ctx, resource, resourceUUID, metric, subKey, l.now())
	if err != nil {
		if errors.Is(err, ErrNoOpenEntry) {
			slog.WarnContext(ctx, "ledger close skipped: no open entry",
				logger.Metric(metric),
				logger.SubKey(subKey),
				logger.String("resource_uuid", resourceUUID),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("close %s for %s: %w", metric, resourceUUID, err)
	}
	return e, nil
}

// CloseAll closes every running sub-keyed timer of one metric, e.g. all
// issueUserActivity entries when an issue reaches a terminal state.
func (l *Ledger) CloseAll(ctx context.Context, resource, resourceUUID, metric string) ([]*Entry, error) {
	subKeys, err := l.tx.OpenSubKeys(ctx, resource, resourceUUID, metric)
	if err != nil {
		return nil, fmt.Errorf("list open %s for %s: %w", metric, resourceUUID, err)
	}
	entries := make([]*Entry, 0, len(subKeys))
	for _, key := range subKeys {
		e, err := l.Close(ctx, resource, resourceUUID, metric, key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// OpenSubKeys lists the sub-keys with a running timer for one metric.
func (l *Ledger) OpenSubKeys(ctx context.Context, resource, resourceUUID, metric string) ([]string, error) {
	return l.tx.OpenSubKeys(ctx, resource, resourceUUID, metric)
}
