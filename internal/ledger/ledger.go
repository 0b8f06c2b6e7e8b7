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

// Package ledger represents "how long was X in state Y" as open/close
// interval pairs instead of mutable duration fields. A single mechanism
// serves plain timers (response time) and keyed multiplicities
// (per-assignee activity via sub_key).
package ledger

import (
	"context"
	"errors"
	"time"
)

// Metric names recorded for issues.
const (
	MetricTotalTime       = "issueTotalTime"
	MetricResponseTime    = "issueResponseTime"
	MetricAcceptToStart   = "acceptToStartTime"
	MetricRepairTime      = "issueRepairTime"
	MetricRepairPauseTime = "issueRepairPauseTime"
	MetricUserActivity    = "issueUserActivity"
)

var (
	// ErrDuplicateOpen is returned when an open entry already exists for
	// the same (resource, metric, sub_key). It indicates a bug in the
	// state machine guards and aborts the surrounding transaction.
	ErrDuplicateOpen = errors.New("open ledger entry already exists")

	// ErrNoOpenEntry is returned by a close that found nothing to close.
	ErrNoOpenEntry = errors.New("no open ledger entry")
)

// Entry is one interval of the ledger. closed_at is null while the timer
// runs; duration is computed exactly once, at close time.
type Entry struct {
	UUID            string     `json:"uuid"`
	Resource        string     `json:"resource"`
	ResourceUUID    string     `json:"resource_uuid"`
	Metric          string     `json:"metric"`
	SubKey          string     `json:"sub_key,omitempty"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

// DurationMinutes returns the closed duration in whole minutes, the unit
// reporting consumers expect. Zero for a still-running entry.
func (e *Entry) DurationMinutes() int64 {
	if e.DurationSeconds == nil {
		return 0
	}
	return *e.DurationSeconds / 60
}

// Tx is the transactional persistence surface the ledger operates on.
// Implementations must map a violation of the open-row uniqueness
// constraint to ErrDuplicateOpen and an empty close to ErrNoOpenEntry.
type Tx interface {
	InsertEntry(ctx context.Context, e *Entry) error
	CloseEntry(ctx context.Context, resource, resourceUUID, metric, subKey string, closedAt time.Time) (*Entry, error)
	OpenSubKeys(ctx context.Context, resource, resourceUUID, metric string) ([]string, error)
}
