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

package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/ledger"
)

func closedEntry(metric string, openedAt time.Time, seconds int64) *ledger.Entry {
	closedAt := openedAt.Add(time.Duration(seconds) * time.Second)
	return &ledger.Entry{
		Metric:          metric,
		OpenedAt:        openedAt,
		ClosedAt:        &closedAt,
		DurationSeconds: &seconds,
	}
}

// TestPurpose: Validates the CSV report rendering.
// Scope: Unit Test
// Expected: One header plus one row per issue, with ledger durations converted to minutes and split metrics summed.
func TestWriteCSV(t *testing.T) {
	opened := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	rows := []Row{
		{
			Issue: &issue.Issue{
				Symbol:     "PR-1",
				Name:       "broken lift",
				Status:     issue.StatusDone,
				Priority:   issue.PriorityHigh,
				AuthorUUID: "reporter",
				Tags:       []string{"lift", "urgent"},
				CreatedAt:  opened,
			},
			Entries: []*ledger.Entry{
				closedEntry(ledger.MetricResponseTime, opened, 120),
				closedEntry(ledger.MetricAcceptToStart, opened, 300),
				// Two repair intervals around a pause; the report sums them.
				closedEntry(ledger.MetricRepairTime, opened, 600),
				closedEntry(ledger.MetricRepairTime, opened, 300),
				closedEntry(ledger.MetricRepairPauseTime, opened, 60),
				closedEntry(ledger.MetricTotalTime, opened, 3600),
			},
		},
		{
			Issue: &issue.Issue{
				Symbol:     "PR-2",
				Name:       "still open",
				Status:     issue.StatusInProgress,
				Priority:   issue.PriorityNormal,
				AuthorUUID: "reporter",
				CreatedAt:  opened,
			},
			Entries: []*ledger.Entry{
				closedEntry(ledger.MetricResponseTime, opened, 90),
				// Running timers contribute nothing.
				{Metric: ledger.MetricTotalTime, OpenedAt: opened},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, csvHeader, records[0])

	assert.Equal(t, []string{
		"PR-1", "broken lift", "done", "high", "reporter",
		"2026-08-01T09:00:00Z", "lift;urgent",
		"2", "5", "15", "1", "60",
	}, records[1])

	assert.Equal(t, []string{
		"PR-2", "still open", "in_progress", "normal", "reporter",
		"2026-08-01T09:00:00Z", "",
		"1", "0", "0", "0", "0",
	}, records[2])
}

// TestPurpose: Validates the degenerate report.
// Scope: Unit Test
// Expected: No rows still produce a valid header-only CSV.
func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, csvHeader, records[0])
}
