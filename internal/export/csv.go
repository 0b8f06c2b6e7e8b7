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

// Package export renders issue reports for download. Durations come from
// the interval ledger and are reported in whole minutes.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/ledger"
)

var csvHeader = []string{
	"symbol",
	"name",
	"status",
	"priority",
	"author_uuid",
	"created_at",
	"tags",
	"response_minutes",
	"accept_to_start_minutes",
	"repair_minutes",
	"pause_minutes",
	"total_minutes",
}

// Row pairs an issue with its ledger entries for reporting.
type Row struct {
	Issue   *issue.Issue
	Entries []*ledger.Entry
}

// WriteCSV writes one report over the given rows. Still-open timers
// contribute nothing; a metric with several closed intervals (pause,
// repair) is reported as their sum.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range rows {
		minutes := sumMinutes(row.Entries)
		record := []string{
			row.Issue.Symbol,
			row.Issue.Name,
			string(row.Issue.Status),
			row.Issue.Priority,
			row.Issue.AuthorUUID,
			row.Issue.CreatedAt.UTC().Format(time.RFC3339),
			strings.Join(row.Issue.Tags, ";"),
			fmt.Sprintf("%d", minutes[ledger.MetricResponseTime]),
			fmt.Sprintf("%d", minutes[ledger.MetricAcceptToStart]),
			fmt.Sprintf("%d", minutes[ledger.MetricRepairTime]),
			fmt.Sprintf("%d", minutes[ledger.MetricRepairPauseTime]),
			fmt.Sprintf("%d", minutes[ledger.MetricTotalTime]),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row for %s: %w", row.Issue.Symbol, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func sumMinutes(entries []*ledger.Entry) map[string]int64 {
	minutes := make(map[string]int64)
	for _, e := range entries {
		if e.ClosedAt == nil {
			continue
		}
		minutes[e.Metric] += e.DurationMinutes()
	}
	return minutes
}
