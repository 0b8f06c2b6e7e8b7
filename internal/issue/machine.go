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
	"slices"

	"github.com/fixpoint/fixpoint/internal/event"
	"github.com/fixpoint/fixpoint/internal/ledger"
)

// TimerRef names one ledger timer to open.
type TimerRef struct {
	Metric string
	SubKey string
}

// TimerClose names one ledger timer to close. A non-required close is a
// no-op when the timer is not running (e.g. issueRepairPauseTime on
// issue_done); a required close failing indicates a guard bug.
type TimerClose struct {
	Metric   string
	SubKey   string
	Required bool
}

// Transition is the planned outcome of one accepted action: the status to
// move to and the ledger effects to apply, all inside one transaction.
type Transition struct {
	Next             Status
	ChangesStatus    bool
	Opens            []TimerRef
	Closes           []TimerClose
	CloseAllActivity bool
}

// Plan validates action against the current status and decides the
// transition. target is the assignee uuid for the person actions;
// openActivity holds the sub-keys with a running issueUserActivity timer.
//
// Plan is pure: it performs no I/O and mutates nothing, so the table below
// is the single authority for transition legality. The event log stays an
// audit trail.
func Plan(current Status, action event.Action, target string, openActivity []string) (Transition, error) {
	switch action {
	case event.ActionIssueAccept:
		if current != StatusNew {
			return Transition{}, rejected(action, current, "issue already accepted or rejected")
		}
		return Transition{
			Next:          StatusAccepted,
			ChangesStatus: true,
			Opens:         []TimerRef{{Metric: ledger.MetricAcceptToStart}},
			Closes:        []TimerClose{{Metric: ledger.MetricResponseTime, Required: true}},
		}, nil

	case event.ActionIssueReject:
		if current != StatusNew {
			return Transition{}, rejected(action, current, "issue already accepted or rejected")
		}
		return Transition{
			Next:          StatusRejected,
			ChangesStatus: true,
			Closes: []TimerClose{
				{Metric: ledger.MetricResponseTime, Required: true},
				{Metric: ledger.MetricTotalTime, Required: true},
			},
			CloseAllActivity: true,
		}, nil

	case event.ActionIssueAddPerson:
		if current.Terminal() {
			return Transition{}, rejected(action, current, "issue already closed")
		}
		if current == StatusNew {
			return Transition{}, rejected(action, current, "issue not accepted")
		}
		if target == "" {
			return Transition{}, rejected(action, current, "assignee uuid is required")
		}
		if slices.Contains(openActivity, target) {
			return Transition{}, rejected(action, current, "user already assigned")
		}
		return Transition{
			Next:          StatusAssigned,
			ChangesStatus: true,
			Opens:         []TimerRef{{Metric: ledger.MetricUserActivity, SubKey: target}},
		}, nil

	case event.ActionIssueRemovePerson:
		if current.Terminal() {
			return Transition{}, rejected(action, current, "issue already closed")
		}
		if !slices.Contains(openActivity, target) {
			return Transition{}, rejected(action, current, "no user to remove")
		}
		return Transition{
			Next:   current,
			Closes: []TimerClose{{Metric: ledger.MetricUserActivity, SubKey: target, Required: true}},
		}, nil

	case event.ActionIssueStartProgress:
		if current != StatusAssigned && current != StatusPaused {
			return Transition{}, rejected(action, current, "issue not assigned")
		}
		return Transition{
			Next:          StatusInProgress,
			ChangesStatus: true,
			Opens:         []TimerRef{{Metric: ledger.MetricRepairTime}},
			Closes: []TimerClose{
				{Metric: ledger.MetricAcceptToStart},
				{Metric: ledger.MetricRepairPauseTime},
			},
		}, nil

	case event.ActionIssuePause:
		if current != StatusInProgress {
			return Transition{}, rejected(action, current, "no started task")
		}
		return Transition{
			Next:          StatusPaused,
			ChangesStatus: true,
			Opens:         []TimerRef{{Metric: ledger.MetricRepairPauseTime}},
			Closes:        []TimerClose{{Metric: ledger.MetricRepairTime, Required: true}},
		}, nil

	case event.ActionIssueResume:
		if current != StatusPaused {
			return Transition{}, rejected(action, current, "issue is not paused")
		}
		return Transition{
			Next:          StatusInProgress,
			ChangesStatus: true,
			Opens:         []TimerRef{{Metric: ledger.MetricRepairTime}},
			Closes:        []TimerClose{{Metric: ledger.MetricRepairPauseTime, Required: true}},
		}, nil

	case event.ActionIssueDone:
		switch current {
		case StatusDone, StatusRejected:
			return Transition{}, rejected(action, current, "issue already closed")
		case StatusNew, StatusAccepted:
			return Transition{}, rejected(action, current, "issue not started")
		}
		return Transition{
			Next:          StatusDone,
			ChangesStatus: true,
			Closes: []TimerClose{
				{Metric: ledger.MetricRepairPauseTime},
				{Metric: ledger.MetricRepairTime},
				{Metric: ledger.MetricTotalTime, Required: true},
			},
			CloseAllActivity: true,
		}, nil

	case event.ActionIssueApprove, event.ActionIssueDecline:
		if current != StatusDone {
			return Transition{}, rejected(action, current, "issue is not done")
		}
		// Review outcome is recorded as an event only.
		return Transition{Next: current}, nil

	default:
		return Transition{}, rejected(action, current, "unknown action")
	}
}
