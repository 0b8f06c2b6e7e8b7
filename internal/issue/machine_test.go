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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixpoint/fixpoint/internal/event"
	"github.com/fixpoint/fixpoint/internal/ledger"
)

// TestPurpose: Validates the legality of every action against every status.
// Scope: Unit Test
// Expected: Allowed pairs produce a transition to the expected status, all others are rejected.
func TestPlan_TransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		current  Status
		action   event.Action
		target   string
		activity []string
		wantNext Status
		wantErr  bool
	}{
		// accept: only from new
		{name: "accept from new", current: StatusNew, action: event.ActionIssueAccept, wantNext: StatusAccepted},
		{name: "accept from accepted", current: StatusAccepted, action: event.ActionIssueAccept, wantErr: true},
		{name: "accept from rejected", current: StatusRejected, action: event.ActionIssueAccept, wantErr: true},
		{name: "accept from done", current: StatusDone, action: event.ActionIssueAccept, wantErr: true},

		// reject: only from new
		{name: "reject from new", current: StatusNew, action: event.ActionIssueReject, wantNext: StatusRejected},
		{name: "reject from accepted", current: StatusAccepted, action: event.ActionIssueReject, wantErr: true},
		{name: "reject from in_progress", current: StatusInProgress, action: event.ActionIssueReject, wantErr: true},

		// add_person: any post-accept non-terminal status
		{name: "add person from accepted", current: StatusAccepted, action: event.ActionIssueAddPerson, target: "w1", wantNext: StatusAssigned},
		{name: "add person from assigned", current: StatusAssigned, action: event.ActionIssueAddPerson, target: "w2", activity: []string{"w1"}, wantNext: StatusAssigned},
		{name: "add person from in_progress", current: StatusInProgress, action: event.ActionIssueAddPerson, target: "w2", activity: []string{"w1"}, wantNext: StatusAssigned},
		{name: "add person from paused", current: StatusPaused, action: event.ActionIssueAddPerson, target: "w2", activity: []string{"w1"}, wantNext: StatusAssigned},
		{name: "add person from new", current: StatusNew, action: event.ActionIssueAddPerson, target: "w1", wantErr: true},
		{name: "add person from done", current: StatusDone, action: event.ActionIssueAddPerson, target: "w1", wantErr: true},
		{name: "add person without target", current: StatusAccepted, action: event.ActionIssueAddPerson, wantErr: true},
		{name: "add person already assigned", current: StatusAssigned, action: event.ActionIssueAddPerson, target: "w1", activity: []string{"w1"}, wantErr: true},

		// remove_person: requires a running activity timer for the target
		{name: "remove assigned person", current: StatusAssigned, action: event.ActionIssueRemovePerson, target: "w1", activity: []string{"w1"}, wantNext: StatusAssigned},
		{name: "remove unknown person", current: StatusAssigned, action: event.ActionIssueRemovePerson, target: "w2", activity: []string{"w1"}, wantErr: true},
		{name: "remove person from done", current: StatusDone, action: event.ActionIssueRemovePerson, target: "w1", activity: []string{"w1"}, wantErr: true},

		// start_progress: from assigned or paused
		{name: "start progress from assigned", current: StatusAssigned, action: event.ActionIssueStartProgress, wantNext: StatusInProgress},
		{name: "start progress from paused", current: StatusPaused, action: event.ActionIssueStartProgress, wantNext: StatusInProgress},
		{name: "start progress from new", current: StatusNew, action: event.ActionIssueStartProgress, wantErr: true},
		{name: "start progress from accepted", current: StatusAccepted, action: event.ActionIssueStartProgress, wantErr: true},
		{name: "start progress from in_progress", current: StatusInProgress, action: event.ActionIssueStartProgress, wantErr: true},

		// pause: only from in_progress
		{name: "pause from in_progress", current: StatusInProgress, action: event.ActionIssuePause, wantNext: StatusPaused},
		{name: "pause from assigned", current: StatusAssigned, action: event.ActionIssuePause, wantErr: true},
		{name: "pause from paused", current: StatusPaused, action: event.ActionIssuePause, wantErr: true},

		// resume: only from paused
		{name: "resume from paused", current: StatusPaused, action: event.ActionIssueResume, wantNext: StatusInProgress},
		{name: "resume from in_progress", current: StatusInProgress, action: event.ActionIssueResume, wantErr: true},

		// done: from assigned, in_progress or paused
		{name: "done from assigned", current: StatusAssigned, action: event.ActionIssueDone, wantNext: StatusDone},
		{name: "done from in_progress", current: StatusInProgress, action: event.ActionIssueDone, wantNext: StatusDone},
		{name: "done from paused", current: StatusPaused, action: event.ActionIssueDone, wantNext: StatusDone},
		{name: "done from new", current: StatusNew, action: event.ActionIssueDone, wantErr: true},
		{name: "done from accepted", current: StatusAccepted, action: event.ActionIssueDone, wantErr: true},
		{name: "done from done", current: StatusDone, action: event.ActionIssueDone, wantErr: true},
		{name: "done from rejected", current: StatusRejected, action: event.ActionIssueDone, wantErr: true},

		// approve/decline: review of a done issue, no status change
		{name: "approve from done", current: StatusDone, action: event.ActionIssueApprove, wantNext: StatusDone},
		{name: "decline from done", current: StatusDone, action: event.ActionIssueDecline, wantNext: StatusDone},
		{name: "approve from in_progress", current: StatusInProgress, action: event.ActionIssueApprove, wantErr: true},
		{name: "decline from new", current: StatusNew, action: event.ActionIssueDecline, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Plan(tt.current, tt.action, tt.target, tt.activity)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			if tr.ChangesStatus {
				assert.Equal(t, tt.wantNext, tr.Next)
			} else {
				assert.Equal(t, tt.current, tt.wantNext)
			}
		})
	}
}

// TestPurpose: Validates the ledger effects attached to the key transitions.
// Scope: Unit Test
// Expected: Each transition opens and closes exactly the timers of the transition table.
func TestPlan_LedgerEffects(t *testing.T) {
	t.Run("accept closes response time and opens accept-to-start", func(t *testing.T) {
		tr, err := Plan(StatusNew, event.ActionIssueAccept, "", nil)
		require.NoError(t, err)
		assert.Equal(t, []TimerRef{{Metric: ledger.MetricAcceptToStart}}, tr.Opens)
		assert.Equal(t, []TimerClose{{Metric: ledger.MetricResponseTime, Required: true}}, tr.Closes)
		assert.False(t, tr.CloseAllActivity)
	})

	t.Run("reject closes response and total time and all activity", func(t *testing.T) {
		tr, err := Plan(StatusNew, event.ActionIssueReject, "", nil)
		require.NoError(t, err)
		assert.Empty(t, tr.Opens)
		assert.Equal(t, []TimerClose{
			{Metric: ledger.MetricResponseTime, Required: true},
			{Metric: ledger.MetricTotalTime, Required: true},
		}, tr.Closes)
		assert.True(t, tr.CloseAllActivity)
	})

	t.Run("add person opens a keyed activity timer", func(t *testing.T) {
		tr, err := Plan(StatusAccepted, event.ActionIssueAddPerson, "w1", nil)
		require.NoError(t, err)
		assert.Equal(t, []TimerRef{{Metric: ledger.MetricUserActivity, SubKey: "w1"}}, tr.Opens)
		assert.Empty(t, tr.Closes)
	})

	t.Run("remove person closes exactly that activity timer", func(t *testing.T) {
		tr, err := Plan(StatusAssigned, event.ActionIssueRemovePerson, "w1", []string{"w1", "w2"})
		require.NoError(t, err)
		assert.False(t, tr.ChangesStatus)
		assert.Equal(t, []TimerClose{{Metric: ledger.MetricUserActivity, SubKey: "w1", Required: true}}, tr.Closes)
	})

	t.Run("start progress closes accept-to-start and pause conditionally", func(t *testing.T) {
		tr, err := Plan(StatusAssigned, event.ActionIssueStartProgress, "", nil)
		require.NoError(t, err)
		assert.Equal(t, []TimerRef{{Metric: ledger.MetricRepairTime}}, tr.Opens)
		require.Len(t, tr.Closes, 2)
		for _, c := range tr.Closes {
			assert.False(t, c.Required, "close of %s must tolerate a missing timer", c.Metric)
		}
	})

	t.Run("pause swaps repair for pause timer", func(t *testing.T) {
		tr, err := Plan(StatusInProgress, event.ActionIssuePause, "", nil)
		require.NoError(t, err)
		assert.Equal(t, []TimerRef{{Metric: ledger.MetricRepairPauseTime}}, tr.Opens)
		assert.Equal(t, []TimerClose{{Metric: ledger.MetricRepairTime, Required: true}}, tr.Closes)
	})

	t.Run("resume swaps pause for repair timer", func(t *testing.T) {
		tr, err := Plan(StatusPaused, event.ActionIssueResume, "", nil)
		require.NoError(t, err)
		assert.Equal(t, []TimerRef{{Metric: ledger.MetricRepairTime}}, tr.Opens)
		assert.Equal(t, []TimerClose{{Metric: ledger.MetricRepairPauseTime, Required: true}}, tr.Closes)
	})

	t.Run("done requires only the total timer", func(t *testing.T) {
		tr, err := Plan(StatusInProgress, event.ActionIssueDone, "", nil)
		require.NoError(t, err)
		assert.True(t, tr.CloseAllActivity)
		var required []string
		for _, c := range tr.Closes {
			if c.Required {
				required = append(required, c.Metric)
			}
		}
		assert.Equal(t, []string{ledger.MetricTotalTime}, required)
	})

	t.Run("approve has no ledger effects", func(t *testing.T) {
		tr, err := Plan(StatusDone, event.ActionIssueApprove, "", nil)
		require.NoError(t, err)
		assert.False(t, tr.ChangesStatus)
		assert.Empty(t, tr.Opens)
		assert.Empty(t, tr.Closes)
		assert.False(t, tr.CloseAllActivity)
	})
}

// TestPurpose: Validates that guard rejections carry a usable reason.
// Scope: Unit Test
// Expected: The typed error exposes action, source status and reason.
func TestPlan_RejectionDetails(t *testing.T) {
	_, err := Plan(StatusDone, event.ActionIssueAddPerson, "w1", nil)
	require.Error(t, err)

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, event.ActionIssueAddPerson, ite.Action)
	assert.Equal(t, StatusDone, ite.From)
	assert.Equal(t, "issue already closed", ite.Reason)
}

// TestPurpose: Validates that every non-terminal status has a path to done.
// Scope: Unit Test
// Expected: From each non-terminal status some action sequence reaches the done status.
func TestPlan_DoneIsReachableFromEveryNonTerminalStatus(t *testing.T) {
	// Action attempts per status, in preference order.
	next := map[Status][]event.Action{
		StatusNew:        {event.ActionIssueAccept},
		StatusAccepted:   {event.ActionIssueAddPerson},
		StatusAssigned:   {event.ActionIssueDone},
		StatusInProgress: {event.ActionIssueDone},
		StatusPaused:     {event.ActionIssueDone},
	}

	for _, start := range []Status{StatusNew, StatusAccepted, StatusAssigned, StatusInProgress, StatusPaused} {
		current := start
		for steps := 0; current != StatusDone; steps++ {
			require.Less(t, steps, 10, "no path from %s to done", start)
			actions, ok := next[current]
			require.True(t, ok, "status %s has no outgoing action", current)

			tr, err := Plan(current, actions[0], "w1", nil)
			require.NoError(t, err, "from %s via %s", current, actions[0])
			require.True(t, tr.ChangesStatus)
			current = tr.Next
		}
	}
}
