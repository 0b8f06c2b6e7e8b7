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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixpoint/fixpoint/internal/audit"
	"github.com/fixpoint/fixpoint/internal/event"
	"github.com/fixpoint/fixpoint/internal/ledger"
)

// fakeStore is an in-memory Store with transactional rollback semantics:
// a failing fn restores the pre-transaction state.
type fakeStore struct {
	issues  map[string]*Issue
	events  []*event.Event
	entries []*ledger.Entry
	symbol  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{issues: make(map[string]*Issue)}
}

type fakeSnapshot struct {
	issues  map[string]Issue
	events  []*event.Event
	entries []ledger.Entry
	symbol  int64
}

func (s *fakeStore) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		issues:  make(map[string]Issue, len(s.issues)),
		events:  append([]*event.Event(nil), s.events...),
		entries: make([]ledger.Entry, len(s.entries)),
		symbol:  s.symbol,
	}
	for k, v := range s.issues {
		snap.issues[k] = *v
	}
	for i, e := range s.entries {
		snap.entries[i] = *e
	}
	return snap
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.issues = make(map[string]*Issue, len(snap.issues))
	for k, v := range snap.issues {
		iss := v
		s.issues[k] = &iss
	}
	s.events = snap.events
	s.entries = make([]*ledger.Entry, len(snap.entries))
	for i, e := range snap.entries {
		entry := e
		s.entries[i] = &entry
	}
	s.symbol = snap.symbol
}

func (s *fakeStore) inTx(fn func(tx Tx) error) error {
	snap := s.snapshot()
	if err := fn(&fakeTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *fakeStore) Create(ctx context.Context, fn func(tx Tx) error) error {
	return s.inTx(fn)
}

func (s *fakeStore) Transition(ctx context.Context, issueUUID string, fn func(iss *Issue, tx Tx) error) error {
	iss, ok := s.issues[issueUUID]
	if !ok || iss.DeletedAt != nil {
		return ErrIssueNotFound
	}
	return s.inTx(func(tx Tx) error {
		working := *iss
		return fn(&working, tx)
	})
}

func (s *fakeStore) Get(ctx context.Context, issueUUID string) (*Issue, error) {
	iss, ok := s.issues[issueUUID]
	if !ok || iss.DeletedAt != nil {
		return nil, ErrIssueNotFound
	}
	copied := *iss
	return &copied, nil
}

func (s *fakeStore) List(ctx context.Context, limit, offset int) ([]*Issue, error) {
	var issues []*Issue
	for _, iss := range s.issues {
		if iss.DeletedAt == nil {
			copied := *iss
			issues = append(issues, &copied)
		}
	}
	return issues, nil
}

func (s *fakeStore) UpdateDetails(ctx context.Context, iss *Issue) error {
	stored, ok := s.issues[iss.UUID]
	if !ok || stored.DeletedAt != nil {
		return ErrIssueNotFound
	}
	copied := *iss
	s.issues[iss.UUID] = &copied
	return nil
}

func (s *fakeStore) SoftDelete(ctx context.Context, issueUUID string, at time.Time) error {
	iss, ok := s.issues[issueUUID]
	if !ok || iss.DeletedAt != nil {
		return ErrIssueNotFound
	}
	iss.DeletedAt = &at
	return nil
}

func (s *fakeStore) Events(ctx context.Context, issueUUID string) ([]*event.Event, error) {
	var events []*event.Event
	for _, e := range s.events {
		if e.ResourceUUID == issueUUID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (s *fakeStore) Summaries(ctx context.Context, issueUUID string) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	for _, e := range s.entries {
		if e.ResourceUUID == issueUUID {
			copied := *e
			entries = append(entries, &copied)
		}
	}
	return entries, nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) InsertIssue(ctx context.Context, iss *Issue) error {
	copied := *iss
	t.store.issues[iss.UUID] = &copied
	return nil
}

func (t *fakeTx) UpdateStatus(ctx context.Context, issueUUID string, status Status, updatedAt time.Time) error {
	iss, ok := t.store.issues[issueUUID]
	if !ok || iss.DeletedAt != nil {
		return ErrIssueNotFound
	}
	iss.Status = status
	iss.UpdatedAt = updatedAt
	return nil
}

func (t *fakeTx) NextSymbol(ctx context.Context) (int64, error) {
	t.store.symbol++
	return t.store.symbol, nil
}

func (t *fakeTx) InsertEvent(ctx context.Context, e *event.Event) error {
	copied := *e
	t.store.events = append(t.store.events, &copied)
	return nil
}

func (t *fakeTx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	for _, existing := range t.store.entries {
		if existing.ClosedAt == nil &&
			existing.Resource == e.Resource &&
			existing.ResourceUUID == e.ResourceUUID &&
			existing.Metric == e.Metric &&
			existing.SubKey == e.SubKey {
			return ledger.ErrDuplicateOpen
		}
	}
	copied := *e
	t.store.entries = append(t.store.entries, &copied)
	return nil
}

func (t *fakeTx) CloseEntry(ctx context.Context, resource, resourceUUID, metric, subKey string, closedAt time.Time) (*ledger.Entry, error) {
	for _, e := range t.store.entries {
		if e.ClosedAt == nil &&
			e.Resource == resource &&
			e.ResourceUUID == resourceUUID &&
			e.Metric == metric &&
			e.SubKey == subKey {
			at := closedAt
			duration := int64(closedAt.Sub(e.OpenedAt).Seconds())
			e.ClosedAt = &at
			e.DurationSeconds = &duration
			copied := *e
			return &copied, nil
		}
	}
	return nil, ledger.ErrNoOpenEntry
}

func (t *fakeTx) OpenSubKeys(ctx context.Context, resource, resourceUUID, metric string) ([]string, error) {
	var keys []string
	for _, e := range t.store.entries {
		if e.ClosedAt == nil &&
			e.Resource == resource &&
			e.ResourceUUID == resourceUUID &&
			e.Metric == metric &&
			e.SubKey != "" {
			keys = append(keys, e.SubKey)
		}
	}
	return keys, nil
}

// recordingNotifier captures notifications for assertion. Notifications
// are dispatched on a goroutine, so access is synchronized.
type recordingNotifier struct {
	mu       sync.Mutex
	created  []string
	assigned []string
}

func (n *recordingNotifier) IssueCreated(ctx context.Context, tenantID string, iss *Issue) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, iss.UUID)
}

func (n *recordingNotifier) PersonAssigned(ctx context.Context, tenantID string, iss *Issue, assigneeUUID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, assigneeUUID)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.created), len(n.assigned)
}

// stepClock returns a clock advancing one minute per call.
func stepClock(start time.Time) func() time.Time {
	calls := 0
	return func() time.Time {
		t := start.Add(time.Duration(calls) * time.Minute)
		calls++
		return t
	}
}

func newTestService() (*Service, *fakeStore) {
	svc := NewService(nil, audit.NewSlogLogger())
	svc.now = stepClock(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	return svc, newFakeStore()
}

func entriesByMetric(entries []*ledger.Entry, metric string) []*ledger.Entry {
	var out []*ledger.Entry
	for _, e := range entries {
		if e.Metric == metric {
			out = append(out, e)
		}
	}
	return out
}

// TestPurpose: Validates issue creation effects.
// Scope: Unit Test
// Expected: Issue starts in status new with a sequential symbol, an issue_add event and two running timers.
func TestService_Create(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	iss, err := svc.Create(ctx, store, CreateInput{
		TenantID:   "acme_0001",
		AuthorUUID: "reporter",
		Name:       "leaking roof",
		Summary:    "water in staircase B",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNew, iss.Status)
	assert.Equal(t, "PR-1", iss.Symbol)
	assert.Equal(t, PriorityNormal, iss.Priority)
	assert.NotEmpty(t, iss.UUID)

	events, err := svc.Events(ctx, store, iss.UUID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ActionIssueAdd, events[0].Action)
	assert.Equal(t, "reporter", events[0].AuthorUUID)

	entries, err := svc.Summaries(ctx, store, iss.UUID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Nil(t, e.ClosedAt)
	}
	assert.Len(t, entriesByMetric(entries, ledger.MetricTotalTime), 1)
	assert.Len(t, entriesByMetric(entries, ledger.MetricResponseTime), 1)

	second, err := svc.Create(ctx, store, CreateInput{AuthorUUID: "reporter", Name: "second"})
	require.NoError(t, err)
	assert.Equal(t, "PR-2", second.Symbol)
}

// TestPurpose: Validates the full repair lifecycle and the resulting durations.
// Scope: Unit Test
// Expected: With a clock stepping one minute per operation, every closed interval carries the wall time between its open and close.
func TestService_Apply_FullLifecycleDurations(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	iss, err := svc.Create(ctx, store, CreateInput{AuthorUUID: "reporter", Name: "broken lift"})
	require.NoError(t, err)

	apply := func(action event.Action, target string) {
		t.Helper()
		_, err := svc.Apply(ctx, store, ActionInput{
			IssueUUID:  iss.UUID,
			Action:     action,
			AuthorUUID: "manager",
			TargetUUID: target,
		})
		require.NoError(t, err)
	}

	apply(event.ActionIssueAccept, "")            // t+1m: responseTime closes
	apply(event.ActionIssueAddPerson, "worker-1") // t+2m
	apply(event.ActionIssueStartProgress, "")     // t+3m: acceptToStart closes
	apply(event.ActionIssuePause, "")             // t+4m: repairTime closes
	apply(event.ActionIssueResume, "")            // t+5m: repairPause closes
	apply(event.ActionIssueDone, "")              // t+6m: everything else closes

	got, err := svc.Get(ctx, store, iss.UUID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)

	entries, err := svc.Summaries(ctx, store, iss.UUID)
	require.NoError(t, err)

	minutes := func(metric string) []int64 {
		var out []int64
		for _, e := range entriesByMetric(entries, metric) {
			require.NotNil(t, e.ClosedAt, "%s should be closed", metric)
			out = append(out, e.DurationMinutes())
		}
		return out
	}

	assert.Equal(t, []int64{1}, minutes(ledger.MetricResponseTime))   // open at create, closed at accept
	assert.Equal(t, []int64{2}, minutes(ledger.MetricAcceptToStart))  // accept -> start_progress
	assert.Equal(t, []int64{1, 1}, minutes(ledger.MetricRepairTime))  // start->pause, resume->done
	assert.Equal(t, []int64{1}, minutes(ledger.MetricRepairPauseTime)) // pause -> resume
	assert.Equal(t, []int64{6}, minutes(ledger.MetricTotalTime))      // create -> done
	assert.Equal(t, []int64{4}, minutes(ledger.MetricUserActivity))   // add_person -> done
}

// TestPurpose: Validates that closing an issue stops every assignee's activity timer.
// Scope: Unit Test
// Expected: done closes the activity intervals of all currently assigned users.
func TestService_Apply_DoneClosesAllActivityTimers(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	iss, err := svc.Create(ctx, store, CreateInput{AuthorUUID: "reporter", Name: "two worker job"})
	require.NoError(t, err)

	for _, in := range []ActionInput{
		{IssueUUID: iss.UUID, Action: event.ActionIssueAccept, AuthorUUID: "m"},
		{IssueUUID: iss.UUID, Action: event.ActionIssueAddPerson, AuthorUUID: "m", TargetUUID: "worker-1"},
		{IssueUUID: iss.UUID, Action: event.ActionIssueAddPerson, AuthorUUID: "m", TargetUUID: "worker-2"},
		{IssueUUID: iss.UUID, Action: event.ActionIssueStartProgress, AuthorUUID: "m"},
		{IssueUUID: iss.UUID, Action: event.ActionIssueDone, AuthorUUID: "m"},
	} {
		_, err := svc.Apply(ctx, store, in)
		require.NoError(t, err)
	}

	entries, err := svc.Summaries(ctx, store, iss.UUID)
	require.NoError(t, err)

	activity := entriesByMetric(entries, ledger.MetricUserActivity)
	require.Len(t, activity, 2)
	keys := map[string]bool{}
	for _, e := range activity {
		require.NotNil(t, e.ClosedAt, "activity of %s should be closed", e.SubKey)
		keys[e.SubKey] = true
	}
	assert.True(t, keys["worker-1"])
	assert.True(t, keys["worker-2"])
}

// TestPurpose: Validates that a guard rejection leaves no partial writes.
// Scope: Unit Test
// Expected: reject after accept fails with ErrInvalidTransition; status, events and ledger stay untouched.
func TestService_Apply_RejectedActionRollsBack(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	iss, err := svc.Create(ctx, store, CreateInput{AuthorUUID: "reporter", Name: "contested"})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, store, ActionInput{IssueUUID: iss.UUID, Action: event.ActionIssueAccept, AuthorUUID: "m"})
	require.NoError(t, err)

	eventsBefore, _ := svc.Events(ctx, store, iss.UUID)
	entriesBefore, _ := svc.Summaries(ctx, store, iss.UUID)

	_, err = svc.Apply(ctx, store, ActionInput{IssueUUID: iss.UUID, Action: event.ActionIssueReject, AuthorUUID: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.Get(ctx, store, iss.UUID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)

	eventsAfter, _ := svc.Events(ctx, store, iss.UUID)
	entriesAfter, _ := svc.Summaries(ctx, store, iss.UUID)
	assert.Len(t, eventsAfter, len(eventsBefore))
	assert.Len(t, entriesAfter, len(entriesBefore))
}

// TestPurpose: Validates the remaining Apply guards at the service boundary.
// Scope: Unit Test
// Expected: Unknown actions, issue_add and missing issues are rejected with typed errors.
func TestService_Apply_InputValidation(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	t.Run("unknown action", func(t *testing.T) {
		_, err := svc.Apply(ctx, store, ActionInput{IssueUUID: "x", Action: "issue_explode", AuthorUUID: "m"})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("issue_add is not an apply action", func(t *testing.T) {
		_, err := svc.Apply(ctx, store, ActionInput{IssueUUID: "x", Action: event.ActionIssueAdd, AuthorUUID: "m"})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("missing issue", func(t *testing.T) {
		_, err := svc.Apply(ctx, store, ActionInput{IssueUUID: "no-such-issue", Action: event.ActionIssueAccept, AuthorUUID: "m"})
		assert.ErrorIs(t, err, ErrIssueNotFound)
	})

	t.Run("second accept is rejected", func(t *testing.T) {
		iss, err := svc.Create(ctx, store, CreateInput{AuthorUUID: "r", Name: "once"})
		require.NoError(t, err)
		_, err = svc.Apply(ctx, store, ActionInput{IssueUUID: iss.UUID, Action: event.ActionIssueAccept, AuthorUUID: "m"})
		require.NoError(t, err)
		_, err = svc.Apply(ctx, store, ActionInput{IssueUUID: iss.UUID, Action: event.ActionIssueAccept, AuthorUUID: "m"})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

// TestPurpose: Validates field edits and soft deletion outside the state machine.
// Scope: Unit Test
// Expected: UpdateDetails changes only the provided fields; Delete hides the issue from reads.
func TestService_UpdateDetailsAndDelete(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	iss, err := svc.Create(ctx, store, CreateInput{AuthorUUID: "r", Name: "original", Summary: "keep me"})
	require.NoError(t, err)

	newName := "renamed"
	updated, err := svc.UpdateDetails(ctx, store, UpdateInput{
		IssueUUID: iss.UUID,
		ActorUUID: "r",
		Name:      &newName,
		Tags:      []string{"plumbing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "keep me", updated.Summary)
	assert.Equal(t, StatusNew, updated.Status)

	require.NoError(t, svc.Delete(ctx, store, "acme_0001", iss.UUID, "r"))

	_, err = svc.Get(ctx, store, iss.UUID)
	assert.ErrorIs(t, err, ErrIssueNotFound)

	err = svc.Delete(ctx, store, "acme_0001", iss.UUID, "r")
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

// TestPurpose: Validates that notifications fire after commit and never block the caller.
// Scope: Unit Test
// Expected: IssueCreated fires on create, PersonAssigned on add_person; failures of other actions notify nobody.
func TestService_Notifications(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewService(notifier, audit.NewSlogLogger())
	svc.now = stepClock(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	store := newFakeStore()
	ctx := context.Background()

	iss, err := svc.Create(ctx, store, CreateInput{AuthorUUID: "r", Name: "notify me"})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, store, ActionInput{IssueUUID: iss.UUID, Action: event.ActionIssueAccept, AuthorUUID: "m"})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, store, ActionInput{
		IssueUUID: iss.UUID, Action: event.ActionIssueAddPerson, AuthorUUID: "m", TargetUUID: "worker-1",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		created, assigned := notifier.counts()
		return created == 1 && assigned == 1
	}, time.Second, 10*time.Millisecond)
}
