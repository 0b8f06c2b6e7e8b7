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

// Package event defines the append-only action log. Events are the system
// of record for what happened and when; they are never updated or deleted.
// They are an audit trail only: transition legality is decided by the
// state machine from the issue status, not by scanning this log.
package event

import "time"

// Action is one entry of the fixed action vocabulary.
type Action string

const (
	ActionIssueAdd           Action = "issue_add"
	ActionIssueAccept        Action = "issue_accept"
	ActionIssueReject        Action = "issue_reject"
	ActionIssueAddPerson     Action = "issue_add_person"
	ActionIssueRemovePerson  Action = "issue_remove_person"
	ActionIssueStartProgress Action = "issue_start_progress"
	ActionIssuePause         Action = "issue_pause"
	ActionIssueResume        Action = "issue_resume"
	ActionIssueDone          Action = "issue_done"
	ActionIssueApprove       Action = "issue_approve"
	ActionIssueDecline       Action = "issue_decline"
)

// Valid reports whether a is part of the action vocabulary.
func (a Action) Valid() bool {
	switch a {
	case ActionIssueAdd, ActionIssueAccept, ActionIssueReject,
		ActionIssueAddPerson, ActionIssueRemovePerson,
		ActionIssueStartProgress, ActionIssuePause, ActionIssueResume,
		ActionIssueDone, ActionIssueApprove, ActionIssueDecline:
		return true
	}
	return false
}

// Resource types an event can refer to.
const (
	ResourceIssue = "issue"
)

// Event is one immutable row of the action log.
type Event struct {
	UUID         string    `json:"uuid"`
	Resource     string    `json:"resource"`
	ResourceUUID string    `json:"resource_uuid"`
	Action       Action    `json:"action"`
	AuthorUUID   string    `json:"author_uuid"`
	Description  string    `json:"description,omitempty"`
	// InternalValue carries an action-specific payload, e.g. the assignee
	// uuid for issue_add_person / issue_remove_person.
	InternalValue string    `json:"internal_value,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
