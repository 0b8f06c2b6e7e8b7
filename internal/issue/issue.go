package issue

import "time"

// Status is the derived position of an issue in the repair workflow.
type Status string

const (
	StatusNew        Status = "new"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusDone       Status = "done"
)

// Terminal reports whether no further status change is possible.
// Review actions are still recorded after done, without a status change.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusDone
}

// Priority levels
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Issue is a reported problem inside one tenant partition. Identified
// externally by UUID and by a tenant-scoped sequential symbol ("PR-<n>").
type Issue struct {
	UUID       string     `json:"uuid"`
	Symbol     string     `json:"symbol"`
	Name       string     `json:"name"`
	Summary    string     `json:"summary,omitempty"`
	AuthorUUID string     `json:"author_uuid"`
	Priority   string     `json:"priority"`
	Color      string     `json:"color,omitempty"`
	Status     Status     `json:"status"`
	Tags       []string   `json:"tags,omitempty"`
	Files      []string   `json:"files,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}
