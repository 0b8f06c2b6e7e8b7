package issue

import (
	"context"
	"time"

	"github.com/fixpoint/fixpoint/internal/event"
	"github.com/fixpoint/fixpoint/internal/ledger"
)

// Tx is the write surface available inside one transition transaction.
// It embeds the ledger surface so event append, timer effects and status
// update commit together or not at all.
type Tx interface {
	ledger.Tx

	InsertIssue(ctx context.Context, iss *Issue) error
	UpdateStatus(ctx context.Context, issueUUID string, status Status, updatedAt time.Time) error
	NextSymbol(ctx context.Context) (int64, error)
	InsertEvent(ctx context.Context, e *event.Event) error
}

// Store provides access to the issues of one tenant partition. A Store is
// the "current partition" handle threaded through every call; nothing in
// this package touches data outside it.
type Store interface {
	// Create runs fn in a transaction used for issue_add.
	Create(ctx context.Context, fn func(tx Tx) error) error

	// Transition loads the issue, locks its row for the duration of the
	// transaction, and runs fn. At most one concurrent transition per
	// issue can win; the loser re-validates against the committed status.
	Transition(ctx context.Context, issueUUID string, fn func(iss *Issue, tx Tx) error) error

	Get(ctx context.Context, issueUUID string) (*Issue, error)
	List(ctx context.Context, limit, offset int) ([]*Issue, error)
	UpdateDetails(ctx context.Context, iss *Issue) error
	SoftDelete(ctx context.Context, issueUUID string, at time.Time) error

	Events(ctx context.Context, issueUUID string) ([]*event.Event, error)
	Summaries(ctx context.Context, issueUUID string) ([]*ledger.Entry, error)
}
