package issue

import (
	"errors"
	"fmt"

	"github.com/fixpoint/fixpoint/internal/event"
)

var (
	ErrIssueNotFound = errors.New("issue not found")

	// ErrInvalidTransition is the errors.Is target for every guard
	// rejection; the concrete value carries the guard-specific reason.
	ErrInvalidTransition = errors.New("invalid transition")
)

// InvalidTransitionError reports a rejected action together with the
// reason of the guard that failed, so the HTTP layer can return a
// specific 4xx message instead of a generic failure.
type InvalidTransitionError struct {
	Action event.Action
	From   Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s from %s: %s", e.Action, e.From, e.Reason)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func rejected(action event.Action, from Status, reason string) error {
	return &InvalidTransitionError{Action: action, From: from, Reason: reason}
}
