// Package lifecycle implements the work item state machine.
package lifecycle

import (
	"fmt"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.WorkState][]types.WorkState{
	types.WorkPending:    {types.WorkSkipped, types.WorkFetching, types.WorkFailed},
	types.WorkFetching:   {types.WorkValidating, types.WorkFailed},
	types.WorkValidating: {types.WorkNormalized, types.WorkRejected},
	types.WorkNormalized: {types.WorkLoaded},
	types.WorkSkipped:    {},
	types.WorkFailed:     {},
	types.WorkRejected:   {},
	types.WorkLoaded:     {},
}

// CanTransition checks if moving a work item from one state to another is valid.
func CanTransition(from, to types.WorkState) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates a state change, returning an error if it is invalid.
func Transition(from, to types.WorkState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// Advance moves item to state to, or returns an error and leaves it unchanged.
func Advance(item *types.WorkItem, to types.WorkState) error {
	if err := Transition(item.State, to); err != nil {
		return fmt.Errorf("%s: %w", item.Key, err)
	}
	item.State = to
	return nil
}

// IsTerminal returns true if the state is final for a run.
func IsTerminal(state types.WorkState) bool {
	switch state {
	case types.WorkSkipped, types.WorkFailed, types.WorkRejected, types.WorkLoaded:
		return true
	}
	return false
}
