// Package lifecycle implements the migration run state machine.
package lifecycle

import (
	"fmt"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Transition table: from -> allowed tos. ERROR is reachable from every
// non-terminal state and is handled in CanTransition directly.
var validTransitions = map[types.MigrationState][]types.MigrationState{
	types.StateStarting:  {types.StateMigrating, types.StateComplete},
	types.StateMigrating: {types.StateMigrating, types.StatePaused, types.StateComplete},
	types.StatePaused:    {types.StateMigrating, types.StateComplete},
	types.StateComplete:  {},
	types.StateError:     {},
}

// CanTransition checks if transitioning from one migration state to another is valid.
func CanTransition(from, to types.MigrationState) bool {
	if to == types.StateError {
		return from != types.StateError
	}
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

// Transition validates the move between states, returning an error if invalid.
func Transition(from, to types.MigrationState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the state is a terminal (final) state.
// COMPLETE is terminal for the state machine even though the process idles
// afterward instead of exiting.
func IsTerminal(state types.MigrationState) bool {
	return state == types.StateComplete || state == types.StateError
}
