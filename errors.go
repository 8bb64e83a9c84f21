package lattice

import (
	"errors"
	"fmt"
)

// Structural errors signal engine misuse by the host. They always leave the
// guard released and the current state untouched.
var (
	// ErrInTransition is returned by Advance when another Advance on the
	// same Machine has not settled yet.
	ErrInTransition = errors.New("cannot advance while in transition")

	// ErrInvalidRule is returned by AddTransition for a rule that defines
	// neither a transition function nor a next state.
	ErrInvalidRule = errors.New("transition rule must define a function or a next state")

	// ErrNoDestination is returned by Advance when a transition function
	// emits output but neither it nor its rule names a destination.
	ErrNoDestination = errors.New("transition resolved output without a destination state")
)

// NoTransitionError is returned by Advance when no candidate rule for the
// current state resolves a destination.
type NoTransitionError struct {
	From State
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no valid transition from state %s", e.From.Label())
}
