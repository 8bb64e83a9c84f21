package lattice

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Event names a lifecycle moment of the engine.
type Event string

const (
	// PreTransition fires after the reentrancy guard is taken and before
	// any candidate rule is attempted. The event carries From and Input.
	PreTransition Event = "pretransition"

	// PostTransition fires after the state mutation has committed. The
	// event additionally carries To, Rule and Output.
	PostTransition Event = "posttransition"
)

// TransitionEvent is the payload handed to hooks.
type TransitionEvent struct {
	Time   time.Time
	From   State
	To     State // PostTransition only
	Rule   *Rule // PostTransition only; the matched rule
	Input  []any
	Output []any // PostTransition only
}

// Hook observes a lifecycle event. A non-nil error aborts the advance for
// PreTransition, and propagates to the Advance caller for PostTransition
// (without rolling back the committed state).
type Hook func(ctx context.Context, e *TransitionEvent) error

// On registers a hook for an event. Hooks are kept in registration order and
// fired jointly: all hooks for an event run concurrently and the engine
// waits for every one of them before proceeding. The first error observed
// wins; the others are not aggregated.
func (m *Machine) On(event Event, hook Hook) {
	m.hooks[event] = append(m.hooks[event], hook)
}

// fire invokes every hook registered for event and joins on their
// completion. Hook panics are not recovered; a misbehaving host is a host
// bug, not an engine condition.
func (m *Machine) fire(ctx context.Context, event Event, e *TransitionEvent) error {
	hooks := m.hooks[event]
	if len(hooks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, hook := range hooks {
		hook := hook
		g.Go(func() error {
			return hook(gctx, e)
		})
	}
	return g.Wait()
}
