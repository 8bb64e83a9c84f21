/*
Package lattice is a generic finite-state-machine execution engine: opaque
state tokens, a priority-ordered transition table per state, lifecycle hooks
fired around every transition, and a log-based resumption protocol.

The engine drives a single state-holder through successive transitions. Each
transition's output values become the next transition's input values, so a
machine threads arbitrary data through its run. Concrete machines (a
paginated-API reader, a retry ladder, a conversation flow) live in host code;
lattice only owns the resolution algorithm.

# Concept

A Machine holds a current State and, per starting state, an ordered list of
candidate Rules. Advance tries candidates in priority order: the first rule
whose function resolves a destination wins. A function reports Pass() to let
lower-priority candidates have a go, Goto(state, output...) to name the
destination itself, or Emit(output...) to defer to the rule's static Next
state. A failing function routes to the rule's OnError state (or the global
ErrorState sentinel) with the error captured as output, as data rather than
as a Go error.

# Usage

	vocab := lattice.States("odd", "even", "done")
	odd, even, done := vocab["odd"], vocab["even"], vocab["done"]

	m := lattice.New(lattice.WithInitialState(odd))
	m.AddTransition(odd, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			n := input[0].(int)
			if n >= 4 {
				return lattice.Goto(done, n), nil
			}
			return lattice.Goto(even, n+1), nil
		},
	})
	m.AddTransition(even, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			return lattice.Goto(odd, input[0].(int)+1), nil
		},
	})

	journal := lattice.LogTransitions(m, nil)
	state, output, err := lattice.Run(ctx, m, []lattice.State{done}, 0)

A recorded run can later be resumed partway through with Rerun, which seeks
the machine to a prior state and replays the historical output as fresh
input, skipping side effects the journal already captured.

Subpackages add the operational surface: pkg/schema loads declarative YAML
machine definitions, pkg/session persists journals behind pkg/ports stores
(in-memory and Redis adapters under pkg/adapters), pkg/observability exports
Prometheus metrics, and cmd/lattice wraps it all in a CLI and HTTP server.
*/
package lattice
