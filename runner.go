package lattice

import "context"

// Run drives m until it reaches one of finals or the global ErrorState
// sentinel, which is always an implicit terminal. Each step's output values
// are threaded back in as the next step's input; the first step receives
// input. It returns the terminal state and the last output.
//
// Any Advance error stops the loop and is returned as-is, together with
// whatever Advance reported.
func Run(ctx context.Context, m *Machine, finals []State, input ...any) (State, []any, error) {
	terminal := make(map[State]struct{}, len(finals)+1)
	terminal[ErrorState] = struct{}{}
	for _, s := range finals {
		terminal[s] = struct{}{}
	}

	output := input
	for {
		state, out, err := m.Advance(ctx, output...)
		if err != nil {
			return state, out, err
		}
		output = out
		if _, done := terminal[state]; done {
			return state, output, nil
		}
	}
}
