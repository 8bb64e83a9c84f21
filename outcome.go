package lattice

import "context"

// TransitionFunc computes one transition attempt. It receives the input
// values threaded into Advance and reports what happened through an Outcome;
// a returned error routes the machine to the rule's error destination.
//
// The function may block; cancellation is the caller's business via ctx.
type TransitionFunc func(ctx context.Context, input ...any) (Outcome, error)

// Outcome is the result of a transition attempt, classified explicitly
// instead of sniffing return-value shapes. Construct one with Goto, Emit or
// Pass; the zero Outcome behaves like Emit() (resolved, no output).
type Outcome struct {
	state  State
	output []any
	pass   bool
}

// Goto resolves the transition to next, with output carried to the caller
// (and to the next step when driven by Run). When the rule also declares a
// static Next state, the static state wins and the whole outcome, state
// included, becomes output.
func Goto(next State, output ...any) Outcome {
	return Outcome{state: next, output: output}
}

// Emit resolves the transition with output only; the destination comes from
// the rule's static Next state. Emitting from a rule without a Next state is
// a structural error.
func Emit(output ...any) Outcome {
	return Outcome{output: output}
}

// Pass declares the candidate not applicable. On a rule without a static
// Next state the scan moves on to the next candidate; with a static Next
// state the transition still resolves there, with empty output.
func Pass() Outcome {
	return Outcome{pass: true}
}
