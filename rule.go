package lattice

// Rule is one candidate transition out of a starting state. At least one of
// Fn or Next must be set.
type Rule struct {
	// Fn computes the transition. When nil, the rule resolves to Next
	// unconditionally.
	Fn TransitionFunc

	// Next is the statically declared destination. When set, Fn only
	// contributes output; when zero, Fn's Outcome names the destination.
	Next State

	// OnError is the destination when Fn returns an error. Zero means the
	// global ErrorState sentinel.
	OnError State
}

// valid reports whether the rule defines enough to ever resolve.
func (r Rule) valid() bool {
	return r.Fn != nil || !r.Next.IsZero()
}

// errorDestination returns where a failing Fn routes to.
func (r Rule) errorDestination() State {
	if r.OnError.IsZero() {
		return ErrorState
	}
	return r.OnError
}
