package lattice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Machine is a single sequential automaton: a current state, a priority
// table of transition rules per starting state, and a registry of lifecycle
// hooks. A Machine is built during a setup phase (AddTransition / On) and
// then driven through transitions with Advance; table and registry must not
// be mutated concurrently with an in-flight Advance.
//
// Independent Machines share nothing and may be driven concurrently. Within
// one Machine the inTransition guard enforces mutual exclusion: a second
// Advance fails fast instead of queuing. Current and InTransition may be
// read from other goroutines at any time, e.g. by an inspection endpoint.
type Machine struct {
	mu           sync.RWMutex // guards current against concurrent readers
	current      State
	rules        map[State][]Rule
	hooks        map[Event][]Hook
	inTransition atomic.Bool
	logger       *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithInitialState sets the starting state (default: Empty).
func WithInitialState(s State) Option {
	return func(m *Machine) {
		m.current = s
	}
}

// WithLogger sets a structured logger for transition-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// New creates a Machine in the Empty state with no rules and no hooks.
func New(opts ...Option) *Machine {
	m := &Machine{
		current: Empty,
		rules:   make(map[State][]Rule),
		hooks:   make(map[Event][]Hook),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the machine's current state. Safe to call while an
// Advance is in flight; the result is then a snapshot that may be committed
// over at any moment.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Seek force-sets the current state, bypassing the transition algorithm.
// It exists for resumption (see Rerun); it fires no hooks and records no
// transition.
func (m *Machine) Seek(s State) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

// InTransition reports whether an Advance is in flight. Diagnostic only.
func (m *Machine) InTransition() bool {
	return m.inTransition.Load()
}

// AddTransition appends rule to the candidate list of from. Candidates are
// tried in insertion order; see PrependTransition to jump the queue.
// The table is a priority list, not a graph: no reachability, determinism or
// cycle validation happens here.
func (m *Machine) AddTransition(from State, rule Rule) error {
	return m.insert(from, rule, false)
}

// PrependTransition inserts rule at the front of the candidate list of from,
// making it the highest-priority candidate.
func (m *Machine) PrependTransition(from State, rule Rule) error {
	return m.insert(from, rule, true)
}

func (m *Machine) insert(from State, rule Rule, front bool) error {
	if !rule.valid() {
		return fmt.Errorf("state %s: %w", from.Label(), ErrInvalidRule)
	}
	if front {
		m.rules[from] = append([]Rule{rule}, m.rules[from]...)
	} else {
		m.rules[from] = append(m.rules[from], rule)
	}
	return nil
}

// Advance resolves and applies exactly one transition:
//
//  1. Take the reentrancy guard (fail fast with ErrInTransition).
//  2. Fire PreTransition hooks and join; a failure aborts with the state
//     unchanged.
//  3. Scan the current state's candidates in priority order. The only path
//     that tries the next candidate is a Pass() outcome on a rule without a
//     static Next state. A failing transition function short-circuits the
//     scan and routes to the rule's error destination with the error as the
//     sole output value.
//  4. If nothing resolves, fail with NoTransitionError, state unchanged.
//  5. Commit the new state, then fire PostTransition hooks and join. A hook
//     failure propagates to the caller, but the committed state stands.
//
// The guard is released on every exit path. The returned output values are
// what the matched rule produced; Run threads them into the next Advance.
func (m *Machine) Advance(ctx context.Context, input ...any) (State, []any, error) {
	if !m.inTransition.CompareAndSwap(false, true) {
		return State{}, nil, ErrInTransition
	}
	defer m.inTransition.Store(false)

	from := m.Current()

	pre := &TransitionEvent{Time: time.Now(), From: from, Input: input}
	if err := m.fire(ctx, PreTransition, pre); err != nil {
		return State{}, nil, fmt.Errorf("pretransition hook: %w", err)
	}

	next, output, matched, err := m.resolve(ctx, from, input)
	if err != nil {
		return State{}, nil, err
	}

	m.mu.Lock()
	m.current = next
	m.mu.Unlock()
	m.logger.Debug("transition committed",
		"from", from.Label(),
		"to", next.Label(),
		"outputs", len(output),
	)

	post := &TransitionEvent{
		Time:   time.Now(),
		From:   from,
		To:     next,
		Rule:   matched,
		Input:  input,
		Output: output,
	}
	if err := m.fire(ctx, PostTransition, post); err != nil {
		// Deliberately no rollback: the transition has committed and only
		// the notification failed.
		return next, output, fmt.Errorf("posttransition hook: %w", err)
	}

	return next, output, nil
}

// resolve scans the candidate rules for from and classifies the first
// conclusive outcome.
func (m *Machine) resolve(ctx context.Context, from State, input []any) (State, []any, *Rule, error) {
	candidates := m.rules[from]

	for i := range candidates {
		rule := &candidates[i]

		if rule.Fn == nil {
			// Static rule: adopted unconditionally.
			return rule.Next, nil, rule, nil
		}

		outcome, err := rule.Fn(ctx, input...)
		if err != nil {
			// Error short-circuits the scan, unlike "not applicable".
			return rule.errorDestination(), []any{err}, rule, nil
		}

		switch {
		case outcome.pass:
			if rule.Next.IsZero() {
				continue
			}
			return rule.Next, nil, rule, nil

		case !rule.Next.IsZero():
			// Static destination wins; the entire outcome becomes output.
			output := outcome.output
			if !outcome.state.IsZero() {
				output = append([]any{outcome.state}, outcome.output...)
			}
			return rule.Next, output, rule, nil

		case !outcome.state.IsZero():
			return outcome.state, outcome.output, rule, nil

		default:
			return State{}, nil, nil, fmt.Errorf("state %s: %w", from.Label(), ErrNoDestination)
		}
	}

	return State{}, nil, nil, &NoTransitionError{From: from}
}
