package lattice_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aretw0/lattice"
)

// always returns a TransitionFunc that resolves to next with the given output.
func always(next lattice.State, output ...any) lattice.TransitionFunc {
	return func(ctx context.Context, input ...any) (lattice.Outcome, error) {
		return lattice.Goto(next, output...), nil
	}
}

func TestAdvance_StaticRule(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")
	m := lattice.New(lattice.WithInitialState(a))
	if err := m.AddTransition(a, lattice.Rule{Next: b}); err != nil {
		t.Fatalf("AddTransition: %v", err)
	}

	state, output, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state != b {
		t.Errorf("expected %s, got %s", b, state)
	}
	if len(output) != 0 {
		t.Errorf("static rule must produce empty output, got %v", output)
	}
	if m.Current() != b {
		t.Errorf("current state not committed: %s", m.Current())
	}
}

func TestAddTransition_RejectsEmptyRule(t *testing.T) {
	a := lattice.NewState("a")
	m := lattice.New(lattice.WithInitialState(a))

	err := m.AddTransition(a, lattice.Rule{})
	if !errors.Is(err, lattice.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestAdvance_CandidateOrder(t *testing.T) {
	a, first, second := lattice.NewState("a"), lattice.NewState("first"), lattice.NewState("second")

	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{Fn: always(first)})
	m.AddTransition(a, lattice.Rule{Fn: always(second)})

	state, _, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state != first {
		t.Errorf("registration order must win: expected %s, got %s", first, state)
	}
}

func TestPrependTransition_JumpsTheQueue(t *testing.T) {
	a, first, second := lattice.NewState("a"), lattice.NewState("first"), lattice.NewState("second")

	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{Fn: always(first)})
	m.PrependTransition(a, lattice.Rule{Fn: always(second)})

	state, _, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state != second {
		t.Errorf("prepended rule must be tried first: expected %s, got %s", second, state)
	}
}

func TestAdvance_PassTriesNextCandidate(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")

	var firstCalls int
	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			firstCalls++
			return lattice.Pass(), nil
		},
	})
	m.AddTransition(a, lattice.Rule{Fn: always(b, "fallback")})

	state, output, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if firstCalls != 1 {
		t.Errorf("first candidate called %d times", firstCalls)
	}
	if state != b {
		t.Errorf("expected fallback candidate to resolve to %s, got %s", b, state)
	}
	if len(output) != 1 || output[0] != "fallback" {
		t.Errorf("unexpected output: %v", output)
	}
}

func TestAdvance_PassWithStaticNextResolves(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")

	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			return lattice.Pass(), nil
		},
		Next: b,
	})

	state, output, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state != b || len(output) != 0 {
		t.Errorf("expected %s with empty output, got %s / %v", b, state, output)
	}
}

func TestAdvance_ErrorShortCircuitsScan(t *testing.T) {
	a, fallback, sink := lattice.NewState("a"), lattice.NewState("fallback"), lattice.NewState("sink")
	boom := errors.New("boom")

	var fallbackTried bool
	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			return lattice.Outcome{}, boom
		},
		OnError: sink,
	})
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			fallbackTried = true
			return lattice.Goto(fallback), nil
		},
	})

	state, output, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("transition failures are data, not errors: %v", err)
	}
	if fallbackTried {
		t.Error("a failing candidate must terminate the scan")
	}
	if state != sink {
		t.Errorf("expected error destination %s, got %s", sink, state)
	}
	if len(output) != 1 || output[0] != error(boom) {
		t.Errorf("the error must become the sole output value, got %v", output)
	}
}

func TestAdvance_ErrorDefaultsToErrorState(t *testing.T) {
	a := lattice.NewState("a")
	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			return lattice.Outcome{}, errors.New("boom")
		},
	})

	state, _, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state != lattice.ErrorState {
		t.Errorf("expected global ERROR sentinel, got %s", state)
	}
}

func TestAdvance_NoTransitionNamesTheState(t *testing.T) {
	lonely := lattice.NewState("lonely")
	m := lattice.New(lattice.WithInitialState(lonely))

	_, _, err := m.Advance(context.Background())
	var noTransition *lattice.NoTransitionError
	if !errors.As(err, &noTransition) {
		t.Fatalf("expected NoTransitionError, got %v", err)
	}
	if noTransition.From != lonely {
		t.Errorf("error carries wrong state: %s", noTransition.From)
	}
	if !strings.Contains(err.Error(), "lonely") {
		t.Errorf("error message must name the state label: %q", err.Error())
	}
	if m.Current() != lonely {
		t.Errorf("state must be unchanged after a failed attempt, got %s", m.Current())
	}
}

func TestAdvance_Reentrancy(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")

	m := lattice.New(lattice.WithInitialState(a))
	var nested error
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			_, _, nested = m.Advance(ctx)
			return lattice.Goto(b), nil
		},
	})

	if _, _, err := m.Advance(context.Background()); err != nil {
		t.Fatalf("outer Advance: %v", err)
	}
	if !errors.Is(nested, lattice.ErrInTransition) {
		t.Fatalf("nested Advance must fail fast with ErrInTransition, got %v", nested)
	}
	if m.InTransition() {
		t.Error("guard must be released after Advance settles")
	}
}

func TestAdvance_StaticNextWinsOverGoto(t *testing.T) {
	a, static, dynamic := lattice.NewState("a"), lattice.NewState("static"), lattice.NewState("dynamic")

	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn:   always(dynamic, "rest"),
		Next: static,
	})

	state, output, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state != static {
		t.Errorf("static destination must win, got %s", state)
	}
	// The whole outcome, carried state included, becomes output.
	if len(output) != 2 || output[0] != dynamic || output[1] != "rest" {
		t.Errorf("unexpected output: %v", output)
	}
}

func TestAdvance_EmitWithStaticNext(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")

	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			return lattice.Emit("one", 2), nil
		},
		Next: b,
	})

	state, output, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state != b {
		t.Errorf("expected %s, got %s", b, state)
	}
	if len(output) != 2 || output[0] != "one" || output[1] != 2 {
		t.Errorf("unexpected output: %v", output)
	}
}

func TestAdvance_EmitWithoutDestinationFails(t *testing.T) {
	a := lattice.NewState("a")
	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			return lattice.Emit("orphan"), nil
		},
	})

	_, _, err := m.Advance(context.Background())
	if !errors.Is(err, lattice.ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
	if m.Current() != a {
		t.Errorf("state must be unchanged, got %s", m.Current())
	}
}

func TestAdvance_PreHookFailureLeavesStateUnchanged(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")
	boom := errors.New("observer down")

	var ruleCalled bool
	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			ruleCalled = true
			return lattice.Goto(b), nil
		},
	})
	m.On(lattice.PreTransition, func(ctx context.Context, e *lattice.TransitionEvent) error {
		return boom
	})

	_, _, err := m.Advance(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected hook error to propagate, got %v", err)
	}
	if ruleCalled {
		t.Error("no candidate may be attempted when the pre barrier fails")
	}
	if m.Current() != a {
		t.Errorf("state must be unchanged, got %s", m.Current())
	}
	if m.InTransition() {
		t.Error("guard must be released")
	}
}

func TestAdvance_PostHookFailureKeepsCommit(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")
	boom := errors.New("notify failed")

	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{Next: b})
	m.On(lattice.PostTransition, func(ctx context.Context, e *lattice.TransitionEvent) error {
		return boom
	})

	state, _, err := m.Advance(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected hook error to propagate, got %v", err)
	}
	if state != b || m.Current() != b {
		t.Errorf("state mutation must not be rolled back: returned %s, current %s", state, m.Current())
	}
	if m.InTransition() {
		t.Error("guard must be released")
	}
}

func TestAdvance_HooksAllRunAndJoin(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")

	var fired atomic.Int32
	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{Next: b})
	for i := 0; i < 3; i++ {
		m.On(lattice.PostTransition, func(ctx context.Context, e *lattice.TransitionEvent) error {
			fired.Add(1)
			return nil
		})
	}

	if _, _, err := m.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if fired.Load() != 3 {
		t.Errorf("all registered hooks must run, got %d", fired.Load())
	}
}

func TestAdvance_HookPayloads(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")

	var pre, post *lattice.TransitionEvent
	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{Fn: always(b, "out")})
	m.On(lattice.PreTransition, func(ctx context.Context, e *lattice.TransitionEvent) error {
		pre = e
		return nil
	})
	m.On(lattice.PostTransition, func(ctx context.Context, e *lattice.TransitionEvent) error {
		post = e
		return nil
	})

	if _, _, err := m.Advance(context.Background(), 42); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if pre == nil || pre.From != a || len(pre.Input) != 1 || pre.Input[0] != 42 {
		t.Errorf("pretransition payload wrong: %+v", pre)
	}
	if !pre.To.IsZero() || pre.Rule != nil || pre.Output != nil {
		t.Errorf("pretransition must not carry post-only fields: %+v", pre)
	}
	if post == nil || post.From != a || post.To != b || post.Rule == nil {
		t.Errorf("posttransition payload wrong: %+v", post)
	}
	if len(post.Output) != 1 || post.Output[0] != "out" {
		t.Errorf("posttransition output wrong: %v", post.Output)
	}
}

func TestCurrent_SafeDuringAdvance(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")

	started := make(chan struct{})
	m := lattice.New(lattice.WithInitialState(a))
	m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			close(started)
			return lattice.Goto(b), nil
		},
	})

	// Poll the state while the transition resolves and commits, as an
	// inspection endpoint would. Run with -race.
	stop := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		<-started
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := m.Current()
			if s != a && s != b {
				t.Errorf("torn read: %s", s)
				return
			}
			m.InTransition()
		}
	}()

	if _, _, err := m.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	close(stop)
	<-polled
	if m.Current() != b {
		t.Errorf("expected %s, got %s", b, m.Current())
	}
}

func TestNew_DefaultsToEmptySentinel(t *testing.T) {
	m := lattice.New()
	if m.Current() != lattice.Empty {
		t.Errorf("expected EMPTY initial state, got %s", m.Current())
	}
}
