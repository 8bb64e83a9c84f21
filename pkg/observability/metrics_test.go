package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsTransitions(t *testing.T) {
	a, b := lattice.NewState("a"), lattice.NewState("b")

	m := lattice.New(lattice.WithInitialState(a))
	require.NoError(t, m.AddTransition(a, lattice.Rule{Next: b}))
	require.NoError(t, m.AddTransition(b, lattice.Rule{Next: a}))

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	metrics.Instrument(m)

	ctx := context.Background()
	_, _, err := m.Advance(ctx)
	require.NoError(t, err)
	_, _, err = m.Advance(ctx)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TransitionsCounter("a", "b")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TransitionsCounter("b", "a")))
}

func TestMetrics_CountsFailures(t *testing.T) {
	a := lattice.NewState("a")

	m := lattice.New(lattice.WithInitialState(a))
	require.NoError(t, m.AddTransition(a, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			return lattice.Outcome{}, errors.New("boom")
		},
	}))

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	metrics.Instrument(m)

	state, _, err := m.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, lattice.ErrorState, state)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FailuresCounter()))
}
