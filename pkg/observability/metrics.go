// Package observability exports Prometheus metrics for lattice machines by
// attaching to the engine's lifecycle hooks.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/lattice"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one or more machines.
type Metrics struct {
	transitions *prometheus.CounterVec
	failures    prometheus.Counter
	duration    prometheus.Histogram

	mu      sync.Mutex
	started map[*lattice.Machine]time.Time
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_transitions_total",
				Help: "Total number of committed transitions",
			},
			[]string{"from", "to"},
		),
		failures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lattice_transition_failures_total",
				Help: "Total number of transitions into the global ERROR sentinel",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "lattice_transition_duration_seconds",
				Help: "Wall-clock duration of Advance calls",
			},
		),
		started: make(map[*lattice.Machine]time.Time),
	}
	reg.MustRegister(m.transitions, m.failures, m.duration)
	return m
}

// TransitionsCounter returns the committed-transition counter for a from/to
// label pair.
func (m *Metrics) TransitionsCounter(from, to string) prometheus.Counter {
	return m.transitions.WithLabelValues(from, to)
}

// FailuresCounter returns the counter of transitions into the ERROR sentinel.
func (m *Metrics) FailuresCounter() prometheus.Counter {
	return m.failures
}

// Instrument attaches the collectors to machine's lifecycle events. One
// advance is in flight per machine at a time (the reentrancy guard), so
// correlating pre and post timestamps per machine is race-free.
func (m *Metrics) Instrument(machine *lattice.Machine) {
	machine.On(lattice.PreTransition, func(ctx context.Context, e *lattice.TransitionEvent) error {
		m.mu.Lock()
		m.started[machine] = e.Time
		m.mu.Unlock()
		return nil
	})
	machine.On(lattice.PostTransition, func(ctx context.Context, e *lattice.TransitionEvent) error {
		m.transitions.WithLabelValues(e.From.Label(), e.To.Label()).Inc()
		if e.To == lattice.ErrorState {
			m.failures.Inc()
		}

		m.mu.Lock()
		started, ok := m.started[machine]
		delete(m.started, machine)
		m.mu.Unlock()
		if ok {
			m.duration.Observe(e.Time.Sub(started).Seconds())
		}
		return nil
	})
}
