// Package schema loads declarative machine definitions.
//
// A definition names a state vocabulary and a rule table in YAML (or any
// decoded map) and builds a ready-to-run lattice.Machine from it. Rules that
// need computation reference transition functions by name; the host supplies
// the implementations at build time, because journals and definitions store
// data, never code.
package schema

import (
	"fmt"
	"io"

	"github.com/aretw0/lattice"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Definition is the declarative form of a machine.
type Definition struct {
	Name    string     `json:"name" yaml:"name" mapstructure:"name"`
	States  []string   `json:"states" yaml:"states" mapstructure:"states"`
	Initial string     `json:"initial" yaml:"initial" mapstructure:"initial"`
	Finals  []string   `json:"finals,omitempty" yaml:"finals,omitempty" mapstructure:"finals"`
	Rules   []RuleSpec `json:"rules" yaml:"rules" mapstructure:"rules"`
}

// RuleSpec is the declarative form of one transition rule.
type RuleSpec struct {
	From    string `json:"from" yaml:"from" mapstructure:"from"`
	To      string `json:"to,omitempty" yaml:"to,omitempty" mapstructure:"to"`
	Fn      string `json:"fn,omitempty" yaml:"fn,omitempty" mapstructure:"fn"`
	OnError string `json:"on_error,omitempty" yaml:"on_error,omitempty" mapstructure:"on_error"`
	Prepend bool   `json:"prepend,omitempty" yaml:"prepend,omitempty" mapstructure:"prepend"`
}

// Parse reads a YAML definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	return &def, nil
}

// Load reads a YAML definition from r.
func Load(r io.Reader) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return Parse(data)
}

// Decode builds a Definition from an already-unmarshaled map, e.g. one
// embedded in a larger configuration document.
func Decode(raw map[string]any) (*Definition, error) {
	var def Definition
	if err := mapstructure.Decode(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	return &def, nil
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	funcs       map[string]lattice.TransitionFunc
	machineOpts []lattice.Option
}

// WithFuncs supplies the transition-function implementations referenced by
// the definition's rules.
func WithFuncs(funcs map[string]lattice.TransitionFunc) BuildOption {
	return func(c *buildConfig) {
		c.funcs = funcs
	}
}

// WithMachineOptions forwards options to the built machine.
func WithMachineOptions(opts ...lattice.Option) BuildOption {
	return func(c *buildConfig) {
		c.machineOpts = opts
	}
}

// Built is the runnable result of building a Definition.
type Built struct {
	// Machine is ready to drive from the definition's initial state.
	Machine *lattice.Machine

	// Vocab maps declared state names to their minted tokens. Stores that
	// persist by label (e.g. the Redis adapter) need this.
	Vocab map[string]lattice.State

	// Finals are the definition's terminal states, ready for lattice.Run.
	Finals []lattice.State
}

// Build constructs the machine and its state vocabulary. Every state a rule
// references must be declared; every fn name must be supplied via WithFuncs.
func (d *Definition) Build(opts ...BuildOption) (*Built, error) {
	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(d.States) == 0 {
		return nil, fmt.Errorf("definition %q declares no states", d.Name)
	}

	vocab := make(map[string]lattice.State, len(d.States))
	for _, name := range d.States {
		if _, dup := vocab[name]; dup {
			return nil, fmt.Errorf("definition %q declares state %q twice", d.Name, name)
		}
		vocab[name] = lattice.NewState(name)
	}

	lookup := func(name string) (lattice.State, error) {
		if name == "" {
			return lattice.State{}, nil
		}
		state, ok := vocab[name]
		if !ok {
			return lattice.State{}, fmt.Errorf("definition %q references undeclared state %q", d.Name, name)
		}
		return state, nil
	}

	initial, err := lookup(d.Initial)
	if err != nil {
		return nil, err
	}
	machineOpts := cfg.machineOpts
	if !initial.IsZero() {
		machineOpts = append(machineOpts, lattice.WithInitialState(initial))
	}

	m := lattice.New(machineOpts...)

	for i, spec := range d.Rules {
		from, err := lookup(spec.From)
		if err != nil {
			return nil, err
		}
		if from.IsZero() {
			return nil, fmt.Errorf("definition %q: rule %d has no from state", d.Name, i)
		}

		rule := lattice.Rule{}
		if rule.Next, err = lookup(spec.To); err != nil {
			return nil, err
		}
		if rule.OnError, err = lookup(spec.OnError); err != nil {
			return nil, err
		}
		if spec.Fn != "" {
			fn, ok := cfg.funcs[spec.Fn]
			if !ok {
				return nil, fmt.Errorf("definition %q: rule %d references unknown fn %q", d.Name, i, spec.Fn)
			}
			rule.Fn = fn
		}

		if spec.Prepend {
			err = m.PrependTransition(from, rule)
		} else {
			err = m.AddTransition(from, rule)
		}
		if err != nil {
			return nil, fmt.Errorf("definition %q: rule %d: %w", d.Name, i, err)
		}
	}

	finals := make([]lattice.State, 0, len(d.Finals))
	for _, name := range d.Finals {
		state, err := lookup(name)
		if err != nil {
			return nil, err
		}
		finals = append(finals, state)
	}

	return &Built{Machine: m, Vocab: vocab, Finals: finals}, nil
}
