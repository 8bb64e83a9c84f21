package lattice

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// stateIDs hands out process-wide unique identities. IDs start at 1 so the
// zero State is always distinguishable from a real token.
var stateIDs atomic.Uint64

// State is an opaque token representing one position of an automaton.
// States compare by identity: two tokens created separately are never equal,
// even when they carry the same name. The name exists only for diagnostics.
//
// The zero State means "no state".
type State struct {
	id   uint64
	name string
}

// NewState mints a fresh state token carrying a descriptive name.
func NewState(name string) State {
	return State{id: stateIDs.Add(1), name: name}
}

// States builds a vocabulary of mutually-distinct tokens from descriptive
// names, keyed by name for convenient lookup.
func States(names ...string) map[string]State {
	vocab := make(map[string]State, len(names))
	for _, name := range names {
		vocab[name] = NewState(name)
	}
	return vocab
}

// Reserved sentinel states, constructed once at package initialization.
var (
	// Empty is the default initial state of a Machine built without
	// WithInitialState.
	Empty = NewState("EMPTY")

	// ErrorState is the default destination when a transition function
	// fails and its rule declares no OnError state.
	ErrorState = NewState("ERROR")
)

// IsZero reports whether s is the zero State ("no state").
func (s State) IsZero() bool {
	return s.id == 0
}

// Label derives a human-readable identifier for diagnostics and logs.
// It must never be used for equality: differently-minted states may share
// a name.
func (s State) Label() string {
	if s.name != "" {
		return s.name
	}
	if s.id == 0 {
		return "<none>"
	}
	return fmt.Sprintf("state#%d", s.id)
}

// String implements fmt.Stringer.
func (s State) String() string {
	return s.Label()
}

// MarshalJSON encodes the state as its label. States are not decodable from
// JSON: identity cannot be reconstructed from a string, so persistence
// adapters remap labels through an explicit vocabulary instead.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Label())
}
