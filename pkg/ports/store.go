package ports

import (
	"context"
	"errors"

	"github.com/aretw0/lattice"
)

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// JournalStore persists transition journals per run ID. Implementations own
// the wire format; callers only see lattice.Record slices in chronological
// order.
//
// Persistence works on the data half of a Record. The matched Rule is code
// and is dropped on the way in; loaded records carry a nil Rule.
type JournalStore interface {
	// Save persists the journal's records for a given run ID, replacing
	// any previous snapshot.
	Save(ctx context.Context, runID string, journal *lattice.Journal) error

	// Load retrieves the journal for a given run ID.
	// Returns ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*lattice.Journal, error)

	// Delete removes the journal for a given run ID.
	Delete(ctx context.Context, runID string) error

	// List returns the known run IDs.
	List(ctx context.Context) ([]string, error)
}
