// Package memory implements ports.JournalStore in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/ports"
)

// Store keeps journals in a mutex-guarded map. Safe for concurrent use.
// Suited to tests and single-process hosts; journals vanish with the process.
type Store struct {
	data map[string][]lattice.Record
	mu   sync.RWMutex
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]lattice.Record),
	}
}

// Save snapshots the journal's records for runID.
func (s *Store) Save(ctx context.Context, runID string, journal *lattice.Journal) error {
	records := journal.Records() // already a copy

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[runID] = records
	return nil
}

// Load rebuilds a journal from the stored records.
func (s *Store) Load(ctx context.Context, runID string) (*lattice.Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.data[runID]
	if !ok {
		return nil, ports.ErrRunNotFound
	}
	return lattice.NewJournalFrom(records), nil
}

// Delete removes the run's journal.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns the known run IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.data))
	for id := range s.data {
		runs = append(runs, id)
	}
	return runs, nil
}
