package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/google/uuid"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates run access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.JournalStore

	mu    sync.Mutex            // global lock for the map
	locks map[string]*lockEntry // active per-run locks

	locker ports.DistributedLocker // optional distributed locker
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for deferred errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a run Manager over the given journal store.
func NewManager(store ports.JournalStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewRunID mints a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(runID) after
// unlocking.
func (m *Manager) acquire(runID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		entry = &lockEntry{}
		m.locks[runID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry when unused.
func (m *Manager) release(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		return // should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, runID)
	}
}

// Load retrieves an existing run's journal from the store.
func (m *Manager) Load(ctx context.Context, runID string) (*lattice.Journal, error) {
	var journal *lattice.Journal
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		var err error
		journal, err = m.store.Load(ctx, runID)
		return err
	})
	return journal, err
}

// LoadOrStart tries to load a run's journal. If not found, it initializes an
// empty one and reserves the ID in the store.
func (m *Manager) LoadOrStart(ctx context.Context, runID string) (*lattice.Journal, error) {
	var journal *lattice.Journal
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		var err error
		journal, err = m.store.Load(ctx, runID)
		if err == nil {
			return nil
		}
		if err != ports.ErrRunNotFound {
			return fmt.Errorf("failed to check run existence: %w", err)
		}

		journal = lattice.NewJournal()
		if err := m.store.Save(ctx, runID, journal); err != nil {
			return fmt.Errorf("failed to initialize run: %w", err)
		}
		return nil
	})
	return journal, err
}

// Save persists the run's journal.
func (m *Manager) Save(ctx context.Context, runID string, journal *lattice.Journal) error {
	return m.WithLock(ctx, runID, func(ctx context.Context) error {
		return m.store.Save(ctx, runID, journal)
	})
}

// Delete removes the run from the store.
func (m *Manager) Delete(ctx context.Context, runID string) error {
	return m.WithLock(ctx, runID, func(ctx context.Context) error {
		return m.store.Delete(ctx, runID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying journal store.
func (m *Manager) Store() ports.JournalStore {
	return m.store
}

// Resume continues a persisted run. It loads the run's journal, attaches it
// to machine so the continuation is recorded, seeks the machine to resume,
// replays the latest recorded output as input, drives the machine to one of
// finals, and persists the extended journal.
//
// The machine must be freshly configured with the same rule table as the
// original run; journals store data, not code.
func (m *Manager) Resume(ctx context.Context, runID string, machine *lattice.Machine, resume lattice.State, finals []lattice.State) (lattice.State, []any, error) {
	var (
		state  lattice.State
		output []any
	)
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		journal, err := m.store.Load(ctx, runID)
		if err != nil {
			return err
		}

		lattice.LogTransitions(machine, journal)

		state, output, err = lattice.Rerun(ctx, machine, resume, finals, journal)
		if err != nil {
			return err
		}

		if err := m.store.Save(ctx, runID, journal); err != nil {
			return fmt.Errorf("failed to persist resumed run: %w", err)
		}
		return nil
	})
	return state, output, err
}

// WithLock executes fn while holding the lock for the run.
func (m *Manager) WithLock(ctx context.Context, runID string, fn func(context.Context) error) error {
	entry := m.acquire(runID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(runID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, runID, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"run_id", runID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
