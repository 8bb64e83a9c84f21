// Package redis implements the persistence ports on Redis: a JournalStore
// for durable run journals and a DistributedLocker for multi-replica hosts.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// record is the wire form of a lattice.Record. States travel as labels and
// are remapped through the store's vocabulary on load; the matched Rule is
// code and does not travel at all.
type record struct {
	Time   time.Time `json:"time"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Input  []any     `json:"input,omitempty"`
	Output []any     `json:"output,omitempty"`
}

// Store implements ports.JournalStore on Redis.
//
// Loading requires a vocabulary mapping state labels back to state tokens,
// so every state a persisted machine can reach must carry a unique name.
// A nil vocabulary puts the store in inspection mode: unknown labels mint
// fresh tokens instead of failing, with identity held only per Store. Such
// journals are fine to print but must not seed a machine.
type Store struct {
	client *backend.Client
	vocab  map[string]lattice.State

	mu     sync.Mutex
	minted map[string]lattice.State

	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for persisted runs. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for runs.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store backed by a fresh client.
func New(address, password string, db int, vocab map[string]lattice.State, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, vocab, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, vocab map[string]lattice.State, opts ...Option) *Store {
	store := &Store{
		client: client,
		vocab:  vocab,
		minted: make(map[string]lattice.State),
		prefix: "lattice:run:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(runID string) string {
	return s.prefix + runID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the journal to Redis, replacing any previous snapshot.
func (s *Store) Save(ctx context.Context, runID string, journal *lattice.Journal) error {
	records := journal.Records()
	wire := make([]record, len(records))
	for i, r := range records {
		wire[i] = record{
			Time:   r.Time,
			From:   r.From.Label(),
			To:     r.To.Label(),
			Input:  r.Input,
			Output: r.Output,
		}
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(runID), data, s.ttl)

	// Index score = expiration time, so List can lazily prune. No TTL maps
	// to a far-future score.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: runID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the journal for runID, remapping state labels through the
// store's vocabulary.
func (s *Store) Load(ctx context.Context, runID string) (*lattice.Journal, error) {
	val, err := s.client.Get(ctx, s.key(runID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, ports.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var wire []record
	if err := json.Unmarshal([]byte(val), &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal: %w", err)
	}

	records := make([]lattice.Record, len(wire))
	for i, w := range wire {
		from, err := s.resolve(w.From)
		if err != nil {
			return nil, err
		}
		to, err := s.resolve(w.To)
		if err != nil {
			return nil, err
		}
		records[i] = lattice.Record{
			Time:   w.Time,
			From:   from,
			To:     to,
			Input:  w.Input,
			Output: w.Output,
		}
	}
	return lattice.NewJournalFrom(records), nil
}

func (s *Store) resolve(label string) (lattice.State, error) {
	// The vocabulary wins over the sentinels, so a machine may declare its
	// own state named "EMPTY" or "ERROR" without it collapsing into the
	// global token.
	if state, ok := s.vocab[label]; ok {
		return state, nil
	}
	switch label {
	case lattice.Empty.Label():
		return lattice.Empty, nil
	case lattice.ErrorState.Label():
		return lattice.ErrorState, nil
	}
	if s.vocab == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		state, ok := s.minted[label]
		if !ok {
			state = lattice.NewState(label)
			s.minted[label] = state
		}
		return state, nil
	}
	return lattice.State{}, fmt.Errorf("state %q is not in the store vocabulary", label)
}

// Delete removes the run.
func (s *Store) Delete(ctx context.Context, runID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns known runs, lazily pruning expired index entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired runs: %w", err)
	}

	runs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
