package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lattice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunJournalStoreContract verifies that a JournalStore implementation adheres
// to the interface contract. The from/to states must be decodable by the
// store (Redis needs them in its vocabulary).
//
// Record values go through the store's codec, so the contract sticks to
// strings and float64 — JSON-backed stores do not preserve Go integer types.
func RunJournalStoreContract(t *testing.T, store JournalStore, from, to lattice.State) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	journal := lattice.NewJournalFrom([]lattice.Record{
		{
			Time:   time.Now().UTC().Truncate(time.Second),
			From:   from,
			To:     to,
			Input:  []any{"page-1", float64(2)},
			Output: []any{"page-2"},
		},
		{
			Time:   time.Now().UTC().Truncate(time.Second),
			From:   to,
			To:     from,
			Output: []any{float64(3)},
		},
	})

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, runID, journal)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		require.Equal(t, 2, loaded.Len())

		records := loaded.Records()
		assert.Equal(t, from, records[0].From)
		assert.Equal(t, to, records[0].To)
		assert.Equal(t, []any{"page-1", float64(2)}, records[0].Input)
		assert.Equal(t, []any{"page-2"}, records[0].Output)
		assert.Equal(t, to, records[1].From)
		assert.Equal(t, []any{float64(3)}, records[1].Output)
	})

	t.Run("Save replaces previous snapshot", func(t *testing.T) {
		shorter := lattice.NewJournalFrom(journal.Records()[:1])
		require.NoError(t, store.Save(ctx, runID, shorter))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.Len())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, runID, journal))

		err := store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Save(ctx, id1, journal))
		require.NoError(t, store.Save(ctx, id2, journal))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
