package memory_test

import (
	"testing"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	vocab := lattice.States("fetch", "parse")
	store := memory.NewStore()
	ports.RunJournalStoreContract(t, store, vocab["fetch"], vocab["parse"])
}
