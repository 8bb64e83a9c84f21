package lattice

import (
	"context"
	"sync"
	"time"
)

// Record is one committed transition in a Journal.
type Record struct {
	Time   time.Time `json:"time"`
	From   State     `json:"from"`
	To     State     `json:"to"`
	Rule   *Rule     `json:"-"` // code, not data; dropped by persistence
	Input  []any     `json:"input,omitempty"`
	Output []any     `json:"output,omitempty"`
}

// Journal is an append-only history of committed transitions. The producing
// side is a PostTransition hook installed by LogTransitions; the consuming
// side is the caller, who may read between Advance calls. It is never
// truncated.
type Journal struct {
	mu      sync.RWMutex
	records []Record
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// NewJournalFrom creates a journal seeded with existing records, e.g. ones
// loaded from a store.
func NewJournalFrom(records []Record) *Journal {
	j := &Journal{records: make([]Record, len(records))}
	copy(j.records, records)
	return j
}

// Append adds a record to the history.
func (j *Journal) Append(r Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, r)
}

// Records returns a copy of the history in chronological order.
func (j *Journal) Records() []Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Record, len(j.records))
	copy(out, j.records)
	return out
}

// Len returns the number of recorded transitions.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}

// lastOutputTo finds the most recent record whose destination is state and
// returns a copy of its output, so the caller cannot mutate journal storage.
// It returns nil when no such record exists.
func (j *Journal) lastOutputTo(state State) []any {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for i := len(j.records) - 1; i >= 0; i-- {
		if j.records[i].To == state {
			out := make([]any, len(j.records[i].Output))
			copy(out, j.records[i].Output)
			return out
		}
	}
	return nil
}

// LogTransitions registers a PostTransition hook on m that appends a
// timestamped Record per committed transition to j. A nil j is allocated.
// The journal is returned so the caller can retain and read it.
func LogTransitions(m *Machine, j *Journal) *Journal {
	if j == nil {
		j = NewJournal()
	}
	m.On(PostTransition, func(ctx context.Context, e *TransitionEvent) error {
		j.Append(Record{
			Time:   e.Time,
			From:   e.From,
			To:     e.To,
			Rule:   e.Rule,
			Input:  e.Input,
			Output: e.Output,
		})
		return nil
	})
	return j
}

// Rerun resumes a previously recorded run. It scans j backwards for the most
// recent record that arrived at resume, takes that record's output as the
// resumption input (none if no record matches), force-seeks m to resume, and
// hands off to Run. Side effects already captured in j are not replayed.
func Rerun(ctx context.Context, m *Machine, resume State, finals []State, j *Journal) (State, []any, error) {
	var input []any
	if j != nil {
		input = j.lastOutputTo(resume)
	}
	m.Seek(resume)
	return Run(ctx, m, finals, input...)
}
