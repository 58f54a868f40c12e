package journal

import (
	"context"
	"sync"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
)

// MemoryJournal implements core.Sink in memory, for testing and for nodes
// running without a database.
type MemoryJournal struct {
	mu     sync.Mutex
	events []core.Event
}

// NewMemoryJournal creates an in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Emit records the event.
func (j *MemoryJournal) Emit(e core.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

// Events returns a copy of all recorded events in emission order.
func (j *MemoryJournal) Events() []core.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]core.Event, len(j.events))
	copy(out, j.events)
	return out
}

// Recent returns up to limit most recent events, newest first.
func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]core.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := len(j.events)
	if limit > n {
		limit = n
	}
	out := make([]core.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, j.events[i])
	}
	return out, nil
}

// Close is a no-op.
func (j *MemoryJournal) Close() error { return nil }

var _ core.Sink = (*MemoryJournal)(nil)
