// Package pair maintains the symmetric partner relation for active
// pairs. Insert couples the partner bookkeeping with both handles'
// Waiting -> Paired transitions under one lock, so no lookup can ever
// observe a half-recorded pair.
package pair

import (
	"sync"

	"pairsona/internal/obs"
	"pairsona/pkg/interfaces"
)

// Table maps handle id -> partner handle, both directions always
// present together.
type Table struct {
	mu       sync.RWMutex
	partners map[string]interfaces.Handle
}

func NewTable() *Table {
	return &Table{partners: make(map[string]interfaces.Handle)}
}

// Insert records {a, b} and transitions both handles to Paired. If a
// candidate went away since it was dequeued, Insert fails with a
// StaleError naming it and leaves the other candidate in Waiting.
func (t *Table) Insert(a, b interfaces.Handle) error {
	if a.ID() == b.ID() {
		return ErrSelfPair
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.partners[a.ID()]; exists {
		return ErrAlreadyPaired
	}
	if _, exists := t.partners[b.ID()]; exists {
		return ErrAlreadyPaired
	}

	if err := a.BeginPairing(); err != nil {
		return &StaleError{Handle: a}
	}
	if err := b.BeginPairing(); err != nil {
		a.AbortPairing()
		return &StaleError{Handle: b}
	}

	t.partners[a.ID()] = b
	t.partners[b.ID()] = a
	obs.ActivePairs.Set(float64(len(t.partners) / 2))
	return nil
}

// Remove drops both directions of the relation and returns the partner
// so the caller can notify it. Idempotent; the second remove of a pair
// reports false.
func (t *Table) Remove(id string) (interfaces.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	partner, exists := t.partners[id]
	if !exists {
		return nil, false
	}
	delete(t.partners, id)
	delete(t.partners, partner.ID())
	obs.ActivePairs.Set(float64(len(t.partners) / 2))
	return partner, true
}

// Partner looks up who a handle relays to.
func (t *Table) Partner(id string) (interfaces.Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	partner, exists := t.partners[id]
	return partner, exists
}

// Len is the number of active pairs.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.partners) / 2
}
