// Package pool holds the set of handles waiting for a partner. All
// operations share one mutex, so enqueue, dequeue and remove are
// linearizable: two concurrent dequeues can never return the same
// handle, and a removed handle is never returned.
package pool

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"pairsona/internal/obs"
	"pairsona/pkg/interfaces"
	"pairsona/pkg/types"
)

type entry struct {
	handle interfaces.Handle
	seq    uint64
}

// Pool is the waiting set. Arrival order lives in a FIFO ring of ids;
// the map is authoritative. Ids whose entry was removed stay behind in
// the ring and are skipped lazily on dequeue.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *queue.Queue
	seq     uint64
}

func New() *Pool {
	return &Pool{
		entries: make(map[string]*entry),
		order:   queue.New(),
	}
}

// Enqueue adds a Waiting handle. A non-Waiting handle is a state-machine
// misuse, not a client condition.
func (p *Pool) Enqueue(h interfaces.Handle) error {
	if h.State() != types.StateWaiting {
		return fmt.Errorf("%w: %s", ErrNotWaiting, h.State())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := h.ID()
	if _, exists := p.entries[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}

	p.seq++
	p.entries[id] = &entry{handle: h, seq: p.seq}
	p.order.Add(id)
	obs.WaitingClients.Set(float64(len(p.entries)))
	return nil
}

// DequeueOldest removes and returns the longest-waiting handle, or
// false when the pool is empty.
func (p *Pool) DequeueOldest() (interfaces.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.order.Length() > 0 {
		id := p.order.Remove().(string)
		e, live := p.entries[id]
		if !live {
			continue // removed earlier, stale ring slot
		}
		delete(p.entries, id)
		obs.WaitingClients.Set(float64(len(p.entries)))
		return e.handle, true
	}
	return nil, false
}

// DequeueBest removes and returns the highest-scoring handle, breaking
// ties toward the longer-waiting one. Used by the location-aware
// policies; score is evaluated under the pool lock and must be cheap.
func (p *Pool) DequeueBest(score func(interfaces.Handle) float64) (interfaces.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *entry
	var bestScore float64
	for _, e := range p.entries {
		s := score(e.handle)
		if best == nil || s > bestScore || (s == bestScore && e.seq < best.seq) {
			best = e
			bestScore = s
		}
	}
	if best == nil {
		return nil, false
	}

	delete(p.entries, best.handle.ID())
	obs.WaitingClients.Set(float64(len(p.entries)))
	return best.handle, true
}

// Remove drops a handle that disconnected before pairing. Idempotent:
// removing an absent id reports false and is not an error.
func (p *Pool) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[id]; !exists {
		return false
	}
	delete(p.entries, id)
	obs.WaitingClients.Set(float64(len(p.entries)))
	return true
}

// DrainAll empties the pool and returns every waiting handle, used at
// shutdown to notify clients that no partner is coming.
func (p *Pool) DrainAll() []interfaces.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	handles := make([]interfaces.Handle, 0, len(p.entries))
	for _, e := range p.entries {
		handles = append(handles, e.handle)
	}
	p.entries = make(map[string]*entry)
	p.order = queue.New()
	obs.WaitingClients.Set(0)
	return handles
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
