// Package match turns the waiting pool into pairs. A single goroutine
// does all selection (the hub pattern), woken on every enqueue and by a
// periodic tick so no waiting handle can starve while a partner exists.
package match

import (
	"context"
	"errors"
	"time"

	"pairsona/internal/obs"
	"pairsona/internal/pair"
	"pairsona/internal/pool"
	"pairsona/pkg/interfaces"
	"pairsona/pkg/types"
)

// Pair is one formed match, already recorded in the pair table with
// both handles in Paired state.
type Pair struct {
	A interfaces.Handle
	B interfaces.Handle
}

// sweepInterval bounds how long a wake-signal race can delay a match.
const sweepInterval = time.Second

type Matchmaker struct {
	pool   *pool.Pool
	table  *pair.Table
	policy string

	wake  chan struct{}
	pairs chan Pair
}

func New(p *pool.Pool, t *pair.Table, policy string) *Matchmaker {
	return &Matchmaker{
		pool:   p,
		table:  t,
		policy: policy,
		wake:   make(chan struct{}, 1),
		pairs:  make(chan Pair, 16),
	}
}

// Start launches the selection loop; it runs until ctx is cancelled.
func (m *Matchmaker) Start(ctx context.Context) {
	go m.run(ctx)
}

// Wake nudges the loop after an enqueue. Never blocks.
func (m *Matchmaker) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Pairs yields formed pairs for the supervisor to relay. The channel is
// closed once the selection loop has exited, so a shutdown drain that
// ranges over it cannot miss a pair buffered during the final round.
func (m *Matchmaker) Pairs() <-chan Pair { return m.pairs }

func (m *Matchmaker) run(ctx context.Context) {
	defer close(m.pairs)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		case <-ticker.C:
		}
		m.matchRound(ctx)
	}
}

// matchRound forms pairs while at least two handles wait. A pool with a
// single handle is left untouched; there is no self-pairing.
func (m *Matchmaker) matchRound(ctx context.Context) {
	for m.pool.Len() >= 2 {
		a, ok := m.pool.DequeueOldest()
		if !ok {
			return
		}
		if dead(a) {
			m.discard(a)
			continue
		}

		b, ok := m.dequeuePartner(a)
		if !ok {
			// Lost the second candidate to a concurrent remove; put the
			// first back and wait for the next arrival.
			m.requeue(a)
			return
		}
		if dead(b) {
			m.discard(b)
			m.requeue(a)
			continue
		}

		if err := m.table.Insert(a, b); err != nil {
			m.handleInsertFailure(a, b, err)
			continue
		}

		obs.PairsFormedTotal.Inc()
		obs.Debug("match.pair", obs.Fields{"a": a.ID(), "b": b.ID(), "policy": m.policy})

		select {
		case m.pairs <- Pair{A: a, B: b}:
		case <-ctx.Done():
			// Stopping with an undelivered pair: unwind it so neither
			// handle is left Paired with no relay.
			m.table.Remove(a.ID())
			for _, h := range []interfaces.Handle{a, b} {
				_ = h.Transition(types.StateClosing)
				_ = h.Transition(types.StateClosed)
				_ = h.Close()
			}
			return
		}
	}
}

// dequeuePartner picks the second candidate according to the policy.
func (m *Matchmaker) dequeuePartner(a interfaces.Handle) (interfaces.Handle, bool) {
	switch m.policy {
	case types.PolicyNearby:
		loc := a.Meta().Location
		return m.pool.DequeueBest(func(h interfaces.Handle) float64 {
			return Proximity(loc, h.Meta().Location)
		})
	case types.PolicyDistant:
		loc := a.Meta().Location
		return m.pool.DequeueBest(func(h interfaces.Handle) float64 {
			return 1 - Proximity(loc, h.Meta().Location)
		})
	default:
		return m.pool.DequeueOldest()
	}
}

// handleInsertFailure applies the stale-candidate semantics: drop the
// dead side, return the survivor to the pool, retry on the next loop
// iteration. Anything else is an internal fault that tears down both
// candidates rather than risking inconsistent state.
func (m *Matchmaker) handleInsertFailure(a, b interfaces.Handle, err error) {
	var stale *pair.StaleError
	if errors.As(err, &stale) {
		m.discard(stale.Handle)
		if stale.Handle.ID() == a.ID() {
			m.requeue(b)
		} else {
			m.requeue(a)
		}
		return
	}

	obs.Error("match.insert", obs.Fields{"err": err.Error(), "a": a.ID(), "b": b.ID()})
	obs.ErrorsTotal.WithLabelValues("pair_insert").Inc()
	m.discard(a)
	m.discard(b)
}

// requeue puts a still-Waiting survivor back into the pool. If its
// client vanished while it was in flight, re-enqueueing would leave a
// dead, unwatched pool entry; discard it instead.
func (m *Matchmaker) requeue(h interfaces.Handle) {
	if dead(h) {
		m.discard(h)
		return
	}
	if err := m.pool.Enqueue(h); err != nil {
		m.discard(h)
	}
}

// discard finishes off a candidate that vanished mid-match.
func (m *Matchmaker) discard(h interfaces.Handle) {
	_ = h.Transition(types.StateClosed)
	_ = h.Close()
}

func dead(h interfaces.Handle) bool {
	select {
	case <-h.Done():
		return true
	default:
		return false
	}
}
