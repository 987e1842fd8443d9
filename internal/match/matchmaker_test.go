package match

import (
	"context"
	"testing"
	"time"

	"pairsona/internal/pair"
	"pairsona/internal/pool"
	"pairsona/pkg/types"
	"pairsona/tests/fixtures"
)

func startMatchmaker(t *testing.T, policy string) (*Matchmaker, *pool.Pool, *pair.Table) {
	t.Helper()
	p := pool.New()
	table := pair.NewTable()
	m := New(p, table, policy)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m.Start(ctx)
	return m, p, table
}

func awaitPair(t *testing.T, m *Matchmaker) Pair {
	t.Helper()
	select {
	case p := <-m.Pairs():
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no pair formed in time")
		return Pair{}
	}
}

func pairIDs(p Pair) map[string]bool {
	return map[string]bool{p.A.ID(): true, p.B.ID(): true}
}

func TestArrivalOrderPairing(t *testing.T) {
	m, p, table := startMatchmaker(t, types.PolicyArrival)

	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	c := fixtures.NewWaitingHandle("c", types.UnknownLocation())
	for _, h := range []*fixtures.FakeHandle{a, b, c} {
		if err := p.Enqueue(h); err != nil {
			t.Fatal(err)
		}
	}
	m.Wake()

	formed := awaitPair(t, m)
	ids := pairIDs(formed)
	if !ids["a"] || !ids["b"] {
		t.Errorf("first pair should be {a, b}, got %v", ids)
	}

	fixtures.Eventually(t, time.Second, "c should remain waiting alone", func() bool {
		return p.Len() == 1
	})
	if c.State() != types.StateWaiting {
		t.Errorf("c should still be Waiting, got %s", c.State())
	}
	if table.Len() != 1 {
		t.Errorf("expected 1 recorded pair, got %d", table.Len())
	}
}

func TestSingleHandleIsNeverSelfPaired(t *testing.T) {
	m, p, _ := startMatchmaker(t, types.PolicyArrival)

	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	if err := p.Enqueue(a); err != nil {
		t.Fatal(err)
	}
	m.Wake()

	select {
	case formed := <-m.Pairs():
		t.Fatalf("unexpected pair %v from a single handle", pairIDs(formed))
	case <-time.After(100 * time.Millisecond):
	}
	if p.Len() != 1 || a.State() != types.StateWaiting {
		t.Error("lone handle must be left untouched")
	}
}

func TestStaleCandidateIsDiscardedAndSurvivorRetried(t *testing.T) {
	m, p, _ := startMatchmaker(t, types.PolicyArrival)

	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	for _, h := range []*fixtures.FakeHandle{a, b} {
		if err := p.Enqueue(h); err != nil {
			t.Fatal(err)
		}
	}
	// b's client vanished between enqueue and selection.
	b.CloseClient()
	m.Wake()

	// The survivor goes back to the pool and pairs with the next arrival.
	fixtures.Eventually(t, time.Second, "survivor should be re-enqueued", func() bool {
		return p.Len() == 1
	})

	c := fixtures.NewWaitingHandle("c", types.UnknownLocation())
	if err := p.Enqueue(c); err != nil {
		t.Fatal(err)
	}
	m.Wake()

	formed := awaitPair(t, m)
	ids := pairIDs(formed)
	if !ids["a"] || !ids["c"] {
		t.Errorf("expected pair {a, c}, got %v", ids)
	}
}

func TestRequeueDiscardsDeadSurvivor(t *testing.T) {
	p := pool.New()
	m := New(p, pair.NewTable(), types.PolicyArrival)

	// Still Waiting, but the client vanished while the matchmaker held
	// the handle in flight.
	h := fixtures.NewWaitingHandle("gone", types.UnknownLocation())
	h.CloseClient()

	m.requeue(h)

	if p.Len() != 0 {
		t.Errorf("dead handle must not re-enter the pool, len = %d", p.Len())
	}
	if h.State() != types.StateClosed {
		t.Errorf("dead handle should be closed out, got %s", h.State())
	}
}

func TestPairsChannelDrainsAfterStop(t *testing.T) {
	p := pool.New()
	table := pair.NewTable()
	m := New(p, table, types.PolicyArrival)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	for _, h := range []*fixtures.FakeHandle{a, b} {
		if err := p.Enqueue(h); err != nil {
			t.Fatal(err)
		}
	}
	m.Wake()

	// Let the pair sit in the buffer unconsumed, then stop the loop.
	fixtures.Eventually(t, time.Second, "pair should be buffered", func() bool {
		return len(m.pairs) == 1
	})
	cancel()

	var formed []Pair
	for pr := range m.Pairs() {
		formed = append(formed, pr)
	}
	if len(formed) != 1 {
		t.Fatalf("drain after stop should yield the buffered pair, got %d", len(formed))
	}
	ids := pairIDs(formed[0])
	if !ids["a"] || !ids["b"] {
		t.Errorf("expected {a, b}, got %v", ids)
	}
}

func TestNearbyPolicyPrefersCloseLocations(t *testing.T) {
	m, p, _ := startMatchmaker(t, types.PolicyNearby)

	a := fixtures.NewWaitingHandle("a", fixtures.Location("DE", 52.52, 13.405))  // Berlin
	b := fixtures.NewWaitingHandle("b", fixtures.Location("US", 40.71, -74.006)) // New York
	c := fixtures.NewWaitingHandle("c", fixtures.Location("DE", 48.137, 11.575)) // Munich
	for _, h := range []*fixtures.FakeHandle{a, b, c} {
		if err := p.Enqueue(h); err != nil {
			t.Fatal(err)
		}
	}
	m.Wake()

	formed := awaitPair(t, m)
	ids := pairIDs(formed)
	if !ids["a"] || !ids["c"] {
		t.Errorf("nearby policy should pair Berlin with Munich, got %v", ids)
	}
}

func TestDistantPolicyPrefersFarLocations(t *testing.T) {
	m, p, _ := startMatchmaker(t, types.PolicyDistant)

	a := fixtures.NewWaitingHandle("a", fixtures.Location("DE", 52.52, 13.405))
	b := fixtures.NewWaitingHandle("b", fixtures.Location("US", 40.71, -74.006))
	c := fixtures.NewWaitingHandle("c", fixtures.Location("DE", 48.137, 11.575))
	for _, h := range []*fixtures.FakeHandle{a, b, c} {
		if err := p.Enqueue(h); err != nil {
			t.Fatal(err)
		}
	}
	m.Wake()

	formed := awaitPair(t, m)
	ids := pairIDs(formed)
	if !ids["a"] || !ids["b"] {
		t.Errorf("distant policy should pair Berlin with New York, got %v", ids)
	}
}

func TestPeriodicSweepPairsWithoutWake(t *testing.T) {
	m, p, _ := startMatchmaker(t, types.PolicyArrival)

	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	for _, h := range []*fixtures.FakeHandle{a, b} {
		if err := p.Enqueue(h); err != nil {
			t.Fatal(err)
		}
	}
	// No Wake: the sweep tick must still form the pair (bounded wait).

	select {
	case formed := <-m.Pairs():
		ids := pairIDs(formed)
		if !ids["a"] || !ids["b"] {
			t.Errorf("expected {a, b}, got %v", ids)
		}
	case <-time.After(3 * sweepInterval):
		t.Fatal("sweep did not pair waiting handles")
	}
}
