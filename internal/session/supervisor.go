// Package session orchestrates the full per-connection lifecycle:
// accept -> resolve -> wait -> pair -> relay -> teardown. The supervisor
// owns the waiting pool and the active pair table; nothing else mutates
// them except the matchmaker acting on its behalf.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pairsona/internal/match"
	"pairsona/internal/obs"
	"pairsona/internal/pair"
	"pairsona/internal/pool"
	"pairsona/internal/relay"
	"pairsona/pkg/interfaces"
	"pairsona/pkg/types"
)

// waitRecheck is how soon an expired max-wait timer fires again when
// its handle was in flight with the matchmaker at expiry.
const waitRecheck = 100 * time.Millisecond

// Options are the supervisor's slice of the match configuration.
// MaxWait 0 lets clients wait indefinitely.
type Options struct {
	Policy        string
	MaxWait       time.Duration
	ShutdownGrace time.Duration
}

type Supervisor struct {
	pool    *pool.Pool
	table   *pair.Table
	matcher *match.Matchmaker
	opts    Options

	// ctx governs the selection and pair loops; relayCtx outlives it
	// through the shutdown grace period so in-flight pairs can drain.
	ctx         context.Context
	cancel      context.CancelFunc
	relayCtx    context.Context
	relayCancel context.CancelFunc

	pairWG sync.WaitGroup

	mu           sync.Mutex
	started      bool
	shuttingDown bool
}

func New(opts Options) *Supervisor {
	if opts.Policy == "" {
		opts.Policy = types.PolicyArrival
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 10 * time.Second
	}

	p := pool.New()
	t := pair.NewTable()
	return &Supervisor{
		pool:    p,
		table:   t,
		matcher: match.New(p, t, opts.Policy),
		opts:    opts,
	}
}

var _ interfaces.Registrar = (*Supervisor)(nil)

// Start launches the matchmaker and the pair consumer.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.relayCtx, s.relayCancel = context.WithCancel(context.Background())

	s.matcher.Start(s.ctx)
	go s.pairLoop()

	obs.Info("session.start", obs.Fields{"policy": s.opts.Policy, "max_wait": s.opts.MaxWait.String()})
	return nil
}

// Register drives a freshly handshaken handle into the waiting pool and
// watches it until it is paired or gone.
func (s *Supervisor) Register(h interfaces.Handle) error {
	s.mu.Lock()
	if !s.started || s.shuttingDown {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	s.mu.Unlock()

	if err := h.Transition(types.StateWaiting); err != nil {
		return err
	}
	if err := s.pool.Enqueue(h); err != nil {
		_ = h.Transition(types.StateClosed)
		return err
	}
	s.matcher.Wake()

	go s.watchWaiting(h)
	return nil
}

// watchWaiting cancels a waiting handle the moment its client
// disconnects, and enforces the optional maximum wait. It steps aside
// once the handle is paired; the pair goroutine owns teardown from
// there.
func (s *Supervisor) watchWaiting(h interfaces.Handle) {
	var timer *time.Timer
	var timeoutC <-chan time.Time
	if s.opts.MaxWait > 0 {
		timer = time.NewTimer(s.opts.MaxWait)
		defer timer.Stop()
		timeoutC = timer.C
	}

	for {
		select {
		case <-h.Paired():
			return

		case <-h.Done():
			if s.pool.Remove(h.ID()) {
				_ = h.Transition(types.StateClosed)
				_ = h.Close()
				obs.Debug("session.waiting_gone", obs.Fields{"id": h.ID()})
			}
			// Not in the pool: the matchmaker has it in flight and its
			// stale-candidate handling (or relay teardown) finishes the job.
			return

		case <-timeoutC:
			if !s.pool.Remove(h.ID()) {
				// Dequeued for pairing at the same instant. The
				// matchmaker either pairs it or puts it back into the
				// pool, so re-arm and check again shortly: a requeued
				// handle is still subject to the cap.
				timer.Reset(waitRecheck)
				continue
			}
			obs.WaitTimeoutTotal.Inc()
			_ = h.SendJSON(types.SystemNotice{Type: types.NoticeNoPartner, Reason: "no partner found"})
			_ = h.Transition(types.StateClosed)
			_ = h.CloseWithNotice(websocket.CloseTryAgainLater, "no partner found")
			return

		case <-s.ctx.Done():
			// Shutdown drains the pool centrally.
			return
		}
	}
}

func (s *Supervisor) pairLoop() {
	for {
		select {
		case p, ok := <-s.matcher.Pairs():
			if !ok {
				return
			}
			s.pairWG.Add(1)
			go s.runPair(p.A, p.B)
		case <-s.ctx.Done():
			return
		}
	}
}

// runPair notifies both sides, relays until either vanishes, then
// unwinds the session.
func (s *Supervisor) runPair(a, b interfaces.Handle) {
	defer s.pairWG.Done()

	a.MarkPaired()
	b.MarkPaired()

	_ = a.SendJSON(types.PairedNotice{Type: types.NoticePaired, Partner: b.Meta().Location.View()})
	_ = b.SendJSON(types.PairedNotice{Type: types.NoticePaired, Partner: a.Meta().Location.View()})

	start := time.Now()
	relay.Run(s.relayCtx, a, b)
	s.teardown(a, b, start)
}

// teardown removes the pair relation once and walks both handles
// through Closing to Closed. The survivor learns its partner left; the
// write to the dead side fails harmlessly.
func (s *Supervisor) teardown(a, b interfaces.Handle, start time.Time) {
	if _, ok := s.table.Remove(a.ID()); ok {
		obs.PairDurationSeconds.Observe(time.Since(start).Seconds())
	}

	for _, h := range []interfaces.Handle{a, b} {
		if err := h.Transition(types.StateClosing); err != nil {
			// Already past Paired via another path; just make sure the
			// transport is gone.
			_ = h.Close()
			continue
		}
		_ = h.SendJSON(types.SystemNotice{Type: types.NoticePartnerLeft})
		_ = h.CloseWithNotice(websocket.CloseNormalClosure, "partner left")
		_ = h.Transition(types.StateClosed)
	}

	obs.Debug("session.closed", obs.Fields{"a": a.ID(), "b": b.ID()})
}

// Shutdown stops matching, turns away the waiting pool, and gives
// active pairs the configured grace period to drain before relays are
// cut. No new registrations are accepted once it begins.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.shuttingDown {
		s.mu.Unlock()
		return nil
	}
	s.shuttingDown = true
	s.mu.Unlock()

	s.cancel()

	for _, h := range s.pool.DrainAll() {
		_ = h.SendJSON(types.SystemNotice{Type: types.NoticeShutdown, Reason: "server shutting down"})
		_ = h.Transition(types.StateClosed)
		_ = h.CloseWithNotice(websocket.CloseGoingAway, "server shutting down")
	}

	// Pairs formed but not yet picked up by the stopped pair loop. The
	// matchmaker closes the channel when its final round is over, so
	// ranging here cannot race a late emit.
	for p := range s.matcher.Pairs() {
		s.pairWG.Add(1)
		go s.runPair(p.A, p.B)
	}

	done := make(chan struct{})
	go func() {
		s.pairWG.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.opts.ShutdownGrace)
	defer grace.Stop()

	select {
	case <-done:
	case <-grace.C:
		s.relayCancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		s.relayCancel()
		return ctx.Err()
	}

	s.relayCancel()
	obs.Info("session.stopped", nil)
	return nil
}
