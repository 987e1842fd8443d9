// Package relay moves frames between two paired handles, one goroutine
// per direction so per-direction ordering is preserved. It is a
// pass-through, not a queue: nothing is buffered beyond the handles'
// own channels.
package relay

import (
	"context"
	"sync"

	"pairsona/internal/obs"
	"pairsona/pkg/interfaces"
)

// Run forwards a's inbound frames to b and vice versa until either
// side's inbound closes, a send fails, or ctx is cancelled. It returns
// once both directions have stopped; the caller then owns teardown.
func Run(ctx context.Context, a, b interfaces.Handle) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go forward(ctx, cancel, &wg, a, b)
	go forward(ctx, cancel, &wg, b, a)
	wg.Wait()
}

func forward(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, src, dst interfaces.Handle) {
	defer wg.Done()
	// Either direction ending ends the session for both.
	defer cancel()

	for {
		select {
		case frame, ok := <-src.Inbound():
			if !ok {
				return
			}
			if err := dst.Send(frame); err != nil {
				return
			}
			obs.RelayFramesTotal.Inc()

		case <-ctx.Done():
			return
		}
	}
}
