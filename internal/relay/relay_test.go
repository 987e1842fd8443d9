package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairsona/pkg/types"
	"pairsona/tests/fixtures"
)

func runRelay(a, b *fixtures.FakeHandle) chan struct{} {
	done := make(chan struct{})
	go func() {
		Run(context.Background(), a, b)
		close(done)
	}()
	return done
}

func awaitReturn(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelay_ForwardsInOrder(t *testing.T) {
	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	done := runRelay(a, b)

	for _, payload := range []string{"m1", "m2", "m3"} {
		a.PushFrame(fixtures.TextFrame(payload))
	}

	fixtures.Eventually(t, time.Second, "b should receive 3 frames", func() bool {
		return len(b.SentFrames()) == 3
	})
	for i, want := range []string{"m1", "m2", "m3"} {
		if got := string(b.SentFrames()[i].Data); got != want {
			t.Errorf("frame %d: expected %q, got %q", i, want, got)
		}
	}

	// Sender disconnects; the receiver then observes termination.
	a.CloseClient()
	awaitReturn(t, done)
}

func TestRelay_Bidirectional(t *testing.T) {
	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	done := runRelay(a, b)

	a.PushFrame(fixtures.TextFrame("from-a"))
	b.PushFrame(fixtures.TextFrame("from-b"))

	fixtures.Eventually(t, time.Second, "both directions should deliver", func() bool {
		return len(a.SentFrames()) == 1 && len(b.SentFrames()) == 1
	})
	if string(a.SentFrames()[0].Data) != "from-b" {
		t.Errorf("a received %q", a.SentFrames()[0].Data)
	}
	if string(b.SentFrames()[0].Data) != "from-a" {
		t.Errorf("b received %q", b.SentFrames()[0].Data)
	}

	a.CloseClient()
	awaitReturn(t, done)
}

func TestRelay_PreservesFrameKind(t *testing.T) {
	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	done := runRelay(a, b)

	a.PushFrame(types.Frame{Kind: types.FrameBinary, Data: []byte{0x01, 0x02}})

	fixtures.Eventually(t, time.Second, "binary frame should arrive", func() bool {
		return len(b.SentFrames()) == 1
	})
	if b.SentFrames()[0].Kind != types.FrameBinary {
		t.Error("frame kind must pass through unchanged")
	}

	a.CloseClient()
	awaitReturn(t, done)
}

func TestRelay_StopsWhenEitherSideCloses(t *testing.T) {
	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	done := runRelay(a, b)

	b.CloseClient()
	awaitReturn(t, done)
}

func TestRelay_StopsOnSendFailure(t *testing.T) {
	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())
	b.SetSendError(errors.New("write timeout"))
	done := runRelay(a, b)

	a.PushFrame(fixtures.TextFrame("doomed"))
	awaitReturn(t, done)
}

func TestRelay_StopsOnContextCancel(t *testing.T) {
	a := fixtures.NewWaitingHandle("a", types.UnknownLocation())
	b := fixtures.NewWaitingHandle("b", types.UnknownLocation())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, a, b)
		close(done)
	}()

	cancel()
	awaitReturn(t, done)
}
