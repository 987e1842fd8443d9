package fixtures

import (
	"testing"

	"pairsona/pkg/types"
)

func TestPushFrameRacingCloseDoesNotPanic(t *testing.T) {
	h := NewWaitingHandle("racy", types.UnknownLocation())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			h.PushFrame(TextFrame("payload"))
		}
	}()
	h.CloseClient()
	<-done

	// Late pushes are dropped, never sent on the closed channel.
	h.PushFrame(TextFrame("late"))
}

func TestInboundClosesOnceAfterCloseClient(t *testing.T) {
	h := NewWaitingHandle("x", types.UnknownLocation())
	h.PushFrame(TextFrame("m1"))
	h.CloseClient()
	h.CloseClient()

	frame, ok := <-h.Inbound()
	if !ok || string(frame.Data) != "m1" {
		t.Fatalf("buffered frame should survive close, got %q ok=%v", frame.Data, ok)
	}
	if _, ok := <-h.Inbound(); ok {
		t.Error("inbound should be closed after the client vanishes")
	}
}
