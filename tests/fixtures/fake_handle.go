// Package fixtures provides in-memory stand-ins for the websocket
// connection handle so engine packages can be tested without sockets.
package fixtures

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pairsona/pkg/interfaces"
	"pairsona/pkg/types"
)

// FakeHandle implements interfaces.Handle entirely in memory. Frames
// pushed with PushFrame appear on Inbound; frames the engine sends are
// captured for assertions.
type FakeHandle struct {
	id   string
	meta types.ClientMeta

	mu      sync.Mutex
	state   types.ConnState
	sent    []types.Frame
	notices [][]byte
	sendErr error

	closed      bool
	closeCode   int
	closeReason string

	inbound     chan types.Frame
	inboundOnce sync.Once
	done        chan struct{}
	doneOnce    sync.Once
	paired      chan struct{}
	pairedOnce  sync.Once
}

var _ interfaces.Handle = (*FakeHandle)(nil)

func NewFakeHandle(id string, location types.LocationRecord) *FakeHandle {
	return &FakeHandle{
		id:      id,
		meta:    types.ClientMeta{Addr: "198.51.100.1", Location: location},
		state:   types.StateConnecting,
		inbound: make(chan types.Frame, 64),
		done:    make(chan struct{}),
		paired:  make(chan struct{}),
	}
}

// NewWaitingHandle is NewFakeHandle already transitioned to Waiting.
func NewWaitingHandle(id string, location types.LocationRecord) *FakeHandle {
	h := NewFakeHandle(id, location)
	if err := h.Transition(types.StateWaiting); err != nil {
		panic(err)
	}
	return h
}

func (h *FakeHandle) ID() string             { return h.id }
func (h *FakeHandle) Meta() types.ClientMeta { return h.meta }

func (h *FakeHandle) State() types.ConnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *FakeHandle) Transition(to types.ConnState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !types.ValidTransition(h.state, to) {
		return fmt.Errorf("invalid transition: %s -> %s", h.state, to)
	}
	h.state = to
	return nil
}

func (h *FakeHandle) BeginPairing() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != types.StateWaiting {
		return errors.New("not waiting")
	}
	h.state = types.StatePaired
	return nil
}

func (h *FakeHandle) AbortPairing() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == types.StatePaired {
		h.state = types.StateWaiting
	}
}

func (h *FakeHandle) Inbound() <-chan types.Frame { return h.inbound }

func (h *FakeHandle) Send(frame types.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	if h.closed {
		return errors.New("connection closed")
	}
	h.sent = append(h.sent, frame)
	return nil
}

func (h *FakeHandle) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("connection closed")
	}
	h.notices = append(h.notices, data)
	return nil
}

func (h *FakeHandle) MarkPaired() {
	h.pairedOnce.Do(func() { close(h.paired) })
}

func (h *FakeHandle) Paired() <-chan struct{} { return h.paired }
func (h *FakeHandle) Done() <-chan struct{}   { return h.done }

func (h *FakeHandle) CloseWithNotice(code int, reason string) error {
	h.mu.Lock()
	if !h.closed {
		h.closeCode = code
		h.closeReason = reason
	}
	h.mu.Unlock()
	return h.Close()
}

func (h *FakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.doneOnce.Do(func() { close(h.done) })
	h.inboundOnce.Do(func() { close(h.inbound) })
	return nil
}

// PushFrame simulates the client sending a frame. Frames pushed after
// the handle closed are dropped, like writes on a dead socket. The
// mutex is held across the send so Close cannot close the channel
// underneath it; the inbound buffer keeps this from blocking.
func (h *FakeHandle) PushFrame(frame types.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.inbound <- frame
}

// CloseClient simulates the client side vanishing: the read pump would
// close Done and the inbound channel.
func (h *FakeHandle) CloseClient() {
	_ = h.Close()
}

// SetSendError makes every subsequent Send fail.
func (h *FakeHandle) SetSendError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendErr = err
}

// SentFrames snapshots everything the engine delivered to this client.
func (h *FakeHandle) SentFrames() []types.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.Frame, len(h.sent))
	copy(out, h.sent)
	return out
}

// Notices snapshots the server-originated JSON notices, raw.
func (h *FakeHandle) Notices() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.notices))
	for i, n := range h.notices {
		out[i] = string(n)
	}
	return out
}

// CloseInfo reports the close frame the client would have seen.
func (h *FakeHandle) CloseInfo() (code int, reason string, closed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeCode, h.closeReason, h.closed
}
