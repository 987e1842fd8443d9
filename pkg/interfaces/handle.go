package interfaces

import "pairsona/pkg/types"

// Handle is the engine's view of one live client connection. The
// production implementation is ws.Connection; tests substitute fakes.
//
// State, pairing claims and channel accessors must all be safe for
// concurrent use: the matchmaker and the connection's own goroutines
// touch a handle at the same time during transitions.
type Handle interface {
	// ID is process-unique and immutable, assigned at accept time.
	ID() string

	// Meta returns the coarse client metadata captured at handshake.
	Meta() types.ClientMeta

	State() types.ConnState

	// Transition applies a lifecycle state change, rejecting anything
	// outside the types.ValidTransition table.
	Transition(to types.ConnState) error

	// BeginPairing atomically claims a Waiting handle for a pair
	// (Waiting -> Paired). It fails if the handle left Waiting in the
	// meantime, which is how the matchmaker detects stale candidates.
	BeginPairing() error

	// AbortPairing rolls back BeginPairing before the pair became
	// visible anywhere. Only legal between BeginPairing and the pair
	// table insert.
	AbortPairing()

	// Inbound yields frames read from the client, in receive order.
	// The channel is closed when the client side goes away.
	Inbound() <-chan types.Frame

	// Send queues a frame for delivery to the client.
	Send(frame types.Frame) error

	// SendJSON queues a server-originated JSON notice.
	SendJSON(v interface{}) error

	// MarkPaired unblocks anyone waiting on Paired.
	MarkPaired()

	// Paired is closed once the handle has been matched.
	Paired() <-chan struct{}

	// Done is closed when the underlying transport is gone.
	Done() <-chan struct{}

	// CloseWithNotice writes a close control frame before closing.
	CloseWithNotice(code int, reason string) error

	Close() error
}

// Registrar accepts freshly handshaken handles into the pairing engine.
type Registrar interface {
	Register(h Handle) error
}

// LocationResolver maps a network address to a coarse location, with
// place names picked per the client's language preference order. It
// never fails the caller; lookup problems yield the unknown sentinel.
type LocationResolver interface {
	Resolve(addr string, langs []string) types.LocationRecord
}
