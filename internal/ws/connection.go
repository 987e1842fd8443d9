package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pairsona/pkg/interfaces"
	"pairsona/pkg/types"
)

// Options carries the per-connection tuning knobs. Zero values fall back
// to the same defaults the config package ships.
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 100
	}
	return o
}

// Connection is one live client conversation. All writes to the socket
// go through a single writer goroutine; the read pump runs for the whole
// handle lifetime so a disconnect is observed even while waiting for a
// partner.
type Connection struct {
	id   string
	meta types.ClientMeta
	conn *websocket.Conn
	opts Options

	writeCh chan types.Frame
	inbound chan types.Frame

	pairedCh   chan struct{}
	pairedOnce sync.Once

	done      chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	state types.ConnState
}

var _ interfaces.Handle = (*Connection)(nil)

// NewConnection wraps an upgraded websocket and starts its read and
// write pumps. The handle begins in Connecting.
func NewConnection(conn *websocket.Conn, meta types.ClientMeta, opts Options) *Connection {
	opts = opts.withDefaults()
	c := &Connection{
		id:       uuid.NewString(),
		meta:     meta,
		conn:     conn,
		opts:     opts,
		writeCh:  make(chan types.Frame, opts.BufferSize),
		inbound:  make(chan types.Frame, opts.BufferSize),
		pairedCh: make(chan struct{}),
		done:     make(chan struct{}),
		state:    types.StateConnecting,
	}

	go c.writeLoop()
	go c.readLoop()

	return c
}

func (c *Connection) ID() string             { return c.id }
func (c *Connection) Meta() types.ClientMeta { return c.meta }

func (c *Connection) State() types.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Transition applies a lifecycle state change per the validity table.
func (c *Connection) Transition(to types.ConnState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !types.ValidTransition(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, to)
	}
	c.state = to
	return nil
}

// BeginPairing claims a Waiting handle for a pair. The matchmaker uses
// the failure as its stale-candidate signal.
func (c *Connection) BeginPairing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateWaiting {
		return fmt.Errorf("%w: state %s", ErrNotWaiting, c.state)
	}
	c.state = types.StatePaired
	return nil
}

// AbortPairing rolls back BeginPairing. Only legal before the pair was
// recorded anywhere.
func (c *Connection) AbortPairing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == types.StatePaired {
		c.state = types.StateWaiting
	}
}

// readLoop pumps client frames into the inbound channel in receive
// order. On any read error the handle is marked done and inbound is
// closed, which is the teardown signal for pool waiters and the relay.
func (c *Connection) readLoop() {
	defer func() {
		c.Close()
		close(c.inbound)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		select {
		case c.inbound <- types.Frame{Kind: kind, Data: data}:
		case <-c.done:
			return
		}
	}
}

// writeLoop is the single writer. It also owns keepalive pings.
func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(frame.Kind, frame.Data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// Inbound yields frames read from the client; closed on disconnect.
func (c *Connection) Inbound() <-chan types.Frame { return c.inbound }

// Send queues a frame for the client. It fails rather than blocking
// past the write timeout, so one slow peer cannot stall the relay
// indefinitely.
func (c *Connection) Send(frame types.Frame) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(c.opts.WriteTimeout)
	defer timer.Stop()

	select {
	case c.writeCh <- frame:
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	case <-c.done:
		return ErrConnectionClosed
	}
}

// SendJSON queues a server-originated notice as a text frame.
func (c *Connection) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}
	return c.Send(types.Frame{Kind: websocket.TextMessage, Data: data})
}

// MarkPaired unblocks anyone waiting on Paired. Idempotent.
func (c *Connection) MarkPaired() {
	c.pairedOnce.Do(func() { close(c.pairedCh) })
}

func (c *Connection) Paired() <-chan struct{} { return c.pairedCh }

// Done is closed once the underlying transport is gone.
func (c *Connection) Done() <-chan struct{} { return c.done }

// CloseWithNotice writes a close control frame with the given code and
// reason, then closes. Control writes are safe alongside the writer
// goroutine.
func (c *Connection) CloseWithNotice(code int, reason string) error {
	deadline := time.Now().Add(c.opts.WriteTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	return c.Close()
}

// Close tears down the transport. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
