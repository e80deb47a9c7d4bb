// Package pipeline implements the per-connection duplex handler chain of
// spec.md §4.8: inbound decoding buffers writes destined for an outbound
// connection that doesn't exist yet, and buffers outbound bytes arriving
// before the local handshake has replied, replaying both FIFO once the
// connection reaches Tunneling.
package pipeline

import (
	"context"
	"sync"
	stdnet "net"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/signal"
	"github.com/netbot-proxy/netbot/common/task"
)

// State is one node of the connection state machine of spec.md §3.
type State int

const (
	StateGreeting State = iota
	StateAddrNegotiation
	StateOutboundConnecting
	StateOutboundHandshake
	StateTunneling
	StateClosed
)

// Conn drives one accepted connection through the pipeline state machine.
// It owns the inbound socket exclusively; the outbound socket is attached
// once it has been dialed and handshaken (EnterTunneling).
type Conn struct {
	mu    sync.Mutex
	state State

	inbound  stdnet.Conn
	outbound stdnet.Conn

	// writeQueue holds inbound bytes destined for the (not-yet-connected)
	// outbound side; readQueue holds outbound bytes arriving before the
	// local handshake has replied. Both are replayed FIFO on EnterTunneling.
	writeQueue [][]byte
	readQueue  [][]byte
}

// New wraps inbound in a fresh Conn, starting in StateGreeting.
func New(inbound stdnet.Conn) *Conn {
	return &Conn{inbound: inbound, state: StateGreeting}
}

// State reports the connection's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState transitions the connection to s.
func (c *Conn) SetState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// QueueWrite buffers p (inbound→outbound bytes) for replay once the
// outbound connection is attached. Safe to call only before EnterTunneling.
func (c *Conn) QueueWrite(p []byte) {
	c.mu.Lock()
	c.writeQueue = append(c.writeQueue, append([]byte(nil), p...))
	c.mu.Unlock()
}

// QueueRead buffers p (outbound→inbound bytes) for replay once the local
// handshake finishes. Safe to call only before EnterTunneling.
func (c *Conn) QueueRead(p []byte) {
	c.mu.Lock()
	c.readQueue = append(c.readQueue, append([]byte(nil), p...))
	c.mu.Unlock()
}

// EnterTunneling attaches the dialed, handshaken outbound connection,
// drains both FIFO queues in submission order, and transitions to
// StateTunneling.
func (c *Conn) EnterTunneling(outbound stdnet.Conn) error {
	c.mu.Lock()
	c.outbound = outbound
	writeQueue := c.writeQueue
	c.writeQueue = nil
	readQueue := c.readQueue
	c.readQueue = nil
	c.mu.Unlock()

	for _, p := range writeQueue {
		if _, err := outbound.Write(p); err != nil {
			return err
		}
	}
	for _, p := range readQueue {
		if _, err := c.inbound.Write(p); err != nil {
			return err
		}
	}

	c.SetState(StateTunneling)
	return nil
}

// Run copies bytes in both directions until either side closes or ctx is
// cancelled, tracking idle time via timer. Each direction's buf.Copy applies
// its own backpressure: a stalled write on one side blocks that direction's
// Read loop within the next scheduler turn, satisfying spec.md §5's
// backpressure rule without any explicit pause/resume signaling.
func (c *Conn) Run(ctx context.Context, timer *signal.ActivityTimer) error {
	upload := func() error {
		defer c.outbound.Close()
		return buf.Copy(buf.NewReader(c.inbound), buf.NewWriter(c.outbound), buf.UpdateActivity(timer))
	}
	download := func() error {
		defer c.inbound.Close()
		return buf.Copy(buf.NewReader(c.outbound), buf.NewWriter(c.inbound), buf.UpdateActivity(timer))
	}

	err := task.Run(ctx, upload, download)
	c.SetState(StateClosed)
	return err
}

// Close closes both sides of the connection, if attached.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.inbound != nil {
		err = c.inbound.Close()
	}
	if c.outbound != nil {
		if oerr := c.outbound.Close(); err == nil {
			err = oerr
		}
	}
	c.state = StateClosed
	return err
}
