// Package wsrelay implements scenario S5's WebSocket frame pass-through: a
// duplex net.Conn-shaped wrapper over a *websocket.Conn where an outbound
// byte slice becomes one binary frame, inbound text/binary frames surface as
// their payload, a close frame is echoed before the connection closes, and a
// heartbeat ping that never gets its pong tears the connection down.
package wsrelay

import (
	"io"
	stdnet "net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/netbot-proxy/netbot/internal/xerrors"
)

var upgrader = &websocket.Upgrader{
	HandshakeTimeout: 4 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// Conn wraps a *websocket.Conn so arbitrary byte streams (the tunneled
// protocol payload) can flow over it as a sequence of WebSocket frames.
// Gorilla's NextReader already reassembles a fragmented message before
// returning it, so a caller of Read never observes an intermediate
// continuation frame — only each logical message's payload.
type Conn struct {
	ws     *websocket.Conn
	reader io.Reader

	pingInterval  time.Duration
	pongDeadline  time.Duration
	stopHeartbeat chan struct{}
	closeOnce     sync.Once
}

// New wraps ws. If pingInterval is non-zero, New starts a heartbeat
// goroutine that pings every pingInterval; if the matching pong doesn't
// arrive within pongDeadline, the pending or next Read fails with a timeout
// and closes the connection.
func New(ws *websocket.Conn, pingInterval, pongDeadline time.Duration) *Conn {
	c := &Conn{ws: ws, pingInterval: pingInterval, pongDeadline: pongDeadline, stopHeartbeat: make(chan struct{})}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Time{})
	})
	if pingInterval > 0 {
		go c.heartbeat()
	}
	return c
}

// Upgrade upgrades an HTTP request to a WebSocket connection and wraps it.
func Upgrade(w http.ResponseWriter, r *http.Request, pingInterval, pongDeadline time.Duration) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, xerrors.New("failed to upgrade to WebSocket").Base(err)
	}
	return New(ws, pingInterval, pongDeadline), nil
}

// Dial dials a WebSocket connection at url and wraps it.
func Dial(url string, pingInterval, pongDeadline time.Duration) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, xerrors.New("failed to dial WebSocket").Base(err)
	}
	return New(ws, pingInterval, pongDeadline), nil
}

func (c *Conn) heartbeat() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopHeartbeat:
			return
		case <-ticker.C:
			if err := c.ws.SetReadDeadline(time.Now().Add(c.pongDeadline)); err != nil {
				c.ws.Close()
				return
			}
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.pingInterval)); err != nil {
				c.ws.Close()
				return
			}
		}
	}
}

// Read implements io.Reader: it returns one inbound message's payload per
// logical message, skipping straight to the next message on EOF so the
// stream reads as continuous bytes rather than one read per frame.
func (c *Conn) Read(b []byte) (int, error) {
	for {
		r, err := c.getReader()
		if err != nil {
			c.closeOnTimeout(err)
			return 0, err
		}
		n, err := r.Read(b)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		c.closeOnTimeout(err)
		return n, err
	}
}

// closeOnTimeout closes the connection when err is a read-deadline timeout,
// i.e. the heartbeat's pong did not arrive in time.
func (c *Conn) closeOnTimeout(err error) {
	if ne, ok := err.(stdnet.Error); ok && ne.Timeout() {
		c.ws.Close()
	}
}

func (c *Conn) getReader() (io.Reader, error) {
	if c.reader != nil {
		return c.reader, nil
	}
	messageType, r, err := c.ws.NextReader()
	if err != nil {
		return nil, err
	}
	if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
		return nil, xerrors.New("unexpected WebSocket message type: ", messageType).WithKind(xerrors.KindInvalidFraming)
	}
	c.reader = r
	return r, nil
}

// Write implements io.Writer, sending b as one binary frame.
func (c *Conn) Write(b []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close echoes a normal-closure control frame before closing the underlying
// connection, matching a courteous WebSocket peer's close handshake.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.stopHeartbeat) })
	deadline := time.Now().Add(time.Second)
	c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

func (c *Conn) LocalAddr() stdnet.Addr  { return c.ws.LocalAddr() }
func (c *Conn) RemoteAddr() stdnet.Addr { return c.ws.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
