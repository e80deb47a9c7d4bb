package shadowsocks

import (
	"context"
	stdnet "net"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
)

// StreamConn wraps a raw TCP connection to a Shadowsocks server with the
// AEAD stream of spec.md §4.4: writes go through the encryption writer
// (target address header leading the first chunk), reads go through the
// decryption reader.
type StreamConn struct {
	stdnet.Conn
	writer buf.Writer
	reader buf.Reader
	wbuf   []byte
}

// Dial connects to the Shadowsocks server at serverAddr and negotiates an
// AEAD stream tunneling target.
func Dial(ctx context.Context, serverAddr string, account *Account, target protocol.RequestHeader) (*StreamConn, error) {
	var d stdnet.Dialer
	conn, err := d.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return nil, err
	}

	writer, err := account.NewEncryptionWriter(conn, &target)
	if err != nil {
		conn.Close()
		return nil, err
	}
	// The server only sends its salt after receiving our leading
	// target-address header, which writer only flushes on the first
	// Write call (after Dial returns) — so the decryption side must read
	// its salt lazily, not here, or this would deadlock against the dial
	// context's deadline.
	reader := account.NewLazyDecryptionReader(conn)

	return &StreamConn{Conn: conn, writer: writer, reader: reader}, nil
}

// Write implements net.Conn, sealing p as one AEAD chunk.
func (c *StreamConn) Write(p []byte) (int, error) {
	if err := c.writer.WriteMultiBuffer(buf.MultiBuffer{buf.FromBytes(append([]byte(nil), p...))}); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read implements net.Conn, decoding one AEAD chunk per call into p.
func (c *StreamConn) Read(p []byte) (int, error) {
	for len(c.wbuf) == 0 {
		mb, err := c.reader.ReadMultiBuffer()
		if err != nil {
			return 0, err
		}
		c.wbuf = buf.MergeBytes(mb, nil)
	}
	n := copy(p, c.wbuf)
	c.wbuf = c.wbuf[n:]
	return n, nil
}

// Destination reports a's target as a net.Destination, for dialing.
func Destination(addr string, port net.Port) net.Destination {
	return net.TCPDestination(net.ParseAddress(addr), port)
}
