package vmess

import (
	"context"
	stdnet "net"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/vmess/encoding"
)

// StreamConn wraps a raw TCP connection to a VMESS server with the AEAD
// request/response framing of spec.md §4.5: the request header is written
// and the response header is read and verified on first use.
type StreamConn struct {
	stdnet.Conn

	session *encoding.ClientSession
	target  *protocol.RequestHeader

	writer       buf.Writer
	reader       buf.Reader
	headerWriten bool
	respChecked  bool
	wbuf         []byte
}

// Dial connects to the VMESS server at serverAddr and negotiates a tunnel to
// target under account's identity.
func Dial(ctx context.Context, serverAddr string, account *Account, target protocol.RequestHeader) (*StreamConn, error) {
	var d stdnet.Dialer
	conn, err := d.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return nil, err
	}

	session, err := encoding.NewClientSession(account.ID)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &StreamConn{Conn: conn, session: session, target: &target}, nil
}

func (c *StreamConn) ensureWriter() (buf.Writer, error) {
	if c.writer != nil {
		return c.writer, nil
	}
	headerBytes, err := c.session.EncodeRequestHeader(c.target)
	if err != nil {
		return nil, xerrors.New("failed to encode VMESS request header").Base(err)
	}
	if err := buf.WriteAllBytes(c.Conn, headerBytes); err != nil {
		return nil, xerrors.New("failed to write VMESS request header").Base(err)
	}
	w, err := c.session.EncodeRequestBody(c.target, c.Conn)
	if err != nil {
		return nil, err
	}
	c.writer = w
	return w, nil
}

func (c *StreamConn) ensureReader() (buf.Reader, error) {
	if c.reader != nil {
		return c.reader, nil
	}
	if !c.respChecked {
		if _, err := c.session.DecodeResponseHeader(c.Conn); err != nil {
			return nil, xerrors.New("failed to decode VMESS response header").Base(err)
		}
		c.respChecked = true
	}
	r, err := c.session.DecodeResponseBody(c.target, c.Conn)
	if err != nil {
		return nil, err
	}
	c.reader = r
	return r, nil
}

// Write implements net.Conn, writing the request header ahead of the first
// payload and AEAD-framing every subsequent write as a body chunk.
func (c *StreamConn) Write(p []byte) (int, error) {
	w, err := c.ensureWriter()
	if err != nil {
		return 0, err
	}
	if err := w.WriteMultiBuffer(buf.MultiBuffer{buf.FromBytes(append([]byte(nil), p...))}); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read implements net.Conn, checking the response header on first use and
// decoding one AEAD body chunk per underlying read.
func (c *StreamConn) Read(p []byte) (int, error) {
	r, err := c.ensureReader()
	if err != nil {
		return 0, err
	}
	for len(c.wbuf) == 0 {
		mb, err := r.ReadMultiBuffer()
		if err != nil {
			return 0, err
		}
		c.wbuf = buf.MergeBytes(mb, nil)
	}
	n := copy(p, c.wbuf)
	c.wbuf = c.wbuf[n:]
	return n, nil
}
