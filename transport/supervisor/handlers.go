package supervisor

import (
	"bufio"
	"context"
	"io"
	stdnet "net"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/signal"
	"github.com/netbot-proxy/netbot/internal/logging"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/httpconnect"
	"github.com/netbot-proxy/netbot/proxy/socks"
	"github.com/netbot-proxy/netbot/transport/pipeline"
)

// serveSocks runs the SOCKS5 server role for one accepted connection:
// handshake, outbound dial, success/failure reply, then tunneling. conn is
// always closed before returning — closing it again from within runTunnel's
// pipeline teardown is a harmless no-op.
func (s *Supervisor) serveSocks(ctx context.Context, conn stdnet.Conn) {
	defer conn.Close()

	session := &socks.ServerSession{Config: s.cfg.SocksConfig}
	header, err := session.Handshake(conn, conn)
	if err != nil {
		logging.LogError(s.cfg.Logger, "SOCKS5 handshake failed", err)
		return
	}

	dest := header.Destination()
	outboundConn, err := s.dialOutbound(ctx, dest)
	if err != nil {
		socks.WriteFailureReply(conn, socksFailureCode(err))
		logging.LogError(s.cfg.Logger, "outbound dial failed", err)
		return
	}

	bindAddr, bindPort := toNetAddrPort(outboundConn.LocalAddr())
	if err := socks.WriteSuccessReply(conn, bindAddr, bindPort); err != nil {
		outboundConn.Close()
		return
	}

	s.runTunnel(ctx, conn, outboundConn, nil)
}

// serveHTTPConnect runs the HTTP CONNECT server role for one accepted
// connection. conn is always closed before returning.
func (s *Supervisor) serveHTTPConnect(ctx context.Context, conn stdnet.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	dest, err := httpconnect.ServerDecodeRequest(reader)
	if err != nil {
		logging.LogError(s.cfg.Logger, "CONNECT request decode failed", err)
		return
	}

	var leftover []byte
	if n := reader.Buffered(); n > 0 {
		leftover = make([]byte, n)
		io.ReadFull(reader, leftover)
	}

	outboundConn, err := s.dialOutbound(ctx, dest)
	if err != nil {
		httpconnect.WriteFailureReply(conn, 502)
		logging.LogError(s.cfg.Logger, "outbound dial failed", err)
		return
	}

	if err := httpconnect.WriteSuccessReply(conn); err != nil {
		outboundConn.Close()
		return
	}

	s.runTunnel(ctx, conn, outboundConn, leftover)
}

// runTunnel attaches outboundConn to conn through the pipeline state
// machine and copies bytes until either side closes, idles out, or ctx is
// cancelled. leftover, if non-nil, is bytes already read off conn past the
// handshake (a pipelined request) and is replayed to outboundConn first.
func (s *Supervisor) runTunnel(ctx context.Context, conn, outboundConn stdnet.Conn, leftover []byte) {
	p := pipeline.New(conn)
	p.SetState(pipeline.StateOutboundHandshake)
	if leftover != nil {
		p.QueueWrite(leftover)
	}
	if err := p.EnterTunneling(outboundConn); err != nil {
		outboundConn.Close()
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := signal.CancelAfterInactivity(connCtx, cancel, s.cfg.IdleTimeout)
	if err := p.Run(connCtx, timer); err != nil {
		logging.LogError(s.cfg.Logger, "tunnel closed", xerrors.New("tunnel error").Base(err))
	}
}

// toNetAddrPort converts a dialed stdnet.Conn's local address into the
// Address/Port pair a SOCKS5 success reply echoes back.
func toNetAddrPort(addr stdnet.Addr) (net.Address, net.Port) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return net.ParseAddress("0.0.0.0"), net.Port(0)
	}
	port, err := net.PortFromString(portStr)
	if err != nil {
		port = net.Port(0)
	}
	return net.ParseAddress(host), port
}

// socksFailureCode maps an outbound dial error to the closest RFC 1928 §6
// reply code.
func socksFailureCode(err error) byte {
	xerr, ok := err.(*xerrors.Error)
	if !ok {
		return socks.ReplyGeneralFailure
	}
	switch xerr.Kind() {
	case xerrors.KindTimeout, xerrors.KindCancelled:
		return socks.ReplyTTLExpired
	case xerrors.KindUnsupportedAddressType:
		return socks.ReplyAddressTypeNotSupported
	default:
		return socks.ReplyHostUnreachable
	}
}
