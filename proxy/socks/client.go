package socks

import (
	"io"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// ClientHandshake drives the client side of the SOCKS5 handshake against a
// remote SOCKS5 server: greeting, no-auth selection, and a CONNECT request
// for target. Nothing in this module calls it: no Netbot-initiated outbound
// connection uses it, and the tests drive the server role with hand-built
// bytes.
func ClientHandshake(reader io.Reader, writer io.Writer, target net.Destination) error {
	if _, err := writer.Write([]byte{socks5Version, 0x01, authNone}); err != nil {
		return err
	}
	var greetingReply [2]byte
	if _, err := io.ReadFull(reader, greetingReply[:]); err != nil {
		return xerrors.New("failed to read SOCKS5 greeting reply").Base(err).WithKind(xerrors.KindNeedMore)
	}
	if greetingReply[1] != authNone {
		return xerrors.New("SOCKS5 server rejected no-auth method").WithKind(xerrors.KindAuthenticationFailed)
	}

	if _, err := writer.Write([]byte{socks5Version, 0x01, 0x00}); err != nil {
		return err
	}
	if err := addrParser.WriteAddressPort(writer, target.Address, target.Port); err != nil {
		return err
	}

	var requestReply [3]byte
	if _, err := io.ReadFull(reader, requestReply[:]); err != nil {
		return xerrors.New("failed to read SOCKS5 request reply").Base(err).WithKind(xerrors.KindNeedMore)
	}
	if requestReply[1] != ReplySucceeded {
		return xerrors.New("SOCKS5 request rejected, code ", requestReply[1]).WithKind(xerrors.KindUpstreamRejected).WithCode(int(requestReply[1]))
	}

	if _, _, err := addrParser.ReadAddressPort(nil, reader); err != nil {
		return xerrors.New("failed to read SOCKS5 bound address").Base(err)
	}
	return nil
}
