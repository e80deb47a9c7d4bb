// Package socks implements the SOCKS5 server-role handshake of spec.md
// §4.3: greeting, optional username/password subnegotiation, and the
// CONNECT request, against local clients (browsers, apps) dialing into
// Netbot.
package socks

import (
	"io"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

const socks5Version = 0x05

const (
	authNone         = 0x00
	authUsernamePass = 0x02
	authNoAcceptable = 0xFF
)

// RFC 1928 §6 reply codes.
const (
	ReplySucceeded               = 0x00
	ReplyGeneralFailure          = 0x01
	ReplyConnectionNotAllowed    = 0x02
	ReplyNetworkUnreachable      = 0x03
	ReplyHostUnreachable         = 0x04
	ReplyConnectionRefused       = 0x05
	ReplyTTLExpired              = 0x06
	ReplyCommandNotSupported     = 0x07
	ReplyAddressTypeNotSupported = 0x08
)

var addrParser = protocol.NewAddressParser(
	[]protocol.AddressFamilyByte{
		{Byte: 0x01, Family: net.AddressFamilyIPv4},
		{Byte: 0x04, Family: net.AddressFamilyIPv6},
		{Byte: 0x03, Family: net.AddressFamilyDomain},
	},
)

// Config holds the accounts accepted by username/password subnegotiation.
// A nil or empty Config accepts only the no-auth method.
type Config struct {
	Accounts map[string]string
}

func (c *Config) hasAccounts() bool {
	return c != nil && len(c.Accounts) > 0
}

func (c *Config) authenticate(user, pass string) bool {
	want, ok := c.Accounts[user]
	return ok && want == pass
}

// ServerSession drives one connection's SOCKS5 server handshake.
type ServerSession struct {
	Config *Config
}

// Handshake runs the greeting, optional auth subnegotiation, and request
// steps of spec.md §4.3, returning the decoded CONNECT target. Errors are
// tagged with an xerrors.Kind. Handshake writes the greeting/auth replies,
// and the failure reply itself when the request names an unsupported
// command or address type; for an accepted request it writes no reply (the
// caller writes that once it knows whether the outbound connection
// succeeded; see WriteSuccessReply and WriteFailureReply).
func (s *ServerSession) Handshake(reader io.Reader, writer io.Writer) (*protocol.RequestHeader, error) {
	method, err := s.awaitGreeting(reader, writer)
	if err != nil {
		return nil, err
	}

	if method == authUsernamePass {
		if err := s.awaitAuth(reader, writer); err != nil {
			return nil, err
		}
	}

	return s.awaitRequest(reader, writer)
}

func (s *ServerSession) awaitGreeting(reader io.Reader, writer io.Writer) (byte, error) {
	var head [2]byte
	if _, err := io.ReadFull(reader, head[:]); err != nil {
		return 0, xerrors.New("failed to read SOCKS5 greeting").Base(err).WithKind(xerrors.KindNeedMore)
	}
	if head[0] != socks5Version {
		return 0, xerrors.New("unsupported SOCKS version: ", head[0]).WithKind(xerrors.KindInvalidFraming)
	}
	nMethods := int(head[1])
	methods := make([]byte, nMethods)
	if _, err := io.ReadFull(reader, methods); err != nil {
		return 0, xerrors.New("failed to read SOCKS5 methods").Base(err).WithKind(xerrors.KindNeedMore)
	}

	selected := byte(authNoAcceptable)
	for _, m := range methods {
		if s.Config.hasAccounts() && m == authUsernamePass {
			selected = authUsernamePass
			break
		}
		if !s.Config.hasAccounts() && m == authNone {
			selected = authNone
			break
		}
	}

	if _, err := writer.Write([]byte{socks5Version, selected}); err != nil {
		return 0, err
	}
	if selected == authNoAcceptable {
		return 0, xerrors.New("no acceptable SOCKS5 auth method").WithKind(xerrors.KindAuthenticationFailed)
	}
	return selected, nil
}

func (s *ServerSession) awaitAuth(reader io.Reader, writer io.Writer) error {
	var head [2]byte
	if _, err := io.ReadFull(reader, head[:]); err != nil {
		return xerrors.New("failed to read SOCKS5 auth header").Base(err).WithKind(xerrors.KindNeedMore)
	}
	uLen := int(head[1])
	uname := make([]byte, uLen)
	if _, err := io.ReadFull(reader, uname); err != nil {
		return xerrors.New("failed to read SOCKS5 username").Base(err).WithKind(xerrors.KindNeedMore)
	}

	var pLenBuf [1]byte
	if _, err := io.ReadFull(reader, pLenBuf[:]); err != nil {
		return xerrors.New("failed to read SOCKS5 password length").Base(err).WithKind(xerrors.KindNeedMore)
	}
	passwd := make([]byte, int(pLenBuf[0]))
	if _, err := io.ReadFull(reader, passwd); err != nil {
		return xerrors.New("failed to read SOCKS5 password").Base(err).WithKind(xerrors.KindNeedMore)
	}

	if !s.Config.authenticate(string(uname), string(passwd)) {
		writer.Write([]byte{0x01, 0x01})
		return xerrors.New("SOCKS5 authentication failed").WithKind(xerrors.KindAuthenticationFailed)
	}

	_, err := writer.Write([]byte{0x01, 0x00})
	return err
}

func (s *ServerSession) awaitRequest(reader io.Reader, writer io.Writer) (*protocol.RequestHeader, error) {
	var head [3]byte
	if _, err := io.ReadFull(reader, head[:]); err != nil {
		return nil, xerrors.New("failed to read SOCKS5 request header").Base(err).WithKind(xerrors.KindNeedMore)
	}
	if head[0] != socks5Version {
		return nil, xerrors.New("unsupported SOCKS version: ", head[0]).WithKind(xerrors.KindInvalidFraming)
	}
	cmd := head[1]
	if cmd != byte(protocol.RequestCommandTCP) {
		WriteFailureReply(writer, ReplyCommandNotSupported)
		return nil, xerrors.New("unsupported SOCKS5 command: ", cmd).WithKind(xerrors.KindUnsupportedCommand)
	}

	address, port, err := addrParser.ReadAddressPort(nil, reader)
	if err != nil {
		if k, ok := err.(*xerrors.Error); ok && k.Kind() == xerrors.KindUnsupportedAddressType {
			WriteFailureReply(writer, ReplyAddressTypeNotSupported)
		}
		return nil, err
	}

	return &protocol.RequestHeader{
		Version: socks5Version,
		Command: protocol.RequestCommandTCP,
		Address: address,
		Port:    port,
	}, nil
}

// WriteSuccessReply writes the final CONNECT success reply, echoing the
// bound address/port of the local outbound socket.
func WriteSuccessReply(writer io.Writer, bindAddr net.Address, bindPort net.Port) error {
	if _, err := writer.Write([]byte{socks5Version, ReplySucceeded, 0x00}); err != nil {
		return err
	}
	return addrParser.WriteAddressPort(writer, bindAddr, bindPort)
}

// WriteFailureReply writes a CONNECT failure reply with the given RFC 1928
// §6 reply code and a zero bound address.
func WriteFailureReply(writer io.Writer, code byte) error {
	_, err := writer.Write([]byte{socks5Version, code, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	return err
}
