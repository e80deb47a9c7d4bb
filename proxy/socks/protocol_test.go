package socks_test

import (
	"bytes"
	stdnet "net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/socks"
)

func asXerror(t *testing.T, err error) *xerrors.Error {
	t.Helper()
	xerr, ok := err.(*xerrors.Error)
	require.True(t, ok, "expected *xerrors.Error, got %T", err)
	return xerr
}

// Scenario S1: greeting "05 01 00" + CONNECT request to 127.0.0.1:80
// replies "05 00" to the greeting, then a success reply once the caller
// knows the outbound socket's bound address.
func TestScenarioS1(t *testing.T) {
	var in bytes.Buffer
	in.Write([]byte{0x05, 0x01, 0x00})          // greeting: version 5, 1 method, no-auth
	in.Write([]byte{0x05, 0x01, 0x00, 0x01})    // request: version 5, CONNECT, rsv, IPv4
	in.Write(stdnet.ParseIP("127.0.0.1").To4()) // address
	in.Write([]byte{0x00, 0x50})                // port 80

	var out bytes.Buffer
	session := &socks.ServerSession{}
	header, err := session.Handshake(&in, &out)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x05, 0x00}, out.Bytes(), "greeting reply selects no-auth")
	assert.Equal(t, protocol.RequestCommandTCP, header.Command)
	assert.True(t, header.Address.Equals(net.IPAddress(stdnet.ParseIP("127.0.0.1"))))
	assert.Equal(t, net.Port(80), header.Port)

	out.Reset()
	require.NoError(t, socks.WriteSuccessReply(&out, net.IPAddress(stdnet.ParseIP("127.0.0.1")), net.Port(1080)))
	assert.Equal(t, byte(0x05), out.Bytes()[0])
	assert.Equal(t, byte(socks.ReplySucceeded), out.Bytes()[1])
}

// RFC 1928 behavior: an unsupported command is rejected with an
// UnsupportedCommand-kind error.
func TestUnsupportedCommandIsRejected(t *testing.T) {
	var in bytes.Buffer
	in.Write([]byte{0x05, 0x01, 0x00})
	in.Write([]byte{0x05, 0x02, 0x00, 0x01}) // BIND, not CONNECT
	in.Write(stdnet.ParseIP("127.0.0.1").To4())
	in.Write([]byte{0x00, 0x50})

	var out bytes.Buffer
	session := &socks.ServerSession{}
	_, err := session.Handshake(&in, &out)
	require.Error(t, err)
	assert.Equal(t, "UnsupportedCommand", asXerror(t, err).Kind().String())
}

// RFC 1928 behavior: an unsupported address type is rejected.
func TestUnsupportedAddressTypeIsRejected(t *testing.T) {
	var in bytes.Buffer
	in.Write([]byte{0x05, 0x01, 0x00})
	in.Write([]byte{0x05, 0x01, 0x00, 0x02}) // address type 0x02 is not defined
	in.Write([]byte{0x00, 0x00})

	var out bytes.Buffer
	session := &socks.ServerSession{}
	_, err := session.Handshake(&in, &out)
	require.Error(t, err)
	assert.Equal(t, "UnsupportedAddressType", asXerror(t, err).Kind().String())
}

// Truncated input at any handshake stage must surface as NeedMore, not a
// generic error, so a caller knows to wait for more bytes rather than
// tear down the connection.
func TestTruncatedGreetingNeedsMore(t *testing.T) {
	var in bytes.Buffer
	in.Write([]byte{0x05}) // missing nMethods and the methods themselves

	var out bytes.Buffer
	session := &socks.ServerSession{}
	_, err := session.Handshake(&in, &out)
	require.Error(t, err)
	assert.Equal(t, "NeedMore", asXerror(t, err).Kind().String())
}

// Username/password subnegotiation: a configured account must
// authenticate successfully, and a bad password must not.
func TestUsernamePasswordAuthentication(t *testing.T) {
	cfg := &socks.Config{Accounts: map[string]string{"alice": "wonderland"}}

	build := func(user, pass string) *bytes.Buffer {
		var in bytes.Buffer
		in.Write([]byte{0x05, 0x01, 0x02}) // greeting offers only username/password
		in.WriteByte(0x01)
		in.WriteByte(byte(len(user)))
		in.WriteString(user)
		in.WriteByte(byte(len(pass)))
		in.WriteString(pass)
		in.Write([]byte{0x05, 0x01, 0x00, 0x01})
		in.Write(stdnet.ParseIP("127.0.0.1").To4())
		in.Write([]byte{0x00, 0x50})
		return &in
	}

	var out bytes.Buffer
	session := &socks.ServerSession{Config: cfg}
	_, err := session.Handshake(build("alice", "wonderland"), &out)
	require.NoError(t, err)

	out.Reset()
	session = &socks.ServerSession{Config: cfg}
	_, err = session.Handshake(build("alice", "wrong"), &out)
	require.Error(t, err)
	assert.Equal(t, "AuthenticationFailed", asXerror(t, err).Kind().String())
}
