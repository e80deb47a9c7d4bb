package protocol_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stdnet "net"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

func asXerror(t *testing.T, err error) *xerrors.Error {
	t.Helper()
	xerr, ok := err.(*xerrors.Error)
	require.True(t, ok, "expected *xerrors.Error, got %T", err)
	return xerr
}

var socks5Parser = protocol.NewAddressParser(
	[]protocol.AddressFamilyByte{
		{Byte: 0x01, Family: net.AddressFamilyIPv4},
		{Byte: 0x04, Family: net.AddressFamilyIPv6},
		{Byte: 0x03, Family: net.AddressFamilyDomain},
	},
)

// Testable property 1: AddressCodec round-trip.
func TestAddressParserRoundTrip(t *testing.T) {
	cases := []net.Address{
		net.IPAddress(stdnet.ParseIP("127.0.0.1")),
		net.IPAddress(stdnet.ParseIP("::1")),
		net.DomainAddress("localhost"),
		net.DomainAddress("example.com"),
	}

	for _, addr := range cases {
		var buf bytes.Buffer
		require.NoError(t, socks5Parser.WriteAddressPort(&buf, addr, net.Port(80)))

		decoded, port, err := socks5Parser.ReadAddressPort(nil, &buf)
		require.NoError(t, err)
		assert.True(t, addr.Equals(decoded))
		assert.Equal(t, net.Port(80), port)
		assert.Equal(t, 0, buf.Len(), "no trailing bytes should remain")
	}
}

// Testable property 8: SOCKS5 address encode test vectors.
func TestAddressParserEncodeVectors(t *testing.T) {
	cases := []struct {
		name string
		addr net.Address
		want string
	}{
		{"domain", net.DomainAddress("localhost"), "03096c6f63616c686f7374" + "0050"},
		{"ipv4", net.IPAddress(stdnet.ParseIP("127.0.0.1")), "017f000001" + "0050"},
		{"ipv6", net.IPAddress(stdnet.ParseIP("::1")), "04" + "00000000000000000000000000000001" + "0050"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, socks5Parser.WriteAddressPort(&buf, c.addr, net.Port(80)))
			assert.Equal(t, c.want, hexString(buf.Bytes()))
		})
	}
}

// Testable property 9: unsupported address type and truncated input.
func TestAddressParserDecodeRejects(t *testing.T) {
	_, _, err := socks5Parser.ReadAddressPort(nil, bytes.NewReader([]byte{0x02, 0x00, 0x00}))
	require.Error(t, err)
	xerr := asXerror(t, err)
	assert.Equal(t, "UnsupportedAddressType", xerr.Kind().String())

	_, _, err = socks5Parser.ReadAddressPort(nil, bytes.NewReader([]byte{0x01, 0x7f, 0x00}))
	require.Error(t, err)
	xerr = asXerror(t, err)
	assert.Equal(t, "NeedMore", xerr.Kind().String())
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0xf]
	}
	return string(out)
}
