package shadowsocks_test

import (
	"bytes"
	stdnet "net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/proxy/shadowsocks"
)

// Testable property 2: AEAD frame round-trip. Two chunks are written and
// read back in order; each chunk consumes two nonces (length and payload),
// so the second chunk decrypts only if both sides advanced alike.
func TestEncryptionRoundTrip(t *testing.T) {
	account, err := shadowsocks.NewAccount("aes-128-gcm", "correct horse battery staple")
	require.NoError(t, err)

	var wire bytes.Buffer
	header := &protocol.RequestHeader{
		Address: net.IPAddress(stdnet.ParseIP("127.0.0.1")),
		Port:    net.Port(80),
	}
	w, err := account.NewEncryptionWriter(&wire, header)
	require.NoError(t, err)

	chunks := [][]byte{[]byte("hello"), []byte("a second, longer chunk of plaintext")}
	for _, c := range chunks {
		require.NoError(t, w.WriteMultiBuffer(buf.MultiBuffer{buf.FromBytes(append([]byte(nil), c...))}))
	}

	r, err := account.NewDecryptionReader(bytes.NewReader(wire.Bytes()))
	require.NoError(t, err)

	mb, err := r.ReadMultiBuffer()
	require.NoError(t, err)
	first := buf.MergeBytes(mb, nil)

	// The first decoded chunk is the target-address header immediately
	// followed by the first payload write.
	var headerWire bytes.Buffer
	addrParser := protocol.NewAddressParser(
		[]protocol.AddressFamilyByte{
			{Byte: 0x01, Family: net.AddressFamilyIPv4},
			{Byte: 0x04, Family: net.AddressFamilyIPv6},
			{Byte: 0x03, Family: net.AddressFamilyDomain},
		},
	)
	require.NoError(t, addrParser.WriteAddressPort(&headerWire, header.Address, header.Port))
	assert.Equal(t, append(headerWire.Bytes(), chunks[0]...), first)

	mb, err = r.ReadMultiBuffer()
	require.NoError(t, err)
	assert.Equal(t, chunks[1], buf.MergeBytes(mb, nil))
}

// Testable property 7: tampering with a sealed chunk must surface as an
// authentication failure rather than garbage plaintext.
func TestDecryptionRejectsTamperedChunk(t *testing.T) {
	account, err := shadowsocks.NewAccount("aes-128-gcm", "correct horse battery staple")
	require.NoError(t, err)

	var wire bytes.Buffer
	header := &protocol.RequestHeader{
		Address: net.IPAddress(stdnet.ParseIP("127.0.0.1")),
		Port:    net.Port(80),
	}
	w, err := account.NewEncryptionWriter(&wire, header)
	require.NoError(t, err)
	require.NoError(t, w.WriteMultiBuffer(buf.MultiBuffer{buf.FromBytes([]byte("hello"))}))

	tampered := append([]byte(nil), wire.Bytes()...)
	tampered[len(tampered)-1] ^= 0xff

	r, err := account.NewDecryptionReader(bytes.NewReader(tampered))
	require.NoError(t, err)
	_, err = r.ReadMultiBuffer()
	require.Error(t, err)
}

// Scenario S3: password "test", cipher aes-128-gcm, a single 5-byte
// "hello" payload to 127.0.0.1:80 — the decoded first chunk starts with
// the IPv4 address-type byte and ends with "hello".
func TestScenarioS3(t *testing.T) {
	account, err := shadowsocks.NewAccount("aes-128-gcm", "test")
	require.NoError(t, err)

	var wire bytes.Buffer
	header := &protocol.RequestHeader{
		Address: net.IPAddress(stdnet.ParseIP("127.0.0.1")),
		Port:    net.Port(80),
	}
	w, err := account.NewEncryptionWriter(&wire, header)
	require.NoError(t, err)
	require.NoError(t, w.WriteMultiBuffer(buf.MultiBuffer{buf.FromBytes([]byte("hello"))}))

	r, err := account.NewDecryptionReader(bytes.NewReader(wire.Bytes()))
	require.NoError(t, err)
	mb, err := r.ReadMultiBuffer()
	require.NoError(t, err)
	got := buf.MergeBytes(mb, nil)

	assert.Equal(t, byte(0x01), got[0], "address type must be IPv4")
	assert.Equal(t, "hello", string(got[len(got)-5:]))
}
