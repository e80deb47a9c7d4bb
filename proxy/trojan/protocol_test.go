package trojan_test

import (
	"bytes"
	stdnet "net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/proxy/trojan"
)

func TestPasswordHashIsFixedLengthHex(t *testing.T) {
	hash := trojan.PasswordHash("secret")
	assert.Len(t, hash, 56)
	for _, r := range hash {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

// Scenario S6: password "secret" produces a 56-hex-char SHA-224 line
// followed by CRLF, then "01" plus the SOCKS-style target address,
// followed by CRLF, then the payload bytes untouched.
func TestScenarioS6(t *testing.T) {
	passwordHash := trojan.PasswordHash("secret")
	require.Len(t, passwordHash, 56)

	var wire bytes.Buffer
	w := &trojan.ConnWriter{
		Writer:       &wire,
		Target:       net.TCPDestination(net.IPAddress(stdnet.ParseIP("127.0.0.1")), net.Port(80)),
		PasswordHash: passwordHash,
	}

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	out := wire.Bytes()
	assert.Equal(t, passwordHash, string(out[:56]))
	assert.Equal(t, "\r\n", string(out[56:58]))
	assert.Equal(t, byte(0x01), out[58], "command byte is always CONNECT")
	assert.Equal(t, byte(0x01), out[59], "address type IPv4")
	assert.Equal(t, stdnet.ParseIP("127.0.0.1").To4(), stdnet.IP(out[60:64]))
	assert.Equal(t, []byte{0x00, 0x50}, out[64:66])
	assert.Equal(t, "\r\n", string(out[66:68]))
	assert.Equal(t, "hello", string(out[68:]))

	// A second write after the header has already been sent must not
	// repeat it.
	n, err = w.Write([]byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "hello world", string(wire.Bytes()[68:]))
}
