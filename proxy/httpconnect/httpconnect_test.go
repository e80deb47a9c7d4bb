package httpconnect_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/httpconnect"
)

// Scenario S2: a CONNECT request for example.com:443 decodes to the
// right target, and the server's success reply round-trips through the
// client's response parser as a non-error.
func TestScenarioS2(t *testing.T) {
	raw := "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"
	dest, err := httpconnect.ServerDecodeRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	assert.Equal(t, "example.com", dest.Address.String())
	assert.Equal(t, net.Port(443), dest.Port)

	var reply bytes.Buffer
	require.NoError(t, httpconnect.WriteSuccessReply(&reply))

	var clientOut bytes.Buffer
	err = httpconnect.ClientHandshake(bufio.NewReader(&reply), &clientOut, dest)
	require.NoError(t, err)
	assert.Contains(t, clientOut.String(), "CONNECT example.com:443 HTTP/1.1")
}

func TestServerDecodeRequestRejectsNonConnect(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"
	_, err := httpconnect.ServerDecodeRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	require.Error(t, err)
	xerr, ok := err.(*xerrors.Error)
	require.True(t, ok)
	assert.Equal(t, "UnsupportedCommand", xerr.Kind().String())
}

func TestClientHandshakeSurfacesUpstreamRejection(t *testing.T) {
	var reply bytes.Buffer
	require.NoError(t, httpconnect.WriteFailureReply(&reply, 403))

	var clientOut bytes.Buffer
	err := httpconnect.ClientHandshake(bufio.NewReader(&reply), &clientOut, net.TCPDestination(net.ParseAddress("example.com"), net.Port(443)))
	require.Error(t, err)
	xerr, ok := err.(*xerrors.Error)
	require.True(t, ok)
	assert.Equal(t, "UpstreamRejected", xerr.Kind().String())
}

// Testable property 10: writes submitted while a SetupWriter is not yet
// ready are queued, then flushed verbatim and in order once MarkReady is
// called; writes after MarkReady go straight through.
func TestSetupWriterQueuesUntilReady(t *testing.T) {
	var inner bytes.Buffer
	w := httpconnect.NewSetupWriter(&inner)

	n, err := w.Write([]byte("first "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	n, err = w.Write([]byte("second "))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 0, inner.Len(), "nothing should reach inner before MarkReady")

	require.NoError(t, w.MarkReady())
	assert.Equal(t, "first second ", inner.String())

	_, err = w.Write([]byte("third"))
	require.NoError(t, err)
	assert.Equal(t, "first second third", inner.String())
}
