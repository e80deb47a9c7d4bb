package wsrelay_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/transport/wsrelay"
)

// Scenario S5: a byte slice written on one end of a wsrelay.Conn arrives
// intact as a single Read on the other end, in both directions.
func TestScenarioS5RoundTrip(t *testing.T) {
	serverConn := make(chan *wsrelay.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := wsrelay.Upgrade(w, r, 0, 0)
		require.NoError(t, err)
		serverConn <- c
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := wsrelay.Dial(wsURL, 0, 0)
	require.NoError(t, err)
	defer client.Close()

	server2 := <-serverConn
	defer server2.Close()

	_, err = client.Write([]byte("hello from client"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := server2.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello from client", string(buf[:n]))

	_, err = server2.Write([]byte("hello from server"))
	require.NoError(t, err)

	n, err = client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello from server", string(buf[:n]))
}

// A ping with no matching pong within the deadline must tear the
// connection down rather than hang forever.
func TestHeartbeatClosesOnMissingPong(t *testing.T) {
	serverConn := make(chan *wsrelay.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := wsrelay.Upgrade(w, r, 0, 0)
		require.NoError(t, err)
		serverConn <- c
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := wsrelay.Dial(wsURL, 30*time.Millisecond, 30*time.Millisecond)
	require.NoError(t, err)
	defer client.Close()

	server2 := <-serverConn
	defer server2.Close()

	// The server side never reads, and gorilla's default ping handler only
	// answers pings during a read, so no pong ever comes back.
	buf := make([]byte, 16)
	_, err = client.Read(buf)
	require.Error(t, err, "missing pong must eventually surface as a read error")
}
