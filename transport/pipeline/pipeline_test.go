package pipeline_test

import (
	"io"
	stdnet "net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/transport/pipeline"
)

// Testable property 11: for any interleaving of pre-handshake
// QueueWrite/QueueRead calls, the bytes observed downstream after
// EnterTunneling equal the concatenation of what was queued, in
// submission order.
func TestEnterTunnelingReplaysQueuesInFIFOOrder(t *testing.T) {
	inboundHere, inboundThere := stdnet.Pipe()
	defer inboundHere.Close()
	defer inboundThere.Close()
	outboundHere, outboundThere := stdnet.Pipe()
	defer outboundHere.Close()
	defer outboundThere.Close()

	conn := pipeline.New(inboundHere)
	conn.QueueWrite([]byte("write-one "))
	conn.QueueWrite([]byte("write-two "))
	conn.QueueWrite([]byte("write-three"))
	conn.QueueRead([]byte("read-one "))
	conn.QueueRead([]byte("read-two"))

	outboundGot := make(chan []byte, 1)
	inboundGot := make(chan []byte, 1)
	go func() {
		b := make([]byte, 64)
		n, _ := io.ReadFull(outboundThere, b[:len("write-one write-two write-three")])
		outboundGot <- b[:n]
	}()
	go func() {
		b := make([]byte, 64)
		n, _ := io.ReadFull(inboundThere, b[:len("read-one read-two")])
		inboundGot <- b[:n]
	}()

	require.NoError(t, conn.EnterTunneling(outboundHere))
	assert.Equal(t, pipeline.StateTunneling, conn.State())

	select {
	case got := <-outboundGot:
		assert.Equal(t, "write-one write-two write-three", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the queued writes to replay")
	}

	select {
	case got := <-inboundGot:
		assert.Equal(t, "read-one read-two", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the queued reads to replay")
	}
}

func TestStateTransitions(t *testing.T) {
	here, there := stdnet.Pipe()
	defer there.Close()
	conn := pipeline.New(here)
	assert.Equal(t, pipeline.StateGreeting, conn.State())

	conn.SetState(pipeline.StateAddrNegotiation)
	assert.Equal(t, pipeline.StateAddrNegotiation, conn.State())

	require.NoError(t, conn.Close())
	assert.Equal(t, pipeline.StateClosed, conn.State())
}
