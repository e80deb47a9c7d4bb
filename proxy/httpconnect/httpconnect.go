// Package httpconnect implements the HttpConnectHandler of spec.md §4.7:
// CONNECT request generation (client role) and CONNECT request decoding
// plus response generation (server role, for local browsers/apps dialing
// into Netbot).
package httpconnect

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// ServerDecodeRequest reads and parses a CONNECT request from reader (server
// role: Netbot is the local proxy a browser/app is dialing into), returning
// the requested target. It does not write any reply; the caller writes
// WriteSuccessReply or WriteFailureReply once it knows whether the outbound
// connection succeeded.
func ServerDecodeRequest(reader *bufio.Reader) (net.Destination, error) {
	req, err := http.ReadRequest(reader)
	if err != nil {
		return net.Destination{}, xerrors.New("failed to read CONNECT request").Base(err).WithKind(xerrors.KindNeedMore)
	}
	if req.Method != http.MethodConnect {
		return net.Destination{}, xerrors.New("unsupported HTTP method: ", req.Method).WithKind(xerrors.KindUnsupportedCommand)
	}

	host, portStr, err := net.SplitHostPort(req.Host)
	if err != nil {
		return net.Destination{}, xerrors.New("invalid CONNECT target: ", req.Host).Base(err).WithKind(xerrors.KindInvalidFraming)
	}
	port, err := net.PortFromString(portStr)
	if err != nil {
		return net.Destination{}, xerrors.New("invalid CONNECT port: ", portStr).Base(err).WithKind(xerrors.KindInvalidFraming)
	}

	return net.TCPDestination(net.ParseAddress(host), port), nil
}

// WriteSuccessReply writes the server role's success response once the
// outbound connection is established.
func WriteSuccessReply(writer io.Writer) error {
	_, err := io.WriteString(writer, "HTTP/1.1 200 OK\r\n\r\n")
	return err
}

// WriteFailureReply writes a non-2xx failure response with the given HTTP
// status code.
func WriteFailureReply(writer io.Writer, code int) error {
	_, err := io.WriteString(writer, fmt.Sprintf("HTTP/1.1 %d %s\r\n\r\n", code, http.StatusText(code)))
	return err
}

// ClientHandshake drives the client role: it emits a CONNECT request for
// target and parses the response, succeeding iff the status is in
// [200, 300). Any other code surfaces as KindUpstreamRejected(code).
func ClientHandshake(reader *bufio.Reader, writer io.Writer, target net.Destination) error {
	hostPort := target.NetAddr()
	if _, err := fmt.Fprintf(writer, "CONNECT %s HTTP/1.1\r\nHost: %s\r\nProxy-Connection: keep-alive\r\n\r\n", hostPort, hostPort); err != nil {
		return err
	}

	resp, err := http.ReadResponse(reader, nil)
	if err != nil {
		return xerrors.New("failed to read CONNECT response").Base(err).WithKind(xerrors.KindNeedMore)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return xerrors.New("CONNECT rejected, status ", strconv.Itoa(resp.StatusCode)).WithKind(xerrors.KindUpstreamRejected).WithCode(resp.StatusCode)
	}
	return nil
}

// SetupWriter buffers writes submitted before the CONNECT handshake
// completes and replays them in submission order once MarkReady is called,
// implementing spec.md §4.7's "while in setup state all outbound writes are
// queued" rule (testable property 10).
type SetupWriter struct {
	inner io.Writer
	ready bool
	queue [][]byte
}

// NewSetupWriter wraps inner, queuing writes until MarkReady is called.
func NewSetupWriter(inner io.Writer) *SetupWriter {
	return &SetupWriter{inner: inner}
}

// Write implements io.Writer.
func (w *SetupWriter) Write(p []byte) (int, error) {
	if !w.ready {
		w.queue = append(w.queue, append([]byte(nil), p...))
		return len(p), nil
	}
	return w.inner.Write(p)
}

// MarkReady flushes every queued write, in order, then forwards subsequent
// writes directly.
func (w *SetupWriter) MarkReady() error {
	w.ready = true
	queue := w.queue
	w.queue = nil
	for _, p := range queue {
		if _, err := w.inner.Write(p); err != nil {
			return err
		}
	}
	return nil
}
