package trojan

import (
	"context"
	"crypto/tls"
	stdnet "net"

	"github.com/netbot-proxy/netbot/common/net"
)

// Dial connects to serverAddr over TLS and returns a net.Conn whose first
// Write will carry the Trojan framing header for target ahead of the
// caller's payload. tlsConfig.ServerName should be the server's advertised
// hostname; a nil config uses the standard library's defaults.
func Dial(ctx context.Context, serverAddr string, tlsConfig *tls.Config, password string, target net.Destination) (stdnet.Conn, error) {
	var d tls.Dialer
	if tlsConfig != nil {
		d.Config = tlsConfig
	}
	conn, err := d.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return nil, err
	}

	return &clientConn{
		Conn: conn,
		writer: &ConnWriter{
			Writer:       conn,
			Target:       target,
			PasswordHash: PasswordHash(password),
		},
	}, nil
}

// clientConn routes Write through the header-prepending ConnWriter while
// leaving Read (and every other net.Conn method) on the raw TLS connection.
type clientConn struct {
	stdnet.Conn
	writer *ConnWriter
}

func (c *clientConn) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}
