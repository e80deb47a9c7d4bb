// Package trojan implements the Trojan client of spec.md §4.6: once TLS to
// the remote is established (TLS itself is out of this package's scope),
// the client writes its CRLF-terminated header lines (password hash, then
// the request), then streams raw bytes both ways.
package trojan

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

var crlf = []byte{'\r', '\n'}

var addrParser = protocol.NewAddressParser(
	[]protocol.AddressFamilyByte{
		{Byte: 0x01, Family: net.AddressFamilyIPv4},
		{Byte: 0x04, Family: net.AddressFamilyIPv6},
		{Byte: 0x03, Family: net.AddressFamilyDomain},
	},
)

const commandTCP byte = 0x01

// PasswordHash returns the 56-character lowercase hex SHA-224 digest of
// password, the identifier the Trojan wire protocol sends in place of a
// plaintext password.
func PasswordHash(password string) string {
	sum := sha256.Sum224([]byte(password))
	return hex.EncodeToString(sum[:])
}

// ConnWriter wraps a connection to a Trojan server, writing the framing
// header (password hash, command, target address) ahead of the first
// payload bytes, then forwarding every subsequent write unchanged.
type ConnWriter struct {
	io.Writer
	Target       net.Destination
	PasswordHash string
	headerSent   bool
}

// Write implements io.Writer.
func (c *ConnWriter) Write(p []byte) (int, error) {
	if !c.headerSent {
		if err := c.writeHeader(); err != nil {
			return 0, xerrors.New("failed to write trojan header").Base(err)
		}
	}
	return c.Writer.Write(p)
}

// WriteMultiBuffer implements buf.Writer.
func (c *ConnWriter) WriteMultiBuffer(mb buf.MultiBuffer) error {
	defer mb.Release()
	for _, b := range mb {
		if b.IsEmpty() {
			continue
		}
		if _, err := c.Write(b.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConnWriter) writeHeader() error {
	header := buf.New()
	defer header.Release()

	if _, err := header.WriteString(c.PasswordHash); err != nil {
		return err
	}
	if _, err := header.Write(crlf); err != nil {
		return err
	}
	if err := header.WriteByte(commandTCP); err != nil {
		return err
	}
	if err := addrParser.WriteAddressPort(header, c.Target.Address, c.Target.Port); err != nil {
		return err
	}
	if _, err := header.Write(crlf); err != nil {
		return err
	}

	if _, err := c.Writer.Write(header.Bytes()); err != nil {
		return err
	}
	c.headerSent = true
	return nil
}
