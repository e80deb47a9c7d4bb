package net

import (
	"encoding/binary"
	"strconv"

	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// Port represents a network port in TCP and UDP protocol.
type Port uint16

// PortFromBytes converts a byte array to a Port, assuming bytes are in big
// endian order. Caller must ensure the slice has at least 2 elements.
func PortFromBytes(port []byte) Port {
	return Port(binary.BigEndian.Uint16(port))
}

// PortFromInt converts an integer to a Port.
func PortFromInt(val uint32) (Port, error) {
	if val > 65535 {
		return Port(0), xerrors.New("invalid port range: ", val)
	}
	return Port(val), nil
}

// PortFromString converts a string to a Port.
func PortFromString(s string) (Port, error) {
	val, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return Port(0), xerrors.New("invalid port range: ", s)
	}
	return PortFromInt(uint32(val))
}

// Value returns the corresponding uint16 value of a Port.
func (p Port) Value() uint16 {
	return uint16(p)
}

// String returns the string presentation of a Port.
func (p Port) String() string {
	return strconv.Itoa(int(p))
}

// PortRange is an inclusive [From, To] range of ports.
type PortRange struct {
	From Port
	To   Port
}

// Contains returns true if port falls within the range.
func (r PortRange) Contains(port Port) bool {
	return r.From <= port && port <= r.To
}

// SinglePortRange returns a PortRange containing exactly one port.
func SinglePortRange(p Port) PortRange {
	return PortRange{From: p, To: p}
}
