// Package protocol holds the wire-level address codec and request/response
// headers shared by every outbound protocol adapter (proxy/socks,
// proxy/shadowsocks, proxy/vmess, proxy/trojan all parse and emit the same
// shape of "type byte, address bytes, big-endian port").
package protocol

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// AddressTypeParser rewrites a raw wire type byte before it is looked up in
// the family table — Shadowsocks ORs in stream-cipher flag bits alongside
// the address type, so it masks those off before dispatch.
type AddressTypeParser func(byte) byte

// AddressFamilyByte associates one wire type byte with an address family.
type AddressFamilyByte struct {
	Byte   byte
	Family net.AddressFamily
}

// AddressParser encodes and decodes the SOCKS5-shaped address form spec.md
// §4.2 describes: a type byte, followed by a length-prefixed domain or a
// fixed-size IP, followed by a big-endian port. Different protocols use
// different type-byte assignments (SOCKS5/Shadowsocks/Trojan use
// 0x01/0x03/0x04; VMESS uses 0x01/0x02/0x03), so the mapping is supplied by
// the caller via NewAddressParser, mirroring xray's
// protocol.NewAddressParser(AddressFamilyByte(...), ...) construction.
type AddressParser struct {
	byteToFamily map[byte]net.AddressFamily
	familyToByte map[net.AddressFamily]byte
	typeParser   AddressTypeParser
	portFirst    bool
}

// AddressParserOption configures an AddressParser.
type AddressParserOption func(*AddressParser)

// WithAddressTypeParser installs a function that normalizes the raw wire
// type byte before family lookup (e.g. masking off Shadowsocks's
// stream/AEAD flag bits).
func WithAddressTypeParser(f AddressTypeParser) AddressParserOption {
	return func(p *AddressParser) {
		p.typeParser = f
	}
}

// PortThenAddress reorders the wire form to port-then-address-type-then-
// address, the order VMESS's inner header uses instead of SOCKS5's
// address-then-port.
func PortThenAddress() AddressParserOption {
	return func(p *AddressParser) {
		p.portFirst = true
	}
}

// NewAddressParser builds an AddressParser from its family/byte mapping.
func NewAddressParser(mappings []AddressFamilyByte, opts ...AddressParserOption) *AddressParser {
	p := &AddressParser{
		byteToFamily: make(map[byte]net.AddressFamily, len(mappings)),
		familyToByte: make(map[net.AddressFamily]byte, len(mappings)),
	}
	for _, m := range mappings {
		p.byteToFamily[m.Byte] = m.Family
		p.familyToByte[m.Family] = m.Byte
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const (
	maxDomainLength = 255
	minDomainLength = 1
)

// WriteAddressPort encodes address and port per spec.md §4.2 "Encode":
// type byte, then (for domain) a length-prefixed name or the raw IP bytes,
// then the port as big-endian u16.
func (p *AddressParser) WriteAddressPort(writer io.Writer, address net.Address, port net.Port) error {
	if p.portFirst {
		var portBytes [2]byte
		binary.BigEndian.PutUint16(portBytes[:], port.Value())
		if _, err := writer.Write(portBytes[:]); err != nil {
			return err
		}
		return p.writeAddress(writer, address)
	}

	if err := p.writeAddress(writer, address); err != nil {
		return err
	}
	var portBytes [2]byte
	binary.BigEndian.PutUint16(portBytes[:], port.Value())
	_, err := writer.Write(portBytes[:])
	return err
}

func (p *AddressParser) writeAddress(writer io.Writer, address net.Address) error {
	tb, ok := p.familyToByte[address.Family()]
	if !ok {
		return xerrors.New("unsupported address family: ", address.Family()).WithKind(xerrors.KindUnsupportedAddressType)
	}

	switch address.Family() {
	case net.AddressFamilyDomain:
		domain := address.Domain()
		if len(domain) < minDomainLength || len(domain) > maxDomainLength {
			return xerrors.New("invalid domain length: ", len(domain)).WithKind(xerrors.KindInvalidFraming)
		}
		if !utf8.ValidString(domain) {
			return xerrors.New("domain is not valid UTF-8").WithKind(xerrors.KindInvalidFraming)
		}
		if _, err := writer.Write([]byte{tb, byte(len(domain))}); err != nil {
			return err
		}
		if _, err := writer.Write([]byte(domain)); err != nil {
			return err
		}
	default:
		if _, err := writer.Write([]byte{tb}); err != nil {
			return err
		}
		if _, err := writer.Write(address.IP()); err != nil {
			return err
		}
	}
	return nil
}

// ReadAddressPort decodes an address+port per spec.md §4.2 "Decode". buffer,
// if non-nil, accumulates the raw bytes consumed (used by callers, such as
// Shadowsocks, that need the plaintext header bytes for re-framing); it may
// be nil when the caller has no such need.
func (p *AddressParser) ReadAddressPort(buffer *buf.Buffer, reader io.Reader) (net.Address, net.Port, error) {
	if buffer == nil {
		buffer = buf.New()
		defer buffer.Release()
	}

	if p.portFirst {
		var portBytes [2]byte
		if _, err := io.ReadFull(reader, portBytes[:]); err != nil {
			return net.Address{}, 0, xerrors.New("failed to read port").Base(err).WithKind(xerrors.KindNeedMore)
		}
		buffer.Write(portBytes[:])
		address, err := p.readAddress(buffer, reader)
		if err != nil {
			return net.Address{}, 0, err
		}
		return address, net.Port(binary.BigEndian.Uint16(portBytes[:])), nil
	}

	address, err := p.readAddress(buffer, reader)
	if err != nil {
		return net.Address{}, 0, err
	}

	var portBytes [2]byte
	if _, err := io.ReadFull(reader, portBytes[:]); err != nil {
		return net.Address{}, 0, xerrors.New("failed to read port").Base(err).WithKind(xerrors.KindNeedMore)
	}
	buffer.Write(portBytes[:])

	return address, net.Port(binary.BigEndian.Uint16(portBytes[:])), nil
}

func (p *AddressParser) readAddress(buffer *buf.Buffer, reader io.Reader) (net.Address, error) {
	var tb [1]byte
	if _, err := io.ReadFull(reader, tb[:]); err != nil {
		return net.Address{}, xerrors.New("failed to read address type").Base(err).WithKind(xerrors.KindNeedMore)
	}
	buffer.Write(tb[:])

	wireType := tb[0]
	if p.typeParser != nil {
		wireType = p.typeParser(wireType)
	}

	family, ok := p.byteToFamily[wireType]
	if !ok {
		return net.Address{}, xerrors.New("unsupported address type: ", wireType).WithKind(xerrors.KindUnsupportedAddressType)
	}

	switch family {
	case net.AddressFamilyIPv4:
		var ip [4]byte
		if _, err := io.ReadFull(reader, ip[:]); err != nil {
			return net.Address{}, xerrors.New("failed to read IPv4 address").Base(err).WithKind(xerrors.KindNeedMore)
		}
		buffer.Write(ip[:])
		return net.IPAddress(ip[:]), nil
	case net.AddressFamilyIPv6:
		var ip [16]byte
		if _, err := io.ReadFull(reader, ip[:]); err != nil {
			return net.Address{}, xerrors.New("failed to read IPv6 address").Base(err).WithKind(xerrors.KindNeedMore)
		}
		buffer.Write(ip[:])
		return net.IPAddress(ip[:]), nil
	case net.AddressFamilyDomain:
		var lb [1]byte
		if _, err := io.ReadFull(reader, lb[:]); err != nil {
			return net.Address{}, xerrors.New("failed to read domain length").Base(err).WithKind(xerrors.KindNeedMore)
		}
		buffer.Write(lb[:])
		length := int(lb[0])
		if length < minDomainLength {
			return net.Address{}, xerrors.New("zero-length domain").WithKind(xerrors.KindInvalidFraming)
		}
		domain := make([]byte, length)
		if _, err := io.ReadFull(reader, domain); err != nil {
			return net.Address{}, xerrors.New("failed to read domain").Base(err).WithKind(xerrors.KindNeedMore)
		}
		buffer.Write(domain)
		if !utf8.Valid(domain) {
			return net.Address{}, xerrors.New("domain is not valid UTF-8").WithKind(xerrors.KindInvalidFraming)
		}
		return net.DomainAddress(string(domain)), nil
	default:
		return net.Address{}, xerrors.New("unsupported address family").WithKind(xerrors.KindUnsupportedAddressType)
	}
}
