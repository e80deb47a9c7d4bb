package net

import (
	stdnet "net"

	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// AddressFamily distinguishes the three NetAddress variants spec.md's data
// model names: IPv4, IPv6 and Domain.
type AddressFamily int

const (
	AddressFamilyIPv4 AddressFamily = iota
	AddressFamilyIPv6
	AddressFamilyDomain
)

func (f AddressFamily) String() string {
	switch f {
	case AddressFamilyIPv4:
		return "IPv4"
	case AddressFamilyIPv6:
		return "IPv6"
	case AddressFamilyDomain:
		return "Domain"
	default:
		return "Unknown"
	}
}

// Address is the tagged NetAddress variant of spec.md §3: IPv4(4 bytes),
// IPv6(16 bytes) or Domain(1..=255 octets). It is constructed exclusively
// through the constructors below or common/protocol's AddressCodec, and is
// immutable once built.
type Address struct {
	family AddressFamily
	ip     stdnet.IP // 4 or 16 bytes, for IPv4/IPv6
	domain string    // 1..=255 bytes, for Domain
}

// IPAddress builds an Address from a 4- or 16-byte IP.
func IPAddress(ip stdnet.IP) Address {
	if v4 := ip.To4(); v4 != nil {
		return Address{family: AddressFamilyIPv4, ip: v4}
	}
	return Address{family: AddressFamilyIPv6, ip: ip.To16()}
}

// DomainAddress builds an Address from a domain name. The caller is
// responsible for the 1..=255-octet length invariant; codecs enforce it on
// the wire (see common/protocol.AddressCodec).
func DomainAddress(domain string) Address {
	return Address{family: AddressFamilyDomain, domain: domain}
}

// ParseAddress parses a string as an IP literal, falling back to a domain.
func ParseAddress(s string) Address {
	if ip := stdnet.ParseIP(s); ip != nil {
		return IPAddress(ip)
	}
	return DomainAddress(s)
}

// Family reports which NetAddress variant this is.
func (a Address) Family() AddressFamily {
	return a.family
}

// IP returns the underlying IP for an IPv4/IPv6 address. Panics if called on
// a Domain address — callers must check Family() first.
func (a Address) IP() stdnet.IP {
	if a.family == AddressFamilyDomain {
		panic("net: IP() called on a domain address")
	}
	return a.ip
}

// Domain returns the domain name for a Domain address. Panics otherwise.
func (a Address) Domain() string {
	if a.family != AddressFamilyDomain {
		panic("net: Domain() called on a non-domain address")
	}
	return a.domain
}

// String renders the address the way it would appear in a host:port pair.
func (a Address) String() string {
	switch a.family {
	case AddressFamilyDomain:
		return a.domain
	case AddressFamilyIPv6:
		return "[" + a.ip.String() + "]"
	default:
		return a.ip.String()
	}
}

// Equals reports whether two addresses denote the same NetAddress value.
func (a Address) Equals(b Address) bool {
	if a.family != b.family {
		return false
	}
	if a.family == AddressFamilyDomain {
		return a.domain == b.domain
	}
	return a.ip.Equal(b.ip)
}

func validateDomain(domain string) error {
	if len(domain) == 0 || len(domain) > 255 {
		return xerrors.New("invalid domain length: ", len(domain))
	}
	return nil
}
