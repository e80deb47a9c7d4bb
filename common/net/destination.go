package net

import stdnet "net"

// Destination represents a network destination: an Address, a Port and the
// transport Network (TCP or UDP) to reach it over.
type Destination struct {
	Address Address
	Port    Port
	Network Network
}

// TCPDestination builds a TCP Destination.
func TCPDestination(address Address, port Port) Destination {
	return Destination{Network: Network_TCP, Address: address, Port: port}
}

// UDPDestination builds a UDP Destination.
func UDPDestination(address Address, port Port) Destination {
	return Destination{Network: Network_UDP, Address: address, Port: port}
}

// IsValid reports whether d names a usable endpoint.
func (d Destination) IsValid() bool {
	return d.Network != Network_Unknown
}

// NetAddr renders the destination as a host:port string suitable for
// net.Dial.
func (d Destination) NetAddr() string {
	host := d.Address.String()
	if d.Address.Family() == AddressFamilyIPv6 {
		// Address.String already brackets IPv6; JoinHostPort adds its own.
		host = d.Address.IP().String()
	}
	return stdnet.JoinHostPort(host, d.Port.String())
}

func (d Destination) String() string {
	if !d.IsValid() {
		return "Destination(nil)"
	}
	return d.Network.String() + ":" + d.NetAddr()
}
