// Package encoding implements the VMESS request/response header codec of
// spec.md §4.5: the authID outer-auth envelope, the AEAD-protected inner
// header, and the chunked AEAD body framing that follows it.
package encoding

import (
	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
)

// Version is the sole supported inner-header version byte.
const Version = byte(1)

const (
	addressTypeIPv4   = 0x01
	addressTypeDomain = 0x02
	addressTypeIPv6   = 0x03
)

// addrParser encodes/decodes the inner header's destination, which unlike
// SOCKS5/Shadowsocks/Trojan is ordered port-then-type-address.
var addrParser = protocol.NewAddressParser(
	[]protocol.AddressFamilyByte{
		{Byte: addressTypeIPv4, Family: net.AddressFamilyIPv4},
		{Byte: addressTypeDomain, Family: net.AddressFamilyDomain},
		{Byte: addressTypeIPv6, Family: net.AddressFamilyIPv6},
	},
	protocol.PortThenAddress(),
)
