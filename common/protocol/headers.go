package protocol

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/netbot-proxy/netbot/common/net"
)

// RequestCommand is the outbound operation a protocol request asks the
// remote end to perform, per spec.md §3's RequestHeader.command.
type RequestCommand byte

const (
	RequestCommandTCP RequestCommand = 0x01
	RequestCommandUDP RequestCommand = 0x02
)

// TransferType classifies a command as stream- or packet-oriented.
type TransferType int

const (
	TransferTypeStream TransferType = iota
	TransferTypePacket
)

// TransferType reports how c's payload is framed.
func (c RequestCommand) TransferType() TransferType {
	if c == RequestCommandUDP {
		return TransferTypePacket
	}
	return TransferTypeStream
}

// RequestOption is a bitmask of VMESS request flags, a local equivalent of
// the teacher's bitmask.Byte (that package's defining file was not part of
// the retrieved reference set, so the same byte-flag shape is rebuilt here
// directly).
type RequestOption byte

const (
	RequestOptionChunkStream         RequestOption = 0x01
	RequestOptionChunkMasking        RequestOption = 0x04
	RequestOptionGlobalPadding       RequestOption = 0x08
	RequestOptionAuthenticatedLength RequestOption = 0x10
)

// Has reports whether every bit set in o is also set in r.
func (r RequestOption) Has(o RequestOption) bool {
	return r&o == o
}

// Set returns r with o's bits set.
func (r RequestOption) Set(o RequestOption) RequestOption {
	return r | o
}

// SecurityType identifies the AEAD cipher a VMESS session negotiates, per
// spec.md §4.5.
type SecurityType int

const (
	SecurityTypeAuto SecurityType = iota
	SecurityTypeAES128GCM
	SecurityTypeChaCha20Poly1305
	SecurityTypeNone
)

// SecurityConfig resolves an effective SecurityType, defaulting AUTO to
// whichever AEAD the local CPU accelerates — the teacher checks this via
// golang.org/x/sys/cpu's AES-NI/PCLMULQDQ feature bits; aes.NewCipher's own
// hardware dispatch makes that detection redundant here, so AUTO simply
// prefers AES-128-GCM whenever the stdlib can construct a GCM AEAD for it.
type SecurityConfig struct {
	Type SecurityType
}

// GetSecurityType resolves AUTO to a concrete AEAD choice.
func (sc *SecurityConfig) GetSecurityType() SecurityType {
	if sc == nil || sc.Type == SecurityTypeAuto {
		if hasHardwareAESGCM() {
			return SecurityTypeAES128GCM
		}
		return SecurityTypeChaCha20Poly1305
	}
	return sc.Type
}

func hasHardwareAESGCM() bool {
	block, err := aes.NewCipher(make([]byte, 16))
	if err != nil {
		return false
	}
	_, err = cipher.NewGCM(block)
	return err == nil
}

// RequestHeader is the decoded inbound-request metadata common to every
// outbound protocol adapter: which command, which AEAD, and where to.
type RequestHeader struct {
	Version  byte
	Command  RequestCommand
	Option   RequestOption
	Security SecurityType
	Port     net.Port
	Address  net.Address
}

// Destination renders the header's address and port as a net.Destination of
// the appropriate transport.
func (h *RequestHeader) Destination() net.Destination {
	if h.Command == RequestCommandUDP {
		return net.UDPDestination(h.Address, h.Port)
	}
	return net.TCPDestination(h.Address, h.Port)
}

// ResponseHeader is the decoded response metadata a protocol adapter reads
// back from the remote end before tunneling begins.
type ResponseHeader struct {
	Option RequestOption
}
