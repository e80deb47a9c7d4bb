package encoding

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbot-proxy/netbot/common/net"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/vmess/aead"
)

func testID(t *testing.T) *protocol.ID {
	t.Helper()
	u, err := uuid.Parse("b831381d-6324-4d53-ad4f-8cda48b30811")
	require.NoError(t, err)
	return protocol.NewID(u)
}

// Testable property 3: the inner VMESS header round-trips through the
// AEAD envelope with every field, and its FNV-1a checksum, intact.
func TestEncodeRequestHeaderRoundTrip(t *testing.T) {
	id := testID(t)
	session, err := NewClientSession(id)
	require.NoError(t, err)

	header := &protocol.RequestHeader{
		Version:  Version,
		Command:  protocol.RequestCommandTCP,
		Option:   protocol.RequestOptionChunkStream,
		Security: protocol.SecurityTypeAES128GCM,
		Port:     net.Port(443),
		Address:  net.DomainAddress("example.com"),
	}

	sealed, err := session.EncodeRequestHeader(header)
	require.NoError(t, err)

	var cmdKey [16]byte
	copy(cmdKey[:], id.CmdKey())
	plaintext, err := aead.OpenVMessAEADHeader(cmdKey, sealed)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(plaintext), 1+16+16+1+1+1+1+1)

	pos := 0
	assert.Equal(t, Version, plaintext[pos])
	pos++
	assert.Equal(t, session.requestBodyIV[:], plaintext[pos:pos+16])
	pos += 16
	assert.Equal(t, session.requestBodyKey[:], plaintext[pos:pos+16])
	pos += 16
	assert.Equal(t, session.responseHeader, plaintext[pos])
	pos++
	assert.Equal(t, byte(header.Option), plaintext[pos])
	pos++
	padSec := plaintext[pos]
	pos++
	assert.Equal(t, byte(protocol.SecurityTypeAES128GCM), padSec&0x0f)
	padLen := int(padSec >> 4)
	assert.Equal(t, byte(0), plaintext[pos], "reserved byte must be zero")
	pos++
	assert.Equal(t, byte(protocol.RequestCommandTCP), plaintext[pos])
	pos++

	addrReader := bytes.NewReader(plaintext[pos:])
	decodedAddr, decodedPort, err := addrParser.ReadAddressPort(nil, addrReader)
	require.NoError(t, err)
	assert.True(t, header.Address.Equals(decodedAddr))
	assert.Equal(t, header.Port, decodedPort)

	consumed := len(plaintext[pos:]) - addrReader.Len()
	rest := plaintext[pos+consumed:]
	require.Len(t, rest, padLen+4, "padding plus trailing FNV-1a checksum")

	body := plaintext[:len(plaintext)-4]
	wantChecksum := Authenticate(body)
	gotChecksum := uint32(rest[padLen])<<24 | uint32(rest[padLen+1])<<16 | uint32(rest[padLen+2])<<8 | uint32(rest[padLen+3])
	assert.Equal(t, wantChecksum, gotChecksum)
}

// Scenario S4: a response whose verification byte does not match the
// session's negotiated responseHeader must be rejected as an
// authentication failure, never silently accepted.
func TestDecodeResponseHeaderRejectsWrongVerificationByte(t *testing.T) {
	id := testID(t)
	session, err := NewClientSession(id)
	require.NoError(t, err)

	wrongByte := session.responseHeader + 1
	plaintext := []byte{wrongByte, byte(protocol.RequestOptionChunkStream)}

	sealedLen := aead.SealResponseHeaderLength(session.responseBodyKey[:], session.responseBodyIV[:], uint16(len(plaintext)))
	sealedHeader := aead.SealResponseHeader(session.responseBodyKey[:], session.responseBodyIV[:], plaintext)

	var wire bytes.Buffer
	wire.Write(sealedLen)
	wire.Write(sealedHeader)

	_, err = session.DecodeResponseHeader(&wire)
	require.Error(t, err)
	xerr, ok := err.(*xerrors.Error)
	require.True(t, ok, "expected *xerrors.Error, got %T", err)
	assert.Equal(t, "AuthenticationFailed", xerr.Kind().String())
}

// A correctly authenticated response decodes to the option byte the
// fixture carried.
func TestDecodeResponseHeaderAcceptsMatchingVerificationByte(t *testing.T) {
	id := testID(t)
	session, err := NewClientSession(id)
	require.NoError(t, err)

	plaintext := []byte{session.responseHeader, byte(protocol.RequestOptionChunkStream)}

	sealedLen := aead.SealResponseHeaderLength(session.responseBodyKey[:], session.responseBodyIV[:], uint16(len(plaintext)))
	sealedHeader := aead.SealResponseHeader(session.responseBodyKey[:], session.responseBodyIV[:], plaintext)

	var wire bytes.Buffer
	wire.Write(sealedLen)
	wire.Write(sealedHeader)

	resp, err := session.DecodeResponseHeader(&wire)
	require.NoError(t, err)
	assert.Equal(t, protocol.RequestOptionChunkStream, resp.Option)
}
