package encoding

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/common/crypto"
	"github.com/netbot-proxy/netbot/common/protocol"
	"github.com/netbot-proxy/netbot/internal/xerrors"
	"github.com/netbot-proxy/netbot/proxy/vmess/aead"
)

// ClientSession holds the per-connection state negotiated for one VMESS
// request: the random request body key/IV and their SHA-256-derived response
// counterparts, plus the verification byte the server must echo back.
type ClientSession struct {
	ID *protocol.ID

	requestBodyKey  [16]byte
	requestBodyIV   [16]byte
	responseBodyKey [16]byte
	responseBodyIV  [16]byte
	responseHeader  byte
}

// NewClientSession generates a fresh ClientSession for id.
func NewClientSession(id *protocol.ID) (*ClientSession, error) {
	s := &ClientSession{ID: id}
	if _, err := rand.Read(s.requestBodyKey[:]); err != nil {
		return nil, err
	}
	if _, err := rand.Read(s.requestBodyIV[:]); err != nil {
		return nil, err
	}
	var v [1]byte
	if _, err := rand.Read(v[:]); err != nil {
		return nil, err
	}
	s.responseHeader = v[0]

	keyHash := sha256.Sum256(s.requestBodyKey[:])
	copy(s.responseBodyKey[:], keyHash[:16])
	ivHash := sha256.Sum256(s.requestBodyIV[:])
	copy(s.responseBodyIV[:], ivHash[:16])
	return s, nil
}

// effectiveSecurity resolves AUTO to a concrete AEAD choice; RequestHeader
// carries SecurityType directly rather than the resolving SecurityConfig.
func effectiveSecurity(t protocol.SecurityType) protocol.SecurityType {
	if t == protocol.SecurityTypeAuto {
		cfg := &protocol.SecurityConfig{Type: t}
		return cfg.GetSecurityType()
	}
	return t
}

// EncodeRequestHeader builds the sealed inner-header envelope for header,
// per spec.md §4.5: ver|reqIV|reqKey|respV|opt|pad_len:secType|rsv|cmd|
// port|atyp|addr|padding|fnv1a, wrapped in SealVMessAEADHeader.
func (s *ClientSession) EncodeRequestHeader(header *protocol.RequestHeader) ([]byte, error) {
	buffer := buf.New()
	defer buffer.Release()

	buffer.WriteByte(Version)
	buffer.Write(s.requestBodyIV[:])
	buffer.Write(s.requestBodyKey[:])
	buffer.WriteByte(s.responseHeader)
	buffer.WriteByte(byte(header.Option))

	padLen := 0
	if header.Option.Has(protocol.RequestOptionGlobalPadding) {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, err
		}
		padLen = int(b[0] % 16)
	}
	buffer.WriteByte(byte(padLen<<4) | byte(effectiveSecurity(header.Security)))
	buffer.WriteByte(0) // reserved
	buffer.WriteByte(byte(header.Command))

	if err := addrParser.WriteAddressPort(buffer, header.Address, header.Port); err != nil {
		return nil, xerrors.New("failed to encode VMESS request address").Base(err)
	}

	if padLen > 0 {
		padding := make([]byte, padLen)
		if _, err := rand.Read(padding); err != nil {
			return nil, err
		}
		buffer.Write(padding)
	}

	fnv := Authenticate(buffer.Bytes())
	var fnvBuf [4]byte
	fnvBuf[0] = byte(fnv >> 24)
	fnvBuf[1] = byte(fnv >> 16)
	fnvBuf[2] = byte(fnv >> 8)
	fnvBuf[3] = byte(fnv)
	buffer.Write(fnvBuf[:])

	var cmdKey [16]byte
	copy(cmdKey[:], s.ID.CmdKey())
	return aead.SealVMessAEADHeader(cmdKey, buffer.Bytes())
}

func (s *ClientSession) newBodyAEAD(security protocol.SecurityType, key [16]byte) (cipher.AEAD, error) {
	switch security {
	case protocol.SecurityTypeAES128GCM, protocol.SecurityTypeAuto:
		return crypto.NewAesGcm(key[:]), nil
	case protocol.SecurityTypeChaCha20Poly1305:
		return chacha20poly1305.New(GenerateChacha20Poly1305Key(key[:]))
	default:
		return nil, xerrors.New("unsupported VMESS body security").WithKind(xerrors.KindUnsupportedAlgorithm)
	}
}

// EncodeRequestBody returns the buf.Writer that frames and encrypts the
// outbound request body under header's negotiated security.
func (s *ClientSession) EncodeRequestBody(header *protocol.RequestHeader, writer io.Writer) (buf.Writer, error) {
	security := effectiveSecurity(header.Security)
	if security == protocol.SecurityTypeNone {
		return buf.NewWriter(writer), nil
	}
	bodyAEAD, err := s.newBodyAEAD(security, s.requestBodyKey)
	if err != nil {
		return nil, err
	}
	return NewChunkWriter(writer, bodyAEAD, s.requestBodyIV[:], s.sizeCoder(header)), nil
}

// DecodeResponseBody returns the buf.Reader that decrypts and unframes the
// inbound response body.
func (s *ClientSession) DecodeResponseBody(header *protocol.RequestHeader, reader io.Reader) (buf.Reader, error) {
	security := effectiveSecurity(header.Security)
	if security == protocol.SecurityTypeNone {
		return buf.NewReader(reader), nil
	}
	bodyAEAD, err := s.newBodyAEAD(security, s.responseBodyKey)
	if err != nil {
		return nil, err
	}
	return NewChunkReader(reader, bodyAEAD, s.responseBodyIV[:], s.sizeCoderResp(header)), nil
}

func (s *ClientSession) sizeCoder(header *protocol.RequestHeader) ChunkSizeEncoder {
	if header.Option.Has(protocol.RequestOptionChunkMasking) {
		return NewShakeSizeParser(s.requestBodyIV[:])
	}
	return PlainChunkSizeParser{}
}

func (s *ClientSession) sizeCoderResp(header *protocol.RequestHeader) ChunkSizeDecoder {
	if header.Option.Has(protocol.RequestOptionChunkMasking) {
		return NewShakeSizeParser(s.responseBodyIV[:])
	}
	return PlainChunkSizeParser{}
}

// DecodeResponseHeader reads and verifies the server's response header
// envelope, returning the decoded protocol.ResponseHeader.
func (s *ClientSession) DecodeResponseHeader(reader io.Reader) (*protocol.ResponseHeader, error) {
	overhead := 16 // AES-128-GCM / ChaCha20-Poly1305 tag size

	sealedLen := make([]byte, 2+overhead)
	if _, err := io.ReadFull(reader, sealedLen); err != nil {
		return nil, xerrors.New("failed to read VMESS response length").Base(err).WithKind(xerrors.KindNeedMore)
	}
	length, err := aead.OpenResponseHeaderLength(s.responseBodyKey[:], s.responseBodyIV[:], sealedLen)
	if err != nil {
		return nil, err
	}

	sealedHeader := make([]byte, int(length)+overhead)
	if _, err := io.ReadFull(reader, sealedHeader); err != nil {
		return nil, xerrors.New("failed to read VMESS response header").Base(err).WithKind(xerrors.KindNeedMore)
	}
	plaintext, err := aead.OpenResponseHeader(s.responseBodyKey[:], s.responseBodyIV[:], sealedHeader)
	if err != nil {
		return nil, err
	}
	if len(plaintext) < 2 {
		return nil, xerrors.New("VMESS response header too short").WithKind(xerrors.KindInvalidFraming)
	}
	if plaintext[0] != s.responseHeader {
		return nil, xerrors.New("VMESS response verification byte mismatch").WithKind(xerrors.KindAuthenticationFailed)
	}

	return &protocol.ResponseHeader{Option: protocol.RequestOption(plaintext[1])}, nil
}
