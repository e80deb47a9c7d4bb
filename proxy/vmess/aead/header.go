package aead

import (
	"crypto/rand"
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/netbot-proxy/netbot/common/crypto"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

var errShortHeader = xerrors.New("VMESS header envelope too short").WithKind(xerrors.KindNeedMore)

const (
	// KDF label constants for the AEAD header envelope, spec.md §4.5.
	kdfLabelHeaderLenKey   = "VMess Header AEAD Key_Length"
	kdfLabelHeaderLenNonce = "VMess Header AEAD Nonce_Length"
	kdfLabelHeaderKey      = "VMess Header AEAD Key"
	kdfLabelHeaderNonce    = "VMess Header AEAD Nonce"
)

// NewAuthID computes the 16-byte authID that opens every VMESS request: an
// AES-128-ECB-encrypted block of a big-endian timestamp, 4 random bytes and
// a CRC32 checksum of those 12 bytes.
func NewAuthID(cmdKey []byte) ([16]byte, error) {
	var block [16]byte
	binary.BigEndian.PutUint64(block[:8], uint64(time.Now().Unix()))
	if _, err := rand.Read(block[8:12]); err != nil {
		return block, err
	}
	binary.BigEndian.PutUint32(block[12:16], crc32.ChecksumIEEE(block[:12]))

	var authID [16]byte
	copy(authID[:], crypto.AESECBEncryptSingleBlock(cmdKey, block[:]))
	return authID, nil
}

// SealVMessAEADHeader wraps headerBytes in the outer AEAD envelope of
// spec.md §4.5: a fresh authID, an 8-byte connection nonce, an
// AEAD-sealed 2-byte length, and the AEAD-sealed header itself.
func SealVMessAEADHeader(cmdKey [16]byte, headerBytes []byte) ([]byte, error) {
	authID, err := NewAuthID(cmdKey[:])
	if err != nil {
		return nil, err
	}
	connectionNonce := make([]byte, 8)
	if _, err := rand.Read(connectionNonce); err != nil {
		return nil, err
	}

	lenKey := KDF16(cmdKey[:], kdfLabelHeaderLenKey, string(authID[:]), string(connectionNonce))
	lenNonce := KDF(cmdKey[:], kdfLabelHeaderLenNonce, string(authID[:]), string(connectionNonce))[:12]
	lenAEAD := crypto.NewAesGcm(lenKey)

	var lengthBuf [2]byte
	binary.BigEndian.PutUint16(lengthBuf[:], uint16(len(headerBytes)))
	sealedLen := crypto.AEADSeal(lenAEAD, lenNonce, authID[:], lengthBuf[:])

	headerKey := KDF16(cmdKey[:], kdfLabelHeaderKey, string(authID[:]), string(connectionNonce))
	headerNonce := KDF(cmdKey[:], kdfLabelHeaderNonce, string(authID[:]), string(connectionNonce))[:12]
	headerAEAD := crypto.NewAesGcm(headerKey)
	sealedHeader := crypto.AEADSeal(headerAEAD, headerNonce, authID[:], headerBytes)

	out := make([]byte, 0, 16+8+len(sealedLen)+len(sealedHeader))
	out = append(out, authID[:]...)
	out = append(out, connectionNonce...)
	out = append(out, sealedLen...)
	out = append(out, sealedHeader...)
	return out, nil
}

// OpenVMessAEADHeader is the decode counterpart of SealVMessAEADHeader,
// exercising the AEAD header envelope's round-trip property (spec.md §8,
// testable property 3). Netbot never dials as a server (spec.md §1
// non-goals), so this is only ever used from this module's own tests to
// verify a header it just sealed.
func OpenVMessAEADHeader(cmdKey [16]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < 16+8 {
		return nil, errShortHeader
	}
	authID := sealed[:16]
	connectionNonce := sealed[16:24]
	rest := sealed[24:]

	lenKey := KDF16(cmdKey[:], kdfLabelHeaderLenKey, string(authID), string(connectionNonce))
	lenNonce := KDF(cmdKey[:], kdfLabelHeaderLenNonce, string(authID), string(connectionNonce))[:12]
	lenAEAD := crypto.NewAesGcm(lenKey)

	lenOverhead := lenAEAD.Overhead()
	if len(rest) < 2+lenOverhead {
		return nil, errShortHeader
	}
	sealedLen := rest[:2+lenOverhead]
	rest = rest[2+lenOverhead:]

	lengthBuf, err := crypto.AEADOpen(lenAEAD, lenNonce, authID, sealedLen)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lengthBuf)

	headerKey := KDF16(cmdKey[:], kdfLabelHeaderKey, string(authID), string(connectionNonce))
	headerNonce := KDF(cmdKey[:], kdfLabelHeaderNonce, string(authID), string(connectionNonce))[:12]
	headerAEAD := crypto.NewAesGcm(headerKey)

	if len(rest) < int(length)+headerAEAD.Overhead() {
		return nil, errShortHeader
	}
	return crypto.AEADOpen(headerAEAD, headerNonce, authID, rest[:int(length)+headerAEAD.Overhead()])
}

const (
	// KDF label constants for the response header envelope. Unlike the
	// request envelope these are keyed directly off the session's derived
	// responseBodyKey/IV rather than cmdKey+authID, since by the time a
	// response arrives both ends already share that session state.
	kdfLabelRespHeaderLenKey = "AEAD Resp Header Len Key"
	kdfLabelRespHeaderLenIV  = "AEAD Resp Header Len IV"
	kdfLabelRespHeaderKey    = "AEAD Resp Header Key"
	kdfLabelRespHeaderIV     = "AEAD Resp Header IV"
)

// OpenResponseHeaderLength decrypts the 2-byte response header length that
// precedes the response header itself, given the session's responseBodyKey
// and responseBodyIV.
func OpenResponseHeaderLength(responseBodyKey, responseBodyIV, sealed []byte) (uint16, error) {
	key := KDF16(responseBodyKey, kdfLabelRespHeaderLenKey)
	iv := KDF(responseBodyIV, kdfLabelRespHeaderLenIV)[:12]
	plaintext, err := crypto.AEADOpen(crypto.NewAesGcm(key), iv, nil, sealed)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(plaintext), nil
}

// OpenResponseHeader decrypts the response header itself.
func OpenResponseHeader(responseBodyKey, responseBodyIV, sealed []byte) ([]byte, error) {
	key := KDF16(responseBodyKey, kdfLabelRespHeaderKey)
	iv := KDF(responseBodyIV, kdfLabelRespHeaderIV)[:12]
	return crypto.AEADOpen(crypto.NewAesGcm(key), iv, nil, sealed)
}

// SealResponseHeaderLength is the encode counterpart of
// OpenResponseHeaderLength. Like OpenVMessAEADHeader, this module never
// plays the server role in production; it exists so this module's own
// tests can build a response fixture (including scenario S4's deliberately
// wrong respAuth byte) without a live VMESS server.
func SealResponseHeaderLength(responseBodyKey, responseBodyIV []byte, length uint16) []byte {
	key := KDF16(responseBodyKey, kdfLabelRespHeaderLenKey)
	iv := KDF(responseBodyIV, kdfLabelRespHeaderLenIV)[:12]
	var lengthBuf [2]byte
	binary.BigEndian.PutUint16(lengthBuf[:], length)
	return crypto.AEADSeal(crypto.NewAesGcm(key), iv, nil, lengthBuf[:])
}

// SealResponseHeader is the encode counterpart of OpenResponseHeader.
func SealResponseHeader(responseBodyKey, responseBodyIV, plaintext []byte) []byte {
	key := KDF16(responseBodyKey, kdfLabelRespHeaderKey)
	iv := KDF(responseBodyIV, kdfLabelRespHeaderIV)[:12]
	return crypto.AEADSeal(crypto.NewAesGcm(key), iv, nil, plaintext)
}
