package encoding

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/netbot-proxy/netbot/common/crypto"
)

// Authenticate returns the FNV-1a checksum of b, used as the inner header's
// trailing integrity check (spec.md §4.5).
func Authenticate(b []byte) uint32 {
	h := fnv.New32a()
	h.Write(b)
	return h.Sum32()
}

// GenerateChacha20Poly1305Key derives a 32-byte ChaCha20-Poly1305 key from a
// 16-byte input as MD5(b) || MD5(MD5(b)).
func GenerateChacha20Poly1305Key(b []byte) []byte {
	return crypto.GenerateChacha20Poly1305Key(b)
}

// ShakeSizeParser masks a 2-byte big-endian chunk length with a SHAKE128
// keystream derived from the session nonce, so that on-wire chunk lengths
// never appear in the clear.
type ShakeSizeParser struct {
	stream *crypto.Shake128Stream
}

// NewShakeSizeParser seeds a ShakeSizeParser from a session nonce.
func NewShakeSizeParser(nonce []byte) *ShakeSizeParser {
	return &ShakeSizeParser{stream: crypto.NewShake128Stream(nonce)}
}

// SizeBytes reports the on-wire size of an encoded length.
func (*ShakeSizeParser) SizeBytes() int32 {
	return 2
}

// Decode unmasks the 2-byte big-endian length read from b.
func (s *ShakeSizeParser) Decode(b []byte) (uint16, error) {
	mask := s.stream.NextUint16()
	size := binary.BigEndian.Uint16(b)
	return mask ^ size, nil
}

// Encode masks size and writes it big-endian into b, returning the 2-byte
// slice written.
func (s *ShakeSizeParser) Encode(size uint16, b []byte) []byte {
	mask := s.stream.NextUint16()
	binary.BigEndian.PutUint16(b, mask^size)
	return b[:2]
}

// NextPaddingLen returns the next pseudo-random padding length, 0-63 bytes.
func (s *ShakeSizeParser) NextPaddingLen() uint16 {
	return s.stream.NextUint16() % 64
}

// MaxPaddingLen is the exclusive upper bound of NextPaddingLen's result.
func (s *ShakeSizeParser) MaxPaddingLen() uint16 {
	return 64
}

// PlainChunkSizeParser encodes chunk lengths as a plain big-endian uint16,
// used when RequestOptionChunkMasking is not negotiated.
type PlainChunkSizeParser struct{}

func (PlainChunkSizeParser) SizeBytes() int32 { return 2 }

func (PlainChunkSizeParser) Decode(b []byte) (uint16, error) {
	return binary.BigEndian.Uint16(b), nil
}

func (PlainChunkSizeParser) Encode(size uint16, b []byte) []byte {
	binary.BigEndian.PutUint16(b, size)
	return b[:2]
}
