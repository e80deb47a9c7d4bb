package crypto

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Shake128Stream is SHAKE128 used as spec.md §4.1 requires: an endless
// pseudo-random stream. Update accumulates input; Read squeezes successive
// output bytes, and unlike a one-shot hash, repeated Read calls continue
// the same squeeze rather than restarting it. Grounded on vmess's
// ShakeSizeParser, which drives the VMESS body length-masking stream the
// same way.
type Shake128Stream struct {
	shake sha3.ShakeHash
}

// NewShake128Stream seeds a Shake128Stream with the given seed bytes (for
// VMESS, reqIV or respIV).
func NewShake128Stream(seed []byte) *Shake128Stream {
	s := &Shake128Stream{shake: sha3.NewShake128()}
	s.shake.Write(seed)
	return s
}

// Update accumulates more input bytes, per spec.md §4.1's
// "update(bytes) accumulates". Must not be called once Read has begun
// squeezing output.
func (s *Shake128Stream) Update(data []byte) {
	s.shake.Write(data)
}

// Finalize squeezes a 16-byte digest and renders it as uppercase hex, per
// spec.md §4.1's "finalize() returns a fixed-format digest string for
// debugging only" — it is not used by the VMESS length-mask stream, which
// reads via Read/NextUint16/NextByte instead.
func (s *Shake128Stream) Finalize() string {
	return strings.ToUpper(hex.EncodeToString(s.Read(16)))
}

// Read squeezes n bytes of XOF output.
func (s *Shake128Stream) Read(n int) []byte {
	out := make([]byte, n)
	if _, err := s.shake.Read(out); err != nil {
		panic(err)
	}
	return out
}

// NextUint16 squeezes 2 bytes interpreted as a big-endian uint16, for the
// body length-mask stream.
func (s *Shake128Stream) NextUint16() uint16 {
	b := s.Read(2)
	return uint16(b[0])<<8 | uint16(b[1])
}

// NextByte squeezes a single byte, for the GlobalPadding per-chunk length
// draw.
func (s *Shake128Stream) NextByte() byte {
	return s.Read(1)[0]
}
