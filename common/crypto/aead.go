package crypto

import (
	"crypto/cipher"
	"crypto/md5"
	"encoding/binary"
	"io"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// AEADSeal implements spec's aead_seal: seals plaintext under key/nonce/aad,
// appending the authentication tag.
func AEADSeal(aead cipher.AEAD, nonce, aad, plaintext []byte) []byte {
	return aead.Seal(nil, nonce, plaintext, aad)
}

// AEADOpen implements spec's aead_open; returns AuthenticationFailed on tag
// mismatch.
func AEADOpen(aead cipher.AEAD, nonce, aad, ciphertext []byte) ([]byte, error) {
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, xerrors.New("AEAD authentication failed").Base(err).WithKind(xerrors.KindAuthenticationFailed)
	}
	return plaintext, nil
}

// GenerateChacha20Poly1305Key implements VMESS's
// generateChaChaPolySymmetricKey(x) = MD5(x) || MD5(MD5(x)), deriving a
// 32-byte ChaCha20-Poly1305 key from a 16-byte AES-GCM key.
func GenerateChacha20Poly1305Key(b []byte) []byte {
	key := make([]byte, 32)
	t := md5.Sum(b)
	copy(key, t[:])
	t2 := md5.Sum(t[:])
	copy(key[16:], t2[:])
	return key
}

// NonceGenerator produces the next AEAD nonce for a chunked stream.
type NonceGenerator interface {
	Next() []byte
}

// counterNonce is an incrementing-counter nonce generator: the low bytes of
// a fixed-size nonce count up once per AEAD call, per spec.md §4.4's
// "each AEAD call increments the nonce counter by 1".
type counterNonce struct {
	nonce   []byte
	counter uint64
}

// NewCounterNonce builds a NonceGenerator of the given size, counting from
// zero.
func NewCounterNonce(size int) NonceGenerator {
	return &counterNonce{nonce: make([]byte, size)}
}

func (c *counterNonce) Next() []byte {
	binary.LittleEndian.PutUint64(c.nonce[:8], c.counter)
	c.counter++
	return c.nonce
}

const (
	// MaxChunkSize is the largest payload spec.md §4.4 allows per chunk.
	MaxChunkSize = 0x3FFF
	lengthBytes  = 2
)

// AEADAuthenticator seals/opens one chunk's length or payload under a
// shared AEAD and a NonceGenerator, tracking a call counter so length and
// payload of the same chunk use consecutive nonces (n_k for the length,
// n_k+1 for the payload), matching spec.md §4.4's chunk layout.
type AEADAuthenticator struct {
	AEAD    cipher.AEAD
	Nonce   NonceGenerator
	tagSize int
}

// Overhead returns the AEAD tag size added to every sealed value.
func (a *AEADAuthenticator) Overhead() int {
	return a.AEAD.Overhead()
}

// Seal authenticates and encrypts one chunk field.
func (a *AEADAuthenticator) Seal(plaintext []byte) []byte {
	return AEADSeal(a.AEAD, a.Nonce.Next(), nil, plaintext)
}

// Open authenticates and decrypts one chunk field.
func (a *AEADAuthenticator) Open(ciphertext []byte) ([]byte, error) {
	return AEADOpen(a.AEAD, a.Nonce.Next(), nil, ciphertext)
}

// AEADChunkWriter frames outbound MultiBuffers as
// length-then-payload AEAD chunks, per spec.md §4.4's wire layout: each
// chunk is a sealed big-endian u16 length followed by a sealed payload of
// that length (payloads larger than MaxChunkSize are split across chunks).
type AEADChunkWriter struct {
	writer io.Writer
	auth   *AEADAuthenticator
}

// NewAEADChunkWriter wraps writer to emit AEAD-framed chunks via auth.
func NewAEADChunkWriter(writer io.Writer, auth *AEADAuthenticator) *AEADChunkWriter {
	return &AEADChunkWriter{writer: writer, auth: auth}
}

// WriteMultiBuffer implements buf.Writer.
func (w *AEADChunkWriter) WriteMultiBuffer(mb buf.MultiBuffer) error {
	defer mb.Release()
	var payload []byte
	for _, b := range mb {
		payload = append(payload, b.Bytes()...)
	}
	for len(payload) > 0 {
		n := len(payload)
		if n > MaxChunkSize {
			n = MaxChunkSize
		}
		if err := w.writeChunk(payload[:n]); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}

func (w *AEADChunkWriter) writeChunk(payload []byte) error {
	var lengthBuf [lengthBytes]byte
	binary.BigEndian.PutUint16(lengthBuf[:], uint16(len(payload)))
	sealedLen := w.auth.Seal(lengthBuf[:])
	sealedPayload := w.auth.Seal(payload)
	if err := buf.WriteAllBytes(w.writer, sealedLen); err != nil {
		return err
	}
	return buf.WriteAllBytes(w.writer, sealedPayload)
}

// AEADChunkReader is the decoder half of AEADChunkWriter, implementing the
// ReadLengthCipher → DecryptLength → ReadPayloadCipher → DecryptPayload
// state machine of spec.md §4.4. A decryption failure is treated as fatal:
// the stream cannot be resynchronized afterward.
type AEADChunkReader struct {
	reader io.Reader
	auth   *AEADAuthenticator
}

// NewAEADChunkReader wraps reader to decode AEAD-framed chunks via auth.
func NewAEADChunkReader(reader io.Reader, auth *AEADAuthenticator) *AEADChunkReader {
	return &AEADChunkReader{reader: reader, auth: auth}
}

// ReadMultiBuffer implements buf.Reader, returning exactly one chunk's
// decrypted payload per call.
func (r *AEADChunkReader) ReadMultiBuffer() (buf.MultiBuffer, error) {
	sealedLen := make([]byte, lengthBytes+r.auth.Overhead())
	if _, err := io.ReadFull(r.reader, sealedLen); err != nil {
		return nil, err
	}
	lengthBuf, err := r.auth.Open(sealedLen)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lengthBuf)
	if length == 0 {
		return buf.MultiBuffer{}, nil
	}
	if length > MaxChunkSize {
		return nil, xerrors.New("chunk length exceeds maximum: ", length).WithKind(xerrors.KindInvalidFraming)
	}

	sealedPayload := make([]byte, int(length)+r.auth.Overhead())
	if _, err := io.ReadFull(r.reader, sealedPayload); err != nil {
		return nil, err
	}
	payload, err := r.auth.Open(sealedPayload)
	if err != nil {
		return nil, err
	}
	return buf.MultiBuffer{buf.FromBytes(payload)}, nil
}
