package encoding

import (
	"crypto/cipher"
	"encoding/binary"
	"io"

	"github.com/netbot-proxy/netbot/common/buf"
	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// ChunkSizeEncoder encodes an outbound chunk's plaintext length, optionally
// masking it (ShakeSizeParser) or leaving it plain (PlainChunkSizeParser).
type ChunkSizeEncoder interface {
	SizeBytes() int32
	Encode(size uint16, b []byte) []byte
}

// ChunkSizeDecoder is the decode half of ChunkSizeEncoder.
type ChunkSizeDecoder interface {
	SizeBytes() int32
	Decode(b []byte) (uint16, error)
}

// bodyNonce generates the 12-byte AEAD nonce for each VMESS body chunk:
// a big-endian u16 counter followed by 10 fixed bytes taken from the
// session IV, per spec.md §4.5's body framing.
type bodyNonce struct {
	iv      []byte
	counter uint16
	buf     [12]byte
}

// newBodyNonce builds a bodyNonce keyed off a 16-byte request or response
// IV, counting from zero.
func newBodyNonce(iv []byte) *bodyNonce {
	n := &bodyNonce{iv: iv}
	copy(n.buf[2:], iv[2:12])
	return n
}

func (n *bodyNonce) next() []byte {
	binary.BigEndian.PutUint16(n.buf[:2], n.counter)
	n.counter++
	return n.buf[:]
}

// ChunkWriter frames outbound MultiBuffers as VMESS body chunks: unlike
// Shadowsocks, only the payload is AEAD-sealed; the length field is merely
// masked (or left plain) by sizeEncoder, per spec.md §4.5.
type ChunkWriter struct {
	writer      io.Writer
	aead        cipher.AEAD
	nonce       *bodyNonce
	sizeEncoder ChunkSizeEncoder
}

// NewChunkWriter builds a ChunkWriter sealing payloads under aead, keyed by
// iv, with chunk lengths encoded via sizeEncoder.
func NewChunkWriter(writer io.Writer, aead cipher.AEAD, iv []byte, sizeEncoder ChunkSizeEncoder) *ChunkWriter {
	return &ChunkWriter{writer: writer, aead: aead, nonce: newBodyNonce(iv), sizeEncoder: sizeEncoder}
}

const maxChunkPayload = 0x3FFF

// WriteMultiBuffer implements buf.Writer.
func (w *ChunkWriter) WriteMultiBuffer(mb buf.MultiBuffer) error {
	defer mb.Release()
	var payload []byte
	for _, b := range mb {
		payload = append(payload, b.Bytes()...)
	}
	if len(payload) == 0 {
		return nil
	}
	for len(payload) > 0 {
		n := len(payload)
		if n > maxChunkPayload-w.aead.Overhead() {
			n = maxChunkPayload - w.aead.Overhead()
		}
		if err := w.writeChunk(payload[:n]); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}

func (w *ChunkWriter) writeChunk(payload []byte) error {
	sealed := w.aead.Seal(nil, w.nonce.next(), payload, nil)

	sizeBuf := make([]byte, w.sizeEncoder.SizeBytes())
	w.sizeEncoder.Encode(uint16(len(sealed)), sizeBuf)
	if err := buf.WriteAllBytes(w.writer, sizeBuf); err != nil {
		return err
	}
	return buf.WriteAllBytes(w.writer, sealed)
}

// ChunkReader is the decode half of ChunkWriter.
type ChunkReader struct {
	reader      io.Reader
	aead        cipher.AEAD
	nonce       *bodyNonce
	sizeDecoder ChunkSizeDecoder
}

// NewChunkReader builds a ChunkReader opening payloads under aead, keyed by
// iv, with chunk lengths decoded via sizeDecoder.
func NewChunkReader(reader io.Reader, aead cipher.AEAD, iv []byte, sizeDecoder ChunkSizeDecoder) *ChunkReader {
	return &ChunkReader{reader: reader, aead: aead, nonce: newBodyNonce(iv), sizeDecoder: sizeDecoder}
}

// ReadMultiBuffer implements buf.Reader, returning one chunk's decrypted
// payload per call. A zero-length terminal chunk yields io.EOF.
func (r *ChunkReader) ReadMultiBuffer() (buf.MultiBuffer, error) {
	sizeBuf := make([]byte, r.sizeDecoder.SizeBytes())
	if _, err := io.ReadFull(r.reader, sizeBuf); err != nil {
		return nil, err
	}
	size, err := r.sizeDecoder.Decode(sizeBuf)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, io.EOF
	}
	if int(size) > maxChunkPayload {
		return nil, xerrors.New("chunk size exceeds maximum: ", size).WithKind(xerrors.KindInvalidFraming)
	}

	sealed := make([]byte, size)
	if _, err := io.ReadFull(r.reader, sealed); err != nil {
		return nil, err
	}
	payload, err := r.aead.Open(nil, r.nonce.next(), sealed, nil)
	if err != nil {
		return nil, xerrors.New("VMESS body authentication failed").Base(err).WithKind(xerrors.KindAuthenticationFailed)
	}
	return buf.MultiBuffer{buf.FromBytes(payload)}, nil
}
