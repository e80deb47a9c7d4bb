package buf

import "io"

// MultiBuffer is an ordered list of Buffers treated as one logical byte
// stream; it is the unit Reader/Writer move data in.
type MultiBuffer []*Buffer

// Len returns the total length of the content across all Buffers.
func (mb MultiBuffer) Len() int32 {
	var size int32
	for _, b := range mb {
		size += b.Len()
	}
	return size
}

// IsEmpty reports whether mb carries no content.
func (mb MultiBuffer) IsEmpty() bool {
	return mb.Len() == 0
}

// Release returns every Buffer in mb to its pool.
func (mb MultiBuffer) Release() {
	for _, b := range mb {
		b.Release()
	}
}

// WriteTo implements io.WriterTo, writing each Buffer of mb to w in order.
// It does not release the Buffers.
func (mb MultiBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, b := range mb {
		n, err := w.Write(b.Bytes())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// MergeBytes appends the content of mb onto dst and returns the result, for
// callers that need a single contiguous slice.
func MergeBytes(mb MultiBuffer, dst []byte) []byte {
	for _, b := range mb {
		dst = append(dst, b.Bytes()...)
	}
	return dst
}

// MergeMulti appends src's Buffers onto dst, leaving src empty of ownership.
func MergeMulti(dst MultiBuffer, src MultiBuffer) MultiBuffer {
	return append(dst, src...)
}

// NewMultiBufferFromBytes wraps a single byte slice as an unmanaged
// single-Buffer MultiBuffer.
func NewMultiBufferFromBytes(b []byte) MultiBuffer {
	return MultiBuffer{FromBytes(b)}
}
