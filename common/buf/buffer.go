// Package buf provides a pooled byte Buffer and the MultiBuffer/Reader/Writer
// abstractions every transport pipe in this module moves data through. It
// mirrors the shape of xray-core's common/buf package (a sync-pooled
// fixed-size Buffer plus a ReadMultiBuffer/WriteMultiBuffer reader/writer
// pair) without that package's bytespool/stats/transport-internet coupling.
package buf

import (
	"io"
	"sync"

	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// Size is the capacity of a pooled Buffer.
const Size = 8192

var ErrBufferFull = xerrors.New("buffer is full").WithKind(xerrors.KindResourceExhausted)

var pool = sync.Pool{
	New: func() interface{} {
		return make([]byte, Size)
	},
}

// ownership marks whether Release() should return v to the pool.
type ownership uint8

const (
	managed ownership = iota
	unmanaged
)

// Buffer is a recyclable, fixed-capacity byte buffer. Call Release once the
// buffer's contents have been consumed; Release is a no-op on a nil Buffer.
type Buffer struct {
	v     []byte
	start int32
	end   int32
	own   ownership
}

// New allocates a managed Buffer with 0 length and Size capacity, drawn from
// the package's sync.Pool.
func New() *Buffer {
	v := pool.Get().([]byte)
	if cap(v) < Size {
		v = make([]byte, Size)
	}
	return &Buffer{v: v[:Size]}
}

// FromBytes wraps an existing byte slice as an unmanaged Buffer; Release
// does not return it to the pool.
func FromBytes(b []byte) *Buffer {
	return &Buffer{v: b, end: int32(len(b)), own: unmanaged}
}

// Release recycles the buffer's backing array, if managed.
func (b *Buffer) Release() {
	if b == nil || b.v == nil {
		return
	}
	v := b.v
	b.v = nil
	b.start, b.end = 0, 0
	if b.own == managed && cap(v) == Size {
		pool.Put(v[:Size])
	}
}

// Clear empties the buffer's content without releasing its backing array.
func (b *Buffer) Clear() {
	b.start, b.end = 0, 0
}

// Bytes returns the buffer's unconsumed content.
func (b *Buffer) Bytes() []byte {
	return b.v[b.start:b.end]
}

// Len reports the length of the unconsumed content.
func (b *Buffer) Len() int32 {
	if b == nil {
		return 0
	}
	return b.end - b.start
}

// IsEmpty reports whether the buffer has no unconsumed content.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// IsFull reports whether the buffer has no room left to grow.
func (b *Buffer) IsFull() bool {
	return b != nil && int(b.end) == len(b.v)
}

// Extend grows the buffer by n bytes and returns the newly-extended region.
// It panics if the buffer lacks the capacity.
func (b *Buffer) Extend(n int32) []byte {
	end := b.end + n
	if int(end) > len(b.v) {
		panic("buf: extending out of bound")
	}
	ext := b.v[b.end:end]
	b.end = end
	for i := range ext {
		ext[i] = 0
	}
	return ext
}

// Write implements io.Writer, appending to the unconsumed content.
func (b *Buffer) Write(data []byte) (int, error) {
	n := copy(b.v[b.end:], data)
	b.end += int32(n)
	if n < len(data) {
		return n, ErrBufferFull
	}
	return n, nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(v byte) error {
	if b.IsFull() {
		return ErrBufferFull
	}
	b.v[b.end] = v
	b.end++
	return nil
}

// WriteString implements io.StringWriter.
func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// Read implements io.Reader, consuming from the front of the buffer.
func (b *Buffer) Read(data []byte) (int, error) {
	if b.Len() == 0 {
		return 0, io.EOF
	}
	n := copy(data, b.v[b.start:b.end])
	b.start += int32(n)
	if b.start == b.end {
		b.Clear()
	}
	return n, nil
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if b.start == b.end {
		return 0, io.EOF
	}
	v := b.v[b.start]
	b.start++
	return v, nil
}

// ReadFrom implements io.ReaderFrom, reading into the buffer's free space.
func (b *Buffer) ReadFrom(reader io.Reader) (int64, error) {
	n, err := reader.Read(b.v[b.end:])
	b.end += int32(n)
	return int64(n), err
}

// ReadFullFrom reads exactly size bytes from reader into the buffer's free
// space, or returns an error.
func (b *Buffer) ReadFullFrom(reader io.Reader, size int32) (int64, error) {
	end := b.end + size
	if int(end) > len(b.v) {
		return 0, xerrors.New("buf: read size out of bound: ", size)
	}
	n, err := io.ReadFull(reader, b.v[b.end:end])
	b.end += int32(n)
	return int64(n), err
}

// String renders the unconsumed content as a string.
func (b *Buffer) String() string {
	return string(b.Bytes())
}
