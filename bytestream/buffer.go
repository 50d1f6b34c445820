package bytestream

import (
	"fmt"
	"io"
)

// BufferSink is a Sink writing into a fixed-capacity byte slice. Its length
// is the highest offset ever written, so rewriting a region after Seek does
// not shrink it.
type BufferSink struct {
	buf    []byte
	pos    int
	size   int
	closed bool
}

// NewBufferSink allocates a sink with the given capacity in bytes.
func NewBufferSink(capacity int) *BufferSink {
	return NewBufferSinkFrom(make([]byte, capacity))
}

// NewBufferSinkFrom uses buf as backing store. The capacity is len(buf).
func NewBufferSinkFrom(buf []byte) *BufferSink {
	return &BufferSink{
		buf: buf,
	}
}

// Write copies p at the current position. If p does not fit into the
// remaining capacity, Write returns ErrBufferTooSmall without copying.
func (b *BufferSink) Write(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if len(p) > len(b.buf)-b.pos {
		return 0, fmt.Errorf("%w: write of %v bytes at position %v exceeds capacity %v", ErrBufferTooSmall, len(p), b.pos, len(b.buf))
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	b.size = max(b.size, b.pos)
	return n, nil
}

func (b *BufferSink) Position() int64 {
	return int64(b.pos)
}

func (b *BufferSink) Seekable() bool {
	return true
}

// Seek moves the write position to pos, which must not be beyond Len.
func (b *BufferSink) Seek(pos int64) error {
	if b.closed {
		return ErrClosed
	}
	if pos < 0 || pos > int64(b.size) {
		return fmt.Errorf("%w: %v not in [0, %v]", ErrInvalidPosition, pos, b.size)
	}
	b.pos = int(pos)
	return nil
}

func (b *BufferSink) Rewind() error {
	return b.Seek(0)
}

// Bytes returns the written portion of the backing buffer. It aliases the
// sink's memory.
func (b *BufferSink) Bytes() []byte {
	return b.buf[:b.size]
}

// Len returns the number of bytes written.
func (b *BufferSink) Len() int {
	return b.size
}

// Cap returns the capacity of the sink.
func (b *BufferSink) Cap() int {
	return len(b.buf)
}

func (b *BufferSink) Close() error {
	b.closed = true
	return nil
}

// BufferSource is a Source reading from an in-memory byte slice.
type BufferSource struct {
	buf    []byte
	pos    int
	closed bool
}

func NewBufferSource(buf []byte) *BufferSource {
	return &BufferSource{
		buf: buf,
	}
}

// Read implements io.Reader and may return fewer bytes than requested.
func (b *BufferSource) Read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if b.pos >= len(b.buf) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += n
	return n, nil
}

// ReadFull reads exactly len(p) bytes. At the end of the buffer it returns
// io.EOF, with fewer than len(p) bytes left it returns ErrBufferUnderrun and
// consumes nothing.
func (b *BufferSource) ReadFull(p []byte) error {
	if b.closed {
		return ErrClosed
	}
	if len(p) == 0 {
		return nil
	}
	remaining := len(b.buf) - b.pos
	if remaining == 0 {
		return io.EOF
	}
	if len(p) > remaining {
		return fmt.Errorf("%w: read of %v bytes with %v remaining", ErrBufferUnderrun, len(p), remaining)
	}
	b.pos += copy(p, b.buf[b.pos:])
	return nil
}

func (b *BufferSource) Position() int64 {
	return int64(b.pos)
}

// Remaining returns the number of unread bytes.
func (b *BufferSource) Remaining() int {
	return len(b.buf) - b.pos
}

func (b *BufferSource) Close() error {
	b.closed = true
	return nil
}
