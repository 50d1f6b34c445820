// Package bytestream implements position-tracked byte sinks and sources.
//
// Two backends exist for both directions: stream-backed values wrap an
// io.Writer or io.Reader (typically a file) and are unbounded, buffer-backed
// values operate on a fixed-capacity in-memory slice and check bounds before
// copying any byte.
package bytestream

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrBufferTooSmall is returned by a buffer-backed sink when a write would
	// exceed its capacity. Nothing is copied on such a write.
	ErrBufferTooSmall = errors.New("bytestream: buffer too small")

	// ErrBufferUnderrun is returned by a buffer-backed source when fewer bytes
	// remain than requested. It matches io.ErrUnexpectedEOF.
	ErrBufferUnderrun = fmt.Errorf("bytestream: buffer underrun: %w", io.ErrUnexpectedEOF)

	// ErrNotSeekable is returned by Seek and Rewind on sinks that cannot
	// change their write position.
	ErrNotSeekable = errors.New("bytestream: sink is not seekable")

	// ErrInvalidPosition is returned when seeking outside of the valid range.
	ErrInvalidPosition = errors.New("bytestream: invalid position")

	// ErrClosed is returned by operations on a closed sink or source.
	ErrClosed = errors.New("bytestream: closed")
)

// Sink is an append-only, position-tracked destination of bytes.
type Sink interface {
	io.Writer

	// Position returns the offset at which the next write starts.
	Position() int64

	// Seekable reports whether Seek and Rewind are supported.
	Seekable() bool

	// Seek moves the write position to the absolute offset pos.
	Seek(pos int64) error

	// Rewind is equivalent to Seek(0).
	Rewind() error

	Close() error
}

// Source is a position-tracked source of bytes.
type Source interface {
	io.Reader

	// ReadFull reads exactly len(p) bytes. It returns io.EOF if no bytes were
	// available and an error matching io.ErrUnexpectedEOF if the source ended
	// after some but not all bytes.
	ReadFull(p []byte) error

	// Position returns the number of bytes consumed so far.
	Position() int64

	Close() error
}
