package ivf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mengelbart/vpxivf/bytestream"
)

type ReaderOption func(*Reader)

func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// Reader extracts frames from an IVF container sequentially.
type Reader struct {
	logger *slog.Logger
	src    bytestream.Source
	header FileHeader

	frameHeader [FrameHeaderSize]byte
	scratch     []byte
	frame       []byte
	pts         int64
	framesRead  uint32
	closed      bool
}

// NewReader reads and validates the file header from src.
func NewReader(src bytestream.Source, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		logger: slog.Default(),
		src:    src,
	}
	for _, opt := range opts {
		opt(r)
	}
	var buf [FileHeaderSize]byte
	if err := src.ReadFull(buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
		}
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	header, err := DecodeFileHeader(buf[:])
	if err != nil {
		return nil, err
	}
	r.header = header
	r.logger.Debug("opened ivf reader", "fourcc", header.FourCC, "width", header.Width, "height", header.Height, "timebase", header.Timebase, "frame-count", header.FrameCount)
	return r, nil
}

// Open opens the container at path. If the header is invalid, the file is
// closed again.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	src, err := bytestream.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(src, opts...)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return r, nil
}

func (r *Reader) Info() Info {
	return r.header.Info
}

// Header returns the file header as read from the container. Its
// FrameCount is whatever the writer recorded and may be zero for
// unfinalized files.
func (r *Reader) Header() FileHeader {
	return r.header
}

// ReadFrame reads the next frame. It returns false and no error at the clean
// end of the container. A container ending inside a frame header or payload
// is an error matching io.ErrUnexpectedEOF.
func (r *Reader) ReadFrame() (bool, error) {
	if r.closed {
		return false, ErrClosed
	}
	r.frame = nil
	if err := r.src.ReadFull(r.frameHeader[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read header of frame %v: %w", r.framesRead, err)
	}
	pts, size := DecodeFrameHeader(r.frameHeader)
	if size > MaxFrameSize {
		return false, fmt.Errorf("%w: frame %v declares %v bytes", ErrFrameTooLarge, r.framesRead, size)
	}
	if uint32(len(r.scratch)) < size {
		r.scratch = make([]byte, 2*int(size))
	}
	frame := r.scratch[:size]
	if err := r.src.ReadFull(frame); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return false, fmt.Errorf("failed to read %v bytes of frame %v: %w", size, r.framesRead, err)
	}
	r.frame = frame
	r.pts = pts
	r.framesRead++
	r.logger.Debug("read frame", "size", size, "pts", pts, "frame", r.framesRead-1)
	return true, nil
}

// Frame returns the payload of the last frame read. The slice is only valid
// until the next call to ReadFrame.
func (r *Reader) Frame() []byte {
	return r.frame
}

// PTS returns the presentation timestamp of the last frame read.
func (r *Reader) PTS() int64 {
	return r.pts
}

// FramesRead returns the number of frames read so far.
func (r *Reader) FramesRead() uint32 {
	return r.framesRead
}

// Close releases the scratch buffer and closes the source.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.scratch = nil
	r.frame = nil
	return r.src.Close()
}
