package bytestream

import (
	"fmt"
	"io"
	"os"
)

// StreamSink is a Sink backed by an io.Writer. It is seekable if the writer
// also implements io.Seeker.
type StreamSink struct {
	w      io.Writer
	seeker io.Seeker
	pos    int64
	closed bool
}

// NewStreamSink wraps w. The initial position is zero; if w is an io.Seeker
// positioned elsewhere, callers should seek it to the start first.
func NewStreamSink(w io.Writer) *StreamSink {
	s := &StreamSink{
		w: w,
	}
	if seeker, ok := w.(io.Seeker); ok {
		s.seeker = seeker
	}
	return s
}

// Create creates or truncates the file at path and returns a seekable sink
// writing to it.
func Create(path string) (*StreamSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", path, err)
	}
	return NewStreamSink(file), nil
}

func (s *StreamSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	n, err := s.w.Write(p)
	s.pos += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

func (s *StreamSink) Position() int64 {
	return s.pos
}

func (s *StreamSink) Seekable() bool {
	return s.seeker != nil
}

func (s *StreamSink) Seek(pos int64) error {
	if s.closed {
		return ErrClosed
	}
	if s.seeker == nil {
		return ErrNotSeekable
	}
	if pos < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}
	n, err := s.seeker.Seek(pos, io.SeekStart)
	if err != nil {
		return err
	}
	s.pos = n
	return nil
}

func (s *StreamSink) Rewind() error {
	return s.Seek(0)
}

// Close closes the underlying writer if it is an io.Closer.
func (s *StreamSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StreamSource is a Source backed by an io.Reader.
type StreamSource struct {
	r      io.Reader
	pos    int64
	closed bool
}

func NewStreamSource(r io.Reader) *StreamSource {
	return &StreamSource{
		r: r,
	}
}

// Open opens the file at path for reading. A missing file yields an error
// matching fs.ErrNotExist.
func Open(path string) (*StreamSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %v: %w", path, err)
	}
	return NewStreamSource(file), nil
}

func (s *StreamSource) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	n, err := s.r.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *StreamSource) ReadFull(p []byte) error {
	if s.closed {
		return ErrClosed
	}
	n, err := io.ReadFull(s.r, p)
	s.pos += int64(n)
	return err
}

func (s *StreamSource) Position() int64 {
	return s.pos
}

// Close closes the underlying reader if it is an io.Closer.
func (s *StreamSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
