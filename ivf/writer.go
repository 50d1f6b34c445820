package ivf

import (
	"fmt"
	"log/slog"

	"github.com/mengelbart/vpxivf/bytestream"
)

type WriterOption func(*Writer)

// WithFrameCount declares the final number of frames up front. The header
// is written with this count, which makes the writer usable on sinks that
// cannot seek back to rewrite it.
func WithFrameCount(n uint32) WriterOption {
	return func(w *Writer) {
		w.declared = &n
	}
}

func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Writer appends frames to an IVF container. The file header is committed
// in two phases: a provisional header when the writer is created and the
// final header, carrying the real frame count, on UpdateHeader and Close.
type Writer struct {
	logger   *slog.Logger
	sink     bytestream.Sink
	info     Info
	declared *uint32

	frameCount uint32
	buf        []byte
	closed     bool
}

// NewWriter validates info and writes the provisional file header at the
// current position of sink, which must be the start of the container.
func NewWriter(sink bytestream.Sink, info Info, opts ...WriterOption) (*Writer, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	w := &Writer{
		logger: slog.Default(),
		sink:   sink,
		info:   info,
	}
	for _, opt := range opts {
		opt(w)
	}
	var count uint32
	if w.declared != nil {
		count = *w.declared
	}
	header := EncodeFileHeader(info, count)
	if _, err := sink.Write(header[:]); err != nil {
		return nil, fmt.Errorf("failed to write file header: %w", err)
	}
	w.logger.Debug("opened ivf writer", "fourcc", info.FourCC, "width", info.Width, "height", info.Height, "timebase", info.Timebase, "seekable", sink.Seekable())
	return w, nil
}

// Create creates the file at path and opens a writer on it.
func Create(path string, info Info, opts ...WriterOption) (*Writer, error) {
	sink, err := bytestream.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(sink, info, opts...)
	if err != nil {
		sink.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) Info() Info {
	return w.info
}

// FrameCount returns the number of frames written successfully.
func (w *Writer) FrameCount() uint32 {
	return w.frameCount
}

// WriteFrame appends one frame. Frame header and payload are handed to the
// sink in a single write, so a bounded sink accepts either both or neither.
// The frame count only advances on success.
func (w *Writer) WriteFrame(data []byte, pts int64) error {
	if w.closed {
		return ErrClosed
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %v bytes", ErrFrameTooLarge, len(data))
	}
	header := EncodeFrameHeader(pts, uint32(len(data)))
	w.buf = append(append(w.buf[:0], header[:]...), data...)
	if _, err := w.sink.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write frame %v: %w", w.frameCount, err)
	}
	w.frameCount++
	w.logger.Debug("wrote frame", "size", len(data), "pts", pts, "frame-count", w.frameCount)
	return nil
}

// UpdateHeader rewrites the file header with the current frame count and
// restores the write position. It may be called at any time to make the
// output consumable. On a non-seekable sink it only succeeds if the count
// declared with WithFrameCount already matches.
func (w *Writer) UpdateHeader() error {
	if w.closed {
		return ErrClosed
	}
	if !w.sink.Seekable() {
		if w.declared != nil && *w.declared == w.frameCount {
			return nil
		}
		if w.declared != nil {
			return fmt.Errorf("%w: declared %v, wrote %v", ErrFrameCountMismatch, *w.declared, w.frameCount)
		}
		return fmt.Errorf("cannot update header: %w", bytestream.ErrNotSeekable)
	}
	pos := w.sink.Position()
	if err := w.sink.Rewind(); err != nil {
		return fmt.Errorf("failed to seek to file header: %w", err)
	}
	header := EncodeFileHeader(w.info, w.frameCount)
	if _, err := w.sink.Write(header[:]); err != nil {
		return fmt.Errorf("failed to rewrite file header: %w", err)
	}
	if err := w.sink.Seek(pos); err != nil {
		return fmt.Errorf("failed to restore write position: %w", err)
	}
	return nil
}

// Close finalizes the header and closes the sink. The sink is closed even
// if the header cannot be updated.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	err := w.UpdateHeader()
	w.closed = true
	w.buf = nil
	if cerr := w.sink.Close(); err == nil {
		err = cerr
	}
	w.logger.Debug("closed ivf writer", "frame-count", w.frameCount)
	return err
}
