package vpxivf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mengelbart/vpxivf/bytestream"
	"github.com/mengelbart/vpxivf/codec"
	"github.com/mengelbart/vpxivf/ivf"
	"github.com/mengelbart/vpxivf/yuv"
)

const (
	DefaultFPS     = 30
	DefaultBitrate = 200
)

// EncoderConfig describes an encoding session. Bitrate is in kbit/s. A
// KeyframeInterval of 0 leaves keyframe placement to the encoder and a
// MaxFrames of 0 encodes all input.
type EncoderConfig struct {
	Codec            Codec
	Width            int
	Height           int
	FPS              int
	Bitrate          uint
	KeyframeInterval int
	MaxFrames        int
}

// DefaultEncoderConfig returns a VP8 config at 30 fps and 200 kbit/s.
func DefaultEncoderConfig(width, height int) EncoderConfig {
	return EncoderConfig{
		Codec:   VP8,
		Width:   width,
		Height:  height,
		FPS:     DefaultFPS,
		Bitrate: DefaultBitrate,
	}
}

func (c EncoderConfig) validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("%w: invalid frame size %vx%v", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: invalid fps %v", ErrInvalidConfig, c.FPS)
	}
	if c.KeyframeInterval < 0 {
		return fmt.Errorf("%w: invalid keyframe interval %v", ErrInvalidConfig, c.KeyframeInterval)
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("%w: invalid frame limit %v", ErrInvalidConfig, c.MaxFrames)
	}
	return nil
}

func (c EncoderConfig) info() ivf.Info {
	return ivf.Info{
		FourCC:   c.Codec.FourCC(),
		Width:    c.Width,
		Height:   c.Height,
		Timebase: ivf.Rational{Num: 1, Den: c.FPS},
	}
}

type sessionOptions struct {
	logger       *slog.Logger
	writerOpts   []ivf.WriterOption
	codecThreads int
}

type SessionOption func(*sessionOptions)

func WithLogger(logger *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// WithWriterOptions passes options to the container writer of an encoder
// session, such as ivf.WithFrameCount for sinks that cannot seek.
func WithWriterOptions(opts ...ivf.WriterOption) SessionOption {
	return func(o *sessionOptions) {
		o.writerOpts = append(o.writerOpts, opts...)
	}
}

// WithThreads sets the number of libvpx encoder threads.
func WithThreads(n int) SessionOption {
	return func(o *sessionOptions) {
		o.codecThreads = n
	}
}

func newSessionOptions(opts []SessionOption) sessionOptions {
	o := sessionOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EncoderSession encodes raw images into an IVF container. It owns the
// encoder, the container writer and the sink.
type EncoderSession struct {
	logger *slog.Logger
	config EncoderConfig

	encoder   codec.Encoder
	writer    *ivf.Writer
	image     *yuv.Image
	keyframes codec.KeyframeInterval

	frameIndex    int64
	framesEncoded int
	closed        bool
}

// NewEncoderSession writes the provisional container header to sink and
// prepares an I420 input image of the configured size.
func NewEncoderSession(sink bytestream.Sink, enc codec.Encoder, config EncoderConfig, opts ...SessionOption) (*EncoderSession, error) {
	o := newSessionOptions(opts)
	if err := config.validate(); err != nil {
		return nil, err
	}
	img, err := yuv.NewImage(yuv.FormatI420, config.Width, config.Height, 1)
	if err != nil {
		return nil, err
	}
	writerOpts := append([]ivf.WriterOption{ivf.WithWriterLogger(o.logger)}, o.writerOpts...)
	w, err := ivf.NewWriter(sink, config.info(), writerOpts...)
	if err != nil {
		return nil, err
	}
	o.logger.Info("opened encoder session", "codec", config.Codec, "width", config.Width, "height", config.Height, "fps", config.FPS, "bitrate", config.Bitrate, "keyframe-interval", config.KeyframeInterval, "max-frames", config.MaxFrames)
	return &EncoderSession{
		logger:    o.logger,
		config:    config,
		encoder:   enc,
		writer:    w,
		image:     img,
		keyframes: codec.KeyframeInterval(config.KeyframeInterval),
	}, nil
}

// OpenEncoder opens an encoder session backed by libvpx.
func OpenEncoder(sink bytestream.Sink, config EncoderConfig, opts ...SessionOption) (*EncoderSession, error) {
	o := newSessionOptions(opts)
	if err := config.validate(); err != nil {
		return nil, err
	}
	enc, err := codec.NewVPXEncoder(codec.Config{
		Codec:       config.Codec.Type(),
		Width:       config.Width,
		Height:      config.Height,
		TimebaseNum: 1,
		TimebaseDen: config.FPS,
		TargetRate:  config.Bitrate,
		Threads:     o.codecThreads,
	}, codec.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	s, err := NewEncoderSession(sink, enc, config, opts...)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return s, nil
}

// Image returns the session owned input image used by SubmitPixels and
// Step. Callers may fill it directly and pass it to SubmitImage.
func (s *EncoderSession) Image() *yuv.Image {
	return s.image
}

func (s *EncoderSession) Info() ivf.Info {
	return s.writer.Info()
}

// Done reports whether MaxFrames images have been submitted.
func (s *EncoderSession) Done() bool {
	return s.config.MaxFrames > 0 && s.framesEncoded >= s.config.MaxFrames
}

func (s *EncoderSession) FramesEncoded() int {
	return s.framesEncoded
}

// FramesWritten returns the number of container frames written so far.
func (s *EncoderSession) FramesWritten() uint32 {
	return s.writer.FrameCount()
}

// SubmitImage encodes img as the next frame and writes the resulting
// packets to the container.
func (s *EncoderSession) SubmitImage(img *yuv.Image) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.Done() {
		return ErrFrameLimit
	}
	flags := s.keyframes.Flags(s.frameIndex)
	if _, err := codec.PumpEncode(s.encoder, img, s.frameIndex, flags, s.writer); err != nil {
		return err
	}
	s.frameIndex++
	s.framesEncoded++
	return nil
}

// SubmitPixels converts a packed RGBA image of the configured size into the
// session image and encodes it.
func (s *EncoderSession) SubmitPixels(rgba []byte, stride int) error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := yuv.RGBAToI420(s.image, rgba, stride); err != nil {
		return err
	}
	return s.SubmitImage(s.image)
}

// Step reads one raw image from r and encodes it. It returns false at the
// end of the input or once the frame limit is reached. A truncated trailing
// image ends the input and is dropped.
func (s *EncoderSession) Step(r io.Reader) (bool, error) {
	if s.closed {
		return false, ErrSessionClosed
	}
	if s.Done() {
		return false, nil
	}
	if err := yuv.ReadImage(r, s.image); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return false, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			s.logger.Warn("dropping truncated trailing image", "frame", s.frameIndex, "error", err)
			return false, nil
		}
		return false, err
	}
	if err := s.SubmitImage(s.image); err != nil {
		return false, err
	}
	return true, nil
}

// Run encodes raw images from r until the input ends or the frame limit is
// reached. It returns the number of images encoded by this call.
func (s *EncoderSession) Run(r io.Reader) (int, error) {
	n := 0
	for {
		ok, err := s.Step(r)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// Close flushes delayed frames, finalizes the container header and closes
// the encoder and the sink.
func (s *EncoderSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_, flushErr := codec.Flush(s.encoder, s.writer)
	writerErr := s.writer.Close()
	encErr := s.encoder.Close()
	s.logger.Info("closed encoder session", "frames-encoded", s.framesEncoded, "frames-written", s.writer.FrameCount())
	return errors.Join(flushErr, writerErr, encErr)
}

// DecoderSession decodes the frames of an IVF container and hands every
// decoded image to a sink. It owns the container reader and the decoder.
type DecoderSession struct {
	logger  *slog.Logger
	reader  *ivf.Reader
	decoder codec.Decoder
	sink    func(*yuv.Image) error

	framesRead    int
	imagesDecoded int
	closed        bool
}

// NewDecoderSession reads the container header from src.
func NewDecoderSession(src bytestream.Source, dec codec.Decoder, sink func(*yuv.Image) error, opts ...SessionOption) (*DecoderSession, error) {
	o := newSessionOptions(opts)
	r, err := ivf.NewReader(src, ivf.WithReaderLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return newDecoderSession(r, dec, sink, o), nil
}

func newDecoderSession(r *ivf.Reader, dec codec.Decoder, sink func(*yuv.Image) error, o sessionOptions) *DecoderSession {
	info := r.Info()
	o.logger.Info("opened decoder session", "fourcc", info.FourCC, "width", info.Width, "height", info.Height, "timebase", info.Timebase, "frame-count", r.Header().FrameCount)
	return &DecoderSession{
		logger:  o.logger,
		reader:  r,
		decoder: dec,
		sink:    sink,
	}
}

// OpenDecoder opens a decoder session backed by libvpx. The codec is
// selected by the container FourCC.
func OpenDecoder(src bytestream.Source, sink func(*yuv.Image) error, opts ...SessionOption) (*DecoderSession, error) {
	o := newSessionOptions(opts)
	r, err := ivf.NewReader(src, ivf.WithReaderLogger(o.logger))
	if err != nil {
		return nil, err
	}
	c, err := CodecFromFourCC(r.Info().FourCC)
	if err != nil {
		r.Close()
		return nil, err
	}
	dec, err := codec.NewVPXDecoder(c.Type(), codec.WithLogger(o.logger))
	if err != nil {
		r.Close()
		return nil, err
	}
	return newDecoderSession(r, dec, sink, o), nil
}

func (s *DecoderSession) Info() ivf.Info {
	return s.reader.Info()
}

func (s *DecoderSession) Header() ivf.FileHeader {
	return s.reader.Header()
}

// Step decodes the next container frame. It returns false at the end of
// the container.
func (s *DecoderSession) Step() (bool, error) {
	if s.closed {
		return false, ErrSessionClosed
	}
	ok, err := s.reader.ReadFrame()
	if err != nil || !ok {
		return false, err
	}
	n, err := codec.PumpDecode(s.decoder, s.reader.Frame(), s.sink)
	s.imagesDecoded += n
	if err != nil {
		return false, fmt.Errorf("frame %v: %w", s.framesRead, err)
	}
	s.framesRead++
	return true, nil
}

// Run decodes all remaining frames and returns the number of images
// delivered to the sink by this call.
func (s *DecoderSession) Run() (int, error) {
	start := s.imagesDecoded
	for {
		ok, err := s.Step()
		if err != nil {
			return s.imagesDecoded - start, err
		}
		if !ok {
			s.logger.Info("decoded container", "frames", s.framesRead, "images", s.imagesDecoded)
			return s.imagesDecoded - start, nil
		}
	}
}

func (s *DecoderSession) FramesRead() int {
	return s.framesRead
}

func (s *DecoderSession) ImagesDecoded() int {
	return s.imagesDecoded
}

// Close closes the container reader and the decoder.
func (s *DecoderSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.reader.Close(), s.decoder.Close())
}

// DecodeBytes decodes a complete in-memory container with dec. The decoder
// stays open and owned by the caller.
func DecodeBytes(container []byte, dec codec.Decoder, sink func(*yuv.Image) error, opts ...SessionOption) (int, error) {
	s, err := NewDecoderSession(bytestream.NewBufferSource(container), dec, sink, opts...)
	if err != nil {
		return 0, err
	}
	defer s.reader.Close()
	return s.Run()
}

// WriteImageTo returns a decode sink that writes images as raw planar data
// to w.
func WriteImageTo(w io.Writer) func(*yuv.Image) error {
	return func(img *yuv.Image) error {
		return yuv.WriteImage(w, img)
	}
}
