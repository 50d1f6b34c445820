// Package codec connects an external VP8/VP9 encoder or decoder to the IVF
// container. Encoders and decoders are black boxes that produce zero or more
// results per call; the pump functions drain them completely.
package codec

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mengelbart/vpxivf/yuv"
)

type CodecType int

const (
	VP8 CodecType = iota
	VP9
)

func (c CodecType) String() string {
	switch c {
	case VP8:
		return "vp8"
	case VP9:
		return "vp9"
	default:
		return "unknown"
	}
}

// ParseCodecType accepts "vp8" and "vp9" in any case.
func ParseCodecType(s string) (CodecType, error) {
	switch strings.ToLower(s) {
	case "vp8":
		return VP8, nil
	case "vp9":
		return VP9, nil
	}
	return VP8, fmt.Errorf("unknown codec: %v", s)
}

type PacketKind int

const (
	// FramePacket carries compressed frame data. All other kinds are
	// ignored by the pump.
	FramePacket PacketKind = iota
	StatsPacket
	PSNRPacket
	CustomPacket
)

// Packet is one output of an Encoder.
type Packet struct {
	Kind     PacketKind
	Data     []byte
	PTS      int64
	Duration uint64
	Keyframe bool
}

type EncodeFlags uint32

const (
	ForceKeyframe EncodeFlags = 1 << iota
)

// Encoder is an external video encoder. Encode with a nil image flushes
// delayed frames. NextPacket iterates the packets produced by the last call
// to Encode and returns false once they are exhausted.
type Encoder interface {
	Encode(img *yuv.Image, pts int64, duration uint64, flags EncodeFlags) error
	NextPacket() (*Packet, bool)
	Close() error
}

// Decoder is an external video decoder. NextImage iterates the images
// produced by the last call to Decode.
type Decoder interface {
	Decode(data []byte) error
	NextImage() (*yuv.Image, bool)
	Close() error
}

// FrameWriter receives compressed frames. *ivf.Writer implements it.
type FrameWriter interface {
	WriteFrame(data []byte, pts int64) error
}

type FrameWriterFunc func(data []byte, pts int64) error

func (f FrameWriterFunc) WriteFrame(data []byte, pts int64) error {
	return f(data, pts)
}

// Config configures an encoder.
type Config struct {
	Codec       CodecType
	Width       int
	Height      int
	TimebaseNum int
	TimebaseDen int
	// TargetRate is the target bitrate in kbit/s.
	TargetRate uint
	Threads    int
	// Realtime selects the realtime deadline instead of good quality.
	Realtime bool
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("invalid encoder size %vx%v: width and height must be positive and even", c.Width, c.Height)
	}
	if c.TimebaseNum <= 0 || c.TimebaseDen <= 0 {
		return fmt.Errorf("invalid encoder timebase %v/%v", c.TimebaseNum, c.TimebaseDen)
	}
	return nil
}

type options struct {
	logger *slog.Logger
}

// Option configures the libvpx encoder and decoder.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
