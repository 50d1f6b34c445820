// Package flags implements command-line flags shared by the vpxivf
// subcommands.
//
// The design idea is taken from [upspin.io/flags], but most of the code is
// modified. This package uses a slightly modified version of [RegisterInto] and
// the internal [flags]-map. See [Upspin LICENSE] for upspins copyright and
// license information.
//
// [upspin.io/flags]: https://github.com/upspin/upspin/tree/334f107fe3d98225d7adfbb35b74e066fbca9875/flags
// [Upspin LICENSE]: https://github.com/upspin/upspin/blob/334f107fe3d98225d7adfbb35b74e066fbca9875/LICENSE
package flags

import (
	"flag"
	"fmt"

	"github.com/mengelbart/vpxivf"
)

type FlagName string

// flag keys
const (
	LocalAddrFlag  FlagName = "local"
	RemoteAddrFlag FlagName = "remote"
	HTTPAddrFlag   FlagName = "http-address"
	HTTPSAddrFlag  FlagName = "https-address"

	RTPPortFlag FlagName = "rtp-port"

	CertFlag FlagName = "cert"
	KeyFlag  FlagName = "key"

	CodecFlag            FlagName = "codec"
	WidthFlag            FlagName = "width"
	HeightFlag           FlagName = "height"
	FPSFlag              FlagName = "fps"
	BitrateFlag          FlagName = "bitrate"
	KeyframeIntervalFlag FlagName = "keyframe-interval"
	MaxFramesFlag        FlagName = "max-frames"
	ThreadsFlag          FlagName = "threads"

	InputFlag  FlagName = "input"
	OutputFlag FlagName = "output"

	MTUFlag         FlagName = "mtu"
	NoPacingFlag    FlagName = "no-pacing"
	LossTimeoutFlag FlagName = "loss-timeout"

	TraceRTPRecvFlag FlagName = "trace-rtp-recv"
	TraceRTPSendFlag FlagName = "trace-rtp-send"
)

// Flag vars
var (
	// LocalAddr
	LocalAddr = "127.0.0.1"

	// RemoteAddr
	RemoteAddr = "127.0.0.1"

	// HTTP Server
	HTTPAddr = "127.0.0.1:8080"

	// HTTP/3 Server, empty disables HTTP/3
	HTTPSAddr = ""

	Cert = "localhost.pem"

	Key = "localhost-key.pem"

	// RTP Port
	RTPPort = uint(5000)

	Codec            = vpxivf.VP8.String()
	Width            = uint(0)
	Height           = uint(0)
	FPS              = uint(vpxivf.DefaultFPS)
	Bitrate          = uint(vpxivf.DefaultBitrate)
	KeyframeInterval = uint(0)
	MaxFrames        = uint(0)
	Threads          = uint(0)

	// Input and Output are file paths, "-" means stdin or stdout.
	Input  = "-"
	Output = "-"

	MTU         = uint(1200)
	NoPacing    = false
	LossTimeout = uint(100) // milliseconds

	TraceRTPRecv = false
	TraceRTPSend = false
)

type flagVar func(*flag.FlagSet)

func stringVar(p *string, name FlagName, defaultValue *string, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.StringVar(p, string(name), *defaultValue, usage)
	}
}

func uintVar(p *uint, name FlagName, defaultValue *uint, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.UintVar(p, string(name), *defaultValue, usage)
	}
}

func boolVar(p *bool, name FlagName, defaultValue *bool, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.BoolVar(p, string(name), *defaultValue, usage)
	}
}

var flags = map[FlagName]flagVar{
	// Address related flags
	LocalAddrFlag:  stringVar(&LocalAddr, LocalAddrFlag, &LocalAddr, "Address for local servers"),
	RemoteAddrFlag: stringVar(&RemoteAddr, RemoteAddrFlag, &RemoteAddr, "Address for remote servers"),
	HTTPAddrFlag:   stringVar(&HTTPAddr, HTTPAddrFlag, &HTTPAddr, "HTTP Server address"),
	HTTPSAddrFlag:  stringVar(&HTTPSAddr, HTTPSAddrFlag, &HTTPSAddr, "HTTP/3 Server address, requires -cert and -key"),

	RTPPortFlag: uintVar(&RTPPort, RTPPortFlag, &RTPPort, "UDP port of the RTP stream, RTCP is multiplexed on the same port"),

	// TLS Certificate
	CertFlag: stringVar(&Cert, CertFlag, &Cert, "TLS Certificate"),
	KeyFlag:  stringVar(&Key, KeyFlag, &Key, "TLS Certificate key"),

	// Encoder flags
	CodecFlag:            stringVar(&Codec, CodecFlag, &Codec, "Codec to use (VP8, VP9)"),
	WidthFlag:            uintVar(&Width, WidthFlag, &Width, "Frame width in pixels, must be even"),
	HeightFlag:           uintVar(&Height, HeightFlag, &Height, "Frame height in pixels, must be even"),
	FPSFlag:              uintVar(&FPS, FPSFlag, &FPS, "Frames per second, the container timebase is 1/fps"),
	BitrateFlag:          uintVar(&Bitrate, BitrateFlag, &Bitrate, "Target bitrate in kbit/s"),
	KeyframeIntervalFlag: uintVar(&KeyframeInterval, KeyframeIntervalFlag, &KeyframeInterval, "Force a keyframe every n frames, 0 leaves placement to the encoder"),
	MaxFramesFlag:        uintVar(&MaxFrames, MaxFramesFlag, &MaxFrames, "Stop after n frames, 0 means no limit"),
	ThreadsFlag:          uintVar(&Threads, ThreadsFlag, &Threads, "Encoder threads, 0 uses the codec default"),

	// IO Flags
	InputFlag:  stringVar(&Input, InputFlag, &Input, "Input file, - for stdin"),
	OutputFlag: stringVar(&Output, OutputFlag, &Output, "Output file, - for stdout"),

	// RTP flags
	MTUFlag:         uintVar(&MTU, MTUFlag, &MTU, "Maximum RTP packet size"),
	NoPacingFlag:    boolVar(&NoPacing, NoPacingFlag, &NoPacing, "Send frames as fast as possible instead of one per timebase tick"),
	LossTimeoutFlag: uintVar(&LossTimeout, LossTimeoutFlag, &LossTimeout, "Milliseconds to wait for missing RTP packets before dropping a frame"),

	// tracing flags
	TraceRTPRecvFlag: boolVar(&TraceRTPRecv, TraceRTPRecvFlag, &TraceRTPRecv, "Log incoming RTP packets"),
	TraceRTPSendFlag: boolVar(&TraceRTPSend, TraceRTPSendFlag, &TraceRTPSend, "Log outgoing RTP packets"),
}

func RegisterInto(fs *flag.FlagSet, names ...FlagName) {
	if len(names) == 0 {
		for _, f := range flags {
			f(fs)
		}
	} else {
		for _, n := range names {
			f, ok := flags[n]
			if !ok {
				panic(fmt.Sprintf("unknown flag: %q", n))
			}
			f(fs)
		}
	}
}

// EncoderConfig builds an encoder configuration from the encoder flags.
func EncoderConfig() (vpxivf.EncoderConfig, error) {
	c, err := vpxivf.ParseCodec(Codec)
	if err != nil {
		return vpxivf.EncoderConfig{}, err
	}
	config := vpxivf.DefaultEncoderConfig(int(Width), int(Height))
	config.Codec = c
	config.FPS = int(FPS)
	config.Bitrate = Bitrate
	config.KeyframeInterval = int(KeyframeInterval)
	config.MaxFrames = int(MaxFrames)
	return config, nil
}
