package subcmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/mengelbart/vpxivf/bytestream"
	"github.com/mengelbart/vpxivf/cmdmain"
	"github.com/mengelbart/vpxivf/codec"
	"github.com/mengelbart/vpxivf/flags"
	"github.com/mengelbart/vpxivf/ivf"
	"github.com/mengelbart/vpxivf/logging"
	"github.com/mengelbart/vpxivf/rtp"
)

func init() {
	cmdmain.RegisterSubCmd("record", func() cmdmain.SubCmd { return new(Record) })
}

type Record struct{}

func (r *Record) Help() string {
	return "Receive an RTP stream over UDP into an IVF file"
}

func (r *Record) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	flags.RegisterInto(fs, []flags.FlagName{
		flags.LocalAddrFlag,
		flags.RTPPortFlag,
		flags.CodecFlag,
		flags.WidthFlag,
		flags.HeightFlag,
		flags.FPSFlag,
		flags.MaxFramesFlag,
		flags.OutputFlag,
		flags.LossTimeoutFlag,
		flags.TraceRTPRecvFlag,
	}...)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Receive an RTP stream over UDP and record it into an IVF file.
Recording stops on interrupt or after -max-frames frames.

Usage:
	%s record -output <file> -width <w> -height <h> [flags]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	if len(fs.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "error: unknown extra arguments: %v\n", fs.Args())
		fs.Usage()
		os.Exit(1)
	}

	config, err := flags.EncoderConfig()
	if err != nil {
		return err
	}
	info := ivf.Info{
		FourCC:   config.Codec.FourCC(),
		Width:    config.Width,
		Height:   config.Height,
		Timebase: ivf.Rational{Num: 1, Den: config.FPS},
	}
	if err := info.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	local := net.JoinHostPort(flags.LocalAddr, strconv.FormatUint(uint64(flags.RTPPort), 10))
	addr, err := net.ResolveUDPAddr("udp", local)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	sink, err := createSink(flags.Output)
	if err != nil {
		return err
	}
	writer, err := ivf.NewWriter(sink, info)
	if err != nil {
		sink.Close()
		return err
	}

	frames := codec.FrameWriterFunc(func(data []byte, pts int64) error {
		if err := writer.WriteFrame(data, pts); err != nil {
			return err
		}
		if err := writer.UpdateHeader(); err != nil && !errors.Is(err, bytestream.ErrNotSeekable) {
			return err
		}
		if config.MaxFrames > 0 && int(writer.FrameCount()) >= config.MaxFrames {
			cancel()
		}
		return nil
	})

	depacketizerOpts := []rtp.DepacketizerOption{
		rtp.WithLossTimeout(time.Duration(flags.LossTimeout) * time.Millisecond),
		rtp.WithClockRate(uint32(config.Codec.ClockRate())),
	}
	receiverOpts := []rtp.ReceiverOption{}
	if flags.TraceRTPRecv {
		l := logging.NewRTPLogger("receiver", nil)
		depacketizerOpts = append(depacketizerOpts, rtp.WithDepacketizerRTPLogger(l))
		receiverOpts = append(receiverOpts, rtp.WithReceiverRTPLogger(l))
	}
	depacketizer, err := rtp.NewDepacketizer(config.Codec.Type(), info.Timebase, frames, depacketizerOpts...)
	if err != nil {
		writer.Close()
		return err
	}

	slog.Info("recording", "local", conn.LocalAddr(), "codec", config.Codec, "output", flags.Output)
	err = rtp.NewReceiver(conn, depacketizer, receiverOpts...).Run(ctx)
	closeErr := writer.Close()
	if flags.Output == stdio && errors.Is(closeErr, bytestream.ErrNotSeekable) {
		closeErr = nil
	}
	if err := errors.Join(err, closeErr); err != nil {
		return err
	}
	slog.Info("recorded", "frames", writer.FrameCount(), "dropped", depacketizer.Dropped())
	return nil
}
