package subcmd

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mengelbart/vpxivf"
	"github.com/mengelbart/vpxivf/bytestream"
	"github.com/mengelbart/vpxivf/cmdmain"
	"github.com/mengelbart/vpxivf/flags"
)

func init() {
	cmdmain.RegisterSubCmd("enc", func() cmdmain.SubCmd { return new(Encode) })
}

type Encode struct{}

func (e *Encode) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("enc", flag.ExitOnError)
	flags.RegisterInto(fs, []flags.FlagName{
		flags.CodecFlag,
		flags.WidthFlag,
		flags.HeightFlag,
		flags.FPSFlag,
		flags.BitrateFlag,
		flags.KeyframeIntervalFlag,
		flags.MaxFramesFlag,
		flags.ThreadsFlag,
		flags.InputFlag,
		flags.OutputFlag,
	}...)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Encode raw I420 video into an IVF container

Usage:
	%s enc -width <w> -height <h> [flags]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	config, err := flags.EncoderConfig()
	if err != nil {
		return err
	}

	in, err := openInput(flags.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	sink, err := createSink(flags.Output)
	if err != nil {
		return err
	}
	session, err := vpxivf.OpenEncoder(sink, config, vpxivf.WithThreads(int(flags.Threads)))
	if err != nil {
		sink.Close()
		return err
	}

	n, err := session.Run(bufio.NewReader(in))
	closeErr := session.Close()
	if flags.Output == stdio && errors.Is(closeErr, bytestream.ErrNotSeekable) {
		slog.Warn("output is not seekable, frame count in header left at 0")
		closeErr = nil
	}
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	slog.Info("encoded", "images", n, "frames", session.FramesWritten(), "output", flags.Output)
	return nil
}

func (e *Encode) Help() string {
	return "Encode raw video into an IVF file"
}
