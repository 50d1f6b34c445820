package subcmd

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mengelbart/vpxivf"
	"github.com/mengelbart/vpxivf/cmdmain"
	"github.com/mengelbart/vpxivf/flags"
)

func init() {
	cmdmain.RegisterSubCmd("dec", func() cmdmain.SubCmd { return new(Decode) })
}

type Decode struct{}

func (d *Decode) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("dec", flag.ExitOnError)
	flags.RegisterInto(fs, []flags.FlagName{
		flags.InputFlag,
		flags.OutputFlag,
	}...)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Decode an IVF container into raw planar video

Usage:
	%s dec [flags]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	src, err := openSource(flags.Input)
	if err != nil {
		return err
	}
	out, err := createOutput(flags.Output)
	if err != nil {
		src.Close()
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	session, err := vpxivf.OpenDecoder(src, vpxivf.WriteImageTo(w))
	if err != nil {
		src.Close()
		return err
	}
	info := session.Info()
	slog.Info("decoding", "fourcc", info.FourCC, "width", info.Width, "height", info.Height, "frame-count", session.Header().FrameCount)

	n, err := session.Run()
	err = errors.Join(err, w.Flush(), session.Close())
	if err != nil {
		return err
	}
	slog.Info("decoded", "frames", session.FramesRead(), "images", n, "output", flags.Output)
	return nil
}

func (d *Decode) Help() string {
	return "Decode an IVF file into raw video"
}
