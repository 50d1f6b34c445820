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

	"github.com/mengelbart/vpxivf/cmdmain"
	"github.com/mengelbart/vpxivf/flags"
	"github.com/mengelbart/vpxivf/ivf"
	"github.com/mengelbart/vpxivf/logging"
	"github.com/mengelbart/vpxivf/rtp"
)

func init() {
	cmdmain.RegisterSubCmd("send", func() cmdmain.SubCmd { return new(Send) })
}

type Send struct{}

func (s *Send) Help() string {
	return "Stream an IVF file as RTP over UDP"
}

func (s *Send) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	flags.RegisterInto(fs, []flags.FlagName{
		flags.InputFlag,
		flags.RemoteAddrFlag,
		flags.RTPPortFlag,
		flags.MTUFlag,
		flags.NoPacingFlag,
		flags.TraceRTPSendFlag,
	}...)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Stream an IVF file as RTP over UDP

Usage:
	%s send -input <file> [flags]

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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	src, err := openSource(flags.Input)
	if err != nil {
		return err
	}
	reader, err := ivf.NewReader(src)
	if err != nil {
		src.Close()
		return err
	}
	defer reader.Close()

	remote := net.JoinHostPort(flags.RemoteAddr, strconv.FormatUint(uint64(flags.RTPPort), 10))
	conn, err := net.Dial("udp", remote)
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := []rtp.SenderOption{
		rtp.WithMTU(uint16(flags.MTU)),
	}
	if flags.NoPacing {
		opts = append(opts, rtp.WithoutPacing())
	}
	if flags.TraceRTPSend {
		opts = append(opts, rtp.WithSenderRTPLogger(logging.NewRTPLogger("sender", nil)))
	}
	sender, err := rtp.NewSender(reader, conn, opts...)
	if err != nil {
		return err
	}
	slog.Info("sending", "input", flags.Input, "remote", remote, "ssrc", sender.SSRC())
	if err := sender.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("sent", "frames", sender.FrameCount(), "packets", sender.PacketCount())
	return nil
}
