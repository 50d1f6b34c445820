package subcmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/julienschmidt/httprouter"
	"github.com/mengelbart/vpxivf/cmdmain"
	"github.com/mengelbart/vpxivf/flags"
	"github.com/mengelbart/vpxivf/internal/http"
)

func init() {
	cmdmain.RegisterSubCmd("serve", func() cmdmain.SubCmd { return new(Serve) })
}

type Serve struct{}

func (s *Serve) Help() string {
	return "Serve an HTTP API to inspect the IVF files in a directory"
}

func (s *Serve) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	flags.RegisterInto(fs, []flags.FlagName{
		flags.HTTPAddrFlag,
		flags.HTTPSAddrFlag,
		flags.CertFlag,
		flags.KeyFlag,
	}...)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Serve an HTTP API to inspect the IVF files in a directory

Usage:
	%s serve [flags] [directory]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	if len(fs.Args()) > 1 {
		fmt.Fprintf(os.Stderr, "error: unknown extra arguments: %v\n", fs.Args()[1:])
		fs.Usage()
		os.Exit(1)
	}
	dir := "."
	if fs.NArg() == 1 {
		dir = fs.Arg(0)
	}

	api, err := http.NewAPI(dir)
	if err != nil {
		return err
	}
	defer api.Close()
	mux := httprouter.New()
	api.RegisterRoutes(mux)

	opts := []http.Option{
		http.H1Address(flags.HTTPAddr),
		http.Handle(mux),
		http.RequestLogger(slog.Default()),
	}
	if flags.HTTPSAddr != "" {
		opts = append(opts,
			http.H3Address(flags.HTTPSAddr),
			http.CertificateFile(flags.Cert),
			http.CertificateKeyFile(flags.Key),
		)
	}
	server, err := http.NewServer(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return server.ListenAndServe(ctx)
}
