package subcmd

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/mengelbart/vpxivf/cmdmain"
	"github.com/mengelbart/vpxivf/ivf"
	"golang.org/x/sync/errgroup"
)

func init() {
	cmdmain.RegisterSubCmd("info", func() cmdmain.SubCmd { return new(Info) })
}

type Info struct{}

type fileInfo struct {
	path   string
	header ivf.FileHeader
	stats  ivf.Stats
	err    error
}

func (i *Info) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	jobs := fs.Int("jobs", runtime.NumCPU(), "Number of files inspected concurrently")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Print header and frame statistics of IVF files

Usage:
	%s info [flags] <file>...

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "error: missing files")
		fs.Usage()
		os.Exit(1)
	}

	results := make([]fileInfo, fs.NArg())
	var eg errgroup.Group
	eg.SetLimit(max(*jobs, 1))
	for idx, path := range fs.Args() {
		eg.Go(func() error {
			results[idx] = inspect(path)
			return nil
		})
	}
	eg.Wait()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tCODEC\tSIZE\tTIMEBASE\tHEADER FRAMES\tFRAMES\tBYTES\tMAX FRAME\tDURATION\tKBIT/S\tERROR")
	failed := 0
	for _, r := range results {
		errText := ""
		if r.err != nil {
			errText = r.err.Error()
			failed++
		}
		fmt.Fprintf(tw, "%v\t%v\t%vx%v\t%v\t%v\t%v\t%v\t%v\t%v\t%.1f\t%v\n",
			r.path,
			r.header.FourCC,
			r.header.Width, r.header.Height,
			r.header.Timebase,
			r.header.FrameCount,
			r.stats.Frames,
			r.stats.Bytes,
			r.stats.MaxFrameSize,
			r.stats.Duration(r.header.Timebase),
			r.stats.Bitrate(r.header.Timebase)/1000,
			errText,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%v of %v files could not be read completely", failed, len(results))
	}
	return nil
}

func inspect(path string) fileInfo {
	info := fileInfo{path: path}
	r, err := ivf.Open(path)
	if err != nil {
		info.err = err
		return info
	}
	defer r.Close()
	info.header = r.Header()
	info.stats, info.err = ivf.Scan(r)
	return info
}

func (i *Info) Help() string {
	return "Inspect IVF files"
}
