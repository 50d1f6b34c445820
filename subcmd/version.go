package subcmd

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/mengelbart/vpxivf/cmdmain"
	"github.com/mengelbart/vpxivf/codec"
)

func init() {
	cmdmain.RegisterSubCmd("version", func() cmdmain.SubCmd { return newVersion() })
}

type Version struct {
	path       string
	version    string
	gitCommit  string
	gitDate    string
	goVersion  string
	vpxVersion string
}

func newVersion() *Version {
	v := &Version{
		goVersion:  runtime.Version(),
		vpxVersion: codec.Version(),
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	v.path = info.Main.Path
	v.version = info.Main.Version
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			v.gitCommit = setting.Value
		case "vcs.time":
			v.gitDate = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if modified {
		v.gitCommit += "+dirty"
	}
	return v
}

// Exec implements cmdmain.SubCmd.
func (v *Version) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Print version information

Usage:
	%s version [flags]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	fmt.Fprintf(os.Stdout, `%s
	Version:	%s
	Git commit:	%s
	Built:		%s
	Go Version:	%s
	libvpx:		%s
`, v.path, v.version, v.gitCommit, v.gitDate, v.goVersion, v.vpxVersion)
	return nil
}

// Help implements cmdmain.SubCmd.
func (v *Version) Help() string {
	return "Print version information"
}
