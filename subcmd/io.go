package subcmd

import (
	"io"
	"os"

	"github.com/mengelbart/vpxivf/bytestream"
)

const stdio = "-"

// stdout hides the io.Seeker of os.Stdout, which fails on pipes, and keeps
// Close from closing it.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == stdio {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func createOutput(path string) (io.WriteCloser, error) {
	if path == stdio {
		return nopWriteCloser{stdout{}}, nil
	}
	return os.Create(path)
}

func openSource(path string) (bytestream.Source, error) {
	if path == stdio {
		return bytestream.NewStreamSource(io.NopCloser(os.Stdin)), nil
	}
	return bytestream.Open(path)
}

func createSink(path string) (bytestream.Sink, error) {
	if path == stdio {
		return bytestream.NewStreamSink(stdout{}), nil
	}
	return bytestream.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
